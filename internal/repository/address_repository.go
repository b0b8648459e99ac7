package repository

import (
	"context"

	"github.com/Israr974/BuyZaar-sub001/internal/domain/model"
)

// 住所録の参照窓口
type AddressRepository interface {
	//住所IDから住所を1件取得
	FindByID(ctx context.Context, addressID int64) (model.Address, error)
}
