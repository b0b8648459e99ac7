package repository

import (
	"context"

	"github.com/Israr974/BuyZaar-sub001/internal/domain/model"
)

// カタログの参照（商品CRUDは別サービス）
type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (model.Product, error)
}
