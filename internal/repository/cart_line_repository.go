package repository

import (
	"context"

	"github.com/Israr974/BuyZaar-sub001/internal/domain/model"

	"github.com/shopspring/decimal"
)

type CartLineRepository interface {
	ListByUserID(ctx context.Context, userID int64) ([]model.CartLine, error)
	// 同一商品は数量を加算（(user, product)の一意制約に任せる）
	Upsert(ctx context.Context, userID int64, productID int64, addQty int64, priceSnapshot decimal.Decimal) error
	FindByID(ctx context.Context, lineID int64) (model.CartLine, error)
	UpdateQuantity(ctx context.Context, lineID int64, qty int64) error
	DeleteByID(ctx context.Context, lineID int64) error
}
