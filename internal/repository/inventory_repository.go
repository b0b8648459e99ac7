package repository

import (
	"context"

	"github.com/Israr974/BuyZaar-sub001/internal/domain/model"
)

// stock/soldは常に相対値で更新する
type InventoryRepository interface {
	// stock >= qty のときだけ stock-=qty, sold+=qty（1文で）
	DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error)

	// 在庫戻し（soldは減らさない）
	IncreaseStock(ctx context.Context, productID int64, qty int64) error

	// stock+delta >= 0 のときだけ反映
	AdjustStock(ctx context.Context, productID int64, delta int64) (bool, error)

	CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error
	ListAdjustmentsByOrderID(ctx context.Context, orderID int64) ([]model.InventoryAdjustment, error)
}
