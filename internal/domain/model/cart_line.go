package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// カートの明細（購入者×商品で一意）
// PriceSnapshotは表示用。注文時はカタログを読み直す
type CartLine struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        int64           `gorm:"not null;uniqueIndex:idx_cart_lines_user_product,priority:1" json:"user_id"`
	ProductID     int64           `gorm:"not null;uniqueIndex:idx_cart_lines_user_product,priority:2" json:"product_id"`
	Quantity      int64           `gorm:"not null;check:chk_cart_lines_quantity,quantity BETWEEN 1 AND 10000" json:"quantity"`
	PriceSnapshot decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price_snapshot"`
	CreatedAt     time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
