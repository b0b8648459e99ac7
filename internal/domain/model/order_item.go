package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 1明細あたりの数量上限。同一商品の合算もこの範囲に収める
const MaxLineQuantity int64 = 10000

// 注文時点のスナップショット。カタログは再読込しない
type OrderItem struct {
	ID                  int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID             int64           `gorm:"not null;index" json:"order_id"`
	ProductID           int64           `gorm:"not null;index" json:"product_id"`
	ProductNameSnapshot string          `gorm:"type:varchar(255);not null" json:"product_name_snapshot"`
	ImageSnapshot       string          `gorm:"type:varchar(500)" json:"image_snapshot"`
	UnitPriceSnapshot   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price_snapshot"`
	Quantity            int64           `gorm:"not null" json:"quantity"`
	LineTotal           decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"line_total"`
	CreatedAt           time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
}
