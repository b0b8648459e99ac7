package model

import "time"

type AdjustmentReason string

const (
	AdjustmentOrderPlaced    AdjustmentReason = "order_placed"
	AdjustmentOrderCancelled AdjustmentReason = "order_cancelled"
	AdjustmentManual         AdjustmentReason = "manual"
)

//在庫調整の履歴（stock/soldの差分）

type InventoryAdjustment struct {
	ID          int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID   int64            `gorm:"not null;index" json:"product_id"`
	OrderID     *int64           `gorm:"index" json:"order_id,omitempty"`
	ActorUserID *int64           `gorm:"index" json:"actor_user_id,omitempty"`
	StockDelta  int64            `gorm:"not null" json:"stock_delta"`
	SoldDelta   int64            `gorm:"not null" json:"sold_delta"`
	Reason      AdjustmentReason `gorm:"type:varchar(30);not null" json:"reason"`
	Note        string           `gorm:"type:varchar(255)" json:"note"`
	CreatedAt   time.Time        `gorm:"not null;autoCreateTime" json:"created_at"`
}
