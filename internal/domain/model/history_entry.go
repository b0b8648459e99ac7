package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 購入者プロフィールに付ける注文履歴の要約。正はordersテーブル
type HistoryEntry struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID        int64           `gorm:"not null;index" json:"-"`
	OrderID       int64           `gorm:"not null" json:"order_id"`
	OrderNumber   string          `gorm:"type:varchar(40);not null" json:"order_number"`
	OrderedAt     time.Time       `gorm:"not null" json:"ordered_at"`
	Total         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
	Status        OrderStatus     `gorm:"type:varchar(20);not null" json:"status"`
	ItemCount     int64           `gorm:"not null" json:"item_count"`
	PaymentMethod PaymentMethod   `gorm:"type:varchar(10);not null" json:"payment_method"`
	CreatedAt     time.Time       `gorm:"not null;autoCreateTime" json:"-"`
}

// 1ユーザーあたりの保持件数
const HistoryLimit = 50
