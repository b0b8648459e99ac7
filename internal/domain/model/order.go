package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// 前進のみ。cancelledは別扱い
var orderStatusRank = map[OrderStatus]int{
	OrderStatusPending:   0,
	OrderStatusConfirmed: 1,
	OrderStatusShipped:   2,
	OrderStatusDelivered: 3,
}

func (s OrderStatus) Valid() bool {
	if s == OrderStatusCancelled {
		return true
	}
	_, ok := orderStatusRank[s]
	return ok
}

// delivered / cancelled は終端
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

func (s OrderStatus) Cancellable() bool {
	return s == OrderStatusPending || s == OrderStatusConfirmed
}

// CanTransitionTo reports whether the state machine allows s -> next.
// Forward jumps (pending -> shipped) are allowed, backward moves never are.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s.IsTerminal() || !next.Valid() {
		return false
	}
	if next == OrderStatusCancelled {
		return s.Cancellable()
	}
	return orderStatusRank[next] > orderStatusRank[s]
}

type PaymentMethod string

const (
	PaymentMethodCard PaymentMethod = "CARD"
	PaymentMethodUPI  PaymentMethod = "UPI"
	PaymentMethodCOD  PaymentMethod = "COD"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodUPI, PaymentMethodCOD:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// 支払い情報（ordersに埋め込み）
type Payment struct {
	Method           PaymentMethod `gorm:"type:varchar(10);not null" json:"method"`
	Status           PaymentStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	GatewayOrderID   string        `gorm:"type:varchar(100)" json:"gateway_order_id,omitempty"`
	GatewayPaymentID string        `gorm:"type:varchar(100)" json:"gateway_payment_id,omitempty"`
}

// 金額内訳。作成後は変更しない
type PriceBreakdown struct {
	Subtotal    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	ShippingFee decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"shipping_fee"`
	Tax         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"tax"`
	Discount    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"discount"`
	Total       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
}

// Order is the durable ledger record. Items and Price are frozen at creation;
// only Status, Payment.Status and the timeline timestamps change afterwards.
type Order struct {
	ID                 int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNumber        string         `gorm:"type:varchar(40);not null;uniqueIndex:idx_orders_order_number" json:"order_number"`
	UserID             int64          `gorm:"not null;index;uniqueIndex:idx_orders_user_idempotency,priority:1" json:"user_id"`
	AddressID          int64          `gorm:"not null" json:"address_id"`
	ShippingPincode    string         `gorm:"type:varchar(10);not null" json:"shipping_pincode"`
	Status             OrderStatus    `gorm:"type:varchar(20);not null;index" json:"status"`
	Payment            Payment        `gorm:"embedded;embeddedPrefix:payment_" json:"payment"`
	Price              PriceBreakdown `gorm:"embedded;embeddedPrefix:price_" json:"price"`
	Note               string         `gorm:"type:varchar(500)" json:"note"`
	CouponCode         string         `gorm:"type:varchar(64)" json:"coupon_code"`
	CancellationReason string         `gorm:"type:varchar(255)" json:"cancellation_reason"`
	IdempotencyKey     *string        `gorm:"type:varchar(255);uniqueIndex:idx_orders_user_idempotency,priority:2" json:"-"`
	PaidAt             *time.Time     `json:"paid_at"`
	DeliveredAt        *time.Time     `json:"delivered_at"`
	CancelledAt        *time.Time     `json:"cancelled_at"`
	CreatedAt          time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"not null" json:"updated_at"`
}

// ステータス変更の内容（タイムスタンプ・理由も一緒に）
type StatusChange struct {
	To     OrderStatus
	At     time.Time
	Reason string
}

// Applyはステータス変更をメモリ上の注文に反映する（DB側と同じ列を更新）
func (o *Order) Apply(c StatusChange) {
	o.Status = c.To
	o.UpdatedAt = c.At
	switch c.To {
	case OrderStatusDelivered:
		at := c.At
		o.DeliveredAt = &at
	case OrderStatusCancelled:
		at := c.At
		o.CancelledAt = &at
		o.CancellationReason = c.Reason
	}
}
