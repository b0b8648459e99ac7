package model

import "time"

type OrderEventType string

const (
	OrderEventPlaced                 OrderEventType = "order.placed"
	OrderEventStatusChanged          OrderEventType = "order.status_changed"
	OrderEventReconciliationRequired OrderEventType = "order.reconciliation_required"
)

// 外部（Kafka）へ流すイベント
type OrderEvent struct {
	EventID     string         `json:"event_id"`
	Type        OrderEventType `json:"type"`
	OrderID     int64          `json:"order_id"`
	OrderNumber string         `json:"order_number"`
	UserID      int64          `json:"user_id"`
	Status      OrderStatus    `json:"status,omitempty"`
	Step        string         `json:"step,omitempty"`
	Detail      string         `json:"detail,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
}
