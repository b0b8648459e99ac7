package usecase

import (
	"time"

	"github.com/Israr974/BuyZaar-sub001/internal/domain/model"

	"github.com/shopspring/decimal"
)

// 金額は文字列（小数2桁）で返す
type OrderItemOutput struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	ImageURL  string `json:"image_url,omitempty"`
	UnitPrice string `json:"unit_price"`
	Quantity  int64  `json:"quantity"`
	LineTotal string `json:"line_total"`
}

type PriceOutput struct {
	Subtotal    string `json:"subtotal"`
	ShippingFee string `json:"shipping_fee"`
	Tax         string `json:"tax"`
	Discount    string `json:"discount"`
	Total       string `json:"total"`
}

type PaymentOutput struct {
	Method           string `json:"method"`
	Status           string `json:"status"`
	GatewayOrderID   string `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string `json:"gateway_payment_id,omitempty"`
}

type OrderOutput struct {
	ID                 int64             `json:"id"`
	OrderNumber        string            `json:"order_number"`
	UserID             int64             `json:"user_id"`
	AddressID          int64             `json:"address_id"`
	ShippingPincode    string            `json:"shipping_pincode"`
	Status             string            `json:"status"`
	Payment            PaymentOutput     `json:"payment"`
	Price              PriceOutput       `json:"price"`
	Note               string            `json:"note,omitempty"`
	CouponCode         string            `json:"coupon_code,omitempty"`
	CancellationReason string            `json:"cancellation_reason,omitempty"`
	PaidAt             *time.Time        `json:"paid_at,omitempty"`
	DeliveredAt        *time.Time        `json:"delivered_at,omitempty"`
	CancelledAt        *time.Time        `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
	Items              []OrderItemOutput `json:"items"`
}

type PlaceOrderOutput struct {
	Order    OrderOutput
	Replayed bool
}

type HistoryEntryOutput struct {
	OrderID       int64     `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	OrderedAt     time.Time `json:"ordered_at"`
	Total         string    `json:"total"`
	Status        string    `json:"status"`
	ItemCount     int64     `json:"item_count"`
	PaymentMethod string    `json:"payment_method"`
}

type MyOrdersOutput struct {
	Orders  []OrderOutput        `json:"orders"`
	Total   int64                `json:"total"`
	Page    int                  `json:"page"`
	Limit   int                  `json:"limit"`
	History []HistoryEntryOutput `json:"history"`
}

type AdminOrderListOutput struct {
	Orders  []OrderOutput `json:"orders"`
	Total   int64         `json:"total"`
	Page    int           `json:"page"`
	Limit   int           `json:"limit"`
	Revenue string        `json:"revenue"`
}

func money2(d decimal.Decimal) string {
	return d.StringFixed(moneyPlaces)
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID: it.ProductID,
			Name:      it.ProductNameSnapshot,
			ImageURL:  it.ImageSnapshot,
			UnitPrice: money2(it.UnitPriceSnapshot),
			Quantity:  it.Quantity,
			LineTotal: money2(it.LineTotal),
		})
	}

	return OrderOutput{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		UserID:          o.UserID,
		AddressID:       o.AddressID,
		ShippingPincode: o.ShippingPincode,
		Status:          string(o.Status),
		Payment: PaymentOutput{
			Method:           string(o.Payment.Method),
			Status:           string(o.Payment.Status),
			GatewayOrderID:   o.Payment.GatewayOrderID,
			GatewayPaymentID: o.Payment.GatewayPaymentID,
		},
		Price: PriceOutput{
			Subtotal:    money2(o.Price.Subtotal),
			ShippingFee: money2(o.Price.ShippingFee),
			Tax:         money2(o.Price.Tax),
			Discount:    money2(o.Price.Discount),
			Total:       money2(o.Price.Total),
		},
		Note:               o.Note,
		CouponCode:         o.CouponCode,
		CancellationReason: o.CancellationReason,
		PaidAt:             o.PaidAt,
		DeliveredAt:        o.DeliveredAt,
		CancelledAt:        o.CancelledAt,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
		Items:              outItems,
	}
}

func toOrderOutputs(in []OrderWithItems) []OrderOutput {
	outs := make([]OrderOutput, 0, len(in))
	for _, ow := range in {
		outs = append(outs, toOrderOutput(ow.Order, ow.Items))
	}
	return outs
}

func toHistoryOutputs(entries []model.HistoryEntry) []HistoryEntryOutput {
	outs := make([]HistoryEntryOutput, 0, len(entries))
	for _, e := range entries {
		outs = append(outs, HistoryEntryOutput{
			OrderID:       e.OrderID,
			OrderNumber:   e.OrderNumber,
			OrderedAt:     e.OrderedAt,
			Total:         money2(e.Total),
			Status:        string(e.Status),
			ItemCount:     e.ItemCount,
			PaymentMethod: string(e.PaymentMethod),
		})
	}
	return outs
}
