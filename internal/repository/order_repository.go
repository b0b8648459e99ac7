package repository

import (
	"context"
	"time"

	"github.com/Israr974/BuyZaar-sub001/internal/domain/model"

	"github.com/shopspring/decimal"
)

type AdminOrderListFilter struct {
	Page   int
	Limit  int
	Status string
	UserID *int64
	From   *time.Time
	To     *time.Time
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error)

	// IDを埋めて返す。注文番号の重複はErrDuplicateKey
	Create(ctx context.Context, order *model.Order) error

	// 現在のステータスがfromのときだけ更新（falseなら競合）
	TransitionStatus(ctx context.Context, orderID int64, from model.OrderStatus, change model.StatusChange) (bool, error)

	// 支払い済みでないときだけ更新
	UpdatePayment(ctx context.Context, orderID int64, status model.PaymentStatus, gatewayPaymentID string, paidAt *time.Time) (bool, error)

	//検索（同じキーなら同じ結果を返す）
	FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error)

	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)
	// キャンセル以外の合計金額
	SumRevenue(ctx context.Context, f AdminOrderListFilter) (decimal.Decimal, error)
}
