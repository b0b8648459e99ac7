package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Israr974/BuyZaar-sub001/internal/domain/model"
	repo "github.com/Israr974/BuyZaar-sub001/internal/repository"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderNumberGenerator は時刻とエントロピーだけから注文番号を作る
type OrderNumberGenerator func(now time.Time) string

// ORD-<ULID>（時刻順に並ぶ）
func NewULIDOrderNumbers() OrderNumberGenerator {
	return func(now time.Time) string {
		return "ORD-" + ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
	}
}

type OrderDraft struct {
	UserID          int64
	AddressID       int64
	ShippingPincode string
	PaymentMethod   model.PaymentMethod
	Quote           Quote
	Note            string
	CouponCode      string
	IdempotencyKey  string
}

// CommitHook runs inside the ledger transaction after the order and its items
// are written. An error rolls the whole order back.
type CommitHook func(ctx context.Context, r repo.TxRepos, order model.Order, items []model.OrderItem) error

// TransitionHook runs inside the transaction that changed an order's status.
type TransitionHook func(ctx context.Context, r repo.TxRepos, before, after model.Order) error

type OrderWithItems struct {
	Order model.Order
	Items []model.OrderItem
}

type LedgerOptions struct {
	MaxNumberAttempts int
	Timeout           time.Duration
}

// OrderLedger owns the durable order record and its state machine.
type OrderLedger struct {
	tx      repo.TransactionManager
	numbers OrderNumberGenerator
	clock   Clock
	logger  *zap.Logger
	opts    LedgerOptions
}

func NewOrderLedger(tx repo.TransactionManager, numbers OrderNumberGenerator, clock Clock, logger *zap.Logger, opts LedgerOptions) *OrderLedger {
	if numbers == nil {
		numbers = NewULIDOrderNumbers()
	}
	if clock == nil {
		clock = systemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxNumberAttempts < 1 {
		opts.MaxNumberAttempts = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	return &OrderLedger{tx: tx, numbers: numbers, clock: clock, logger: logger, opts: opts}
}

// Create persists a pending order. A collision on the order number retries the
// whole transaction with a fresh number; the retry is bounded.
func (l *OrderLedger) Create(ctx context.Context, d OrderDraft, hook CommitHook) (OrderWithItems, error) {
	for attempt := 1; attempt <= l.opts.MaxNumberAttempts; attempt++ {
		out, err := l.createOnce(ctx, d, hook)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, repo.ErrDuplicateKey) {
			l.logger.Warn("order number collision, retrying",
				zap.Int64("user_id", d.UserID),
				zap.Int("attempt", attempt),
			)
			continue
		}
		return OrderWithItems{}, err
	}
	return OrderWithItems{}, newConflictError(http.StatusConflict, "could not allocate order number")
}

func (l *OrderLedger) createOnce(ctx context.Context, d OrderDraft, hook CommitHook) (OrderWithItems, error) {
	now := l.clock.Now().UTC()

	order := model.Order{
		OrderNumber:     l.numbers(now),
		UserID:          d.UserID,
		AddressID:       d.AddressID,
		ShippingPincode: d.ShippingPincode,
		Status:          model.OrderStatusPending,
		Payment: model.Payment{
			Method: d.PaymentMethod,
			Status: model.PaymentStatusPending,
		},
		Price:      d.Quote.Price,
		Note:       d.Note,
		CouponCode: d.CouponCode,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if d.IdempotencyKey != "" {
		key := d.IdempotencyKey
		order.IdempotencyKey = &key
	}

	//スナップショット（作成後は変更しない）
	items := make([]model.OrderItem, 0, len(d.Quote.Lines))
	for _, lq := range d.Quote.Lines {
		items = append(items, model.OrderItem{
			ProductID:           lq.Snapshot.ProductID,
			ProductNameSnapshot: lq.Snapshot.Name,
			ImageSnapshot:       lq.Snapshot.ImageURL,
			UnitPriceSnapshot:   lq.Snapshot.Price,
			Quantity:            lq.Quantity,
			LineTotal:           lq.LineTotal,
			CreatedAt:           now,
		})
	}

	tctx, cancel := context.WithTimeout(ctx, l.opts.Timeout)
	defer cancel()

	err := l.tx.WithinTx(tctx, func(r repo.TxRepos) error {
		if err := r.Orders().Create(tctx, &order); err != nil {
			return err
		}
		if err := r.OrderItems().CreateBulk(tctx, order.ID, items); err != nil {
			return err
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		if hook != nil {
			return hook(tctx, r, order, items)
		}
		return nil
	})
	if err != nil {
		return OrderWithItems{}, l.classify("create order", err)
	}
	return OrderWithItems{Order: order, Items: items}, nil
}

// 呼び出し側が判定するエラーはそのまま返す
func (l *OrderLedger) classify(op string, err error) error {
	var shortfall *StockShortfallError
	switch {
	case errors.Is(err, repo.ErrDuplicateKey),
		errors.Is(err, repo.ErrDuplicateIdempotencyKey),
		errors.As(err, &shortfall):
		return err
	case isNotFound(err):
		return newNotFoundError("not found")
	}
	return infraError(op, err)
}

// Getは管理者用（所有者チェックなし）
func (l *OrderLedger) Get(ctx context.Context, orderID int64) (OrderWithItems, error) {
	return l.get(ctx, orderID, 0)
}

// 他人の注文は存在しない扱い
func (l *OrderLedger) GetForBuyer(ctx context.Context, orderID int64, userID int64) (OrderWithItems, error) {
	return l.get(ctx, orderID, userID)
}

func (l *OrderLedger) get(ctx context.Context, orderID int64, userID int64) (OrderWithItems, error) {
	if orderID <= 0 {
		return OrderWithItems{}, newValidationError("invalid id")
	}
	tctx, cancel := context.WithTimeout(ctx, l.opts.Timeout)
	defer cancel()

	var out OrderWithItems
	err := l.tx.WithinTx(tctx, func(r repo.TxRepos) error {
		o, err := findOwned(tctx, r, orderID, userID)
		if err != nil {
			return err
		}
		items, err := r.OrderItems().ListByOrderID(tctx, o.ID)
		if err != nil {
			return err
		}
		out = OrderWithItems{Order: o, Items: items}
		return nil
	})
	if err != nil {
		return OrderWithItems{}, l.classify("get order", err)
	}
	return out, nil
}

func (l *OrderLedger) ListForBuyer(ctx context.Context, userID int64, page, limit int) ([]OrderWithItems, int64, error) {
	tctx, cancel := context.WithTimeout(ctx, l.opts.Timeout)
	defer cancel()

	var (
		outs  []OrderWithItems
		total int64
	)
	err := l.tx.WithinTx(tctx, func(r repo.TxRepos) error {
		orders, n, err := r.Orders().ListByUserID(tctx, userID, page, limit)
		if err != nil {
			return err
		}
		total = n
		outs, err = attachItems(tctx, r, orders)
		return err
	})
	if err != nil {
		return nil, 0, l.classify("list orders", err)
	}
	return outs, total, nil
}

func (l *OrderLedger) FindByIdempotencyKey(ctx context.Context, userID int64, key string) (OrderWithItems, bool, error) {
	tctx, cancel := context.WithTimeout(ctx, l.opts.Timeout)
	defer cancel()

	var (
		out   OrderWithItems
		found bool
	)
	err := l.tx.WithinTx(tctx, func(r repo.TxRepos) error {
		o, ok, err := r.Orders().FindByIdempotencyKey(tctx, userID, key)
		if err != nil || !ok {
			return err
		}
		items, err := r.OrderItems().ListByOrderID(tctx, o.ID)
		if err != nil {
			return err
		}
		out, found = OrderWithItems{Order: o, Items: items}, true
		return nil
	})
	if err != nil {
		return OrderWithItems{}, false, l.classify("find order by idempotency key", err)
	}
	return out, found, nil
}

// UpdateStatus moves an order along the state machine. The same status is a
// no-op (changed=false); a move the state machine forbids is a conflict.
func (l *OrderLedger) UpdateStatus(ctx context.Context, orderID int64, next model.OrderStatus, hook TransitionHook) (model.Order, bool, error) {
	if orderID <= 0 {
		return model.Order{}, false, newValidationError("invalid id")
	}
	if !next.Valid() {
		return model.Order{}, false, newValidationError("invalid status")
	}
	return l.transition(ctx, orderID, 0, func(o model.Order) (model.StatusChange, bool, error) {
		if o.Status == next {
			return model.StatusChange{}, false, nil
		}
		if !o.Status.CanTransitionTo(next) {
			return model.StatusChange{}, false, newConflictError(http.StatusBadRequest,
				fmt.Sprintf("cannot change order status from %s to %s", o.Status, next))
		}
		return model.StatusChange{To: next, At: l.clock.Now().UTC()}, true, nil
	}, hook)
}

// Cancelは購入者によるキャンセル（pending/confirmedのみ）
func (l *OrderLedger) Cancel(ctx context.Context, orderID int64, userID int64, reason string, hook TransitionHook) (model.Order, error) {
	if orderID <= 0 {
		return model.Order{}, newValidationError("invalid id")
	}
	o, _, err := l.transition(ctx, orderID, userID, func(o model.Order) (model.StatusChange, bool, error) {
		if !o.Status.Cancellable() {
			return model.StatusChange{}, false, newConflictError(http.StatusBadRequest,
				fmt.Sprintf("order cannot be cancelled in status %s", o.Status))
		}
		return model.StatusChange{To: model.OrderStatusCancelled, At: l.clock.Now().UTC(), Reason: reason}, true, nil
	}, hook)
	return o, err
}

func (l *OrderLedger) transition(
	ctx context.Context,
	orderID int64,
	userID int64,
	decide func(o model.Order) (model.StatusChange, bool, error),
	hook TransitionHook,
) (model.Order, bool, error) {
	tctx, cancel := context.WithTimeout(ctx, l.opts.Timeout)
	defer cancel()

	var (
		after   model.Order
		changed bool
	)
	err := l.tx.WithinTx(tctx, func(r repo.TxRepos) error {
		before, err := findOwned(tctx, r, orderID, userID)
		if err != nil {
			return err
		}
		change, ok, err := decide(before)
		if err != nil {
			return err
		}
		after = before
		if !ok {
			return nil
		}

		// 読んだ時点のステータスのままなら更新
		updated, err := r.Orders().TransitionStatus(tctx, orderID, before.Status, change)
		if err != nil {
			return err
		}
		if !updated {
			return newConflictError(http.StatusConflict, "order status changed concurrently")
		}
		after.Apply(change)
		changed = true

		if hook != nil {
			return hook(tctx, r, before, after)
		}
		return nil
	})
	if err != nil {
		return model.Order{}, false, l.classify("update order status", err)
	}
	return after, changed, nil
}

// MarkPayment records the gateway verdict. An order already paid is returned
// unchanged and hook is not called.
func (l *OrderLedger) MarkPayment(ctx context.Context, orderID int64, verified bool, gatewayPaymentID string, hook TransitionHook) (model.Order, error) {
	if orderID <= 0 {
		return model.Order{}, newValidationError("invalid id")
	}
	tctx, cancel := context.WithTimeout(ctx, l.opts.Timeout)
	defer cancel()

	var out model.Order
	err := l.tx.WithinTx(tctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(tctx, orderID)
		if err != nil {
			return err
		}
		if o.Payment.Status == model.PaymentStatusPaid {
			out = o
			return nil
		}
		if o.Status == model.OrderStatusCancelled {
			return newConflictError(http.StatusBadRequest, "order is cancelled")
		}

		status := model.PaymentStatusFailed
		var paidAt *time.Time
		if verified {
			now := l.clock.Now().UTC()
			status, paidAt = model.PaymentStatusPaid, &now
		}

		updated, err := r.Orders().UpdatePayment(tctx, orderID, status, gatewayPaymentID, paidAt)
		if err != nil {
			return err
		}
		if !updated {
			// 他のリクエストが先に支払い済みにした
			out, err = r.Orders().FindByID(tctx, orderID)
			return err
		}

		before := o
		o.Payment.Status = status
		if gatewayPaymentID != "" {
			o.Payment.GatewayPaymentID = gatewayPaymentID
		}
		if paidAt != nil {
			o.PaidAt = paidAt
			o.UpdatedAt = *paidAt
		}
		out = o
		if hook != nil {
			return hook(tctx, r, before, o)
		}
		return nil
	})
	if err != nil {
		return model.Order{}, l.classify("mark payment", err)
	}
	return out, nil
}

// ListAdminは一覧と、同じ条件での売上合計（キャンセル除く）
func (l *OrderLedger) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]OrderWithItems, int64, decimal.Decimal, error) {
	tctx, cancel := context.WithTimeout(ctx, l.opts.Timeout)
	defer cancel()

	var (
		outs    []OrderWithItems
		total   int64
		revenue decimal.Decimal
	)
	err := l.tx.WithinTx(tctx, func(r repo.TxRepos) error {
		orders, n, err := r.Orders().ListAdmin(tctx, f)
		if err != nil {
			return err
		}
		total = n
		if revenue, err = r.Orders().SumRevenue(tctx, f); err != nil {
			return err
		}
		outs, err = attachItems(tctx, r, orders)
		return err
	})
	if err != nil {
		return nil, 0, decimal.Zero, l.classify("list admin orders", err)
	}
	return outs, total, revenue, nil
}

// userIDが0なら所有者チェックなし
func findOwned(ctx context.Context, r repo.TxRepos, orderID int64, userID int64) (model.Order, error) {
	o, err := r.Orders().FindByID(ctx, orderID)
	if err != nil {
		return model.Order{}, err
	}
	if userID != 0 && o.UserID != userID {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func attachItems(ctx context.Context, r repo.TxRepos, orders []model.Order) ([]OrderWithItems, error) {
	outs := make([]OrderWithItems, 0, len(orders))
	for _, o := range orders {
		items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		outs = append(outs, OrderWithItems{Order: o, Items: items})
	}
	return outs, nil
}
