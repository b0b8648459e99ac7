package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Israr974/BuyZaar-sub001/internal/config"
	"github.com/Israr974/BuyZaar-sub001/internal/domain/model"
	"github.com/Israr974/BuyZaar-sub001/internal/metrics"
	repo "github.com/Israr974/BuyZaar-sub001/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	maxNoteLen           = 500
	maxCouponLen         = 64
	maxIdempotencyKeyLen = 255
	maxReasonLen         = 255
	buyerOrdersPageSize  = 50
	maxBuyerOrdersLimit  = 100
)

// 後続タスクの投入口（FollowUpDispatcher）
type FollowUpSubmitter interface {
	Submit(task FollowUpTask)
}

type OrderDeps struct {
	Users       repo.UserRepository
	Addresses   repo.AddressRepository
	Guard       *AvailabilityGuard
	Pricing     *PriceEngine
	Ledger      *OrderLedger
	Inventory   *InventoryAdjuster
	History     *HistoryRecorder
	FollowUps   FollowUpSubmitter
	Events      EventPublisher
	Idempotency IdempotencyGuard
	IDs         IDGenerator
	Clock       Clock
	Logger      *zap.Logger
	Metrics     *metrics.CheckoutMetrics

	InventoryPolicy config.InventoryPolicy
	CancelRestock   config.CancelRestockPolicy
	Timeout         time.Duration
	IdempotencyTTL  time.Duration
}

// OrderUsecase is the checkout orchestrator. The ledger commit is the point of
// no return: everything before it leaves no trace on failure, everything after
// it is a follow-up that can only be reported, never unwound.
type OrderUsecase struct {
	d OrderDeps
}

func NewOrderUsecase(d OrderDeps) *OrderUsecase {
	if d.Events == nil {
		d.Events = noopPublisher{}
	}
	if d.Idempotency == nil {
		d.Idempotency = noopIdempotencyGuard{}
	}
	if d.IDs == nil {
		d.IDs = uuidGenerator{}
	}
	if d.Clock == nil {
		d.Clock = systemClock{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.InventoryPolicy == "" {
		d.InventoryPolicy = config.InventoryPolicyAtomic
	}
	if d.CancelRestock == "" {
		d.CancelRestock = config.CancelRestockNone
	}
	if d.Timeout <= 0 {
		d.Timeout = 3 * time.Second
	}
	if d.IdempotencyTTL <= 0 {
		d.IdempotencyTTL = 30 * time.Second
	}
	return &OrderUsecase{d: d}
}

type PlaceOrderInput struct {
	Items          []OrderLineInput `json:"items"`
	AddressID      int64            `json:"address_id"`
	PaymentMethod  string           `json:"payment_method"`
	Discount       decimal.Decimal  `json:"discount"`
	Note           string           `json:"note"`
	CouponCode     string           `json:"coupon_code"`
	IdempotencyKey string           `json:"-"`
}

type CancelOrderInput struct {
	Reason string `json:"reason"`
}

func (u *OrderUsecase) PlaceOrder(ctx context.Context, userID int64, in PlaceOrderInput) (out PlaceOrderOutput, err error) {
	start := u.d.Clock.Now()
	defer func() {
		u.d.Metrics.ObserveCheckout(checkoutResult(out, err), u.d.Clock.Now().Sub(start))
	}()

	method, key, err := validatePlaceOrder(userID, &in)
	if err != nil {
		return PlaceOrderOutput{}, err
	}

	if key != "" {
		// 同じキーなら同じ結果
		if existing, found, err := u.d.Ledger.FindByIdempotencyKey(ctx, userID, key); err != nil {
			return PlaceOrderOutput{}, err
		} else if found {
			return PlaceOrderOutput{Order: toOrderOutput(existing.Order, existing.Items), Replayed: true}, nil
		}

		release, err := u.acquire(ctx, userID, key)
		if err != nil {
			return PlaceOrderOutput{}, err
		}
		defer release()
	}

	//購入者と住所（他人の住所は存在しない扱い）
	if _, err := withTimeout(ctx, u.d.Timeout, func(ctx context.Context) (model.User, error) {
		return u.d.Users.FindByID(ctx, userID)
	}); err != nil {
		if isNotFound(err) {
			return PlaceOrderOutput{}, newNotFoundError("user not found")
		}
		return PlaceOrderOutput{}, infraError("user", err)
	}
	addr, err := withTimeout(ctx, u.d.Timeout, func(ctx context.Context) (model.Address, error) {
		return u.d.Addresses.FindByID(ctx, in.AddressID)
	})
	if err != nil {
		if isNotFound(err) {
			return PlaceOrderOutput{}, newNotFoundError("address not found")
		}
		return PlaceOrderOutput{}, infraError("address", err)
	}
	if addr.UserID != userID {
		return PlaceOrderOutput{}, newNotFoundError("address not found")
	}

	lines, err := u.d.Guard.Check(ctx, in.Items)
	if err != nil {
		return PlaceOrderOutput{}, err
	}

	quote := u.d.Pricing.Quote(lines, in.Discount)
	if err := u.d.Guard.CheckPaymentMethod(method, addr.Pincode, quote.Price.Total); err != nil {
		return PlaceOrderOutput{}, err
	}

	var hook CommitHook
	if u.d.InventoryPolicy == config.InventoryPolicyAtomic {
		hook = func(ctx context.Context, r repo.TxRepos, order model.Order, items []model.OrderItem) error {
			return u.d.Inventory.ReserveWithin(ctx, r, order.ID, items)
		}
	}

	created, err := u.d.Ledger.Create(ctx, OrderDraft{
		UserID:          userID,
		AddressID:       addr.ID,
		ShippingPincode: addr.Pincode,
		PaymentMethod:   method,
		Quote:           quote,
		Note:            in.Note,
		CouponCode:      in.CouponCode,
		IdempotencyKey:  key,
	}, hook)
	if err != nil {
		err = u.resolveCreateError(ctx, userID, key, in.Items, quote, err)
		var replay *replayError
		if errors.As(err, &replay) {
			return PlaceOrderOutput{Order: toOrderOutput(replay.order.Order, replay.order.Items), Replayed: true}, nil
		}
		return PlaceOrderOutput{}, err
	}

	// ここから先は確定済み。失敗は報告のみ
	u.afterCommit(created, quote.ItemCount)

	u.d.Logger.Info("order placed",
		zap.Int64("order_id", created.Order.ID),
		zap.String("order_number", created.Order.OrderNumber),
		zap.Int64("user_id", userID),
		zap.String("total", money2(created.Order.Price.Total)),
		zap.String("payment_method", string(method)),
	)
	return PlaceOrderOutput{Order: toOrderOutput(created.Order, created.Items)}, nil
}

func validatePlaceOrder(userID int64, in *PlaceOrderInput) (model.PaymentMethod, string, error) {
	if userID <= 0 {
		return "", "", NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if len(in.Items) == 0 {
		return "", "", newValidationError("items required")
	}
	if in.AddressID <= 0 {
		return "", "", newValidationError("invalid address_id")
	}
	method := model.PaymentMethod(strings.ToUpper(strings.TrimSpace(in.PaymentMethod)))
	if !method.Valid() {
		return "", "", newValidationError("invalid payment_method")
	}
	if in.Discount.IsNegative() {
		return "", "", newValidationError("invalid discount")
	}
	in.Note = strings.TrimSpace(in.Note)
	if utf8.RuneCountInString(in.Note) > maxNoteLen {
		return "", "", newValidationError("note too long")
	}
	in.CouponCode = strings.TrimSpace(in.CouponCode)
	if utf8.RuneCountInString(in.CouponCode) > maxCouponLen {
		return "", "", newValidationError("coupon_code too long")
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > maxIdempotencyKeyLen {
		return "", "", newValidationError("invalid idempotency_key")
	}
	return method, key, nil
}

// 同じキーの同時送信を弾く。Redisが落ちていても注文は止めない（一意制約が最後の砦）
func (u *OrderUsecase) acquire(ctx context.Context, userID int64, key string) (func(), error) {
	ok, err := u.d.Idempotency.Acquire(ctx, userID, key, u.d.IdempotencyTTL)
	if err != nil {
		u.d.Logger.Warn("idempotency guard unavailable", zap.Int64("user_id", userID), zap.Error(err))
		return func() {}, nil
	}
	if !ok {
		return nil, newConflictError(http.StatusConflict, "order with this idempotency key is in progress")
	}
	return func() {
		// リクエストがキャンセルされても解放する
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.d.Timeout)
		defer cancel()
		if err := u.d.Idempotency.Release(rctx, userID, key); err != nil {
			u.d.Logger.Warn("idempotency release failed", zap.Int64("user_id", userID), zap.Error(err))
		}
	}, nil
}

func (u *OrderUsecase) resolveCreateError(ctx context.Context, userID int64, key string, items []OrderLineInput, quote Quote, err error) error {
	// 同じキーの注文が先に確定していた
	if errors.Is(err, repo.ErrDuplicateIdempotencyKey) {
		existing, found, ferr := u.d.Ledger.FindByIdempotencyKey(ctx, userID, key)
		if ferr != nil {
			return ferr
		}
		if found {
			return &replayError{order: existing}
		}
		return newConflictError(http.StatusConflict, "idempotency conflict")
	}

	var shortfall *StockShortfallError
	if !errors.As(err, &shortfall) {
		return err
	}

	// 条件付き減算で負けた。まとめて検証し直して全部の不足を返す
	if _, gerr := u.d.Guard.Check(ctx, items); gerr != nil {
		return gerr
	}
	issue := ItemIssue{ProductID: shortfall.ProductID, Reason: IssueInsufficientStock, Requested: shortfall.Requested}
	for _, l := range quote.Lines {
		if l.Snapshot.ProductID == shortfall.ProductID {
			issue.Name = l.Snapshot.Name
		}
	}
	return newAvailabilityError([]ItemIssue{issue})
}

// replayErrorは同時に同じキーで来たときに既存注文を返すための内部エラー
type replayError struct {
	order OrderWithItems
}

func (e *replayError) Error() string { return "idempotent replay" }

func (u *OrderUsecase) afterCommit(created OrderWithItems, itemCount int64) {
	o := created.Order
	u.d.FollowUps.Submit(u.d.History.Task(o, itemCount))
	if u.d.InventoryPolicy == config.InventoryPolicyFollowUp {
		for _, t := range u.d.Inventory.FollowUpTasks(o, created.Items) {
			u.d.FollowUps.Submit(t)
		}
	}
	u.d.FollowUps.Submit(publishTask(u.d.Events, u.d.IDs, u.d.Clock, model.OrderEventPlaced, o))
}

func checkoutResult(out PlaceOrderOutput, err error) string {
	switch {
	case err == nil && out.Replayed:
		return "replayed"
	case err == nil:
		return "ok"
	}
	if he, ok := AsHTTPError(err); ok {
		return string(he.Kind)
	}
	return string(KindInternal)
}

// 自分の注文一覧と、プロフィールの注文履歴
// 自分の注文一覧（新しい順）。page/limitが0なら1/50
func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64, page, limit int) (MyOrdersOutput, error) {
	if userID <= 0 {
		return MyOrdersOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = buyerOrdersPageSize
	}
	if page < 1 {
		return MyOrdersOutput{}, newValidationError("invalid page")
	}
	if limit < 1 || limit > maxBuyerOrdersLimit {
		return MyOrdersOutput{}, newValidationError("invalid limit")
	}

	orders, total, err := u.d.Ledger.ListForBuyer(ctx, userID, page, limit)
	if err != nil {
		return MyOrdersOutput{}, err
	}

	// 履歴は補助情報。読めなくても一覧は返す
	history, err := u.d.History.List(ctx, userID)
	if err != nil {
		u.d.Logger.Warn("order history unavailable", zap.Int64("user_id", userID), zap.Error(err))
		history = nil
	}

	return MyOrdersOutput{
		Orders:  toOrderOutputs(orders),
		Total:   total,
		Page:    page,
		Limit:   limit,
		History: toHistoryOutputs(history),
	}, nil
}

func (u *OrderUsecase) GetMyOrder(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	ow, err := u.d.Ledger.GetForBuyer(ctx, orderID, userID)
	if err != nil {
		return OrderOutput{}, err
	}
	return toOrderOutput(ow.Order, ow.Items), nil
}

func (u *OrderUsecase) CancelOrder(ctx context.Context, userID int64, orderID int64, in CancelOrderInput) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	reason := strings.TrimSpace(in.Reason)
	if utf8.RuneCountInString(reason) > maxReasonLen {
		return OrderOutput{}, newValidationError("reason too long")
	}

	cancelled, err := u.d.Ledger.Cancel(ctx, orderID, userID, reason, func(ctx context.Context, r repo.TxRepos, before, after model.Order) error {
		if u.d.CancelRestock == config.CancelRestockRestore {
			if err := u.d.Inventory.RestoreWithin(ctx, r, after.ID); err != nil {
				return err
			}
		}
		return r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  userID,
			Action:       model.AuditActionCancelOrder,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   after.ID,
			BeforeJSON:   statusJSON(before.Status, ""),
			AfterJSON:    statusJSON(after.Status, after.CancellationReason),
			CreatedAt:    after.UpdatedAt,
		})
	})
	if err != nil {
		return OrderOutput{}, err
	}

	u.d.FollowUps.Submit(publishTask(u.d.Events, u.d.IDs, u.d.Clock, model.OrderEventStatusChanged, cancelled))
	u.d.Logger.Info("order cancelled",
		zap.Int64("order_id", cancelled.ID),
		zap.String("order_number", cancelled.OrderNumber),
		zap.Int64("user_id", userID),
	)
	return u.GetMyOrder(ctx, userID, orderID)
}
