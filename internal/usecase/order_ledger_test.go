package usecase

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Israr974/BuyZaar-sub001/internal/domain/model"
	"github.com/Israr974/BuyZaar-sub001/internal/infra/memory"
	repo "github.com/Israr974/BuyZaar-sub001/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 先頭n回だけ同じ番号を返す
func collidingNumbers(dup string, n int) OrderNumberGenerator {
	var mu sync.Mutex
	calls := 0
	next := NewULIDOrderNumbers()
	return func(now time.Time) string {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls <= n {
			return dup
		}
		return next(now)
	}
}

func testDraft(userID int64) OrderDraft {
	e := NewPriceEngine(DefaultPricingConfig())
	q := e.Quote([]ValidatedLine{{
		Snapshot: CatalogSnapshot{ProductID: 1, Name: "A", Price: decimal.NewFromInt(100), Stock: 10},
		Quantity: 2,
	}}, decimal.Zero)
	return OrderDraft{UserID: userID, AddressID: 1, ShippingPincode: "560001", PaymentMethod: model.PaymentMethodCard, Quote: q}
}

func TestULIDOrderNumbers_Unique(t *testing.T) {
	gen := NewULIDOrderNumbers()
	now := time.Now()

	seen := map[string]bool{}
	for range 1000 {
		n := gen(now)
		require.True(t, strings.HasPrefix(n, "ORD-"))
		require.Len(t, n, len("ORD-")+26)
		require.False(t, seen[n])
		seen[n] = true
	}
}

// 番号が衝突したらトランザクションごとやり直す
func TestOrderLedger_Create_RetriesOnNumberCollision(t *testing.T) {
	store := memory.NewStore()
	store.AddOrder(model.Order{OrderNumber: "ORD-DUP", UserID: 99}, nil)

	l := NewOrderLedger(store, collidingNumbers("ORD-DUP", 2), newStepClock(), nil, LedgerOptions{MaxNumberAttempts: 5})
	out, err := l.Create(context.Background(), testDraft(1), nil)
	require.NoError(t, err)
	assert.NotEqual(t, "ORD-DUP", out.Order.OrderNumber)
	assert.Equal(t, 2, store.OrderCount())
	require.Len(t, out.Items, 1)
	assert.Equal(t, out.Order.ID, out.Items[0].OrderID)
	assert.Equal(t, "A", out.Items[0].ProductNameSnapshot)
}

func TestOrderLedger_Create_NumberExhausted(t *testing.T) {
	store := memory.NewStore()
	store.AddOrder(model.Order{OrderNumber: "ORD-DUP", UserID: 99}, nil)

	l := NewOrderLedger(store, collidingNumbers("ORD-DUP", 100), newStepClock(), nil, LedgerOptions{MaxNumberAttempts: 3})
	_, err := l.Create(context.Background(), testDraft(1), nil)
	requireKind(t, err, KindConflict, http.StatusConflict)
	assert.Equal(t, 1, store.OrderCount())
}

// フックの失敗で注文ごと巻き戻る
func TestOrderLedger_Create_HookFailureRollsBack(t *testing.T) {
	store := memory.NewStore()
	l := NewOrderLedger(store, nil, newStepClock(), nil, LedgerOptions{})

	_, err := l.Create(context.Background(), testDraft(1), func(context.Context, repo.TxRepos, model.Order, []model.OrderItem) error {
		return &StockShortfallError{ProductID: 1, Requested: 2}
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, repo.ErrInsufficientStock)
	assert.Zero(t, store.OrderCount())
}

func TestOrderLedger_Create_DuplicateIdempotencyKey(t *testing.T) {
	store := memory.NewStore()
	l := NewOrderLedger(store, nil, newStepClock(), nil, LedgerOptions{})

	d := testDraft(1)
	d.IdempotencyKey = "k"
	_, err := l.Create(context.Background(), d, nil)
	require.NoError(t, err)

	_, err = l.Create(context.Background(), d, nil)
	assert.ErrorIs(t, err, repo.ErrDuplicateIdempotencyKey)

	// 別ユーザーなら同じキーでも可
	d.UserID = 2
	_, err = l.Create(context.Background(), d, nil)
	require.NoError(t, err)
}

func TestOrderLedger_UpdateStatus(t *testing.T) {
	store := memory.NewStore()
	l := NewOrderLedger(store, nil, newStepClock(), nil, LedgerOptions{})
	created, err := l.Create(context.Background(), testDraft(1), nil)
	require.NoError(t, err)
	id := created.Order.ID
	ctx := context.Background()

	// 同じステータスは何もしない
	o, changed, err := l.UpdateStatus(ctx, id, model.OrderStatusPending, nil)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, model.OrderStatusPending, o.Status)

	o, changed, err = l.UpdateStatus(ctx, id, model.OrderStatusShipped, nil)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, model.OrderStatusShipped, o.Status)

	_, _, err = l.UpdateStatus(ctx, id, model.OrderStatusConfirmed, nil)
	requireKind(t, err, KindConflict, http.StatusBadRequest)

	o, _, err = l.UpdateStatus(ctx, id, model.OrderStatusDelivered, nil)
	require.NoError(t, err)
	require.NotNil(t, o.DeliveredAt)

	_, _, err = l.UpdateStatus(ctx, id, model.OrderStatusCancelled, nil)
	requireKind(t, err, KindConflict, http.StatusBadRequest)

	_, _, err = l.UpdateStatus(ctx, 4242, model.OrderStatusShipped, nil)
	requireKind(t, err, KindNotFound, http.StatusNotFound)

	_, _, err = l.UpdateStatus(ctx, id, model.OrderStatus("lost"), nil)
	requireKind(t, err, KindValidation, http.StatusBadRequest)

	stored, _ := store.Order(id)
	assert.Equal(t, model.OrderStatusDelivered, stored.Status)
}

func TestOrderLedger_ListAdmin_Revenue(t *testing.T) {
	store := memory.NewStore()
	l := NewOrderLedger(store, nil, newStepClock(), nil, LedgerOptions{})
	ctx := context.Background()

	a, err := l.Create(ctx, testDraft(1), nil)
	require.NoError(t, err)
	_, err = l.Create(ctx, testDraft(2), nil)
	require.NoError(t, err)
	c, err := l.Create(ctx, testDraft(1), nil)
	require.NoError(t, err)
	_, err = l.Cancel(ctx, c.Order.ID, 1, "", nil)
	require.NoError(t, err)

	orders, total, revenue, err := l.ListAdmin(ctx, repo.AdminOrderListFilter{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, orders, 3)
	assert.Equal(t, "612.00", revenue.StringFixed(2))

	uid := int64(1)
	orders, total, revenue, err = l.ListAdmin(ctx, repo.AdminOrderListFilter{Page: 1, Limit: 10, UserID: &uid, Status: "pending"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, orders, 1)
	assert.Equal(t, a.Order.ID, orders[0].Order.ID)
	assert.Len(t, orders[0].Items, 1)
	assert.Equal(t, "306.00", revenue.StringFixed(2))
}
