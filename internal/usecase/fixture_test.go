package usecase

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Israr974/BuyZaar-sub001/internal/config"
	"github.com/Israr974/BuyZaar-sub001/internal/domain/model"
	"github.com/Israr974/BuyZaar-sub001/internal/infra/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// =====================
// テスト用の部品
// =====================

// 呼ばれるたびに1秒進む時計
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return "evt-" + strconv.Itoa(g.n)
}

// 後続タスクをその場で1回だけ実行し、失敗を記録する
type inlineFollowUps struct {
	mu      sync.Mutex
	steps   []string
	reports []InconsistencyReport
}

func (f *inlineFollowUps) Submit(task FollowUpTask) {
	err := task.Run(context.Background())

	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = append(f.steps, task.Step)
	if err != nil {
		f.reports = append(f.reports, InconsistencyReport{
			Step:        task.Step,
			OrderID:     task.OrderID,
			OrderNumber: task.OrderNumber,
			UserID:      task.UserID,
			Attempts:    1,
			Err:         err,
		})
	}
}

func (f *inlineFollowUps) Reports() []InconsistencyReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]InconsistencyReport(nil), f.reports...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e model.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Events() []model.OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.OrderEvent(nil), p.events...)
}

// =====================
// fixture
// =====================

const (
	testPincode       = "560001"
	testDenyPincode   = "999999"
	testCODMaxTotal   = "1000"
	testCollaboratorT = time.Second
)

type fixture struct {
	store     *memory.Store
	buyer     model.User
	address   model.Address
	clock     *stepClock
	followUps *inlineFollowUps
	events    *recordingPublisher
	deps      OrderDeps
	uc        *OrderUsecase
}

func newFixture(t *testing.T, mutate ...func(f *fixture)) *fixture {
	t.Helper()

	store := memory.NewStore()
	buyer := store.AddUser(model.User{Email: "buyer@example.com", Role: model.RoleUser, IsActive: true})
	addr := store.AddAddress(model.Address{UserID: buyer.ID, Pincode: testPincode, Name: "Asha", Line1: "1 MG Road", City: "Bengaluru", State: "KA"})

	f := &fixture{
		store:     store,
		buyer:     buyer,
		address:   addr,
		clock:     newStepClock(),
		followUps: &inlineFollowUps{},
		events:    &recordingPublisher{},
	}

	catalog := NewCatalogReader(store.Products(), testCollaboratorT)
	f.deps = OrderDeps{
		Users:     store.Users(),
		Addresses: store.Addresses(),
		Guard: NewAvailabilityGuard(catalog, CODPolicy{
			MaxOrderTotal:    decimal.RequireFromString(testCODMaxTotal),
			DenylistPincodes: []string{testDenyPincode},
		}),
		Pricing:         NewPriceEngine(DefaultPricingConfig()),
		Ledger:          NewOrderLedger(store, nil, f.clock, nil, LedgerOptions{Timeout: testCollaboratorT}),
		Inventory:       NewInventoryAdjuster(store, f.clock, testCollaboratorT),
		History:         NewHistoryRecorder(store.History(), model.HistoryLimit, testCollaboratorT),
		FollowUps:       f.followUps,
		Events:          f.events,
		IDs:             &seqIDs{},
		Clock:           f.clock,
		InventoryPolicy: config.InventoryPolicyAtomic,
		CancelRestock:   config.CancelRestockNone,
		Timeout:         testCollaboratorT,
	}
	for _, m := range mutate {
		m(f)
	}
	f.uc = NewOrderUsecase(f.deps)
	return f
}

func (f *fixture) addProduct(name string, price string, stock int64) model.Product {
	return f.store.AddProduct(model.Product{
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		IsActive: true,
	})
}

func (f *fixture) product(t *testing.T, id int64) model.Product {
	t.Helper()
	p, ok := f.store.Product(id)
	require.True(t, ok)
	return p
}

func (f *fixture) place(t *testing.T, in PlaceOrderInput) (PlaceOrderOutput, error) {
	t.Helper()
	if in.AddressID == 0 {
		in.AddressID = f.address.ID
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = "CARD"
	}
	return f.uc.PlaceOrder(context.Background(), f.buyer.ID, in)
}

func requireKind(t *testing.T, err error, kind ErrorKind, status int) *HTTPError {
	t.Helper()
	require.Error(t, err)
	he, ok := AsHTTPError(err)
	require.True(t, ok, "not an HTTPError: %v", err)
	require.Equal(t, kind, he.Kind, he.Message)
	require.Equal(t, status, he.Status)
	return he
}
