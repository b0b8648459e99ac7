// Package memory is a transactional in-process store. It backs the usecase
// tests and STORAGE_DRIVER=memory; a transaction works on a copy of the state
// that replaces the original only when fn returns nil.
package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/Israr974/BuyZaar-sub001/internal/domain/model"
	repo "github.com/Israr974/BuyZaar-sub001/internal/repository"
)

type state struct {
	nextID      int64
	users       map[int64]model.User
	addresses   map[int64]model.Address
	products    map[int64]model.Product
	orders      map[int64]model.Order
	orderItems  map[int64][]model.OrderItem
	adjustments []model.InventoryAdjustment
	history     map[int64][]model.HistoryEntry
	cartLines   map[int64]model.CartLine
	auditLogs   []model.AuditLog
}

func newState() *state {
	return &state{
		users:      map[int64]model.User{},
		addresses:  map[int64]model.Address{},
		products:   map[int64]model.Product{},
		orders:     map[int64]model.Order{},
		orderItems: map[int64][]model.OrderItem{},
		history:    map[int64][]model.HistoryEntry{},
		cartLines:  map[int64]model.CartLine{},
	}
}

func (s *state) clone() *state {
	c := &state{
		nextID:      s.nextID,
		users:       maps.Clone(s.users),
		addresses:   maps.Clone(s.addresses),
		products:    maps.Clone(s.products),
		orders:      maps.Clone(s.orders),
		orderItems:  make(map[int64][]model.OrderItem, len(s.orderItems)),
		adjustments: slices.Clone(s.adjustments),
		history:     make(map[int64][]model.HistoryEntry, len(s.history)),
		cartLines:   maps.Clone(s.cartLines),
		auditLogs:   slices.Clone(s.auditLogs),
	}
	for k, v := range s.orderItems {
		c.orderItems[k] = slices.Clone(v)
	}
	for k, v := range s.history {
		c.history[k] = slices.Clone(v)
	}
	return c
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

func NewStore() *Store {
	return &Store{st: newState(), now: time.Now}
}

// WithinTx serializes transactions; fn sees its own copy of the state.
func (s *Store) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(&txRepos{st: work, now: s.now}); err != nil {
		return err
	}
	// commit前にキャンセルされたら捨てる
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) read(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// write applies fn atomically; a failing fn leaves the state untouched.
func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(work); err != nil {
		return err
	}
	s.st = work
	return nil
}

type txRepos struct {
	st  *state
	now func() time.Time
}

func (r *txRepos) Orders() repo.OrderRepository         { return orderRepo{r.st} }
func (r *txRepos) OrderItems() repo.OrderItemRepository { return orderItemRepo{r.st} }
func (r *txRepos) Inventory() repo.InventoryRepository  { return inventoryRepo{st: r.st, now: r.now} }
func (r *txRepos) Products() repo.ProductRepository     { return productRepo{r.st} }
func (r *txRepos) AuditLogs() repo.AuditLogRepository   { return auditLogRepo{r.st} }

// 種データ（テスト・ローカル起動用）

func (s *Store) AddUser(u model.User) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.st.id()
	}
	s.st.users[u.ID] = u
	return u
}

func (s *Store) AddAddress(a model.Address) model.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		a.ID = s.st.id()
	}
	s.st.addresses[a.ID] = a
	return a
}

func (s *Store) AddProduct(p model.Product) model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.st.id()
	}
	s.st.products[p.ID] = p
	return p
}

func (s *Store) AddOrder(o model.Order, items []model.OrderItem) model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == 0 {
		o.ID = s.st.id()
	}
	s.st.orders[o.ID] = o
	for i := range items {
		items[i].OrderID = o.ID
		if items[i].ID == 0 {
			items[i].ID = s.st.id()
		}
	}
	s.st.orderItems[o.ID] = slices.Clone(items)
	return o
}

func (s *Store) Product(id int64) (model.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.products[id]
	return p, ok
}

func (s *Store) Order(id int64) (model.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.st.orders[id]
	return o, ok
}

func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.orders)
}

func (s *Store) AllOrders() []model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Collect(maps.Values(s.st.orders))
	slices.SortFunc(out, func(a, b model.Order) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (s *Store) Adjustments() []model.InventoryAdjustment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.adjustments)
}

func (s *Store) AuditTrail() []model.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.auditLogs)
}
