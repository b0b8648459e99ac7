package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/Israr974/BuyZaar-sub001/internal/domain/model"
	repo "github.com/Israr974/BuyZaar-sub001/internal/repository"

	"github.com/shopspring/decimal"
)

type orderRepo struct{ st *state }

func (r orderRepo) FindByID(_ context.Context, orderID int64) (model.Order, error) {
	o, ok := r.st.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (r orderRepo) ListByUserID(_ context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	var all []model.Order
	for _, o := range r.st.orders {
		if o.UserID == userID {
			all = append(all, o)
		}
	}
	sortNewestFirst(all)
	return paginate(all, page, limit), int64(len(all)), nil
}

// 一意制約（注文番号、(user_id, idempotency_key)）をここで再現する
func (r orderRepo) Create(_ context.Context, order *model.Order) error {
	for _, o := range r.st.orders {
		if o.OrderNumber == order.OrderNumber {
			return repo.ErrDuplicateKey
		}
		if order.IdempotencyKey != nil && o.IdempotencyKey != nil &&
			o.UserID == order.UserID && *o.IdempotencyKey == *order.IdempotencyKey {
			return repo.ErrDuplicateIdempotencyKey
		}
	}
	order.ID = r.st.id()
	r.st.orders[order.ID] = *order
	return nil
}

func (r orderRepo) TransitionStatus(_ context.Context, orderID int64, from model.OrderStatus, change model.StatusChange) (bool, error) {
	o, ok := r.st.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Apply(change)
	r.st.orders[orderID] = o
	return true, nil
}

func (r orderRepo) UpdatePayment(_ context.Context, orderID int64, status model.PaymentStatus, gatewayPaymentID string, paidAt *time.Time) (bool, error) {
	o, ok := r.st.orders[orderID]
	if !ok || o.Payment.Status == model.PaymentStatusPaid {
		return false, nil
	}
	o.Payment.Status = status
	if gatewayPaymentID != "" {
		o.Payment.GatewayPaymentID = gatewayPaymentID
	}
	if paidAt != nil {
		at := *paidAt
		o.PaidAt = &at
		o.UpdatedAt = at
	}
	r.st.orders[orderID] = o
	return true, nil
}

func (r orderRepo) FindByIdempotencyKey(_ context.Context, userID int64, key string) (model.Order, bool, error) {
	for _, o := range r.st.orders {
		if o.UserID == userID && o.IdempotencyKey != nil && *o.IdempotencyKey == key {
			return o, true, nil
		}
	}
	return model.Order{}, false, nil
}

func (r orderRepo) filter(f repo.AdminOrderListFilter) []model.Order {
	var out []model.Order
	for _, o := range r.st.orders {
		if f.Status != "" && string(o.Status) != f.Status {
			continue
		}
		if f.UserID != nil && o.UserID != *f.UserID {
			continue
		}
		if f.From != nil && o.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && o.CreatedAt.After(*f.To) {
			continue
		}
		out = append(out, o)
	}
	return out
}

func (r orderRepo) ListAdmin(_ context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	all := r.filter(f)
	slices.SortFunc(all, func(a, b model.Order) int { return cmp.Compare(b.ID, a.ID) })
	return paginate(all, f.Page, f.Limit), int64(len(all)), nil
}

func (r orderRepo) SumRevenue(_ context.Context, f repo.AdminOrderListFilter) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, o := range r.filter(f) {
		if o.Status != model.OrderStatusCancelled {
			sum = sum.Add(o.Price.Total)
		}
	}
	return sum, nil
}

type orderItemRepo struct{ st *state }

func (r orderItemRepo) CreateBulk(_ context.Context, orderID int64, items []model.OrderItem) error {
	for i := range items {
		items[i].OrderID = orderID
		items[i].ID = r.st.id()
	}
	r.st.orderItems[orderID] = append(r.st.orderItems[orderID], items...)
	return nil
}

func (r orderItemRepo) ListByOrderID(_ context.Context, orderID int64) ([]model.OrderItem, error) {
	return slices.Clone(r.st.orderItems[orderID]), nil
}

type inventoryRepo struct {
	st  *state
	now func() time.Time
}

func (r inventoryRepo) DecreaseStockIfEnough(_ context.Context, productID int64, qty int64) (bool, error) {
	if qty <= 0 {
		return false, repo.ErrInvalidQuantity
	}
	p, ok := r.st.products[productID]
	if !ok || p.DeletedAt.Valid || p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	p.Sold += qty
	r.st.products[productID] = p
	return true, nil
}

func (r inventoryRepo) IncreaseStock(_ context.Context, productID int64, qty int64) error {
	if qty <= 0 {
		return repo.ErrInvalidQuantity
	}
	p, ok := r.st.products[productID]
	if !ok {
		return repo.ErrNotFound
	}
	p.Stock += qty
	r.st.products[productID] = p
	return nil
}

func (r inventoryRepo) AdjustStock(_ context.Context, productID int64, delta int64) (bool, error) {
	p, ok := r.st.products[productID]
	if !ok || p.Stock+delta < 0 {
		return false, nil
	}
	p.Stock += delta
	r.st.products[productID] = p
	return true, nil
}

func (r inventoryRepo) CreateAdjustment(_ context.Context, adj model.InventoryAdjustment) error {
	adj.ID = r.st.id()
	if adj.CreatedAt.IsZero() {
		adj.CreatedAt = r.now()
	}
	r.st.adjustments = append(r.st.adjustments, adj)
	return nil
}

func (r inventoryRepo) ListAdjustmentsByOrderID(_ context.Context, orderID int64) ([]model.InventoryAdjustment, error) {
	var out []model.InventoryAdjustment
	for _, a := range r.st.adjustments {
		if a.OrderID != nil && *a.OrderID == orderID {
			out = append(out, a)
		}
	}
	return out, nil
}

type productRepo struct{ st *state }

func (r productRepo) FindByID(_ context.Context, id int64) (model.Product, error) {
	p, ok := r.st.products[id]
	if !ok || p.DeletedAt.Valid {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

type auditLogRepo struct{ st *state }

func (r auditLogRepo) Create(_ context.Context, log model.AuditLog) error {
	log.ID = r.st.id()
	r.st.auditLogs = append(r.st.auditLogs, log)
	return nil
}

func (r auditLogRepo) List(_ context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	var out []model.AuditLog
	for _, l := range slices.Backward(r.st.auditLogs) {
		if f.ActorUserID != nil && l.ActorUserID != *f.ActorUserID {
			continue
		}
		if f.Action != nil && l.Action != *f.Action {
			continue
		}
		if f.ResourceType != nil && l.ResourceType != *f.ResourceType {
			continue
		}
		if f.ResourceID != nil && l.ResourceID != *f.ResourceID {
			continue
		}
		if f.CreatedFrom != nil && l.CreatedAt.Before(*f.CreatedFrom) {
			continue
		}
		if f.CreatedTo != nil && l.CreatedAt.After(*f.CreatedTo) {
			continue
		}
		out = append(out, l)
	}
	limit, offset := f.Window()
	if offset >= len(out) {
		return []model.AuditLog{}, nil
	}
	return out[offset:min(offset+limit, len(out))], nil
}

func sortNewestFirst(orders []model.Order) {
	slices.SortFunc(orders, func(a, b model.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}

func paginate[T any](all []T, page, limit int) []T {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	start := (page - 1) * limit
	if start >= len(all) {
		return []T{}
	}
	return all[start:min(start+limit, len(all))]
}
