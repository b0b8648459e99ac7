package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/Israr974/BuyZaar-sub001/internal/domain/model"
	repo "github.com/Israr974/BuyZaar-sub001/internal/repository"

	"github.com/shopspring/decimal"
)

// トランザクション外から使うリポジトリ（1操作ごとにロック）

func (s *Store) Products() repo.ProductRepository   { return storeProducts{s} }
func (s *Store) Addresses() repo.AddressRepository  { return storeAddresses{s} }
func (s *Store) Users() repo.UserRepository         { return storeUsers{s} }
func (s *Store) History() repo.HistoryRepository    { return storeHistory{s} }
func (s *Store) CartLines() repo.CartLineRepository { return storeCartLines{s} }
func (s *Store) AuditLogs() repo.AuditLogRepository { return storeAuditLogs{s} }

type storeProducts struct{ s *Store }

func (r storeProducts) FindByID(ctx context.Context, id int64) (p model.Product, err error) {
	err = r.s.read(func(st *state) error {
		p, err = productRepo{st}.FindByID(ctx, id)
		return err
	})
	return p, err
}

type storeAddresses struct{ s *Store }

func (r storeAddresses) FindByID(_ context.Context, id int64) (model.Address, error) {
	var a model.Address
	err := r.s.read(func(st *state) error {
		var ok bool
		if a, ok = st.addresses[id]; !ok {
			return repo.ErrNotFound
		}
		return nil
	})
	return a, err
}

type storeUsers struct{ s *Store }

func (r storeUsers) FindByID(_ context.Context, id int64) (model.User, error) {
	var u model.User
	err := r.s.read(func(st *state) error {
		var ok bool
		if u, ok = st.users[id]; !ok {
			return repo.ErrNotFound
		}
		return nil
	})
	return u, err
}

type storeHistory struct{ s *Store }

// 新しい順に並べてlimit件を残す
func (r storeHistory) Append(ctx context.Context, entry model.HistoryEntry, limit int) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.users[entry.UserID]; !ok {
			return repo.ErrNotFound
		}
		entry.ID = st.id()
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = r.s.now()
		}
		entries := append(st.history[entry.UserID], entry)
		slices.SortStableFunc(entries, func(a, b model.HistoryEntry) int {
			if c := b.OrderedAt.Compare(a.OrderedAt); c != 0 {
				return c
			}
			return cmp.Compare(b.ID, a.ID)
		})
		if len(entries) > limit {
			entries = entries[:limit]
		}
		st.history[entry.UserID] = entries
		return nil
	})
}

func (r storeHistory) ListByUserID(_ context.Context, userID int64) ([]model.HistoryEntry, error) {
	var out []model.HistoryEntry
	err := r.s.read(func(st *state) error {
		out = slices.Clone(st.history[userID])
		return nil
	})
	return out, err
}

type storeCartLines struct{ s *Store }

func (r storeCartLines) ListByUserID(_ context.Context, userID int64) ([]model.CartLine, error) {
	var out []model.CartLine
	err := r.s.read(func(st *state) error {
		for _, l := range st.cartLines {
			if l.UserID == userID {
				out = append(out, l)
			}
		}
		slices.SortFunc(out, func(a, b model.CartLine) int { return cmp.Compare(a.ID, b.ID) })
		return nil
	})
	return out, err
}

// (user, product) で一意
func (r storeCartLines) Upsert(ctx context.Context, userID int64, productID int64, addQty int64, priceSnapshot decimal.Decimal) error {
	if addQty <= 0 {
		return repo.ErrInvalidQuantity
	}
	if addQty > model.MaxLineQuantity {
		return repo.ErrQuantityLimit
	}
	return r.s.write(ctx, func(st *state) error {
		now := r.s.now()
		for id, l := range st.cartLines {
			if l.UserID == userID && l.ProductID == productID {
				if l.Quantity > model.MaxLineQuantity-addQty {
					return repo.ErrQuantityLimit
				}
				l.Quantity += addQty
				l.PriceSnapshot = priceSnapshot
				l.UpdatedAt = now
				st.cartLines[id] = l
				return nil
			}
		}
		id := st.id()
		st.cartLines[id] = model.CartLine{
			ID:            id,
			UserID:        userID,
			ProductID:     productID,
			Quantity:      addQty,
			PriceSnapshot: priceSnapshot,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		return nil
	})
}

func (r storeCartLines) FindByID(_ context.Context, lineID int64) (model.CartLine, error) {
	var l model.CartLine
	err := r.s.read(func(st *state) error {
		var ok bool
		if l, ok = st.cartLines[lineID]; !ok {
			return repo.ErrNotFound
		}
		return nil
	})
	return l, err
}

func (r storeCartLines) UpdateQuantity(ctx context.Context, lineID int64, qty int64) error {
	if qty <= 0 {
		return repo.ErrInvalidQuantity
	}
	if qty > model.MaxLineQuantity {
		return repo.ErrQuantityLimit
	}
	return r.s.write(ctx, func(st *state) error {
		l, ok := st.cartLines[lineID]
		if !ok {
			return repo.ErrNotFound
		}
		l.Quantity = qty
		l.UpdatedAt = r.s.now()
		st.cartLines[lineID] = l
		return nil
	})
}

func (r storeCartLines) DeleteByID(ctx context.Context, lineID int64) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.cartLines[lineID]; !ok {
			return repo.ErrNotFound
		}
		delete(st.cartLines, lineID)
		return nil
	})
}

type storeAuditLogs struct{ s *Store }

func (r storeAuditLogs) Create(ctx context.Context, log model.AuditLog) error {
	return r.s.write(ctx, func(st *state) error {
		return auditLogRepo{st}.Create(ctx, log)
	})
}

func (r storeAuditLogs) List(ctx context.Context, f repo.AuditLogFilter) (out []model.AuditLog, err error) {
	err = r.s.read(func(st *state) error {
		out, err = auditLogRepo{st}.List(ctx, f)
		return err
	})
	return out, err
}
