package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/Israr974/BuyZaar-sub001/internal/domain/model"
	repo "github.com/Israr974/BuyZaar-sub001/internal/repository"
)

// StockShortfallError is returned when a conditional decrement matched no row.
type StockShortfallError struct {
	ProductID int64
	Requested int64
}

func (e *StockShortfallError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d (requested %d)", e.ProductID, e.Requested)
}

func (e *StockShortfallError) Unwrap() error { return repo.ErrInsufficientStock }

// InventoryAdjuster is the only writer of stock/sold. Every change is a
// relative delta with an adjustment row in the same transaction.
type InventoryAdjuster struct {
	tx      repo.TransactionManager
	clock   Clock
	timeout time.Duration
}

func NewInventoryAdjuster(tx repo.TransactionManager, clock Clock, timeout time.Duration) *InventoryAdjuster {
	if clock == nil {
		clock = systemClock{}
	}
	return &InventoryAdjuster{tx: tx, clock: clock, timeout: timeout}
}

// ReserveWithin decrements every item inside the caller's transaction.
func (a *InventoryAdjuster) ReserveWithin(ctx context.Context, r repo.TxRepos, orderID int64, items []model.OrderItem) error {
	// product_id順に更新（行ロックの順序をそろえる）
	sorted := slices.Clone(items)
	slices.SortFunc(sorted, func(x, y model.OrderItem) int {
		switch {
		case x.ProductID < y.ProductID:
			return -1
		case x.ProductID > y.ProductID:
			return 1
		}
		return 0
	})
	for _, it := range sorted {
		if err := a.reserveItem(ctx, r, orderID, it); err != nil {
			return err
		}
	}
	return nil
}

func (a *InventoryAdjuster) reserveItem(ctx context.Context, r repo.TxRepos, orderID int64, it model.OrderItem) error {
	ok, err := r.Inventory().DecreaseStockIfEnough(ctx, it.ProductID, it.Quantity)
	if err != nil {
		return err
	}
	if !ok {
		return &StockShortfallError{ProductID: it.ProductID, Requested: it.Quantity}
	}
	oid := orderID
	return r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
		ProductID:  it.ProductID,
		OrderID:    &oid,
		StockDelta: -it.Quantity,
		SoldDelta:  it.Quantity,
		Reason:     model.AdjustmentOrderPlaced,
		CreatedAt:  a.clock.Now().UTC(),
	})
}

// ApplyItem decrements one item in its own transaction.
func (a *InventoryAdjuster) ApplyItem(ctx context.Context, orderID int64, it model.OrderItem) error {
	tctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.tx.WithinTx(tctx, func(r repo.TxRepos) error {
		return a.reserveItem(tctx, r, orderID, it)
	})
}

// 確定後の在庫反映（1明細1タスク）。在庫不足はリトライしない
func (a *InventoryAdjuster) FollowUpTasks(order model.Order, items []model.OrderItem) []FollowUpTask {
	tasks := make([]FollowUpTask, 0, len(items))
	for _, it := range items {
		tasks = append(tasks, FollowUpTask{
			Step:        StepInventory,
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			UserID:      order.UserID,
			Run: func(ctx context.Context) error {
				err := a.ApplyItem(ctx, order.ID, it)
				var shortfall *StockShortfallError
				if errors.As(err, &shortfall) {
					return Permanent(err)
				}
				return err
			},
		})
	}
	return tasks
}

// RestoreWithin returns to stock what the order still holds according to its
// adjustment rows. sold is never decreased.
func (a *InventoryAdjuster) RestoreWithin(ctx context.Context, r repo.TxRepos, orderID int64) error {
	adjs, err := r.Inventory().ListAdjustmentsByOrderID(ctx, orderID)
	if err != nil {
		return err
	}

	held := map[int64]int64{}
	var order []int64
	for _, adj := range adjs {
		if _, ok := held[adj.ProductID]; !ok {
			order = append(order, adj.ProductID)
		}
		held[adj.ProductID] -= adj.StockDelta
	}
	slices.Sort(order)

	oid := orderID
	for _, pid := range order {
		n := held[pid]
		if n <= 0 {
			continue
		}
		if err := r.Inventory().IncreaseStock(ctx, pid, n); err != nil {
			return err
		}
		if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
			ProductID:  pid,
			OrderID:    &oid,
			StockDelta: n,
			Reason:     model.AdjustmentOrderCancelled,
			CreatedAt:  a.clock.Now().UTC(),
		}); err != nil {
			return err
		}
	}
	return nil
}

type StockAdjustInput struct {
	Delta  int64  `json:"delta"`
	Reason string `json:"reason"`
}

type StockOutput struct {
	ProductID int64 `json:"product_id"`
	Stock     int64 `json:"stock"`
	Sold      int64 `json:"sold"`
}

// Adjust is the admin relative stock correction (restock, shrinkage).
func (a *InventoryAdjuster) Adjust(ctx context.Context, actorUserID int64, productID int64, in StockAdjustInput) (StockOutput, error) {
	if actorUserID <= 0 {
		return StockOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if productID <= 0 {
		return StockOutput{}, newValidationError("invalid id")
	}
	if in.Delta == 0 {
		return StockOutput{}, newValidationError("delta must not be zero")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" || len(reason) > 255 {
		return StockOutput{}, newValidationError("invalid reason")
	}

	tctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var out StockOutput
	err := a.tx.WithinTx(tctx, func(r repo.TxRepos) error {
		before, err := r.Products().FindByID(tctx, productID)
		if err != nil {
			return err
		}

		ok, err := r.Inventory().AdjustStock(tctx, productID, in.Delta)
		if err != nil {
			return err
		}
		if !ok {
			return newConflictError(http.StatusBadRequest, "stock cannot go below zero")
		}

		actor := actorUserID
		now := a.clock.Now().UTC()
		if err := r.Inventory().CreateAdjustment(tctx, model.InventoryAdjustment{
			ProductID:   productID,
			ActorUserID: &actor,
			StockDelta:  in.Delta,
			Reason:      model.AdjustmentManual,
			Note:        reason,
			CreatedAt:   now,
		}); err != nil {
			return err
		}

		after, err := r.Products().FindByID(tctx, productID)
		if err != nil {
			return err
		}

		// 監査ログ（ADJUST_STOCK）
		if err := r.AuditLogs().Create(tctx, model.AuditLog{
			ActorUserID:  actorUserID,
			Action:       model.AuditActionAdjustStock,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   productID,
			BeforeJSON:   stockJSON(before.Stock, ""),
			AfterJSON:    stockJSON(after.Stock, reason),
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		out = StockOutput{ProductID: productID, Stock: after.Stock, Sold: after.Sold}
		return nil
	})
	if err != nil {
		if isNotFound(err) {
			return StockOutput{}, newNotFoundError("not found")
		}
		return StockOutput{}, infraError("adjust stock", err)
	}
	return out, nil
}

func stockJSON(stock int64, reason string) string {
	b, _ := json.Marshal(struct {
		Stock  int64  `json:"stock"`
		Reason string `json:"reason,omitempty"`
	}{stock, reason})
	return string(b)
}
