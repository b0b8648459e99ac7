package usecase

import (
	"context"
	"time"

	"github.com/Israr974/BuyZaar-sub001/internal/domain/model"
	repo "github.com/Israr974/BuyZaar-sub001/internal/repository"
)

// HistoryRecorder keeps the capped order summary on the buyer profile.
// It is a convenience view; the orders table stays authoritative.
type HistoryRecorder struct {
	history repo.HistoryRepository
	limit   int
	timeout time.Duration
}

func NewHistoryRecorder(history repo.HistoryRepository, limit int, timeout time.Duration) *HistoryRecorder {
	if limit < 1 {
		limit = model.HistoryLimit
	}
	return &HistoryRecorder{history: history, limit: limit, timeout: timeout}
}

func (h *HistoryRecorder) Record(ctx context.Context, order model.Order, itemCount int64) error {
	entry := model.HistoryEntry{
		UserID:        order.UserID,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		OrderedAt:     order.CreatedAt,
		Total:         order.Price.Total,
		Status:        order.Status,
		ItemCount:     itemCount,
		PaymentMethod: order.Payment.Method,
	}
	_, err := withTimeout(ctx, h.timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, h.history.Append(ctx, entry, h.limit)
	})
	return err
}

func (h *HistoryRecorder) Task(order model.Order, itemCount int64) FollowUpTask {
	return FollowUpTask{
		Step:        StepHistory,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Run: func(ctx context.Context) error {
			return h.Record(ctx, order, itemCount)
		},
	}
}

// 新しい順
func (h *HistoryRecorder) List(ctx context.Context, userID int64) ([]model.HistoryEntry, error) {
	entries, err := withTimeout(ctx, h.timeout, func(ctx context.Context) ([]model.HistoryEntry, error) {
		return h.history.ListByUserID(ctx, userID)
	})
	if err != nil {
		return nil, infraError("history", err)
	}
	return entries, nil
}
