package usecase

import (
	"context"

	"github.com/Israr974/BuyZaar-sub001/internal/domain/model"
)

// 確定済みの注文イベントを送る後続タスク
func publishTask(events EventPublisher, ids IDGenerator, clock Clock, typ model.OrderEventType, o model.Order) FollowUpTask {
	event := model.OrderEvent{
		EventID:     ids.NewID(),
		Type:        typ,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		Status:      o.Status,
		OccurredAt:  clock.Now().UTC(),
	}
	return FollowUpTask{
		Step:        StepPublish,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		Run: func(ctx context.Context) error {
			return events.Publish(ctx, event)
		},
	}
}
