package usecase

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/Israr974/BuyZaar-sub001/internal/config"
	"github.com/Israr974/BuyZaar-sub001/internal/domain/model"
	repo "github.com/Israr974/BuyZaar-sub001/internal/repository"

	"go.uber.org/zap"
)

type AdminOrderUsecase struct {
	ledger    *OrderLedger
	inventory *InventoryAdjuster
	followUps FollowUpSubmitter
	events    EventPublisher
	ids       IDGenerator
	clock     Clock
	logger    *zap.Logger
	restock   config.CancelRestockPolicy
}

func NewAdminOrderUsecase(
	ledger *OrderLedger,
	inventory *InventoryAdjuster,
	followUps FollowUpSubmitter,
	events EventPublisher,
	restock config.CancelRestockPolicy,
	logger *zap.Logger,
) *AdminOrderUsecase {
	if events == nil {
		events = noopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminOrderUsecase{
		ledger:    ledger,
		inventory: inventory,
		followUps: followUps,
		events:    events,
		ids:       uuidGenerator{},
		clock:     systemClock{},
		logger:    logger,
		restock:   restock,
	}
}

type AdminUpdateOrderStatusInput struct {
	Status string `json:"status"`
}

// 決済ゲートウェイの結果
type MarkPaymentInput struct {
	Verified         bool   `json:"verified"`
	GatewayPaymentID string `json:"gateway_payment_id"`
}

// 注文一覧＋同じ条件の売上（キャンセル除く）
func (u *AdminOrderUsecase) List(ctx context.Context, f repo.AdminOrderListFilter) (AdminOrderListOutput, error) {
	// page/limitの最低限チェック
	if f.Page < 1 {
		return AdminOrderListOutput{}, newValidationError("invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return AdminOrderListOutput{}, newValidationError("invalid limit")
	}
	f.Status = strings.ToLower(strings.TrimSpace(f.Status))
	if f.Status != "" && !model.OrderStatus(f.Status).Valid() {
		return AdminOrderListOutput{}, newValidationError("invalid status")
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return AdminOrderListOutput{}, newValidationError("from must be before to")
	}

	orders, total, revenue, err := u.ledger.ListAdmin(ctx, f)
	if err != nil {
		return AdminOrderListOutput{}, err
	}
	return AdminOrderListOutput{
		Orders:  toOrderOutputs(orders),
		Total:   total,
		Page:    f.Page,
		Limit:   f.Limit,
		Revenue: money2(revenue),
	}, nil
}

// ステータス更新（同じステータスなら何もしない）
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, actorAdminUserID int64, orderID int64, in AdminUpdateOrderStatusInput) (OrderOutput, error) {
	if actorAdminUserID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	next := model.OrderStatus(strings.ToLower(strings.TrimSpace(in.Status)))
	if !next.Valid() {
		return OrderOutput{}, newValidationError("invalid status")
	}

	updated, changed, err := u.ledger.UpdateStatus(ctx, orderID, next, func(ctx context.Context, r repo.TxRepos, before, after model.Order) error {
		if after.Status == model.OrderStatusCancelled && u.restock == config.CancelRestockRestore {
			if err := u.inventory.RestoreWithin(ctx, r, after.ID); err != nil {
				return err
			}
		}
		// 監査ログ（UPDATE_ORDER_STATUS）
		return r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorAdminUserID,
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   after.ID,
			BeforeJSON:   statusJSON(before.Status, ""),
			AfterJSON:    statusJSON(after.Status, ""),
			CreatedAt:    after.UpdatedAt,
		})
	})
	if err != nil {
		return OrderOutput{}, err
	}

	if changed {
		u.followUps.Submit(publishTask(u.events, u.ids, u.clock, model.OrderEventStatusChanged, updated))
		u.logger.Info("order status updated",
			zap.Int64("order_id", updated.ID),
			zap.String("order_number", updated.OrderNumber),
			zap.String("status", string(updated.Status)),
			zap.Int64("actor_user_id", actorAdminUserID),
		)
	}

	ow, err := u.ledger.Get(ctx, orderID)
	if err != nil {
		return OrderOutput{}, err
	}
	return toOrderOutput(ow.Order, ow.Items), nil
}

// MarkPaymentは決済ゲートウェイの結果（成功/失敗）を反映する。
// 購入者は呼べない（管理者またはゲートウェイ連携のみ）
func (u *AdminOrderUsecase) MarkPayment(ctx context.Context, actorAdminUserID int64, orderID int64, in MarkPaymentInput) (OrderOutput, error) {
	if actorAdminUserID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	gatewayID := strings.TrimSpace(in.GatewayPaymentID)
	if in.Verified && gatewayID == "" {
		return OrderOutput{}, newValidationError("gateway_payment_id required")
	}
	if len(gatewayID) > 100 {
		return OrderOutput{}, newValidationError("invalid gateway_payment_id")
	}

	o, err := u.ledger.MarkPayment(ctx, orderID, in.Verified, gatewayID, func(ctx context.Context, r repo.TxRepos, before, after model.Order) error {
		return r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorAdminUserID,
			Action:       model.AuditActionRecordPayment,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   after.ID,
			BeforeJSON:   paymentJSON(before.Payment),
			AfterJSON:    paymentJSON(after.Payment),
			CreatedAt:    u.clock.Now().UTC(),
		})
	})
	if err != nil {
		return OrderOutput{}, err
	}
	u.logger.Info("payment recorded",
		zap.Int64("order_id", o.ID),
		zap.String("order_number", o.OrderNumber),
		zap.String("payment_status", string(o.Payment.Status)),
		zap.Int64("actor_user_id", actorAdminUserID),
	)

	ow, err := u.ledger.Get(ctx, orderID)
	if err != nil {
		return OrderOutput{}, err
	}
	return toOrderOutput(ow.Order, ow.Items), nil
}

func paymentJSON(p model.Payment) string {
	b, _ := json.Marshal(struct {
		Status           string `json:"status"`
		GatewayPaymentID string `json:"gateway_payment_id,omitempty"`
	}{string(p.Status), p.GatewayPaymentID})
	return string(b)
}

func statusJSON(status model.OrderStatus, reason string) string {
	b, _ := json.Marshal(struct {
		Status string `json:"status"`
		Reason string `json:"reason,omitempty"`
	}{string(status), reason})
	return string(b)
}

// 期間パラメータ（RFC3339）。空ならnil
func ParseDateTimeRFC3339(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, newValidationError("invalid datetime: " + s)
	}
	return &t, nil
}
