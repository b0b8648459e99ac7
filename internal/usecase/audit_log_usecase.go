package usecase

import (
	"context"
	"time"

	"github.com/Israr974/BuyZaar-sub001/internal/domain/model"
	repo "github.com/Israr974/BuyZaar-sub001/internal/repository"
)

// 管理者向けの監査ログ閲覧
type AuditLogUsecase struct {
	logs    repo.AuditLogRepository
	timeout time.Duration
}

func NewAuditLogUsecase(logs repo.AuditLogRepository, timeout time.Duration) *AuditLogUsecase {
	return &AuditLogUsecase{logs: logs, timeout: timeout}
}

type AuditLogListInput struct {
	ActorUserID  *int64
	Action       string
	ResourceType string
	ResourceID   *int64
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
}

func (u *AuditLogUsecase) List(ctx context.Context, in AuditLogListInput) ([]model.AuditLog, error) {
	if in.Limit < 0 || in.Limit > repo.AuditLogMaxLimit {
		return nil, newValidationError("invalid limit")
	}
	if in.Offset < 0 {
		return nil, newValidationError("invalid offset")
	}
	if in.From != nil && in.To != nil && in.From.After(*in.To) {
		return nil, newValidationError("from must be before to")
	}

	f := repo.AuditLogFilter{
		ActorUserID: in.ActorUserID,
		ResourceID:  in.ResourceID,
		CreatedFrom: in.From,
		CreatedTo:   in.To,
		Limit:       in.Limit,
		Offset:      in.Offset,
	}
	if in.Action != "" {
		a := model.AuditAction(in.Action)
		switch a {
		case model.AuditActionAdjustStock, model.AuditActionUpdateOrderStatus, model.AuditActionCancelOrder, model.AuditActionRecordPayment:
		default:
			return nil, newValidationError("invalid action")
		}
		f.Action = &a
	}
	if in.ResourceType != "" {
		rt := model.AuditResourceType(in.ResourceType)
		if rt != model.AuditResourceOrder && rt != model.AuditResourceProduct {
			return nil, newValidationError("invalid resource_type")
		}
		f.ResourceType = &rt
	}

	logs, err := withTimeout(ctx, u.timeout, func(ctx context.Context) ([]model.AuditLog, error) {
		return u.logs.List(ctx, f)
	})
	if err != nil {
		return nil, infraError("audit log", err)
	}
	if logs == nil {
		logs = []model.AuditLog{}
	}
	return logs, nil
}
