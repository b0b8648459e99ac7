package repository

import (
	"context"
	"time"

	"github.com/Israr974/BuyZaar-sub001/internal/domain/model"
)

const (
	AuditLogDefaultLimit = 50
	AuditLogMaxLimit     = 200
)

// 監査ログの絞り込み条件（nilは条件なし）。並びは新しい順
type AuditLogFilter struct {
	ActorUserID  *int64
	Action       *model.AuditAction
	ResourceType *model.AuditResourceType
	ResourceID   *int64
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	Limit        int
	Offset       int
}

// 範囲外のlimitは既定値、負のoffsetは0
func (f AuditLogFilter) Window() (limit, offset int) {
	limit = f.Limit
	if limit <= 0 || limit > AuditLogMaxLimit {
		limit = AuditLogDefaultLimit
	}
	return limit, max(f.Offset, 0)
}

type AuditLogRepository interface {
	Create(ctx context.Context, log model.AuditLog) error
	List(ctx context.Context, filter AuditLogFilter) ([]model.AuditLog, error)
}
