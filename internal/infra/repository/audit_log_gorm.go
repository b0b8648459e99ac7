package repository

import (
	"context"
	"time"

	"github.com/Israr974/BuyZaar-sub001/internal/domain/model"
	repo "github.com/Israr974/BuyZaar-sub001/internal/repository"

	"gorm.io/gorm"
)

// 監査ログ。注文の状態変更・支払い反映・在庫調整と同じトランザクションで書く
type AuditLogGormRepository struct {
	db *gorm.DB
}

func NewAuditLogGormRepository(db *gorm.DB) *AuditLogGormRepository {
	return &AuditLogGormRepository{db: db}
}

func (r *AuditLogGormRepository) Create(ctx context.Context, log model.AuditLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	return translate(r.db.WithContext(ctx).Create(&log).Error)
}

func (r *AuditLogGormRepository) List(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	limit, offset := f.Window()

	logs := []model.AuditLog{}
	err := r.db.WithContext(ctx).
		Scopes(
			whereEq("actor_user_id", f.ActorUserID),
			whereEq("action", f.Action),
			whereEq("resource_type", f.ResourceType),
			whereEq("resource_id", f.ResourceID),
			createdBetween(f.CreatedFrom, f.CreatedTo),
		).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error
	if err != nil {
		return nil, translate(err)
	}
	return logs, nil
}

// 値があるときだけ等値条件を足す
func whereEq[T any](column string, v *T) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if v == nil {
			return db
		}
		return db.Where(column+" = ?", *v)
	}
}

func createdBetween(from, to *time.Time) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if from != nil {
			db = db.Where("created_at >= ?", *from)
		}
		if to != nil {
			db = db.Where("created_at <= ?", *to)
		}
		return db
	}
}
