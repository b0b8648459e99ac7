package repository

import (
	"context"

	"github.com/Israr974/BuyZaar-sub001/internal/domain/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type HistoryGormRepository struct {
	db *gorm.DB
}

func NewHistoryGormRepository(db *gorm.DB) *HistoryGormRepository {
	return &HistoryGormRepository{db: db}
}

// 追加と切り詰めを1トランザクションで
func (r *HistoryGormRepository) Append(ctx context.Context, entry model.HistoryEntry, limit int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 同じ購入者の追記を直列にする
		var u model.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").Where("id = ?", entry.UserID).First(&u).Error; err != nil {
			return translate(err)
		}

		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		// 新しい順にlimit件を残す
		keep := tx.Model(&model.HistoryEntry{}).
			Select("id").
			Where("user_id = ?", entry.UserID).
			Order("ordered_at desc").Order("id desc").
			Limit(limit)
		return tx.
			Where("user_id = ? AND id NOT IN (?)", entry.UserID, keep).
			Delete(&model.HistoryEntry{}).Error
	})
}

func (r *HistoryGormRepository) ListByUserID(ctx context.Context, userID int64) ([]model.HistoryEntry, error) {
	var entries []model.HistoryEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("ordered_at desc").Order("id desc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
