package repository

import (
	"context"

	"github.com/Israr974/BuyZaar-sub001/internal/domain/model"
)

// 購入者プロフィールの注文履歴
type HistoryRepository interface {
	// 追加して、新しい順にlimit件だけ残す（1トランザクション）
	Append(ctx context.Context, entry model.HistoryEntry, limit int) error
	// 新しい順
	ListByUserID(ctx context.Context, userID int64) ([]model.HistoryEntry, error)
}
