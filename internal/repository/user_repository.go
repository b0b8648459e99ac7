package repository

import (
	"context"

	"github.com/Israr974/BuyZaar-sub001/internal/domain/model"
)

type UserRepository interface {
	// IDからユーザーを1件取得する。無ければErrNotFound
	FindByID(ctx context.Context, userID int64) (model.User, error)
}
