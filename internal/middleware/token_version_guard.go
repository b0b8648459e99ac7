package middleware

import (
	"errors"

	"github.com/Israr974/BuyZaar-sub001/internal/repository"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// トークンを現在のプロフィールと突き合わせる。
// 無効化・token_versionの更新・ロール変更のどれでも401（再ログイン）
func TokenVersionGuard(users repository.UserRepository, logger *zap.Logger) echo.MiddlewareFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return unauthorized(c)
			}

			user, err := users.FindByID(c.Request().Context(), id.UserID)
			if err != nil {
				if !errors.Is(err, repository.ErrNotFound) {
					logger.Warn("token check: user lookup failed", zap.Int64("user_id", id.UserID), zap.Error(err))
				}
				return unauthorized(c)
			}

			switch {
			case !user.IsActive:
				return unauthorized(c)
			case user.TokenVersion != id.TokenVersion:
				return unauthorized(c)
			case user.Role != id.Role:
				logger.Info("token role differs from profile",
					zap.Int64("user_id", id.UserID),
					zap.String("token_role", string(id.Role)),
					zap.String("profile_role", string(user.Role)),
				)
				return unauthorized(c)
			}
			return next(c)
		}
	}
}
