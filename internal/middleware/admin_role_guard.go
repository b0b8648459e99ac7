package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// /admin配下はADMINのみ（USERは403）
func AdminRoleGuard() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return unauthorized(c)
			}
			if !id.IsAdmin() {
				return c.JSON(http.StatusForbidden, errorResponse{Error: "admin only"})
			}
			return next(c)
		}
	}
}
