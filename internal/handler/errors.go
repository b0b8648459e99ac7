package handler

import (
	"net/http"

	"github.com/Israr974/BuyZaar-sub001/internal/middleware"
	"github.com/Israr974/BuyZaar-sub001/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error   string              `json:"error"`
	Kind    string              `json:"kind,omitempty"`
	Details []usecase.ItemIssue `json:"details,omitempty"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		if he.Status >= http.StatusInternalServerError {
			c.Set(middleware.CtxErrorKey, err)
		}
		return c.JSON(he.Status, ErrorResponse{Error: he.Message, Kind: string(he.Kind), Details: he.Details})
	}

	//500
	c.Set(middleware.CtxErrorKey, err)
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Kind: string(usecase.KindInternal)})
}

func getUserIDFromContext(c echo.Context) (int64, bool) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return 0, false
	}
	return id.UserID, true
}

func parseID(c echo.Context) (int64, bool) {
	var id int64
	if err := echo.PathParamsBinder(c).Int64("id", &id).BindError(); err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// page/limitのクエリ。未指定は0（usecase側で既定値）
func parsePage(c echo.Context) (page int, limit int, ok bool) {
	err := echo.QueryParamsBinder(c).
		Int("page", &page).
		Int("limit", &limit).
		BindError()
	return page, limit, err == nil
}
