package handler

import (
	"net/http"
	"strconv"

	"github.com/Israr974/BuyZaar-sub001/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AdminAuditHandler struct {
	uc *usecase.AuditLogUsecase
}

func NewAdminAuditHandler(uc *usecase.AuditLogUsecase) *AdminAuditHandler {
	return &AdminAuditHandler{uc: uc}
}

func (h *AdminAuditHandler) RegisterRoutes(admin *echo.Group) {
	admin.GET("/audit-logs", h.list)
}

func (h *AdminAuditHandler) list(c echo.Context) error {
	var in usecase.AuditLogListInput

	//数値のクエリ
	err := echo.QueryParamsBinder(c).
		Int("limit", &in.Limit).
		Int("offset", &in.Offset).
		BindError()
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid query"})
	}
	if v := c.QueryParam("actor_user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid actor_user_id"})
		}
		in.ActorUserID = &id
	}
	if v := c.QueryParam("resource_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid resource_id"})
		}
		in.ResourceID = &id
	}
	in.Action = c.QueryParam("action")
	in.ResourceType = c.QueryParam("resource_type")

	if in.From, err = usecase.ParseDateTimeRFC3339(c.QueryParam("from")); err != nil {
		return writeError(c, err)
	}
	if in.To, err = usecase.ParseDateTimeRFC3339(c.QueryParam("to")); err != nil {
		return writeError(c, err)
	}

	logs, err := h.uc.List(c.Request().Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"audit_logs": logs})
}
