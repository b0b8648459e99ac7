package handler

import (
	"net/http"

	"github.com/Israr974/BuyZaar-sub001/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 管理者の在庫調整（相対値）
type AdminInventoryHandler struct {
	inventory *usecase.InventoryAdjuster
}

func NewAdminInventoryHandler(inventory *usecase.InventoryAdjuster) *AdminInventoryHandler {
	return &AdminInventoryHandler{inventory: inventory}
}

func (h *AdminInventoryHandler) RegisterRoutes(admin *echo.Group) {
	admin.PUT("/inventory/:id", h.adjust)
}

func (h *AdminInventoryHandler) adjust(c echo.Context) error {
	productID, ok := parseID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var req usecase.StockAdjustInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.inventory.Adjust(c.Request().Context(), adminID, productID, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
