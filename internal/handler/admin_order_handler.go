package handler

import (
	"net/http"
	"strconv"

	"preorder/internal/middleware"
	"preorder/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AdminOrderHandler struct {
	uc *usecase.AdminOrderUsecase
}

func NewAdminOrderHandler(uc *usecase.AdminOrderUsecase) *AdminOrderHandler {
	return &AdminOrderHandler{uc: uc}
}

func (h *AdminOrderHandler) RegisterRoutes(g *echo.Group, creds middleware.OperatorCredentials) {
	auth := middleware.OperatorAuth(creds)

	g.GET("/orders", h.list, auth)
	g.GET("/admin/orders", h.list, auth)
	g.GET("/admin/orders/:id/audit-logs", h.auditLogs, auth)

	g.POST("/orders/:id/mark-paid", h.apply(usecase.ActionMarkPaid), auth)
	g.POST("/orders/:id/mark-pending", h.apply(usecase.ActionMarkPending), auth)
	g.POST("/orders/:id/mark-picked-up", h.apply(usecase.ActionMarkPickedUp), auth)
	g.POST("/orders/:id/mark-not-picked-up", h.apply(usecase.ActionMarkNotPickedUp), auth)
	g.DELETE("/orders/:id", h.delete, auth)
}

func (h *AdminOrderHandler) list(c echo.Context) error {
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 1 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
		}
		limit = l
	}

	out, err := h.uc.ListRecent(c.Request().Context(), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminOrderHandler) apply(action usecase.OperatorAction) echo.HandlerFunc {
	return func(c echo.Context) error {
		orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
		}

		// 操作した運営者（監査ログ用）
		actor, ok := middleware.OperatorFromContext(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		}

		if err := h.uc.Apply(c.Request().Context(), actor, orderID, action); err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, OKResponse{OK: true})
	}
}

func (h *AdminOrderHandler) delete(c echo.Context) error {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	actor, ok := middleware.OperatorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	if err := h.uc.Delete(c.Request().Context(), actor, orderID); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, OKResponse{OK: true})
}

func (h *AdminOrderHandler) auditLogs(c echo.Context) error {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
		}
		limit = l
	}

	out, err := h.uc.AuditTrail(c.Request().Context(), orderID, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
