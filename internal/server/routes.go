package server

import (
	"preorder/internal/config"
	"preorder/internal/middleware"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo, cfg config.Config, h Handlers) {
	api := e.Group("/api")

	h.Orders.RegisterRoutes(api)
	h.Stock.RegisterRoutes(api)
	h.AdminOrders.RegisterRoutes(api, middleware.NewOperatorCredentials(cfg.Operator))
}
