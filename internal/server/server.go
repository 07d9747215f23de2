package server

import (
	"context"
	"net/http"
	"time"

	"preorder/internal/config"
	"preorder/internal/handler"
	"preorder/internal/middleware"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

const shutdownGrace = 10 * time.Second

type Handlers struct {
	Orders      *handler.OrderHandler
	AdminOrders *handler.AdminOrderHandler
	Stock       *handler.StockHandler
}

// New はミドルウェアとルートを登録したechoを返す
func New(cfg config.Config, log zerolog.Logger, h Handlers) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log))
	e.Use(echo.WrapMiddleware(cors.New(cors.Options{
		AllowedOrigins: cfg.CORS.AllowOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", middleware.HeaderAdminToken},
	}).Handler))

	RegisterRoutes(e, cfg, h)
	return e
}

// Start はctxが終わるまで待ち受け、終わったら接続を閉じる
func Start(ctx context.Context, e *echo.Echo, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
