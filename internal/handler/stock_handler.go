package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"preorder/internal/stock"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const stockEventName = "stock"

// 残数のServer-Sent Events配信
type StockHandler struct {
	broadcaster *stock.Broadcaster
	keepalive   time.Duration
}

func NewStockHandler(b *stock.Broadcaster, keepalive time.Duration) *StockHandler {
	return &StockHandler{broadcaster: b, keepalive: keepalive}
}

func (h *StockHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/stock-stream", h.stream)
}

func (h *StockHandler) stream(c echo.Context) error {
	ctx := c.Request().Context()
	log := zerolog.Ctx(ctx)

	sub, err := h.broadcaster.Subscribe(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("stock subscribe failed")
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "stream unavailable"})
	}
	defer h.broadcaster.Unsubscribe(sub)

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	var tick <-chan time.Time
	if h.keepalive > 0 {
		t := time.NewTicker(h.keepalive)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			// 切断
			return nil
		case snap, ok := <-sub.C():
			if !ok {
				return nil
			}
			if err := writeStockEvent(res, snap); err != nil {
				log.Debug().Err(err).Msg("stock stream write failed")
				return nil
			}
		case <-tick:
			if _, err := fmt.Fprint(res, ": keepalive\n\n"); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}

func writeStockEvent(res *echo.Response, snap stock.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", stockEventName, payload); err != nil {
		return err
	}
	res.Flush()
	return nil
}
