package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const (
	CtxRequestIDKey = "request_id"

	HeaderRequestID = "X-Request-Id"
)

// RequestLogger はリクエストIDを振り、開始/完了をログに出す。
// usecase からは zerolog.Ctx(ctx) でこのロガーを使う。
func RequestLogger(base zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			requestID := req.Header.Get(HeaderRequestID)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			c.Set(CtxRequestIDKey, requestID)
			c.Response().Header().Set(HeaderRequestID, requestID)

			l := base.With().
				Str("request_id", requestID).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Str("client_ip", c.RealIP()).
				Logger()
			c.SetRequest(req.WithContext(l.WithContext(req.Context())))

			l.Debug().Msg("request started")

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			var ev *zerolog.Event
			switch {
			case status >= 500:
				ev = l.Error()
			case status >= 400:
				ev = l.Warn()
			default:
				ev = l.Info()
			}
			if err != nil {
				ev = ev.Err(err)
			}
			ev.Int("status", status).
				Dur("duration", time.Since(start)).
				Int64("response_size", c.Response().Size).
				Msg("request completed")
			return nil
		}
	}
}
