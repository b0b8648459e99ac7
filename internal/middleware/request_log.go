package middleware

import (
	"time"

	"github.com/Israr974/BuyZaar-sub001/internal/metrics"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	CtxRequestIDKey = "request_id"
	// handlerが500を返すときに原因を入れる
	CtxErrorKey = "handler_error"

	requestIDHeader = "X-Request-ID"
)

// RequestLog assigns a request id, records route metrics and logs every
// request; 5xx responses are logged at error level with the cause.
func RequestLog(logger *zap.Logger, m *metrics.HTTPMetrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			rid := c.Request().Header.Get(requestIDHeader)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Set(CtxRequestIDKey, rid)
			c.Response().Header().Set(requestIDHeader, rid)

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			route := c.Path()
			elapsed := time.Since(start)
			if m != nil {
				m.Requests.WithLabelValues(route, statusClass(status)).Inc()
				m.LatencyMS.WithLabelValues(route).Observe(float64(elapsed.Milliseconds()))
			}

			fields := []zap.Field{
				zap.String("request_id", rid),
				zap.String("method", c.Request().Method),
				zap.String("route", route),
				zap.Int("status", status),
				zap.Duration("latency", elapsed),
			}
			if id, ok := IdentityFrom(c); ok {
				fields = append(fields, zap.Int64("user_id", id.UserID), zap.String("role", string(id.Role)))
			}
			if status >= 500 {
				if cause, ok := c.Get(CtxErrorKey).(error); ok {
					fields = append(fields, zap.Error(cause))
				}
				logger.Error("request failed", fields...)
			} else {
				logger.Info("request", fields...)
			}
			return nil
		}
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
