package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	otelinfra "flower-server/internal/infrastructure/observability/otel"
)

// MetricsMiddleware リクエスト数・応答時間・エラー応答数を記録する
// ルートテンプレート単位で集計する
func MetricsMiddleware(metrics *otelinfra.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			ctx := c.Request().Context()
			method, route := c.Request().Method, c.Path()

			metrics.RecordRequest(ctx, method, route)

			err := next(c)

			metrics.RecordResponseTime(ctx, method, route, time.Since(start).Seconds())

			switch status := c.Response().Status; {
			case status >= 500:
				metrics.RecordError(ctx, "server_error")
			case status >= 400:
				metrics.RecordError(ctx, "client_error")
			}
			return err
		}
	}
}
