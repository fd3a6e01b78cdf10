package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	goredis "flower-server/internal/infrastructure/cache/redis"
	otelinfra "flower-server/internal/infrastructure/observability/otel"
)

// RateLimiter 固定ウィンドウのレート制限
type RateLimiter interface {
	Allow(ctx context.Context, scope, subject string, limit int, window time.Duration) (goredis.Decision, error)
}

// RateLimitMiddleware クライアントIP単位でリクエスト数を制限する
// limiterがnilまたは上限が0以下の場合は制限しない。Redis障害時は通過させる
func RateLimitMiddleware(limiter RateLimiter, scope string, limit int, window time.Duration, logger *otelinfra.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if limiter == nil || limit <= 0 {
			return next
		}
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			subject := c.RealIP()

			decision, err := limiter.Allow(ctx, scope, subject, limit, window)
			if err != nil {
				logger.Warn(ctx, "Rate limiter unavailable", map[string]interface{}{
					"scope": scope,
					"error": err.Error(),
				})
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(max(decision.Limit-decision.Count, 0)))

			if !decision.Allowed {
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(decision.RetryAfter.Seconds()))))
				logger.Warn(ctx, "Rate limit exceeded", map[string]interface{}{
					"scope":   scope,
					"subject": subject,
					"count":   decision.Count,
				})
				return c.JSON(http.StatusTooManyRequests, ErrorResponse{
					Error:   "rate_limited",
					Message: "Too many requests",
				})
			}
			return next(c)
		}
	}
}
