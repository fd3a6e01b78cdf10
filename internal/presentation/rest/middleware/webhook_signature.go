package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	otelinfra "flower-server/internal/infrastructure/observability/otel"
)

// SignatureHeader ゲートウェイが本文の署名を載せるヘッダー
const SignatureHeader = "X-Callback-Signature"

// maxWebhookBody 受け付ける通知本文の上限
const maxWebhookBody = 64 << 10

// WebhookSignatureMiddleware 本文のHMAC-SHA256署名を検証する
// 検証後の本文はハンドラーが再度読めるように差し戻す
func WebhookSignatureMiddleware(secret string, logger *otelinfra.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			if secret == "" {
				logger.Warn(ctx, "Webhook secret not configured; rejecting callback", nil)
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "unauthorized",
					Message: "Webhook verification unavailable",
				})
			}

			body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody+1))
			if err != nil || len(body) > maxWebhookBody {
				return c.JSON(http.StatusBadRequest, ErrorResponse{
					Error:   "invalid_body",
					Message: "Unreadable or oversized callback body",
				})
			}

			signature, err := hex.DecodeString(c.Request().Header.Get(SignatureHeader))
			if err != nil || !hmac.Equal(signature, Sign(secret, body)) {
				logger.Warn(ctx, "Invalid webhook signature", map[string]interface{}{
					"remote_ip": c.RealIP(),
				})
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "unauthorized",
					Message: "Invalid callback signature",
				})
			}

			c.Request().Body = io.NopCloser(bytes.NewReader(body))
			return next(c)
		}
	}
}

// Sign 本文のHMAC-SHA256を計算する
func Sign(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}
