package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	otelinfra "flower-server/internal/infrastructure/observability/otel"
)

// UserIDKey 認証済みユーザーIDを保持するコンテキストキー
const UserIDKey = "user_id"

// TokenVerifier トークンを検証しユーザーIDを返す
type TokenVerifier interface {
	VerifyToken(tokenString string) (string, error)
}

// AuthMiddleware JWT認証ミドルウェア
func AuthMiddleware(verifier TokenVerifier, logger *otelinfra.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				logger.Warn(ctx, "Missing authorization header", nil)
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "unauthorized",
					Message: "Missing authorization header",
				})
			}

			scheme, tokenString, ok := strings.Cut(authHeader, " ")
			if !ok || scheme != "Bearer" || tokenString == "" {
				logger.Warn(ctx, "Invalid authorization header format", nil)
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "unauthorized",
					Message: "Invalid authorization header format",
				})
			}

			userID, err := verifier.VerifyToken(tokenString)
			if err != nil {
				logger.Warn(ctx, "Invalid token", map[string]interface{}{
					"error": err.Error(),
				})
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "unauthorized",
					Message: "Invalid or expired token",
				})
			}

			c.Set(UserIDKey, userID)
			return next(c)
		}
	}
}

// UserID 認証済みユーザーIDを取得
func UserID(c echo.Context) string {
	userID, _ := c.Get(UserIDKey).(string)
	return userID
}
