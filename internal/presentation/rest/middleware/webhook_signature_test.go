package middleware

import (
	"encoding/hex"
	"io"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookSignatureMiddleware(t *testing.T) {
	const secret = "whsec_test"
	body := `{"invoice_id":"inv-1","status":"paid"}`
	valid := hex.EncodeToString(Sign(secret, []byte(body)))

	tests := []struct {
		name       string
		secret     string
		signature  string
		body       string
		wantStatus int
	}{
		{name: "正常系: 正しい署名", secret: secret, signature: valid, body: body, wantStatus: http.StatusOK},
		{name: "異常系: 署名なし", secret: secret, signature: "", body: body, wantStatus: http.StatusUnauthorized},
		{name: "異常系: 本文の改ざん", secret: secret, signature: valid, body: `{"invoice_id":"inv-2","status":"paid"}`, wantStatus: http.StatusUnauthorized},
		{name: "異常系: 16進数でない署名", secret: secret, signature: "zz", body: body, wantStatus: http.StatusUnauthorized},
		{name: "異常系: シークレット未設定", secret: "", signature: valid, body: body, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newContext(http.MethodPost, "/api/v1/webhooks/payments", tt.body)
			if tt.signature != "" {
				c.Request().Header.Set(SignatureHeader, tt.signature)
			}

			var seen string
			handler := WebhookSignatureMiddleware(tt.secret, newTestLogger())(func(c echo.Context) error {
				b, err := io.ReadAll(c.Request().Body)
				if err != nil {
					return err
				}
				seen = string(b)
				return c.NoContent(http.StatusOK)
			})

			require.NoError(t, handler(c))
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.body, seen)
			}
		})
	}
}
