package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flower-server/internal/domain/catalog"
	"flower-server/internal/domain/donation"
	"flower-server/internal/domain/gift"
	"flower-server/internal/domain/ledger"
	"flower-server/internal/domain/payment"
	"flower-server/internal/domain/topup"
	"flower-server/internal/domain/withdrawal"
)

func TestErrorHandlerMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "正常系: エラーなし", err: nil, wantStatus: http.StatusOK},
		{name: "異常系: 残高不足は409", err: ledger.ErrInsufficientBalance, wantStatus: http.StatusConflict, wantCode: "insufficient_balance"},
		{name: "異常系: ラップされた残高不足も409", err: fmt.Errorf("hold: %w", ledger.ErrInsufficientBalance), wantStatus: http.StatusConflict, wantCode: "insufficient_balance"},
		{name: "異常系: 自分宛ては400", err: ledger.ErrSameAccount, wantStatus: http.StatusBadRequest, wantCode: "same_account"},
		{name: "異常系: ギフト無効化は403", err: gift.ErrCapabilityDisabled, wantStatus: http.StatusForbidden, wantCode: "gifting_disabled"},
		{name: "異常系: ギフト種別なしは404", err: catalog.ErrGiftKindNotFound, wantStatus: http.StatusNotFound, wantCode: "gift_kind_not_found"},
		{name: "異常系: チャージなしは404", err: topup.ErrTopUpNotFound, wantStatus: http.StatusNotFound, wantCode: "topup_not_found"},
		{name: "異常系: 寄付なしは404", err: donation.ErrDonationNotFound, wantStatus: http.StatusNotFound, wantCode: "donation_not_found"},
		{name: "異常系: 終端済みは409", err: withdrawal.ErrAlreadyTerminal, wantStatus: http.StatusConflict, wantCode: "already_terminal"},
		{name: "異常系: 不正な遷移は409", err: topup.ErrInvalidTransition, wantStatus: http.StatusConflict, wantCode: "invalid_transition"},
		{name: "異常系: 空の更新は400", err: withdrawal.ErrEmptyUpdate, wantStatus: http.StatusBadRequest, wantCode: "empty_update"},
		{name: "異常系: 最低出金額未満は400", err: withdrawal.ErrBelowMinimum, wantStatus: http.StatusBadRequest, wantCode: "below_minimum"},
		{
			name:       "異常系: ゲートウェイ障害は502",
			err:        &payment.GatewayError{Op: "check_status", StatusCode: 503, Err: errors.New("unavailable")},
			wantStatus: http.StatusBadGateway,
			wantCode:   "payment_gateway_error",
		},
		{name: "異常系: EchoのHTTPエラー", err: echo.NewHTTPError(http.StatusBadRequest, "bad json"), wantStatus: http.StatusBadRequest, wantCode: "Bad Request"},
		{name: "異常系: 予期しないエラーは500", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCode: "internal_server_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newContext(http.MethodGet, "/api/v1/me/balance", "")
			handler := ErrorHandlerMiddleware(newTestLogger())(func(c echo.Context) error {
				if tt.err != nil {
					return tt.err
				}
				return c.String(http.StatusOK, "ok")
			})

			require.NoError(t, handler(c))
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode == "" {
				return
			}
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Error)
		})
	}
}

func TestErrorHandlerMiddleware_DoesNotLeakInternalMessage(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/", "")
	handler := ErrorHandlerMiddleware(newTestLogger())(func(c echo.Context) error {
		return errors.New("dial tcp 10.0.0.5:3306: connection refused")
	})

	require.NoError(t, handler(c))
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}
