package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"flower-server/internal/domain/catalog"
	"flower-server/internal/domain/donation"
	"flower-server/internal/domain/gift"
	"flower-server/internal/domain/ledger"
	"flower-server/internal/domain/payment"
	"flower-server/internal/domain/topup"
	"flower-server/internal/domain/withdrawal"
	otelinfra "flower-server/internal/infrastructure/observability/otel"
)

// ErrorResponse エラーレスポンス
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// errorMapping ドメインエラーとHTTPレスポンスの対応
type errorMapping struct {
	err    error
	status int
	code   string
}

// errorMappings 上から順に評価する
var errorMappings = []errorMapping{
	// 400 入力検証
	{ledger.ErrInvalidUserID, http.StatusBadRequest, "invalid_user_id"},
	{ledger.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{ledger.ErrAmountTooLarge, http.StatusBadRequest, "amount_too_large"},
	{ledger.ErrSameAccount, http.StatusBadRequest, "same_account"},
	{ledger.ErrInvalidDirection, http.StatusBadRequest, "invalid_direction"},
	{gift.ErrMessageTooLong, http.StatusBadRequest, "message_too_long"},
	{gift.ErrTransferNotFound, http.StatusNotFound, "gift_not_found"},
	{withdrawal.ErrBelowMinimum, http.StatusBadRequest, "below_minimum"},
	{withdrawal.ErrInvalidAccountNumber, http.StatusBadRequest, "invalid_account_number"},
	{withdrawal.ErrInvalidAccountName, http.StatusBadRequest, "invalid_account_name"},
	{withdrawal.ErrCashAmountTooSmall, http.StatusBadRequest, "cash_amount_too_small"},
	{withdrawal.ErrAdminNoteTooLong, http.StatusBadRequest, "admin_note_too_long"},
	{withdrawal.ErrEmptyUpdate, http.StatusBadRequest, "empty_update"},
	{topup.ErrAdminNoteTooLong, http.StatusBadRequest, "admin_note_too_long"},
	{topup.ErrEmptyUpdate, http.StatusBadRequest, "empty_update"},
	{donation.ErrInvalidDonorName, http.StatusBadRequest, "invalid_donor_name"},
	{donation.ErrMessageTooLong, http.StatusBadRequest, "message_too_long"},
	{donation.ErrAmountOutOfRange, http.StatusBadRequest, "amount_out_of_range"},

	// 403 ギフト送信が無効化されている
	{gift.ErrCapabilityDisabled, http.StatusForbidden, "gifting_disabled"},

	// 404
	{catalog.ErrGiftKindNotFound, http.StatusNotFound, "gift_kind_not_found"},
	{catalog.ErrPackageNotFound, http.StatusNotFound, "package_not_found"},
	{catalog.ErrMethodNotFound, http.StatusNotFound, "withdrawal_method_not_found"},
	{topup.ErrTopUpNotFound, http.StatusNotFound, "topup_not_found"},
	{withdrawal.ErrWithdrawalNotFound, http.StatusNotFound, "withdrawal_not_found"},
	{donation.ErrDonationNotFound, http.StatusNotFound, "donation_not_found"},

	// 409
	{ledger.ErrInsufficientBalance, http.StatusConflict, "insufficient_balance"},
	{ledger.ErrBalanceOutOfRange, http.StatusConflict, "balance_out_of_range"},
	{topup.ErrAlreadyTerminal, http.StatusConflict, "already_terminal"},
	{topup.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{withdrawal.ErrAlreadyTerminal, http.StatusConflict, "already_terminal"},
	{withdrawal.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{donation.ErrAlreadyTerminal, http.StatusConflict, "already_terminal"},

	// 502 決済ゲートウェイ
	{payment.ErrGateway, http.StatusBadGateway, "payment_gateway_error"},
}

// ErrorHandlerMiddleware エラーハンドリングミドルウェア
func ErrorHandlerMiddleware(logger *otelinfra.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}
			return handleError(c, err, logger)
		}
	}
}

// handleError エラーを処理して適切なHTTPレスポンスを返す
func handleError(c echo.Context, err error, logger *otelinfra.Logger) error {
	ctx := c.Request().Context()

	for _, m := range errorMappings {
		if !errors.Is(err, m.err) {
			continue
		}
		fields := map[string]interface{}{
			"error": err.Error(),
			"code":  m.code,
			"path":  c.Request().URL.Path,
		}
		if m.status >= http.StatusInternalServerError {
			logger.Error(ctx, "Upstream failure", err, fields)
		} else {
			logger.Warn(ctx, "Request rejected", fields)
		}
		return c.JSON(m.status, ErrorResponse{
			Error:   m.code,
			Message: m.err.Error(),
		})
	}

	// EchoのHTTPエラー
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		logger.Warn(ctx, "HTTP error", map[string]interface{}{
			"status_code": httpErr.Code,
			"message":     httpErr.Message,
		})
		message, ok := httpErr.Message.(string)
		if !ok {
			message = http.StatusText(httpErr.Code)
		}
		return c.JSON(httpErr.Code, ErrorResponse{
			Error:   http.StatusText(httpErr.Code),
			Message: message,
		})
	}

	// 予期しないエラー
	logger.Error(ctx, "Internal server error", err, map[string]interface{}{
		"path": c.Request().URL.Path,
	})
	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_server_error",
		Message: "An unexpected error occurred",
	})
}
