package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	historyapp "flower-server/internal/application/history"
	restmiddleware "flower-server/internal/presentation/rest/middleware"
)

// HistoryHandler 残高・台帳履歴ハンドラー
type HistoryHandler struct {
	historyService *historyapp.HistoryApplicationService
}

// NewHistoryHandler 新しいHistoryHandlerを作成
func NewHistoryHandler(historyService *historyapp.HistoryApplicationService) *HistoryHandler {
	return &HistoryHandler{
		historyService: historyService,
	}
}

// GetBalance 残高取得ハンドラー
// @Summary 残高を取得
// @Description 自分のフラワー残高を取得します。口座が未作成の場合は0を返します
// @Tags ledger
// @Produce json
// @Security Bearer
// @Success 200 {object} BalanceResponse "残高取得成功"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /me/balance [get]
func (h *HistoryHandler) GetBalance(c echo.Context) error {
	userID := restmiddleware.UserID(c)
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "user_id not found in token")
	}

	resp, err := h.historyService.GetBalance(c.Request().Context(), userID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, BalanceResponse{
		UserID:  resp.UserID,
		Balance: resp.Balance,
	})
}

// GetLedger 台帳履歴取得ハンドラー（ユーザーAPI用）
// @Summary 台帳履歴を取得
// @Description 自分の台帳エントリを新しい順に取得します
// @Tags ledger
// @Produce json
// @Security Bearer
// @Param limit query int false "取得件数（デフォルト: 50, 最大: 100)" default(50)
// @Param offset query int false "オフセット" default(0)
// @Param direction query string false "方向でフィルタ（credit/debit）" example(debit)
// @Success 200 {object} LedgerResponse "履歴取得成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /me/ledger [get]
func (h *HistoryHandler) GetLedger(c echo.Context) error {
	userID := restmiddleware.UserID(c)
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "user_id not found in token")
	}
	return h.getLedger(c, userID)
}

// GetLedgerAdmin 台帳履歴取得ハンドラー（管理API用）
// @Summary 台帳履歴を取得（管理API）
// @Description 指定されたユーザーの台帳エントリを新しい順に取得します
// @Tags admin
// @Produce json
// @Param user_id path string true "ユーザーID" example(user123)
// @Param X-API-Key header string true "APIキー"
// @Param limit query int false "取得件数（デフォルト: 50, 最大: 100)" default(50)
// @Param offset query int false "オフセット" default(0)
// @Param direction query string false "方向でフィルタ（credit/debit）" example(credit)
// @Success 200 {object} LedgerResponse "履歴取得成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /admin/users/{user_id}/ledger [get]
func (h *HistoryHandler) GetLedgerAdmin(c echo.Context) error {
	userID := c.Param("user_id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}
	return h.getLedger(c, userID)
}

func (h *HistoryHandler) getLedger(c echo.Context, userID string) error {
	limit, offset, err := parsePage(c)
	if err != nil {
		return err
	}

	resp, err := h.historyService.GetLedger(c.Request().Context(), &historyapp.GetLedgerRequest{
		UserID:    userID,
		Limit:     limit,
		Offset:    offset,
		Direction: c.QueryParam("direction"),
	})
	if err != nil {
		return err
	}

	entries := make([]LedgerEntryItem, len(resp.Entries))
	for i, e := range resp.Entries {
		entries[i] = LedgerEntryItem{
			EntryID:      e.EntryID(),
			Direction:    e.Direction().String(),
			Amount:       e.Amount(),
			Reason:       e.Reason().String(),
			ReferenceID:  e.ReferenceID(),
			BalanceAfter: e.BalanceAfter(),
			CreatedAt:    formatTime(e.CreatedAt()),
		}
	}

	return c.JSON(http.StatusOK, LedgerResponse{
		Entries: entries,
		Total:   resp.Total,
		Limit:   resp.Limit,
		Offset:  resp.Offset,
	})
}
