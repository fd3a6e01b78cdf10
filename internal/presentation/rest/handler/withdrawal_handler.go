package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	withdrawalapp "flower-server/internal/application/withdrawal"
	restmiddleware "flower-server/internal/presentation/rest/middleware"
)

// WithdrawalHandler 出金関連ハンドラー
type WithdrawalHandler struct {
	withdrawalService *withdrawalapp.WithdrawalApplicationService
}

// NewWithdrawalHandler 新しいWithdrawalHandlerを作成
func NewWithdrawalHandler(withdrawalService *withdrawalapp.WithdrawalApplicationService) *WithdrawalHandler {
	return &WithdrawalHandler{
		withdrawalService: withdrawalService,
	}
}

// Create 出金リクエスト作成ハンドラー
// @Summary 出金をリクエスト
// @Description 指定されたフラワーを残高から確保し、出金リクエストを作成します
// @Tags withdrawals
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body CreateWithdrawalRequest true "出金リクエスト"
// @Success 201 {object} WithdrawalItem "作成成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Failure 404 {object} ErrorResponse "出金方法が存在しない"
// @Failure 409 {object} ErrorResponse "残高不足"
// @Router /withdrawals [post]
func (h *WithdrawalHandler) Create(c echo.Context) error {
	userID := restmiddleware.UserID(c)
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "user_id not found in token")
	}

	var body CreateWithdrawalRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.withdrawalService.Create(c.Request().Context(), &withdrawalapp.CreateWithdrawalRequest{
		UserID:        userID,
		MethodID:      body.MethodID,
		AccountNumber: body.AccountNumber,
		AccountName:   body.AccountName,
		FlowersAmount: body.FlowersAmount,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, toWithdrawalItem(resp))
}

// ListMine 出金リクエスト一覧ハンドラー（ユーザーAPI用）
// @Summary 自分の出金リクエスト一覧を取得
// @Tags withdrawals
// @Produce json
// @Security Bearer
// @Param limit query int false "取得件数（デフォルト: 50, 最大: 100)" default(50)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {object} WithdrawalListResponse "取得成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /withdrawals [get]
func (h *WithdrawalHandler) ListMine(c echo.Context) error {
	userID := restmiddleware.UserID(c)
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "user_id not found in token")
	}

	limit, offset, err := parsePage(c)
	if err != nil {
		return err
	}

	resp, err := h.withdrawalService.ListMine(c.Request().Context(), &withdrawalapp.ListMineRequest{
		UserID: userID,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toWithdrawalList(resp))
}

// ListPending 未完了出金一覧ハンドラー（管理API用）
// @Summary 未完了（pending/approved）の出金一覧を取得（管理API）
// @Tags admin
// @Produce json
// @Param X-API-Key header string true "APIキー"
// @Param limit query int false "取得件数（デフォルト: 50, 最大: 100)" default(50)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {object} WithdrawalListResponse "取得成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /admin/withdrawals/pending [get]
func (h *WithdrawalHandler) ListPending(c echo.Context) error {
	limit, offset, err := parsePage(c)
	if err != nil {
		return err
	}

	resp, err := h.withdrawalService.ListPending(c.Request().Context(), &withdrawalapp.ListPendingRequest{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toWithdrawalList(resp))
}

// AdminUpdate 出金更新ハンドラー（管理API用）
// @Summary 出金を承認・支払済み・却下に更新（管理API）
// @Description rejectedを指定すると確保していたフラワーを一度だけ返金します
// @Tags admin
// @Accept json
// @Produce json
// @Param X-API-Key header string true "APIキー"
// @Param id path string true "出金リクエストID"
// @Param request body AdminUpdateWithdrawalRequest true "更新内容"
// @Success 200 {object} WithdrawalItem "更新成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Failure 404 {object} ErrorResponse "出金リクエストが存在しない"
// @Failure 409 {object} ErrorResponse "既に処理済み、または許可されない遷移"
// @Router /admin/withdrawals/{id} [patch]
func (h *WithdrawalHandler) AdminUpdate(c echo.Context) error {
	var body AdminUpdateWithdrawalRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.withdrawalService.AdminUpdate(c.Request().Context(), &withdrawalapp.AdminUpdateRequest{
		RequestID: c.Param("id"),
		Status:    body.Status,
		AdminNote: body.AdminNote,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toWithdrawalItem(resp))
}

func toWithdrawalItem(w *withdrawalapp.WithdrawalResponse) WithdrawalItem {
	return WithdrawalItem{
		ID:            w.ID,
		UserID:        w.UserID,
		MethodID:      w.MethodID,
		AccountNumber: w.AccountNumber,
		AccountName:   w.AccountName,
		FlowersAmount: w.FlowersAmount,
		CashAmount:    w.CashAmount,
		Status:        w.Status,
		AdminNote:     w.AdminNote,
		CreatedAt:     formatTime(w.CreatedAt),
		UpdatedAt:     formatTime(w.UpdatedAt),
	}
}

func toWithdrawalList(resp *withdrawalapp.ListResponse) WithdrawalListResponse {
	items := make([]WithdrawalItem, len(resp.Withdrawals))
	for i, w := range resp.Withdrawals {
		items[i] = toWithdrawalItem(w)
	}
	return WithdrawalListResponse{
		Withdrawals: items,
		Limit:       resp.Limit,
		Offset:      resp.Offset,
	}
}
