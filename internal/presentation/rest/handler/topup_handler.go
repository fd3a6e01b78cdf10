package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	topupapp "flower-server/internal/application/topup"
	restmiddleware "flower-server/internal/presentation/rest/middleware"
)

// TopUpHandler チャージ関連ハンドラー
type TopUpHandler struct {
	topUpService *topupapp.TopUpApplicationService
}

// NewTopUpHandler 新しいTopUpHandlerを作成
func NewTopUpHandler(topUpService *topupapp.TopUpApplicationService) *TopUpHandler {
	return &TopUpHandler{
		topUpService: topUpService,
	}
}

// Create チャージ作成ハンドラー
// @Summary チャージを作成
// @Description パッケージを指定してチャージリクエストを作成し、QR決済の請求を発行します
// @Tags topups
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body CreateTopUpRequest true "チャージ作成リクエスト"
// @Success 201 {object} CreateTopUpResponse "作成成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Failure 404 {object} ErrorResponse "パッケージが存在しない"
// @Router /topups [post]
func (h *TopUpHandler) Create(c echo.Context) error {
	userID := restmiddleware.UserID(c)
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "user_id not found in token")
	}

	var body CreateTopUpRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if body.PackageID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "package_id is required")
	}

	resp, err := h.topUpService.Create(c.Request().Context(), &topupapp.CreateTopUpRequest{
		UserID:    userID,
		PackageID: body.PackageID,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, CreateTopUpResponse{
		TopUp:           toTopUpItem(resp.TopUp),
		GatewayDegraded: resp.GatewayDegraded,
	})
}

// CheckStatus 支払い状況確認ハンドラー
// @Summary チャージの支払い状況を確認
// @Description ゲートウェイに支払い状況を問い合わせ、支払い済みであればフラワーを付与します
// @Tags topups
// @Produce json
// @Security Bearer
// @Param id path string true "チャージリクエストID"
// @Success 200 {object} TopUpStatusResponse "確認成功"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Failure 404 {object} ErrorResponse "チャージリクエストが存在しない"
// @Failure 502 {object} ErrorResponse "ゲートウェイエラー"
// @Router /topups/{id}/status [get]
func (h *TopUpHandler) CheckStatus(c echo.Context) error {
	userID := restmiddleware.UserID(c)
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "user_id not found in token")
	}

	resp, err := h.topUpService.CheckStatus(c.Request().Context(), &topupapp.CheckStatusRequest{
		UserID:    userID,
		RequestID: c.Param("id"),
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, TopUpStatusResponse{
		TopUp:         toTopUpItem(resp.TopUp),
		PaymentStatus: resp.PaymentStatus,
		Expired:       resp.Expired,
	})
}

// ListPending 未処理チャージ一覧ハンドラー（管理API用）
// @Summary 未処理のチャージ一覧を取得（管理API）
// @Tags admin
// @Produce json
// @Param X-API-Key header string true "APIキー"
// @Param limit query int false "取得件数（デフォルト: 50, 最大: 100)" default(50)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {object} TopUpListResponse "取得成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /admin/topups/pending [get]
func (h *TopUpHandler) ListPending(c echo.Context) error {
	limit, offset, err := parsePage(c)
	if err != nil {
		return err
	}

	resp, err := h.topUpService.ListPending(c.Request().Context(), &topupapp.ListPendingRequest{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return err
	}

	items := make([]TopUpItem, len(resp.TopUps))
	for i, t := range resp.TopUps {
		items[i] = toTopUpItem(t)
	}

	return c.JSON(http.StatusOK, TopUpListResponse{
		TopUps: items,
		Limit:  resp.Limit,
		Offset: resp.Offset,
	})
}

// AdminUpdate チャージ更新ハンドラー（管理API用）
// @Summary チャージを確認・却下（管理API）
// @Description statusにconfirmedを指定するとフラワーを付与し、rejectedは台帳を変更せずに却下します。admin_noteのみの更新も可能です
// @Tags admin
// @Accept json
// @Produce json
// @Param X-API-Key header string true "APIキー"
// @Param id path string true "チャージリクエストID"
// @Param request body AdminUpdateTopUpRequest true "更新内容"
// @Success 200 {object} TopUpItem "更新成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Failure 404 {object} ErrorResponse "チャージリクエストが存在しない"
// @Failure 409 {object} ErrorResponse "既に処理済み"
// @Router /admin/topups/{id} [patch]
func (h *TopUpHandler) AdminUpdate(c echo.Context) error {
	var body AdminUpdateTopUpRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.topUpService.AdminUpdate(c.Request().Context(), &topupapp.AdminUpdateRequest{
		RequestID: c.Param("id"),
		Status:    body.Status,
		AdminNote: body.AdminNote,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toTopUpItem(resp))
}

func toTopUpItem(t *topupapp.TopUpResponse) TopUpItem {
	return TopUpItem{
		ID:            t.ID,
		UserID:        t.UserID,
		PackageID:     t.PackageID,
		FlowersAmount: t.FlowersAmount,
		PriceAmount:   t.PriceAmount,
		Status:        t.Status,
		InvoiceID:     t.InvoiceID,
		PaymentURL:    t.PaymentURL,
		FinalAmount:   t.FinalAmount,
		ExpiresAt:     formatTimePtr(t.ExpiresAt),
		AdminNote:     t.AdminNote,
		CreatedAt:     formatTime(t.CreatedAt),
		UpdatedAt:     formatTime(t.UpdatedAt),
	}
}
