package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	donationapp "flower-server/internal/application/donation"
	topupapp "flower-server/internal/application/topup"
	"flower-server/internal/domain/topup"
	"flower-server/internal/infrastructure/gateway/qrpay"
)

// WebhookHandler 決済ゲートウェイ通知ハンドラー
type WebhookHandler struct {
	topUpService    *topupapp.TopUpApplicationService
	donationService *donationapp.DonationApplicationService
}

// NewWebhookHandler 新しいWebhookHandlerを作成
func NewWebhookHandler(topUpService *topupapp.TopUpApplicationService, donationService *donationapp.DonationApplicationService) *WebhookHandler {
	return &WebhookHandler{
		topUpService:    topUpService,
		donationService: donationService,
	}
}

// HandlePayment 決済通知ハンドラー
// @Summary 決済ゲートウェイの通知を受け取る
// @Description 請求IDに対応するチャージまたは寄付に支払い状況を反映します。同じ通知を複数回受け取っても付与は一度だけです
// @Tags webhooks
// @Accept json
// @Produce json
// @Param X-Callback-Signature header string true "本文のHMAC-SHA256（16進）"
// @Param request body PaymentWebhookRequest true "決済通知"
// @Success 200 {object} PaymentWebhookResponse "処理成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "署名エラー"
// @Failure 404 {object} ErrorResponse "請求IDが存在しない"
// @Router /webhooks/payments [post]
func (h *WebhookHandler) HandlePayment(c echo.Context) error {
	var body PaymentWebhookRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if body.InvoiceID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "invoice_id is required")
	}

	report, err := qrpay.ParseStatus(body.InvoiceID, body.Status, body.PaidAt)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()

	topUpResp, err := h.topUpService.HandleWebhook(ctx, &topupapp.WebhookRequest{
		InvoiceID: report.InvoiceID,
		Status:    report.Status,
		PaidAt:    report.PaidAt,
	})
	if err == nil {
		return c.JSON(http.StatusOK, PaymentWebhookResponse{
			Kind:    "topup",
			ID:      topUpResp.RequestID,
			Status:  topUpResp.Status,
			Changed: topUpResp.Confirmed,
		})
	}
	if !errors.Is(err, topup.ErrTopUpNotFound) {
		return err
	}

	// チャージに該当しない請求は寄付として扱う（どちらにもなければ404）
	donationResp, err := h.donationService.HandleWebhook(ctx, &donationapp.WebhookRequest{
		InvoiceID: report.InvoiceID,
		Status:    report.Status,
		PaidAt:    report.PaidAt,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, PaymentWebhookResponse{
		Kind:    "donation",
		ID:      donationResp.DonationID,
		Status:  donationResp.Status,
		Changed: donationResp.Changed,
	})
}
