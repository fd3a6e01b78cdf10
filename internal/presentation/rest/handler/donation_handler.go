package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	donationapp "flower-server/internal/application/donation"
)

// DonationHandler 寄付関連ハンドラー
type DonationHandler struct {
	donationService *donationapp.DonationApplicationService
}

// NewDonationHandler 新しいDonationHandlerを作成
func NewDonationHandler(donationService *donationapp.DonationApplicationService) *DonationHandler {
	return &DonationHandler{
		donationService: donationService,
	}
}

// Create 寄付作成ハンドラー
// @Summary 寄付を作成
// @Description 寄付を作成しQR決済の請求を発行します。ゲートウェイが利用できない場合は作成されません
// @Tags donations
// @Accept json
// @Produce json
// @Param request body CreateDonationRequest true "寄付作成リクエスト"
// @Success 201 {object} DonationItem "作成成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 429 {object} ErrorResponse "リクエスト過多"
// @Failure 502 {object} ErrorResponse "ゲートウェイエラー"
// @Router /donations [post]
func (h *DonationHandler) Create(c echo.Context) error {
	var body CreateDonationRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.donationService.Create(c.Request().Context(), &donationapp.CreateDonationRequest{
		DonorName: body.DonorName,
		Message:   body.Message,
		Amount:    body.Amount,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, toDonationItem(resp))
}

// CheckStatus 寄付の支払い状況確認ハンドラー
// @Summary 寄付の支払い状況を確認
// @Tags donations
// @Produce json
// @Param id path string true "寄付ID"
// @Success 200 {object} DonationStatusResponse "確認成功"
// @Failure 404 {object} ErrorResponse "寄付が存在しない"
// @Failure 429 {object} ErrorResponse "リクエスト過多"
// @Failure 502 {object} ErrorResponse "ゲートウェイエラー"
// @Router /donations/{id}/status [get]
func (h *DonationHandler) CheckStatus(c echo.Context) error {
	resp, err := h.donationService.CheckStatus(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, DonationStatusResponse{
		Donation:      toDonationItem(resp.Donation),
		PaymentStatus: resp.PaymentStatus,
		Expired:       resp.Expired,
	})
}

// ListRecent 最近の寄付一覧ハンドラー
// @Summary 支払い済みの寄付を新しい順に取得
// @Tags donations
// @Produce json
// @Param limit query int false "取得件数（デフォルト: 20, 最大: 100)" default(20)
// @Success 200 {object} RecentDonationsResponse "取得成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Router /donations/recent [get]
func (h *DonationHandler) ListRecent(c echo.Context) error {
	limit := 0
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		var err error
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > maxLimit {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit parameter")
		}
	}

	donations, err := h.donationService.ListRecent(c.Request().Context(), limit)
	if err != nil {
		return err
	}

	items := make([]PublicDonationItem, len(donations))
	for i, d := range donations {
		items[i] = PublicDonationItem{
			ID:        d.ID,
			DonorName: d.DonorName,
			Message:   d.Message,
			Amount:    d.Amount,
			PaidAt:    formatTimePtr(d.PaidAt),
		}
	}
	return c.JSON(http.StatusOK, RecentDonationsResponse{Donations: items})
}

func toDonationItem(d *donationapp.DonationResponse) DonationItem {
	return DonationItem{
		ID:          d.ID,
		DonorName:   d.DonorName,
		Message:     d.Message,
		Amount:      d.Amount,
		Status:      d.Status,
		InvoiceID:   d.InvoiceID,
		PaymentURL:  d.PaymentURL,
		FinalAmount: d.FinalAmount,
		ExpiresAt:   formatTimePtr(d.ExpiresAt),
		PaidAt:      formatTimePtr(d.PaidAt),
		CreatedAt:   formatTime(d.CreatedAt),
	}
}
