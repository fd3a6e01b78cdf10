package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	giftapp "flower-server/internal/application/gift"
	restmiddleware "flower-server/internal/presentation/rest/middleware"
)

// GiftHandler ギフト関連ハンドラー
type GiftHandler struct {
	giftService *giftapp.GiftApplicationService
}

// NewGiftHandler 新しいGiftHandlerを作成
func NewGiftHandler(giftService *giftapp.GiftApplicationService) *GiftHandler {
	return &GiftHandler{
		giftService: giftService,
	}
}

// SendGift ギフト送信ハンドラー
// @Summary ギフトを送る
// @Description ギフトの価格分のフラワーを送信者から受信者へ移動します
// @Tags gifts
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body SendGiftRequest true "ギフト送信リクエスト"
// @Success 201 {object} SendGiftResponse "送信成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Failure 403 {object} ErrorResponse "ギフト送信が無効化されている"
// @Failure 404 {object} ErrorResponse "ギフト種別が存在しない"
// @Failure 409 {object} ErrorResponse "残高不足"
// @Router /gifts [post]
func (h *GiftHandler) SendGift(c echo.Context) error {
	senderID := restmiddleware.UserID(c)
	if senderID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "user_id not found in token")
	}

	var body SendGiftRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if body.GiftKindID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "gift_kind_id is required")
	}

	resp, err := h.giftService.SendGift(c.Request().Context(), &giftapp.SendGiftRequest{
		SenderID:         senderID,
		ReceiverID:       body.ReceiverID,
		GiftKindID:       body.GiftKindID,
		RelatedContentID: body.RelatedContentID,
		Message:          body.Message,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, SendGiftResponse{
		GiftID:        resp.GiftID,
		GiftKindID:    resp.GiftKindID,
		Cost:          resp.Cost,
		SenderBalance: resp.SenderBalance,
		CreatedAt:     formatTime(resp.CreatedAt),
	})
}
