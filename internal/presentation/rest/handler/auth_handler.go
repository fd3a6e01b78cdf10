package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	authapp "flower-server/internal/application/auth"
)

// AuthHandler 認証関連ハンドラー
type AuthHandler struct {
	authService *authapp.AuthApplicationService
}

// NewAuthHandler 新しいAuthHandlerを作成
func NewAuthHandler(authService *authapp.AuthApplicationService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// IssueToken トークン発行ハンドラー（管理API用）
// @Summary ユーザートークンを発行（管理API）
// @Description 指定されたユーザーIDのJWTを発行します。ユーザー認証は上流のアカウントサービスが行う前提です
// @Tags admin
// @Accept json
// @Produce json
// @Param X-API-Key header string true "APIキー"
// @Param request body IssueTokenRequest true "トークン発行リクエスト"
// @Success 200 {object} IssueTokenResponse "トークン発行成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /admin/auth/token [post]
func (h *AuthHandler) IssueToken(c echo.Context) error {
	var body IssueTokenRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.authService.IssueToken(c.Request().Context(), &authapp.IssueTokenRequest{
		UserID: body.UserID,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, IssueTokenResponse{
		Token:     resp.Token,
		ExpiresIn: resp.ExpiresIn,
		TokenType: resp.TokenType,
	})
}
