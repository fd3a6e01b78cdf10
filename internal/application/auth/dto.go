package auth

import "errors"

// ErrInvalidToken トークンが無効（署名不一致・期限切れ・user_id欠落）
var ErrInvalidToken = errors.New("invalid token")

// IssueTokenRequest トークン発行リクエスト
type IssueTokenRequest struct {
	UserID string
}

// IssueTokenResponse トークン発行レスポンス
type IssueTokenResponse struct {
	Token     string
	ExpiresIn int64  // 秒単位
	TokenType string // "Bearer"
}
