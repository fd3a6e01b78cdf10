package handler

// IssueTokenRequest トークン発行リクエスト
// @Description トークン発行リクエスト
type IssueTokenRequest struct {
	UserID string `json:"user_id" example:"user123"`
}

// IssueTokenResponse トークン発行レスポンス
// @Description トークン発行レスポンス
type IssueTokenResponse struct {
	Token     string `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.eyJ1c2VyX2lkIjoidXNlcjEyMyJ9.signature"`
	ExpiresIn int64  `json:"expires_in" example:"86400"`
	TokenType string `json:"token_type" example:"Bearer"`
}

// ErrorResponse エラーレスポンス
// @Description エラーレスポンス
type ErrorResponse struct {
	Error   string `json:"error" example:"invalid_request"`
	Message string `json:"message" example:"invalid request body"`
}
