package handler

// SendGiftRequest ギフト送信リクエスト
// @Description ギフト送信リクエスト
type SendGiftRequest struct {
	ReceiverID       string  `json:"receiver_id" example:"user456"`
	GiftKindID       string  `json:"gift_kind_id" example:"rose"`
	RelatedContentID *string `json:"related_content_id,omitempty" example:"post-42"`
	Message          *string `json:"message,omitempty" example:"Great stream!"`
}

// SendGiftResponse ギフト送信レスポンス
// @Description ギフト送信レスポンス
type SendGiftResponse struct {
	GiftID        string `json:"gift_id" example:"a1b2c3d4-e5f6-7890-abcd-ef1234567890"`
	GiftKindID    string `json:"gift_kind_id" example:"rose"`
	Cost          int64  `json:"cost" example:"100"`
	SenderBalance int64  `json:"sender_balance" example:"900"`
	CreatedAt     string `json:"created_at" example:"2026-01-01T00:00:00Z"`
}
