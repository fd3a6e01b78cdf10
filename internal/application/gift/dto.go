package gift

import "time"

// SendGiftRequest ギフト送信リクエスト
type SendGiftRequest struct {
	SenderID         string
	ReceiverID       string
	GiftKindID       string
	RelatedContentID *string
	Message          *string
}

// SendGiftResponse ギフト送信レスポンス
type SendGiftResponse struct {
	GiftID        string
	GiftKindID    string
	Cost          int64
	SenderBalance int64
	CreatedAt     time.Time
}
