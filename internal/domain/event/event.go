package event

import (
	"context"
	"time"
)

// Type 精算イベントの種別
type Type string

const (
	TypeGiftSent           Type = "gift.sent"
	TypeTopUpConfirmed     Type = "topup.confirmed"
	TypeTopUpRejected      Type = "topup.rejected"
	TypeWithdrawalCreated  Type = "withdrawal.created"
	TypeWithdrawalApproved Type = "withdrawal.approved"
	TypeWithdrawalPaid     Type = "withdrawal.paid"
	TypeWithdrawalRejected Type = "withdrawal.rejected"
	TypeDonationPaid       Type = "donation.paid"
)

// Event 確定した精算結果の通知
// トランザクションのコミット後にのみ発行する
type Event struct {
	ID          string            `json:"id"`
	Type        Type              `json:"type"`
	AggregateID string            `json:"aggregate_id"`
	UserID      string            `json:"user_id,omitempty"`
	Amount      int64             `json:"amount"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

// Publisher イベント発行インターフェース
// 発行の失敗は精算結果を取り消さない
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}
