package gift

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"
)

const (
	// MaxMessageLength メッセージの最大文字数
	MaxMessageLength = 500
)

var (
	// ErrCapabilityDisabled 送信者のギフト機能が無効化されている
	ErrCapabilityDisabled = errors.New("gifting disabled for sender")
	// ErrMessageTooLong メッセージが長すぎる
	ErrMessageTooLong = errors.New("gift message too long")
	// ErrInvalidCost コストが無効
	ErrInvalidCost = errors.New("invalid gift cost")
	// ErrTransferNotFound ギフト記録が見つからない
	ErrTransferNotFound = errors.New("gift transfer not found")
)

// Transfer 成功したギフト送信の記録（作成後は不変）
type Transfer struct {
	id               string
	senderID         string
	receiverID       string
	giftKindID       string
	cost             int64
	relatedContentID *string
	message          *string
	createdAt        time.Time
}

// NewTransfer 新しいTransferエンティティを作成
func NewTransfer(id, senderID, receiverID, giftKindID string, cost int64, relatedContentID, message *string) (*Transfer, error) {
	if cost <= 0 {
		return nil, ErrInvalidCost
	}
	if message != nil && utf8.RuneCountInString(*message) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}
	return &Transfer{
		id:               id,
		senderID:         senderID,
		receiverID:       receiverID,
		giftKindID:       giftKindID,
		cost:             cost,
		relatedContentID: relatedContentID,
		message:          message,
		createdAt:        time.Now(),
	}, nil
}

// RestoreTransfer 永続化済みの値からTransferを復元
func RestoreTransfer(id, senderID, receiverID, giftKindID string, cost int64, relatedContentID, message *string, createdAt time.Time) *Transfer {
	return &Transfer{
		id:               id,
		senderID:         senderID,
		receiverID:       receiverID,
		giftKindID:       giftKindID,
		cost:             cost,
		relatedContentID: relatedContentID,
		message:          message,
		createdAt:        createdAt,
	}
}

// ID IDを返す
func (t *Transfer) ID() string { return t.id }

// SenderID 送信者IDを返す
func (t *Transfer) SenderID() string { return t.senderID }

// ReceiverID 受信者IDを返す
func (t *Transfer) ReceiverID() string { return t.receiverID }

// GiftKindID ギフト種別IDを返す
func (t *Transfer) GiftKindID() string { return t.giftKindID }

// Cost 送信時点のコストを返す
func (t *Transfer) Cost() int64 { return t.cost }

// RelatedContentID 関連コンテンツIDを返す
func (t *Transfer) RelatedContentID() *string { return t.relatedContentID }

// Message メッセージを返す
func (t *Transfer) Message() *string { return t.message }

// CreatedAt 作成日時を返す
func (t *Transfer) CreatedAt() time.Time { return t.createdAt }

// Repository ギフト記録リポジトリインターフェース
type Repository interface {
	// Save ギフト記録を保存
	Save(ctx context.Context, transfer *Transfer) error

	// FindByID IDで取得
	FindByID(ctx context.Context, id string) (*Transfer, error)
}
