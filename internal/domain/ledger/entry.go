package ledger

import (
	"regexp"
	"time"
)

var entryIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-]{1,64}$`)

// Entry 残高変動1件を表す追記専用の台帳エントリ
type Entry struct {
	entryID      string
	userID       string
	direction    Direction
	amount       int64
	reason       Reason
	referenceID  *string // 起因となったリクエストのID（ギフト・チャージ・出金など）
	balanceAfter int64
	createdAt    time.Time
}

// NewEntry 新しいEntryエンティティを作成
func NewEntry(
	entryID string,
	userID string,
	direction Direction,
	amount int64,
	reason Reason,
	referenceID string,
	balanceAfter int64,
) (*Entry, error) {
	if !entryIDRegex.MatchString(entryID) {
		return nil, ErrInvalidEntryID
	}
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	if !direction.Valid() {
		return nil, ErrInvalidDirection
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, ErrInvalidReason
	}
	if balanceAfter < 0 || balanceAfter > MaxAmount {
		return nil, ErrBalanceOutOfRange
	}

	var ref *string
	if referenceID != "" {
		ref = &referenceID
	}
	return &Entry{
		entryID:      entryID,
		userID:       userID,
		direction:    direction,
		amount:       amount,
		reason:       reason,
		referenceID:  ref,
		balanceAfter: balanceAfter,
		createdAt:    time.Now(),
	}, nil
}

// RestoreEntry 永続化済みの値からEntryを復元
func RestoreEntry(
	entryID string,
	userID string,
	direction Direction,
	amount int64,
	reason Reason,
	referenceID *string,
	balanceAfter int64,
	createdAt time.Time,
) *Entry {
	return &Entry{
		entryID:      entryID,
		userID:       userID,
		direction:    direction,
		amount:       amount,
		reason:       reason,
		referenceID:  referenceID,
		balanceAfter: balanceAfter,
		createdAt:    createdAt,
	}
}

// EntryID エントリIDを返す
func (e *Entry) EntryID() string {
	return e.entryID
}

// UserID ユーザーIDを返す
func (e *Entry) UserID() string {
	return e.userID
}

// Direction 入出金方向を返す
func (e *Entry) Direction() Direction {
	return e.direction
}

// Amount 金額を返す
func (e *Entry) Amount() int64 {
	return e.amount
}

// SignedAmount 符号付き金額を返す
func (e *Entry) SignedAmount() int64 {
	return e.direction.Sign() * e.amount
}

// Reason 理由を返す
func (e *Entry) Reason() Reason {
	return e.reason
}

// ReferenceID 参照IDを返す
func (e *Entry) ReferenceID() *string {
	return e.referenceID
}

// BalanceAfter 処理後の残高を返す
func (e *Entry) BalanceAfter() int64 {
	return e.balanceAfter
}

// CreatedAt 作成日時を返す
func (e *Entry) CreatedAt() time.Time {
	return e.createdAt
}

// MustNewEntry テスト用ヘルパー: NewEntryを呼び出し、エラーが発生した場合はpanicする
func MustNewEntry(
	entryID string,
	userID string,
	direction Direction,
	amount int64,
	reason Reason,
	referenceID string,
	balanceAfter int64,
) *Entry {
	e, err := NewEntry(entryID, userID, direction, amount, reason, referenceID, balanceAfter)
	if err != nil {
		panic(err)
	}
	return e
}
