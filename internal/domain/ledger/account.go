package ledger

import (
	"regexp"
	"time"
)

const (
	// MaxAmount 1回の操作および残高の上限 (10兆)
	MaxAmount = 10_000_000_000_000
)

var userIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-\.\@]{1,255}$`)

// ValidateUserID ユーザーIDの形式を検証
func ValidateUserID(userID string) error {
	if !userIDRegex.MatchString(userID) {
		return ErrInvalidUserID
	}
	return nil
}

// Account フラワー残高を保持するアカウントエンティティ
type Account struct {
	userID    string
	balance   int64 // 常に0以上
	createdAt time.Time
	updatedAt time.Time
}

// NewAccount 新しいAccountエンティティを作成
func NewAccount(userID string, balance int64) (*Account, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	if balance < 0 || balance > MaxAmount {
		return nil, ErrBalanceOutOfRange
	}
	now := time.Now()
	return &Account{
		userID:    userID,
		balance:   balance,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// RestoreAccount 永続化済みの値からAccountを復元
func RestoreAccount(userID string, balance int64, createdAt, updatedAt time.Time) *Account {
	return &Account{
		userID:    userID,
		balance:   balance,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// UserID ユーザーIDを返す
func (a *Account) UserID() string {
	return a.userID
}

// Balance 残高を返す
func (a *Account) Balance() int64 {
	return a.balance
}

// CreatedAt 作成日時を返す
func (a *Account) CreatedAt() time.Time {
	return a.createdAt
}

// UpdatedAt 更新日時を返す
func (a *Account) UpdatedAt() time.Time {
	return a.updatedAt
}

// Credit 残高を増やす
func (a *Account) Credit(amount int64) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	// オーバーフローチェック
	if a.balance > MaxAmount-amount {
		return ErrBalanceOutOfRange
	}
	a.balance += amount
	a.updatedAt = time.Now()
	return nil
}

// Debit 残高を減らす（マイナス残高は許可しない）
func (a *Account) Debit(amount int64) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if a.balance < amount {
		return ErrInsufficientBalance
	}
	a.balance -= amount
	a.updatedAt = time.Now()
	return nil
}

func validateAmount(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if amount > MaxAmount {
		return ErrAmountTooLarge
	}
	return nil
}

// MustNewAccount テスト用ヘルパー: NewAccountを呼び出し、エラーが発生した場合はpanicする
func MustNewAccount(userID string, balance int64) *Account {
	a, err := NewAccount(userID, balance)
	if err != nil {
		panic(err)
	}
	return a
}
