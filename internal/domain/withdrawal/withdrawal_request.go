package withdrawal

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	// MaxAccountNameLength 口座名義の最大文字数
	MaxAccountNameLength = 100
	// MaxAdminNoteLength 管理者メモの最大文字数
	MaxAdminNoteLength = 500
)

var accountNumberRegex = regexp.MustCompile(`^[0-9A-Za-z\-\+]{4,50}$`)

// Request 出金リクエストエンティティ
type Request struct {
	id            string
	userID        string
	methodID      string
	accountNumber string
	accountName   string
	flowersAmount int64
	cashAmount    int64
	status        Status
	adminNote     *string
	createdAt     time.Time
	updatedAt     time.Time
}

// Snapshot 永続化用のフィールド一覧
type Snapshot struct {
	ID            string
	UserID        string
	MethodID      string
	AccountNumber string
	AccountName   string
	FlowersAmount int64
	CashAmount    int64
	Status        Status
	AdminNote     *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CashAmountFor フラワー数を換算レートで現金額に換算（切り捨て）
func CashAmountFor(flowersAmount int64, exchangeRate decimal.Decimal) int64 {
	return decimal.NewFromInt(flowersAmount).Mul(exchangeRate).Floor().IntPart()
}

// NewRequest 新しいpendingのRequestを作成
func NewRequest(
	id string,
	userID string,
	methodID string,
	accountNumber string,
	accountName string,
	flowersAmount int64,
	minimumWithdrawal int64,
	exchangeRate decimal.Decimal,
) (*Request, error) {
	if flowersAmount < minimumWithdrawal || flowersAmount <= 0 {
		return nil, ErrBelowMinimum
	}
	accountNumber = strings.TrimSpace(accountNumber)
	if !accountNumberRegex.MatchString(accountNumber) {
		return nil, ErrInvalidAccountNumber
	}
	accountName = strings.TrimSpace(accountName)
	if accountName == "" || utf8.RuneCountInString(accountName) > MaxAccountNameLength {
		return nil, ErrInvalidAccountName
	}
	cashAmount := CashAmountFor(flowersAmount, exchangeRate)
	if cashAmount <= 0 {
		return nil, ErrCashAmountTooSmall
	}

	now := time.Now()
	return &Request{
		id:            id,
		userID:        userID,
		methodID:      methodID,
		accountNumber: accountNumber,
		accountName:   accountName,
		flowersAmount: flowersAmount,
		cashAmount:    cashAmount,
		status:        StatusPending,
		createdAt:     now,
		updatedAt:     now,
	}, nil
}

// Restore Snapshotから復元
func Restore(s Snapshot) *Request {
	return &Request{
		id:            s.ID,
		userID:        s.UserID,
		methodID:      s.MethodID,
		accountNumber: s.AccountNumber,
		accountName:   s.AccountName,
		flowersAmount: s.FlowersAmount,
		cashAmount:    s.CashAmount,
		status:        s.Status,
		adminNote:     s.AdminNote,
		createdAt:     s.CreatedAt,
		updatedAt:     s.UpdatedAt,
	}
}

// Snapshot 現在の値をSnapshotとして返す
func (r *Request) Snapshot() Snapshot {
	return Snapshot{
		ID:            r.id,
		UserID:        r.userID,
		MethodID:      r.methodID,
		AccountNumber: r.accountNumber,
		AccountName:   r.accountName,
		FlowersAmount: r.flowersAmount,
		CashAmount:    r.cashAmount,
		Status:        r.status,
		AdminNote:     r.adminNote,
		CreatedAt:     r.createdAt,
		UpdatedAt:     r.updatedAt,
	}
}

// ID IDを返す
func (r *Request) ID() string { return r.id }

// UserID ユーザーIDを返す
func (r *Request) UserID() string { return r.userID }

// MethodID 出金方法IDを返す
func (r *Request) MethodID() string { return r.methodID }

// AccountNumber 口座番号を返す
func (r *Request) AccountNumber() string { return r.accountNumber }

// AccountName 口座名義を返す
func (r *Request) AccountName() string { return r.accountName }

// FlowersAmount 保留したフラワー数を返す
func (r *Request) FlowersAmount() int64 { return r.flowersAmount }

// CashAmount 支払う現金額を返す
func (r *Request) CashAmount() int64 { return r.cashAmount }

// Status ステータスを返す
func (r *Request) Status() Status { return r.status }

// AdminNote 管理者メモを返す
func (r *Request) AdminNote() *string { return r.adminNote }

// CreatedAt 作成日時を返す
func (r *Request) CreatedAt() time.Time { return r.createdAt }

// UpdatedAt 更新日時を返す
func (r *Request) UpdatedAt() time.Time { return r.updatedAt }

// ValidateAdminNote 管理者メモの長さを検証
func ValidateAdminNote(note *string) error {
	if note != nil && utf8.RuneCountInString(*note) > MaxAdminNoteLength {
		return ErrAdminNoteTooLong
	}
	return nil
}
