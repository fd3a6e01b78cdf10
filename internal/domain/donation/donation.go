package donation

import (
	"strings"
	"time"
	"unicode/utf8"

	"flower-server/internal/domain/payment"
)

const (
	// MaxDonorNameLength 寄付者名の最大文字数
	MaxDonorNameLength = 100
	// MaxMessageLength メッセージの最大文字数
	MaxMessageLength = 500
)

// Donation 匿名の寄付エンティティ（残高を持つアカウントには紐付かない）
type Donation struct {
	id          string
	donorName   string
	message     *string
	amount      int64
	status      Status
	invoiceID   *string
	paymentURL  *string
	finalAmount *int64
	expiresAt   *time.Time
	paidAt      *time.Time
	createdAt   time.Time
	updatedAt   time.Time
}

// Snapshot 永続化用のフィールド一覧
type Snapshot struct {
	ID          string
	DonorName   string
	Message     *string
	Amount      int64
	Status      Status
	InvoiceID   *string
	PaymentURL  *string
	FinalAmount *int64
	ExpiresAt   *time.Time
	PaidAt      *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewDonation 新しいpendingのDonationを作成
func NewDonation(id, donorName string, message *string, amount, minAmount, maxAmount int64) (*Donation, error) {
	donorName = strings.TrimSpace(donorName)
	if donorName == "" || utf8.RuneCountInString(donorName) > MaxDonorNameLength {
		return nil, ErrInvalidDonorName
	}
	if message != nil && utf8.RuneCountInString(*message) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}
	if amount <= 0 || amount < minAmount || (maxAmount > 0 && amount > maxAmount) {
		return nil, ErrAmountOutOfRange
	}

	now := time.Now()
	return &Donation{
		id:        id,
		donorName: donorName,
		message:   message,
		amount:    amount,
		status:    StatusPending,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// Restore Snapshotから復元
func Restore(s Snapshot) *Donation {
	return &Donation{
		id:          s.ID,
		donorName:   s.DonorName,
		message:     s.Message,
		amount:      s.Amount,
		status:      s.Status,
		invoiceID:   s.InvoiceID,
		paymentURL:  s.PaymentURL,
		finalAmount: s.FinalAmount,
		expiresAt:   s.ExpiresAt,
		paidAt:      s.PaidAt,
		createdAt:   s.CreatedAt,
		updatedAt:   s.UpdatedAt,
	}
}

// Snapshot 現在の値をSnapshotとして返す
func (d *Donation) Snapshot() Snapshot {
	return Snapshot{
		ID:          d.id,
		DonorName:   d.donorName,
		Message:     d.message,
		Amount:      d.amount,
		Status:      d.status,
		InvoiceID:   d.invoiceID,
		PaymentURL:  d.paymentURL,
		FinalAmount: d.finalAmount,
		ExpiresAt:   d.expiresAt,
		PaidAt:      d.paidAt,
		CreatedAt:   d.createdAt,
		UpdatedAt:   d.updatedAt,
	}
}

// AttachInvoice ゲートウェイの請求情報を設定
func (d *Donation) AttachInvoice(inv *payment.Invoice) {
	if inv == nil {
		return
	}
	invoiceID := inv.InvoiceID
	paymentURL := inv.PaymentURL
	finalAmount := inv.FinalAmount
	expiresAt := inv.ExpiresAt
	d.invoiceID = &invoiceID
	d.paymentURL = &paymentURL
	d.finalAmount = &finalAmount
	d.expiresAt = &expiresAt
	d.updatedAt = time.Now()
}

// ID IDを返す
func (d *Donation) ID() string { return d.id }

// DonorName 寄付者名を返す
func (d *Donation) DonorName() string { return d.donorName }

// Message メッセージを返す
func (d *Donation) Message() *string { return d.message }

// Amount 寄付金額を返す
func (d *Donation) Amount() int64 { return d.amount }

// Status ステータスを返す
func (d *Donation) Status() Status { return d.status }

// InvoiceID 請求IDを返す
func (d *Donation) InvoiceID() *string { return d.invoiceID }

// PaymentURL 支払いURLを返す
func (d *Donation) PaymentURL() *string { return d.paymentURL }

// FinalAmount 手数料込みの支払金額を返す
func (d *Donation) FinalAmount() *int64 { return d.finalAmount }

// ExpiresAt 請求の有効期限を返す
func (d *Donation) ExpiresAt() *time.Time { return d.expiresAt }

// PaidAt 支払い日時を返す
func (d *Donation) PaidAt() *time.Time { return d.paidAt }

// CreatedAt 作成日時を返す
func (d *Donation) CreatedAt() time.Time { return d.createdAt }

// UpdatedAt 更新日時を返す
func (d *Donation) UpdatedAt() time.Time { return d.updatedAt }

// IsExpired 請求の有効期限を過ぎているかどうかを返す
func (d *Donation) IsExpired(now time.Time) bool {
	return d.expiresAt != nil && now.After(*d.expiresAt)
}
