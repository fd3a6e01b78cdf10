package topup

import (
	"time"
	"unicode/utf8"

	"flower-server/internal/domain/payment"
)

// MaxAdminNoteLength 管理者メモの最大文字数
const MaxAdminNoteLength = 500

// Request チャージ（フラワー購入）リクエストエンティティ
type Request struct {
	id            string
	userID        string
	packageID     string
	flowersAmount int64
	priceAmount   int64
	status        Status
	invoiceID     *string
	paymentURL    *string
	finalAmount   *int64
	expiresAt     *time.Time
	adminNote     *string
	createdAt     time.Time
	updatedAt     time.Time
}

// Snapshot 永続化用のフィールド一覧
type Snapshot struct {
	ID            string
	UserID        string
	PackageID     string
	FlowersAmount int64
	PriceAmount   int64
	Status        Status
	InvoiceID     *string
	PaymentURL    *string
	FinalAmount   *int64
	ExpiresAt     *time.Time
	AdminNote     *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewRequest 新しいpendingのRequestを作成
func NewRequest(id, userID, packageID string, flowersAmount, priceAmount int64) *Request {
	now := time.Now()
	return &Request{
		id:            id,
		userID:        userID,
		packageID:     packageID,
		flowersAmount: flowersAmount,
		priceAmount:   priceAmount,
		status:        StatusPending,
		createdAt:     now,
		updatedAt:     now,
	}
}

// Restore Snapshotから復元
func Restore(s Snapshot) *Request {
	return &Request{
		id:            s.ID,
		userID:        s.UserID,
		packageID:     s.PackageID,
		flowersAmount: s.FlowersAmount,
		priceAmount:   s.PriceAmount,
		status:        s.Status,
		invoiceID:     s.InvoiceID,
		paymentURL:    s.PaymentURL,
		finalAmount:   s.FinalAmount,
		expiresAt:     s.ExpiresAt,
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
		PackageID:     r.packageID,
		FlowersAmount: r.flowersAmount,
		PriceAmount:   r.priceAmount,
		Status:        r.status,
		InvoiceID:     r.invoiceID,
		PaymentURL:    r.paymentURL,
		FinalAmount:   r.finalAmount,
		ExpiresAt:     r.expiresAt,
		AdminNote:     r.adminNote,
		CreatedAt:     r.createdAt,
		UpdatedAt:     r.updatedAt,
	}
}

// AttachInvoice ゲートウェイの請求情報を設定
func (r *Request) AttachInvoice(inv *payment.Invoice) {
	if inv == nil {
		return
	}
	invoiceID := inv.InvoiceID
	paymentURL := inv.PaymentURL
	finalAmount := inv.FinalAmount
	expiresAt := inv.ExpiresAt
	r.invoiceID = &invoiceID
	r.paymentURL = &paymentURL
	r.finalAmount = &finalAmount
	r.expiresAt = &expiresAt
	r.updatedAt = time.Now()
}

// ID IDを返す
func (r *Request) ID() string {
	return r.id
}

// UserID ユーザーIDを返す
func (r *Request) UserID() string {
	return r.userID
}

// PackageID パッケージIDを返す
func (r *Request) PackageID() string {
	return r.packageID
}

// FlowersAmount 付与するフラワー数を返す
func (r *Request) FlowersAmount() int64 {
	return r.flowersAmount
}

// PriceAmount パッケージ価格を返す
func (r *Request) PriceAmount() int64 {
	return r.priceAmount
}

// Status ステータスを返す
func (r *Request) Status() Status {
	return r.status
}

// InvoiceID 請求IDを返す（ゲートウェイ障害時はnil）
func (r *Request) InvoiceID() *string {
	return r.invoiceID
}

// PaymentURL 支払いURLを返す
func (r *Request) PaymentURL() *string {
	return r.paymentURL
}

// FinalAmount 手数料込みの支払金額を返す
func (r *Request) FinalAmount() *int64 {
	return r.finalAmount
}

// ExpiresAt 請求の有効期限を返す
func (r *Request) ExpiresAt() *time.Time {
	return r.expiresAt
}

// AdminNote 管理者メモを返す
func (r *Request) AdminNote() *string {
	return r.adminNote
}

// CreatedAt 作成日時を返す
func (r *Request) CreatedAt() time.Time {
	return r.createdAt
}

// UpdatedAt 更新日時を返す
func (r *Request) UpdatedAt() time.Time {
	return r.updatedAt
}

// HasInvoice 自動照合が可能かどうかを返す
func (r *Request) HasInvoice() bool {
	return r.invoiceID != nil
}

// IsExpired 請求の有効期限を過ぎているかどうかを返す
func (r *Request) IsExpired(now time.Time) bool {
	return r.expiresAt != nil && now.After(*r.expiresAt)
}

// ValidateAdminNote 管理者メモの長さを検証
func ValidateAdminNote(note *string) error {
	if note != nil && utf8.RuneCountInString(*note) > MaxAdminNoteLength {
		return ErrAdminNoteTooLong
	}
	return nil
}
