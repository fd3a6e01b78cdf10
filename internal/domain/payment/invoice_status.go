package payment

import (
	"fmt"
)

// InvoiceStatus ゲートウェイ上の請求ステータスを表す値オブジェクト
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "pending" // 支払い待ち
	InvoiceStatusPaid    InvoiceStatus = "paid"    // 支払い済み
	InvoiceStatusExpired InvoiceStatus = "expired" // 期限切れ
	InvoiceStatusFailed  InvoiceStatus = "failed"  // 失敗
)

// NewInvoiceStatus 新しいInvoiceStatusを作成
func NewInvoiceStatus(s string) (InvoiceStatus, error) {
	switch s {
	case "pending", "paid", "expired", "failed":
		return InvoiceStatus(s), nil
	default:
		return "", fmt.Errorf("invalid invoice status: %s", s)
	}
}

// String 文字列表現を返す
func (s InvoiceStatus) String() string {
	return string(s)
}

// Valid 有効なステータスかどうかを返す
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusPaid, InvoiceStatusExpired, InvoiceStatusFailed:
		return true
	default:
		return false
	}
}

// IsPaid 支払い済みかどうかを返す
func (s InvoiceStatus) IsPaid() bool {
	return s == InvoiceStatusPaid
}

// IsClosed 支払われずに終了したかどうかを返す
func (s InvoiceStatus) IsClosed() bool {
	return s == InvoiceStatusExpired || s == InvoiceStatusFailed
}
