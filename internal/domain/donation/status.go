package donation

import (
	"fmt"

	"flower-server/internal/domain/payment"
)

// Status 寄付のステータスを表す値オブジェクト
type Status string

const (
	StatusPending Status = "pending" // 支払い待ち
	StatusPaid    Status = "paid"    // 支払い済み（公開対象）
	StatusExpired Status = "expired" // 期限切れ
	StatusFailed  Status = "failed"  // 失敗
)

// NewStatus 新しいStatusを作成
func NewStatus(s string) (Status, error) {
	switch s {
	case "pending", "paid", "expired", "failed":
		return Status(s), nil
	default:
		return "", fmt.Errorf("invalid donation status: %s", s)
	}
}

// StatusFromInvoice ゲートウェイの請求ステータスを寄付ステータスに変換
func StatusFromInvoice(s payment.InvoiceStatus) Status {
	switch s {
	case payment.InvoiceStatusPaid:
		return StatusPaid
	case payment.InvoiceStatusExpired:
		return StatusExpired
	case payment.InvoiceStatusFailed:
		return StatusFailed
	default:
		return StatusPending
	}
}

// String 文字列表現を返す
func (s Status) String() string {
	return string(s)
}

// Valid 有効なステータスかどうかを返す
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusExpired, StatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal 終端状態かどうかを返す
func (s Status) IsTerminal() bool {
	return s != StatusPending
}
