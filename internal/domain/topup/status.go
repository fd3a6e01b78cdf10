package topup

import (
	"fmt"
)

// Status チャージリクエストのステータスを表す値オブジェクト
type Status string

const (
	StatusPending   Status = "pending"   // 入金待ち
	StatusConfirmed Status = "confirmed" // 入金確認済み（残高付与済み）
	StatusRejected  Status = "rejected"  // 却下
)

// NewStatus 新しいStatusを作成
func NewStatus(s string) (Status, error) {
	switch s {
	case "pending", "confirmed", "rejected":
		return Status(s), nil
	default:
		return "", fmt.Errorf("invalid top-up status: %s", s)
	}
}

// String 文字列表現を返す
func (s Status) String() string {
	return string(s)
}

// Valid 有効なステータスかどうかを返す
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusRejected:
		return true
	default:
		return false
	}
}

// IsTerminal 終端状態かどうかを返す
func (s Status) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusRejected
}
