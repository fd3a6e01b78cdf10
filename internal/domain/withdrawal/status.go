package withdrawal

import (
	"fmt"
)

// Status 出金リクエストのステータスを表す値オブジェクト
type Status string

const (
	StatusPending  Status = "pending"  // 審査待ち（残高は保留済み）
	StatusApproved Status = "approved" // 承認済み
	StatusPaid     Status = "paid"     // 支払い完了
	StatusRejected Status = "rejected" // 却下（保留分は返金済み）
)

// NewStatus 新しいStatusを作成
func NewStatus(s string) (Status, error) {
	switch s {
	case "pending", "approved", "paid", "rejected":
		return Status(s), nil
	default:
		return "", fmt.Errorf("invalid withdrawal status: %s", s)
	}
}

// String 文字列表現を返す
func (s Status) String() string {
	return string(s)
}

// Valid 有効なステータスかどうかを返す
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusPaid, StatusRejected:
		return true
	default:
		return false
	}
}

// IsTerminal 終端状態かどうかを返す
func (s Status) IsTerminal() bool {
	return s == StatusPaid || s == StatusRejected
}

// SourcesFor 遷移先toへ移れる遷移元ステータスを返す
func SourcesFor(to Status) []Status {
	switch to {
	case StatusApproved:
		return []Status{StatusPending}
	case StatusPaid:
		return []Status{StatusApproved}
	case StatusRejected:
		return []Status{StatusPending, StatusApproved}
	default:
		return nil
	}
}
