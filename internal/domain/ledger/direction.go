package ledger

import (
	"fmt"
)

// Direction 入出金方向を表す値オブジェクト
type Direction string

const (
	DirectionCredit Direction = "credit" // 入金
	DirectionDebit  Direction = "debit"  // 出金
)

// NewDirection 新しいDirectionを作成
func NewDirection(s string) (Direction, error) {
	switch s {
	case "credit", "debit":
		return Direction(s), nil
	default:
		return "", fmt.Errorf("invalid direction: %s", s)
	}
}

// String 文字列表現を返す
func (d Direction) String() string {
	return string(d)
}

// Valid 有効な方向かどうかを返す
func (d Direction) Valid() bool {
	switch d {
	case DirectionCredit, DirectionDebit:
		return true
	default:
		return false
	}
}

// Sign 残高への符号を返す
func (d Direction) Sign() int64 {
	if d == DirectionDebit {
		return -1
	}
	return 1
}
