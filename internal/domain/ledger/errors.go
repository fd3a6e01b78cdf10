package ledger

import "errors"

var (
	// ErrInvalidUserID ユーザーIDが無効
	ErrInvalidUserID = errors.New("invalid user id")
	// ErrInvalidAmount 無効な金額エラー（0以下）
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrAmountTooLarge 金額が大きすぎる
	ErrAmountTooLarge = errors.New("amount too large")
	// ErrBalanceOutOfRange 残高が範囲外
	ErrBalanceOutOfRange = errors.New("balance out of range")
	// ErrInsufficientBalance 残高不足エラー
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrAccountNotFound アカウントが見つからない
	ErrAccountNotFound = errors.New("account not found")
	// ErrSameAccount 送金元と送金先が同一
	ErrSameAccount = errors.New("sender and receiver must differ")
	// ErrInvalidEntryID エントリIDが無効
	ErrInvalidEntryID = errors.New("invalid entry id")
	// ErrInvalidDirection 入出金方向が無効
	ErrInvalidDirection = errors.New("invalid direction")
	// ErrInvalidReason 理由が空
	ErrInvalidReason = errors.New("invalid reason")
)
