package topup

import "errors"

var (
	// ErrTopUpNotFound チャージリクエストが見つからない
	ErrTopUpNotFound = errors.New("top-up request not found")
	// ErrAlreadyTerminal 既に確定・却下済み
	ErrAlreadyTerminal = errors.New("top-up request already terminal")
	// ErrInvalidTransition 許可されていないステータス遷移
	ErrInvalidTransition = errors.New("invalid top-up status transition")
	// ErrAdminNoteTooLong 管理者メモが長すぎる
	ErrAdminNoteTooLong = errors.New("admin note too long")
	// ErrEmptyUpdate 更新する項目がない
	ErrEmptyUpdate = errors.New("no fields to update")
)
