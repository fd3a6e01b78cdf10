package withdrawal

import "errors"

var (
	// ErrWithdrawalNotFound 出金リクエストが見つからない
	ErrWithdrawalNotFound = errors.New("withdrawal request not found")
	// ErrBelowMinimum 最低出金額未満
	ErrBelowMinimum = errors.New("withdrawal amount below minimum")
	// ErrInvalidAccountNumber 口座番号が無効
	ErrInvalidAccountNumber = errors.New("invalid account number")
	// ErrInvalidAccountName 口座名義が無効
	ErrInvalidAccountName = errors.New("invalid account name")
	// ErrCashAmountTooSmall 換算後の金額が0
	ErrCashAmountTooSmall = errors.New("cash amount rounds to zero")
	// ErrAlreadyTerminal 既に支払い済み・却下済み
	ErrAlreadyTerminal = errors.New("withdrawal request already terminal")
	// ErrInvalidTransition 許可されていないステータス遷移
	ErrInvalidTransition = errors.New("invalid withdrawal status transition")
	// ErrAdminNoteTooLong 管理者メモが長すぎる
	ErrAdminNoteTooLong = errors.New("admin note too long")
	// ErrEmptyUpdate 更新する項目がない
	ErrEmptyUpdate = errors.New("no fields to update")
)
