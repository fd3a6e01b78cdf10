package donation

import "errors"

var (
	// ErrDonationNotFound 寄付が見つからない
	ErrDonationNotFound = errors.New("donation not found")
	// ErrInvalidDonorName 寄付者名が無効
	ErrInvalidDonorName = errors.New("invalid donor name")
	// ErrMessageTooLong メッセージが長すぎる
	ErrMessageTooLong = errors.New("donation message too long")
	// ErrAmountOutOfRange 寄付金額が範囲外
	ErrAmountOutOfRange = errors.New("donation amount out of range")
	// ErrAlreadyTerminal 既に終端状態
	ErrAlreadyTerminal = errors.New("donation already terminal")
)
