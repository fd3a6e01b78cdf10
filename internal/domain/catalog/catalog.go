package catalog

import (
	"context"
	"errors"
)

var (
	// ErrGiftKindNotFound ギフト種別が見つからない、または無効化されている
	ErrGiftKindNotFound = errors.New("gift kind not found")
	// ErrPackageNotFound チャージパッケージが見つからない、または無効化されている
	ErrPackageNotFound = errors.New("top-up package not found")
	// ErrMethodNotFound 出金方法が見つからない、または無効化されている
	ErrMethodNotFound = errors.New("withdrawal method not found")
)

// GiftKind ギフト種別（フラワー建ての価格を持つ）
type GiftKind struct {
	ID     string
	Name   string
	Cost   int64
	Active bool
}

// TopUpPackage チャージパッケージ（フラワー数と支払金額）
type TopUpPackage struct {
	ID            string
	Name          string
	FlowersAmount int64
	PriceAmount   int64
	Active        bool
}

// WithdrawalMethod 出金方法（銀行・電子マネーなど）
type WithdrawalMethod struct {
	ID     string
	Name   string
	Kind   string
	Active bool
}

// Repository 参照データのリポジトリインターフェース
type Repository interface {
	// FindGiftKind 有効なギフト種別を取得
	FindGiftKind(ctx context.Context, id string) (*GiftKind, error)

	// FindTopUpPackage 有効なチャージパッケージを取得
	FindTopUpPackage(ctx context.Context, id string) (*TopUpPackage, error)

	// FindWithdrawalMethod 有効な出金方法を取得
	FindWithdrawalMethod(ctx context.Context, id string) (*WithdrawalMethod, error)

	// IsGiftingEnabled ユーザーのギフト送信が有効か（設定行がなければ有効）
	IsGiftingEnabled(ctx context.Context, userID string) (bool, error)
}
