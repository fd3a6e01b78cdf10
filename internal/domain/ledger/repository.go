package ledger

import (
	"context"
)

// AccountRepository アカウントリポジトリインターフェース
type AccountRepository interface {
	// FindByUserID ユーザーIDでアカウントを取得（ロックなし）
	FindByUserID(ctx context.Context, userID string) (*Account, error)

	// FindByUserIDForUpdate ユーザーIDでアカウントを取得し行ロックを獲得
	FindByUserIDForUpdate(ctx context.Context, userID string) (*Account, error)

	// Create アカウントを作成（既に存在する場合は何もしない）
	Create(ctx context.Context, account *Account) error

	// UpdateBalance 残高を更新
	UpdateBalance(ctx context.Context, account *Account) error
}

// EntryRepository 台帳エントリリポジトリインターフェース
type EntryRepository interface {
	// Save エントリを追記
	Save(ctx context.Context, entry *Entry) error

	// FindByUserID ユーザーIDでエントリ一覧を新しい順に取得（ページネーション対応）
	FindByUserID(ctx context.Context, userID string, limit, offset int) ([]*Entry, error)

	// CountByUserID ユーザーIDのエントリ件数を取得
	CountByUserID(ctx context.Context, userID string) (int, error)
}
