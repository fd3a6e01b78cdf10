package withdrawal

import (
	"context"
)

// Repository 出金リクエストリポジトリインターフェース
type Repository interface {
	// Save 新しいリクエストを保存
	Save(ctx context.Context, request *Request) error

	// FindByID IDで取得
	FindByID(ctx context.Context, id string) (*Request, error)

	// FindByUserID ユーザーのリクエストを新しい順に取得
	FindByUserID(ctx context.Context, userID string, limit, offset int) ([]*Request, error)

	// FindOpen 未完了（pending・approved）のリクエストを古い順に取得
	FindOpen(ctx context.Context, limit, offset int) ([]*Request, error)

	// TransitionStatus 現在のステータスがfromのいずれかの場合のみtoへ更新する条件付き更新
	// 更新できた場合のみtrueを返す
	TransitionStatus(ctx context.Context, id string, from []Status, to Status, adminNote *string) (bool, error)

	// UpdateAdminNote 管理者メモのみ更新
	UpdateAdminNote(ctx context.Context, id string, adminNote string) error
}
