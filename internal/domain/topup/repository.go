package topup

import (
	"context"
	"time"

	"flower-server/internal/domain/payment"
)

// Repository チャージリクエストリポジトリインターフェース
type Repository interface {
	// Save 新しいリクエストを保存
	Save(ctx context.Context, request *Request) error

	// FindByID IDで取得
	FindByID(ctx context.Context, id string) (*Request, error)

	// FindByInvoiceID 請求IDで取得
	FindByInvoiceID(ctx context.Context, invoiceID string) (*Request, error)

	// TransitionStatus 現在のステータスがfromの場合のみtoへ更新する条件付き更新
	// 更新できた場合のみtrueを返す
	TransitionStatus(ctx context.Context, id string, from Status, to Status, adminNote *string) (bool, error)

	// UpdateAdminNote 管理者メモのみ更新
	UpdateAdminNote(ctx context.Context, id string, adminNote string) error

	// FindPending pendingのリクエストを古い順に取得
	FindPending(ctx context.Context, limit, offset int) ([]*Request, error)

	// FindPendingWithInvoice 請求IDを持つpendingのリクエストを古い順に取得（照合ジョブ用）
	// 有効期限がexpiresAfter以前のものは除外し、afterが指定された場合はその位置より後ろから取得する
	FindPendingWithInvoice(ctx context.Context, expiresAfter time.Time, after *payment.SweepCursor, limit int) ([]*Request, error)
}
