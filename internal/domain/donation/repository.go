package donation

import (
	"context"
	"time"

	"flower-server/internal/domain/payment"
)

// Repository 寄付リポジトリインターフェース
type Repository interface {
	// Save 新しい寄付を保存
	Save(ctx context.Context, donation *Donation) error

	// FindByID IDで取得
	FindByID(ctx context.Context, id string) (*Donation, error)

	// FindByInvoiceID 請求IDで取得
	FindByInvoiceID(ctx context.Context, invoiceID string) (*Donation, error)

	// TransitionStatus 現在のステータスがfromの場合のみtoへ更新する条件付き更新
	// paidAtはpaidへの遷移時のみ使用する。更新できた場合のみtrueを返す
	TransitionStatus(ctx context.Context, id string, from Status, to Status, paidAt *time.Time) (bool, error)

	// FindRecentPaid 支払い済みの寄付を新しい順に取得
	FindRecentPaid(ctx context.Context, limit int) ([]*Donation, error)

	// FindPendingWithInvoice 請求IDを持つpendingの寄付を古い順に取得（照合ジョブ用）
	// 有効期限がexpiresAfter以前のものは除外し、afterが指定された場合はその位置より後ろから取得する
	FindPendingWithInvoice(ctx context.Context, expiresAfter time.Time, after *payment.SweepCursor, limit int) ([]*Donation, error)
}
