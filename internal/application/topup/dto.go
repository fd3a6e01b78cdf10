package topup

import (
	"time"

	"flower-server/internal/domain/payment"
	"flower-server/internal/domain/topup"
)

// CreateTopUpRequest チャージ作成リクエスト
type CreateTopUpRequest struct {
	UserID    string
	PackageID string
}

// CreateTopUpResponse チャージ作成レスポンス
type CreateTopUpResponse struct {
	TopUp *TopUpResponse
	// GatewayDegraded ゲートウェイ障害により請求なしで作成された（手動確認フロー）
	GatewayDegraded bool
}

// CheckStatusRequest 支払い状況確認リクエスト
type CheckStatusRequest struct {
	UserID    string
	RequestID string
}

// CheckStatusResponse 支払い状況確認レスポンス
type CheckStatusResponse struct {
	TopUp *TopUpResponse
	// PaymentStatus ゲートウェイが報告した請求ステータス（問い合わせなしの場合は空）
	PaymentStatus string
	// Expired 請求の有効期限を過ぎている（保存済みステータスは変更しない）
	Expired bool
}

// WebhookRequest ゲートウェイからの通知
type WebhookRequest struct {
	InvoiceID string
	Status    payment.InvoiceStatus
	PaidAt    *time.Time
}

// WebhookResponse 通知の処理結果
type WebhookResponse struct {
	RequestID string
	Status    string
	Confirmed bool
}

// ListPendingRequest 未処理一覧取得リクエスト
type ListPendingRequest struct {
	Limit  int
	Offset int
}

// ListPendingResponse 未処理一覧取得レスポンス
type ListPendingResponse struct {
	TopUps []*TopUpResponse
	Limit  int
	Offset int
}

// AdminUpdateRequest 管理者による更新（指定された項目のみ適用）
type AdminUpdateRequest struct {
	RequestID string
	Status    *string // "confirmed" or "rejected"
	AdminNote *string
}

// ReconcileResult 定期照合の結果
type ReconcileResult struct {
	Checked   int
	Confirmed int
	Failed    int
}

// TopUpResponse チャージリクエストの表現
type TopUpResponse struct {
	ID            string
	UserID        string
	PackageID     string
	FlowersAmount int64
	PriceAmount   int64
	Status        string
	InvoiceID     *string
	PaymentURL    *string
	FinalAmount   *int64
	ExpiresAt     *time.Time
	AdminNote     *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func toResponse(r *topup.Request) *TopUpResponse {
	return &TopUpResponse{
		ID:            r.ID(),
		UserID:        r.UserID(),
		PackageID:     r.PackageID(),
		FlowersAmount: r.FlowersAmount(),
		PriceAmount:   r.PriceAmount(),
		Status:        r.Status().String(),
		InvoiceID:     r.InvoiceID(),
		PaymentURL:    r.PaymentURL(),
		FinalAmount:   r.FinalAmount(),
		ExpiresAt:     r.ExpiresAt(),
		AdminNote:     r.AdminNote(),
		CreatedAt:     r.CreatedAt(),
		UpdatedAt:     r.UpdatedAt(),
	}
}
