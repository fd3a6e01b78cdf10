package withdrawal

import (
	"time"

	"flower-server/internal/domain/withdrawal"
)

// CreateWithdrawalRequest 出金リクエスト作成
type CreateWithdrawalRequest struct {
	UserID        string
	MethodID      string
	AccountNumber string
	AccountName   string
	FlowersAmount int64
}

// ListMineRequest 自分の出金リクエスト一覧取得
type ListMineRequest struct {
	UserID string
	Limit  int
	Offset int
}

// ListPendingRequest 未完了一覧取得リクエスト
type ListPendingRequest struct {
	Limit  int
	Offset int
}

// ListResponse 出金リクエスト一覧
type ListResponse struct {
	Withdrawals []*WithdrawalResponse
	Limit       int
	Offset      int
}

// AdminUpdateRequest 管理者による更新
// 指定されたフィールドのみ反映する
type AdminUpdateRequest struct {
	RequestID string
	Status    *string // "approved", "paid" or "rejected"
	AdminNote *string
}

// WithdrawalResponse 出金リクエストの表現
type WithdrawalResponse struct {
	ID            string
	UserID        string
	MethodID      string
	AccountNumber string
	AccountName   string
	FlowersAmount int64
	CashAmount    int64
	Status        string
	AdminNote     *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func toResponse(r *withdrawal.Request) *WithdrawalResponse {
	return &WithdrawalResponse{
		ID:            r.ID(),
		UserID:        r.UserID(),
		MethodID:      r.MethodID(),
		AccountNumber: r.AccountNumber(),
		AccountName:   r.AccountName(),
		FlowersAmount: r.FlowersAmount(),
		CashAmount:    r.CashAmount(),
		Status:        r.Status().String(),
		AdminNote:     r.AdminNote(),
		CreatedAt:     r.CreatedAt(),
		UpdatedAt:     r.UpdatedAt(),
	}
}

func toResponses(requests []*withdrawal.Request) []*WithdrawalResponse {
	out := make([]*WithdrawalResponse, 0, len(requests))
	for _, r := range requests {
		out = append(out, toResponse(r))
	}
	return out
}
