package donation

import (
	"time"

	"flower-server/internal/domain/donation"
	"flower-server/internal/domain/payment"
)

// CreateDonationRequest 寄付作成リクエスト
type CreateDonationRequest struct {
	DonorName string
	Message   *string
	Amount    int64
}

// CheckStatusResponse 支払い状況の確認結果
type CheckStatusResponse struct {
	Donation      *DonationResponse
	PaymentStatus string
	Expired       bool
}

// WebhookRequest ゲートウェイからの支払い通知
type WebhookRequest struct {
	InvoiceID string
	Status    payment.InvoiceStatus
	PaidAt    *time.Time
}

// WebhookResponse 通知の処理結果
type WebhookResponse struct {
	DonationID string
	Status     string
	Changed    bool
}

// ReconcileResult 定期照合の結果
type ReconcileResult struct {
	Checked int
	Settled int
	Failed  int
}

// DonationResponse 寄付の表現（支払い用の請求情報を含む）
type DonationResponse struct {
	ID          string
	DonorName   string
	Message     *string
	Amount      int64
	Status      string
	InvoiceID   *string
	PaymentURL  *string
	FinalAmount *int64
	ExpiresAt   *time.Time
	PaidAt      *time.Time
	CreatedAt   time.Time
}

// PublicDonation 公開一覧用の寄付（請求情報を含まない）
type PublicDonation struct {
	ID        string
	DonorName string
	Message   *string
	Amount    int64
	PaidAt    *time.Time
}

func toResponse(d *donation.Donation) *DonationResponse {
	return &DonationResponse{
		ID:          d.ID(),
		DonorName:   d.DonorName(),
		Message:     d.Message(),
		Amount:      d.Amount(),
		Status:      d.Status().String(),
		InvoiceID:   d.InvoiceID(),
		PaymentURL:  d.PaymentURL(),
		FinalAmount: d.FinalAmount(),
		ExpiresAt:   d.ExpiresAt(),
		PaidAt:      d.PaidAt(),
		CreatedAt:   d.CreatedAt(),
	}
}
