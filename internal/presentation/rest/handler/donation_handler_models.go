package handler

// CreateDonationRequest 寄付作成リクエスト
// @Description 寄付作成リクエスト（認証不要）
type CreateDonationRequest struct {
	DonorName string  `json:"donor_name" example:"Anonymous"`
	Message   *string `json:"message,omitempty" example:"Keep it up!"`
	Amount    int64   `json:"amount" example:"25000"`
}

// DonationItem 寄付
// @Description 寄付と支払い用の請求情報
type DonationItem struct {
	ID          string  `json:"id" example:"a1b2c3d4-e5f6-7890-abcd-ef1234567890"`
	DonorName   string  `json:"donor_name" example:"Anonymous"`
	Message     *string `json:"message,omitempty" example:"Keep it up!"`
	Amount      int64   `json:"amount" example:"25000"`
	Status      string  `json:"status" example:"pending" enums:"pending,paid,expired,failed"`
	InvoiceID   *string `json:"invoice_id,omitempty" example:"inv-20260101-0002"`
	PaymentURL  *string `json:"payment_url,omitempty" example:"https://pay.example.com/qr/inv-20260101-0002"`
	FinalAmount *int64  `json:"final_amount,omitempty" example:"25150"`
	ExpiresAt   *string `json:"expires_at,omitempty" example:"2026-01-01T00:15:00Z"`
	PaidAt      *string `json:"paid_at,omitempty" example:"2026-01-01T00:05:00Z"`
	CreatedAt   string  `json:"created_at" example:"2026-01-01T00:00:00Z"`
}

// DonationStatusResponse 寄付の支払い状況
// @Description 寄付の支払い状況
type DonationStatusResponse struct {
	Donation      DonationItem `json:"donation"`
	PaymentStatus string       `json:"payment_status,omitempty" example:"paid"`
	Expired       bool         `json:"expired" example:"false"`
}

// PublicDonationItem 公開用の寄付
// @Description 公開用の寄付
type PublicDonationItem struct {
	ID        string  `json:"id" example:"a1b2c3d4-e5f6-7890-abcd-ef1234567890"`
	DonorName string  `json:"donor_name" example:"Anonymous"`
	Message   *string `json:"message,omitempty" example:"Keep it up!"`
	Amount    int64   `json:"amount" example:"25000"`
	PaidAt    *string `json:"paid_at,omitempty" example:"2026-01-01T00:05:00Z"`
}

// RecentDonationsResponse 最近の寄付一覧
// @Description 最近の寄付一覧
type RecentDonationsResponse struct {
	Donations []PublicDonationItem `json:"donations"`
}
