package handler

// CreateTopUpRequest チャージ作成リクエスト
// @Description チャージ作成リクエスト
type CreateTopUpRequest struct {
	PackageID string `json:"package_id" example:"pkg-1000"`
}

// TopUpItem チャージリクエスト
// @Description チャージリクエスト
type TopUpItem struct {
	ID            string  `json:"id" example:"a1b2c3d4-e5f6-7890-abcd-ef1234567890"`
	UserID        string  `json:"user_id" example:"user123"`
	PackageID     string  `json:"package_id" example:"pkg-1000"`
	FlowersAmount int64   `json:"flowers_amount" example:"1000"`
	PriceAmount   int64   `json:"price_amount" example:"10000"`
	Status        string  `json:"status" example:"pending" enums:"pending,confirmed,rejected"`
	InvoiceID     *string `json:"invoice_id,omitempty" example:"inv-20260101-0001"`
	PaymentURL    *string `json:"payment_url,omitempty" example:"https://pay.example.com/qr/inv-20260101-0001"`
	FinalAmount   *int64  `json:"final_amount,omitempty" example:"10150"`
	ExpiresAt     *string `json:"expires_at,omitempty" example:"2026-01-01T00:15:00Z"`
	AdminNote     *string `json:"admin_note,omitempty" example:"transfer verified"`
	CreatedAt     string  `json:"created_at" example:"2026-01-01T00:00:00Z"`
	UpdatedAt     string  `json:"updated_at" example:"2026-01-01T00:00:00Z"`
}

// CreateTopUpResponse チャージ作成レスポンス
// @Description チャージ作成レスポンス。gateway_degradedがtrueの場合は請求なしで作成され、管理者の手動確認を待つ
type CreateTopUpResponse struct {
	TopUp           TopUpItem `json:"topup"`
	GatewayDegraded bool      `json:"gateway_degraded" example:"false"`
}

// TopUpStatusResponse 支払い状況レスポンス
// @Description 支払い状況レスポンス
type TopUpStatusResponse struct {
	TopUp         TopUpItem `json:"topup"`
	PaymentStatus string    `json:"payment_status,omitempty" example:"paid"`
	Expired       bool      `json:"expired" example:"false"`
}

// TopUpListResponse チャージリクエスト一覧
// @Description チャージリクエスト一覧
type TopUpListResponse struct {
	TopUps []TopUpItem `json:"topups"`
	Limit  int         `json:"limit" example:"50"`
	Offset int         `json:"offset" example:"0"`
}

// AdminUpdateTopUpRequest チャージリクエストの管理者更新
// @Description 指定された項目のみ更新する
type AdminUpdateTopUpRequest struct {
	Status    *string `json:"status,omitempty" example:"confirmed" enums:"confirmed,rejected"`
	AdminNote *string `json:"admin_note,omitempty" example:"transfer verified"`
}
