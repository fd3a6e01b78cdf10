package handler

// CreateWithdrawalRequest 出金リクエスト作成
// @Description 出金リクエスト作成
type CreateWithdrawalRequest struct {
	MethodID      string `json:"method_id" example:"bank-bca"`
	AccountNumber string `json:"account_number" example:"1234567890"`
	AccountName   string `json:"account_name" example:"Budi Santoso"`
	FlowersAmount int64  `json:"flowers_amount" example:"1000"`
}

// WithdrawalItem 出金リクエスト
// @Description 出金リクエスト
type WithdrawalItem struct {
	ID            string  `json:"id" example:"a1b2c3d4-e5f6-7890-abcd-ef1234567890"`
	UserID        string  `json:"user_id" example:"user123"`
	MethodID      string  `json:"method_id" example:"bank-bca"`
	AccountNumber string  `json:"account_number" example:"1234567890"`
	AccountName   string  `json:"account_name" example:"Budi Santoso"`
	FlowersAmount int64   `json:"flowers_amount" example:"1000"`
	CashAmount    int64   `json:"cash_amount" example:"7500"`
	Status        string  `json:"status" example:"pending" enums:"pending,approved,paid,rejected"`
	AdminNote     *string `json:"admin_note,omitempty" example:"transferred"`
	CreatedAt     string  `json:"created_at" example:"2026-01-01T00:00:00Z"`
	UpdatedAt     string  `json:"updated_at" example:"2026-01-01T00:00:00Z"`
}

// WithdrawalListResponse 出金リクエスト一覧
// @Description 出金リクエスト一覧
type WithdrawalListResponse struct {
	Withdrawals []WithdrawalItem `json:"withdrawals"`
	Limit       int              `json:"limit" example:"50"`
	Offset      int              `json:"offset" example:"0"`
}

// AdminUpdateWithdrawalRequest 出金リクエストの管理者更新
// @Description 指定された項目のみ更新する
type AdminUpdateWithdrawalRequest struct {
	Status    *string `json:"status,omitempty" example:"approved" enums:"approved,paid,rejected"`
	AdminNote *string `json:"admin_note,omitempty" example:"transferred"`
}
