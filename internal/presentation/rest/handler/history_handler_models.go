package handler

// BalanceResponse 残高レスポンス
// @Description 残高レスポンス
type BalanceResponse struct {
	UserID  string `json:"user_id" example:"user123"`
	Balance int64  `json:"balance" example:"1500"`
}

// LedgerEntryItem 台帳エントリ
// @Description 台帳エントリ
type LedgerEntryItem struct {
	EntryID      string  `json:"entry_id" example:"7f1c2a9e-3b4d-4c6e-9f10-2a3b4c5d6e7f"`
	Direction    string  `json:"direction" example:"debit" enums:"credit,debit"`
	Amount       int64   `json:"amount" example:"100"`
	Reason       string  `json:"reason" example:"gift sent"`
	ReferenceID  *string `json:"reference_id,omitempty" example:"a1b2c3d4-e5f6-7890-abcd-ef1234567890"`
	BalanceAfter int64   `json:"balance_after" example:"1400"`
	CreatedAt    string  `json:"created_at" example:"2026-01-01T00:00:00Z"`
}

// LedgerResponse 台帳履歴レスポンス
// @Description 台帳履歴レスポンス
type LedgerResponse struct {
	Entries []LedgerEntryItem `json:"entries"`
	Total   int               `json:"total" example:"100"`
	Limit   int               `json:"limit" example:"50"`
	Offset  int               `json:"offset" example:"0"`
}
