package history

import "flower-server/internal/domain/ledger"

// GetBalanceResponse 残高取得レスポンス
type GetBalanceResponse struct {
	UserID  string
	Balance int64
}

// GetLedgerRequest 台帳履歴取得リクエスト
type GetLedgerRequest struct {
	UserID    string
	Limit     int
	Offset    int
	Direction string // optional: "credit" or "debit"
}

// GetLedgerResponse 台帳履歴取得レスポンス
type GetLedgerResponse struct {
	Entries []*ledger.Entry
	Total   int
	Limit   int
	Offset  int
}
