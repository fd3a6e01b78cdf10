package handler

// PaymentWebhookRequest 決済ゲートウェイからの通知
// @Description 決済ゲートウェイからの通知。X-Callback-Signatureヘッダーに本文のHMAC-SHA256（16進）を付与する
type PaymentWebhookRequest struct {
	InvoiceID string  `json:"invoice_id" example:"inv-20260101-0001"`
	Status    string  `json:"status" example:"paid" enums:"pending,paid,expired,failed"`
	PaidAt    *string `json:"paid_at,omitempty" example:"2026-01-01T00:05:00Z"`
}

// PaymentWebhookResponse 通知の処理結果
// @Description 通知の処理結果
type PaymentWebhookResponse struct {
	Kind    string `json:"kind" example:"topup" enums:"topup,donation"`
	ID      string `json:"id" example:"a1b2c3d4-e5f6-7890-abcd-ef1234567890"`
	Status  string `json:"status" example:"confirmed"`
	Changed bool   `json:"changed" example:"true"`
}
