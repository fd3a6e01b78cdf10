package payment

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrGateway 決済ゲートウェイ呼び出しの失敗（通信・非2xx・不正なレスポンス）
var ErrGateway = errors.New("payment gateway error")

// GatewayError 決済ゲートウェイのエラー詳細
type GatewayError struct {
	Op         string
	StatusCode int
	Err        error
}

// Error エラーメッセージを返す
func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("payment gateway %s failed (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("payment gateway %s failed: %v", e.Op, e.Err)
}

// Unwrap 元のエラーを返す
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Is errors.Is(err, ErrGateway) を満たす
func (e *GatewayError) Is(target error) bool {
	return target == ErrGateway
}

// Invoice ゲートウェイが発行した請求
type Invoice struct {
	InvoiceID   string
	PaymentURL  string
	FinalAmount int64 // 手数料込みで利用者が支払う金額
	ExpiresAt   time.Time
}

// StatusReport 請求の支払い状況
type StatusReport struct {
	InvoiceID string
	Status    InvoiceStatus
	PaidAt    *time.Time
}

// Gateway 外部QR決済ゲートウェイ
type Gateway interface {
	// CreatePayment 請求を作成する
	CreatePayment(ctx context.Context, amount int64, callbackURL string) (*Invoice, error)

	// CheckStatus 請求の状態を問い合わせる
	CheckStatus(ctx context.Context, invoiceID string) (*StatusReport, error)
}
