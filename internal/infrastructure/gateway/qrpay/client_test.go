package qrpay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flower-server/internal/domain/payment"
	"flower-server/internal/infrastructure/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(&config.GatewayConfig{
		BaseURL: srv.URL + "/",
		APIKey:  "secret-key",
		Timeout: 2 * time.Second,
	}, nil)
}

func TestClient_CreatePayment(t *testing.T) {
	t.Run("正常系: 請求が作成される", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/payments", r.URL.Path)
			assert.Equal(t, "Bearer secret-key", r.Header.Get("Authorization"))

			var body createPaymentRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, int64(10000), body.Amount)
			assert.Equal(t, "https://example.com/callback", body.CallbackURL)

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"invoice_id":"inv-1","payment_url":"https://pay.example.com/inv-1","final_amount":10070,"expires_at":"2026-01-02T03:04:05Z"}`))
		})

		invoice, err := client.CreatePayment(context.Background(), 10000, "https://example.com/callback")
		require.NoError(t, err)
		assert.Equal(t, "inv-1", invoice.InvoiceID)
		assert.Equal(t, "https://pay.example.com/inv-1", invoice.PaymentURL)
		assert.Equal(t, int64(10070), invoice.FinalAmount)
		assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), invoice.ExpiresAt)
	})

	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
	}{
		{
			name:       "異常系: 5xxはGatewayError",
			status:     http.StatusBadGateway,
			body:       `{"error":"upstream","message":"bank unavailable"}`,
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "異常系: 4xxはGatewayError",
			status:     http.StatusUnauthorized,
			body:       `unauthorized`,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "異常系: 不正なJSON",
			status:     http.StatusOK,
			body:       `{"invoice_id":`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "異常系: 必須フィールド欠落",
			status:     http.StatusOK,
			body:       `{"invoice_id":"inv-1","final_amount":10000,"expires_at":"2026-01-02T03:04:05Z"}`,
			wantStatus: 0,
		},
		{
			name:       "異常系: 期限の形式が不正",
			status:     http.StatusOK,
			body:       `{"invoice_id":"inv-1","payment_url":"u","final_amount":10000,"expires_at":"tomorrow"}`,
			wantStatus: 0,
		},
		{
			name:       "異常系: 請求額より少ない最終金額",
			status:     http.StatusOK,
			body:       `{"invoice_id":"inv-1","payment_url":"u","final_amount":9000,"expires_at":"2026-01-02T03:04:05Z"}`,
			wantStatus: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			invoice, err := client.CreatePayment(context.Background(), 10000, "https://example.com/callback")
			assert.Nil(t, invoice)
			require.Error(t, err)
			assert.ErrorIs(t, err, payment.ErrGateway)

			var gwErr *payment.GatewayError
			require.ErrorAs(t, err, &gwErr)
			assert.Equal(t, "create_payment", gwErr.Op)
			assert.Equal(t, tt.wantStatus, gwErr.StatusCode)
		})
	}

	t.Run("異常系: 接続できない", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		client := NewClient(&config.GatewayConfig{BaseURL: srv.URL, Timeout: time.Second}, nil)

		_, err := client.CreatePayment(context.Background(), 10000, "cb")
		assert.ErrorIs(t, err, payment.ErrGateway)
	})

	t.Run("異常系: 金額が0以下", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("gateway must not be called")
		})

		_, err := client.CreatePayment(context.Background(), 0, "cb")
		assert.ErrorIs(t, err, payment.ErrGateway)
	})
}

func TestClient_CheckStatus(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus payment.InvoiceStatus
		wantPaidAt bool
		wantErr    bool
	}{
		{
			name:       "正常系: 支払い済み",
			body:       `{"invoice_id":"inv-1","status":"paid","paid_at":"2026-01-02T03:04:05Z"}`,
			wantStatus: payment.InvoiceStatusPaid,
			wantPaidAt: true,
		},
		{
			name:       "正常系: 支払い待ち",
			body:       `{"invoice_id":"inv-1","status":"pending","paid_at":null}`,
			wantStatus: payment.InvoiceStatusPending,
		},
		{
			name:       "正常系: 大文字のステータス",
			body:       `{"invoice_id":"inv-1","status":"EXPIRED"}`,
			wantStatus: payment.InvoiceStatusExpired,
		},
		{
			name:       "正常系: 請求IDの省略は要求したIDで補う",
			body:       `{"status":"pending"}`,
			wantStatus: payment.InvoiceStatusPending,
		},
		{
			name:    "異常系: 未知のステータス",
			body:    `{"invoice_id":"inv-1","status":"refunded"}`,
			wantErr: true,
		},
		{
			name:    "異常系: 別の請求の応答",
			body:    `{"invoice_id":"inv-2","status":"paid","paid_at":"2026-01-02T03:04:05Z"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/v1/payments/inv-1", r.URL.Path)
				_, _ = w.Write([]byte(tt.body))
			})

			report, err := client.CheckStatus(context.Background(), "inv-1")
			if tt.wantErr {
				assert.ErrorIs(t, err, payment.ErrGateway)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "inv-1", report.InvoiceID)
			assert.Equal(t, tt.wantStatus, report.Status)
			assert.Equal(t, tt.wantPaidAt, report.PaidAt != nil)
		})
	}
}

func TestParseStatus(t *testing.T) {
	paidAt := "2026-01-02T03:04:05+07:00"
	report, err := ParseStatus("inv-1", "paid", &paidAt)
	require.NoError(t, err)
	require.NotNil(t, report.PaidAt)
	assert.Equal(t, time.UTC, report.PaidAt.Location())
	assert.Equal(t, 20, report.PaidAt.Hour())

	bad := "yesterday"
	_, err = ParseStatus("inv-1", "paid", &bad)
	assert.Error(t, err)
}
