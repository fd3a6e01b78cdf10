// Package qrpay 外部QR決済ゲートウェイのHTTPクライアント
package qrpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"flower-server/internal/domain/payment"
	"flower-server/internal/infrastructure/config"
	otelinfra "flower-server/internal/infrastructure/observability/otel"
)

const maxResponseBytes = 1 << 20

var tracer = otel.Tracer("qrpay-client")

// Client QR決済ゲートウェイのクライアント
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	metrics    *otelinfra.Metrics
}

// NewClient 新しいClientを作成
func NewClient(cfg *config.GatewayConfig, metrics *otelinfra.Metrics) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
	}
}

type createPaymentRequest struct {
	Amount      int64  `json:"amount"`
	CallbackURL string `json:"callback_url"`
}

type createPaymentResponse struct {
	InvoiceID   string `json:"invoice_id"`
	PaymentURL  string `json:"payment_url"`
	FinalAmount int64  `json:"final_amount"`
	ExpiresAt   string `json:"expires_at"`
}

type statusResponse struct {
	InvoiceID string  `json:"invoice_id"`
	Status    string  `json:"status"`
	PaidAt    *string `json:"paid_at"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CreatePayment 請求を作成する
func (c *Client) CreatePayment(ctx context.Context, amount int64, callbackURL string) (*payment.Invoice, error) {
	const op = "create_payment"
	ctx, span := tracer.Start(ctx, "qrpay.CreatePayment")
	defer span.End()
	span.SetAttributes(attribute.Int64("amount", amount))

	if amount <= 0 {
		return nil, fail(span, op, &payment.GatewayError{Op: op, Err: fmt.Errorf("amount must be positive: %d", amount)})
	}

	body, err := json.Marshal(createPaymentRequest{Amount: amount, CallbackURL: callbackURL})
	if err != nil {
		return nil, fail(span, op, &payment.GatewayError{Op: op, Err: err})
	}

	var resp createPaymentResponse
	if err := c.do(ctx, op, http.MethodPost, "/v1/payments", body, &resp); err != nil {
		return nil, fail(span, op, err)
	}

	if resp.InvoiceID == "" || resp.PaymentURL == "" {
		return nil, fail(span, op, &payment.GatewayError{Op: op, Err: errors.New("response is missing invoice_id or payment_url")})
	}
	if resp.FinalAmount < amount {
		return nil, fail(span, op, &payment.GatewayError{Op: op, Err: fmt.Errorf("final_amount %d is below requested amount %d", resp.FinalAmount, amount)})
	}
	expiresAt, err := time.Parse(time.RFC3339, resp.ExpiresAt)
	if err != nil {
		return nil, fail(span, op, &payment.GatewayError{Op: op, Err: fmt.Errorf("invalid expires_at: %w", err)})
	}

	span.SetAttributes(attribute.String("invoice_id", resp.InvoiceID))
	span.SetStatus(otelcodes.Ok, "")
	return &payment.Invoice{
		InvoiceID:   resp.InvoiceID,
		PaymentURL:  resp.PaymentURL,
		FinalAmount: resp.FinalAmount,
		ExpiresAt:   expiresAt.UTC(),
	}, nil
}

// CheckStatus 請求の状態を問い合わせる
func (c *Client) CheckStatus(ctx context.Context, invoiceID string) (*payment.StatusReport, error) {
	const op = "check_status"
	ctx, span := tracer.Start(ctx, "qrpay.CheckStatus")
	defer span.End()
	span.SetAttributes(attribute.String("invoice_id", invoiceID))

	if invoiceID == "" {
		return nil, fail(span, op, &payment.GatewayError{Op: op, Err: errors.New("invoice id is empty")})
	}

	var resp statusResponse
	if err := c.do(ctx, op, http.MethodGet, "/v1/payments/"+url.PathEscape(invoiceID), nil, &resp); err != nil {
		return nil, fail(span, op, err)
	}

	report, err := ParseStatus(resp.InvoiceID, resp.Status, resp.PaidAt)
	if err != nil {
		return nil, fail(span, op, &payment.GatewayError{Op: op, Err: err})
	}
	if report.InvoiceID == "" {
		report.InvoiceID = invoiceID
	} else if report.InvoiceID != invoiceID {
		return nil, fail(span, op, &payment.GatewayError{Op: op, Err: fmt.Errorf("invoice_id %q does not match requested %q", report.InvoiceID, invoiceID)})
	}

	span.SetAttributes(attribute.String("status", report.Status.String()))
	span.SetStatus(otelcodes.Ok, "")
	return report, nil
}

// ParseStatus ゲートウェイの状態表現をStatusReportに変換する
// Webhookの本文もこの形式で届く
func ParseStatus(invoiceID, status string, paidAt *string) (*payment.StatusReport, error) {
	s, err := payment.NewInvoiceStatus(strings.ToLower(strings.TrimSpace(status)))
	if err != nil {
		return nil, err
	}

	report := &payment.StatusReport{InvoiceID: invoiceID, Status: s}
	if paidAt != nil && *paidAt != "" {
		t, err := time.Parse(time.RFC3339, *paidAt)
		if err != nil {
			return nil, fmt.Errorf("invalid paid_at: %w", err)
		}
		t = t.UTC()
		report.PaidAt = &t
	}
	return report, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &payment.GatewayError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(ctx, op, "transport_error", start)
		return &payment.GatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.record(ctx, op, "transport_error", start)
		return &payment.GatewayError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.record(ctx, op, "http_error", start)
		var errResp errorResponse
		if json.Unmarshal(raw, &errResp) == nil && (errResp.Error != "" || errResp.Message != "") {
			return &payment.GatewayError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s: %s", errResp.Error, errResp.Message)}
		}
		return &payment.GatewayError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		c.record(ctx, op, "decode_error", start)
		return &payment.GatewayError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	c.record(ctx, op, "ok", start)
	return nil
}

func (c *Client) record(ctx context.Context, op, outcome string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordGatewayCall(ctx, op, outcome, time.Since(start).Seconds())
}

func fail(span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
	var gwErr *payment.GatewayError
	if !errors.As(err, &gwErr) {
		err = &payment.GatewayError{Op: op, Err: err}
	}
	return err
}
