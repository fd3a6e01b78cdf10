package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics メトリクス定義
type Metrics struct {
	// 台帳エントリ数
	LedgerEntryCount metric.Int64Counter

	// 台帳で移動したフラワー量
	FlowerVolume metric.Int64Counter

	// 精算の状態遷移数
	SettlementCount metric.Int64Counter

	// 決済ゲートウェイ呼び出し数
	GatewayCallCount metric.Int64Counter

	// 決済ゲートウェイの応答時間
	GatewayLatency metric.Float64Histogram

	// リクエスト数
	RequestCount metric.Int64Counter

	// レスポンス時間
	ResponseTime metric.Float64Histogram

	// エラー率
	ErrorCount metric.Int64Counter
}

// NewMetrics 新しいMetricsを作成
func NewMetrics(meterName string) (*Metrics, error) {
	meter := otel.Meter(meterName)

	ledgerEntryCount, err := meter.Int64Counter(
		"ledger_entries_total",
		metric.WithDescription("Total number of ledger entries appended"),
	)
	if err != nil {
		return nil, err
	}

	flowerVolume, err := meter.Int64Counter(
		"ledger_flowers_total",
		metric.WithDescription("Total flowers moved through the ledger"),
	)
	if err != nil {
		return nil, err
	}

	settlementCount, err := meter.Int64Counter(
		"settlements_total",
		metric.WithDescription("Total number of settlement state transitions"),
	)
	if err != nil {
		return nil, err
	}

	gatewayCallCount, err := meter.Int64Counter(
		"payment_gateway_calls_total",
		metric.WithDescription("Total number of payment gateway calls"),
	)
	if err != nil {
		return nil, err
	}

	gatewayLatency, err := meter.Float64Histogram(
		"payment_gateway_latency_seconds",
		metric.WithDescription("Payment gateway call latency in seconds"),
	)
	if err != nil {
		return nil, err
	}

	requestCount, err := meter.Int64Counter(
		"requests_total",
		metric.WithDescription("Total number of requests"),
	)
	if err != nil {
		return nil, err
	}

	responseTime, err := meter.Float64Histogram(
		"response_time_seconds",
		metric.WithDescription("Response time in seconds"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"errors_total",
		metric.WithDescription("Total number of errors"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		LedgerEntryCount: ledgerEntryCount,
		FlowerVolume:     flowerVolume,
		SettlementCount:  settlementCount,
		GatewayCallCount: gatewayCallCount,
		GatewayLatency:   gatewayLatency,
		RequestCount:     requestCount,
		ResponseTime:     responseTime,
		ErrorCount:       errorCount,
	}, nil
}

// RecordLedgerEntry 台帳エントリの追記を記録
func (m *Metrics) RecordLedgerEntry(ctx context.Context, direction, reason string, amount int64) {
	attrs := metric.WithAttributes(
		attribute.String("direction", direction),
		attribute.String("reason", reason),
	)
	m.LedgerEntryCount.Add(ctx, 1, attrs)
	m.FlowerVolume.Add(ctx, amount, attrs)
}

// RecordSettlement 精算の状態遷移を記録
func (m *Metrics) RecordSettlement(ctx context.Context, kind, status string) {
	m.SettlementCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordGatewayCall 決済ゲートウェイ呼び出しを記録
func (m *Metrics) RecordGatewayCall(ctx context.Context, operation, outcome string, duration float64) {
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	)
	m.GatewayCallCount.Add(ctx, 1, attrs)
	m.GatewayLatency.Record(ctx, duration, attrs)
}

// RecordRequest リクエストを記録
func (m *Metrics) RecordRequest(ctx context.Context, method, path string) {
	m.RequestCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("path", path),
		),
	)
}

// RecordResponseTime レスポンス時間を記録
func (m *Metrics) RecordResponseTime(ctx context.Context, method, path string, duration float64) {
	m.ResponseTime.Record(ctx, duration,
		metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("path", path),
		),
	)
}

// RecordError エラーを記録
func (m *Metrics) RecordError(ctx context.Context, errorType string) {
	m.ErrorCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("error_type", errorType),
		),
	)
}
