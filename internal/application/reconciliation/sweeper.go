// Package reconciliation 未確定の請求をゲートウェイと照合する定期ジョブ
package reconciliation

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	donationapp "flower-server/internal/application/donation"
	topupapp "flower-server/internal/application/topup"
	otelinfra "flower-server/internal/infrastructure/observability/otel"
)

// TopUpReconciler チャージの照合
type TopUpReconciler interface {
	Reconcile(ctx context.Context, limit int) (*topupapp.ReconcileResult, error)
}

// DonationReconciler 寄付の照合
type DonationReconciler interface {
	Reconcile(ctx context.Context, limit int) (*donationapp.ReconcileResult, error)
}

// Sweeper チャージと寄付の照合をまとめて実行する
// 確定処理は利用者のポーリングやWebhookと同じ条件付き更新を通る
type Sweeper struct {
	topUps    TopUpReconciler
	donations DonationReconciler
	batchSize int
	logger    *otelinfra.Logger
	tracer    trace.Tracer
}

// NewSweeper 新しいSweeperを作成
func NewSweeper(topUps TopUpReconciler, donations DonationReconciler, batchSize int, logger *otelinfra.Logger) *Sweeper {
	return &Sweeper{
		topUps:    topUps,
		donations: donations,
		batchSize: batchSize,
		logger:    logger.WithComponent("reconciler"),
		tracer:    otel.Tracer("reconciliation"),
	}
}

// Sweep 1回分の照合を実行する
// 片方が失敗してももう片方は実行し、エラーはまとめて返す
func (s *Sweeper) Sweep(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "Sweeper.Sweep")
	defer span.End()

	var errs []error

	if s.topUps != nil {
		result, err := s.topUps.Reconcile(ctx, s.batchSize)
		if err != nil {
			errs = append(errs, err)
		} else {
			span.SetAttributes(
				attribute.Int("topups.checked", result.Checked),
				attribute.Int("topups.confirmed", result.Confirmed),
			)
			if result.Checked > 0 {
				s.logger.Info(ctx, "Top-up reconciliation finished", map[string]interface{}{
					"checked":   result.Checked,
					"confirmed": result.Confirmed,
					"failed":    result.Failed,
				})
			}
		}
	}

	if s.donations != nil {
		result, err := s.donations.Reconcile(ctx, s.batchSize)
		if err != nil {
			errs = append(errs, err)
		} else {
			span.SetAttributes(
				attribute.Int("donations.checked", result.Checked),
				attribute.Int("donations.settled", result.Settled),
			)
			if result.Checked > 0 {
				s.logger.Info(ctx, "Donation reconciliation finished", map[string]interface{}{
					"checked": result.Checked,
					"settled": result.Settled,
					"failed":  result.Failed,
				})
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return err
	}
	return nil
}
