package donation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"flower-server/internal/application/notifier"
	"flower-server/internal/domain/donation"
	"flower-server/internal/domain/event"
	"flower-server/internal/domain/payment"
	"flower-server/internal/infrastructure/config"
	otelinfra "flower-server/internal/infrastructure/observability/otel"
)

// staleAfter 有効期限からこの時間を過ぎた請求は定期照合の対象外とする
const staleAfter = 24 * time.Hour

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 100
)

// DonationApplicationService 寄付精算アプリケーションサービス
// 寄付は台帳に触れず、ゲートウェイの支払い結果のみを記録する
type DonationApplicationService struct {
	donationRepo donation.Repository
	gateway      payment.Gateway
	callbackURL  string
	minAmount    int64
	maxAmount    int64
	notifier     *notifier.Notifier
	logger       *otelinfra.Logger
	metrics      *otelinfra.Metrics
	tracer       trace.Tracer
	newID        func() string
	now          func() time.Time

	sweepMu     sync.Mutex
	sweepCursor *payment.SweepCursor
}

// NewDonationApplicationService 新しいDonationApplicationServiceを作成
func NewDonationApplicationService(
	donationRepo donation.Repository,
	gateway payment.Gateway,
	callbackURL string,
	settlement *config.SettlementConfig,
	notifier *notifier.Notifier,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
) *DonationApplicationService {
	return &DonationApplicationService{
		donationRepo: donationRepo,
		gateway:      gateway,
		callbackURL:  callbackURL,
		minAmount:    settlement.MinimumDonation,
		maxAmount:    settlement.MaximumDonation,
		notifier:     notifier,
		logger:       logger,
		metrics:      metrics,
		tracer:       otel.Tracer("donation-service"),
		newID:        uuid.NewString,
		now:          time.Now,
	}
}

// Create 寄付を作成し請求を発行する
// ゲートウェイが失敗した場合は何も保存しない
func (s *DonationApplicationService) Create(ctx context.Context, req *CreateDonationRequest) (*DonationResponse, error) {
	ctx, span := s.tracer.Start(ctx, "DonationApplicationService.Create")
	defer span.End()

	span.SetAttributes(attribute.Int64("amount", req.Amount))
	fields := map[string]interface{}{"amount": req.Amount}
	s.logger.Info(ctx, "Creating donation", fields)

	d, err := donation.NewDonation(s.newID(), req.DonorName, req.Message, req.Amount, s.minAmount, s.maxAmount)
	if err != nil {
		return nil, s.fail(ctx, span, "Invalid donation", err, "donation_create_failed", fields)
	}

	invoice, err := s.gateway.CreatePayment(ctx, d.Amount(), s.callbackURL)
	if err != nil {
		return nil, s.fail(ctx, span, "Failed to create donation invoice", err, "donation_create_failed", fields)
	}
	d.AttachInvoice(invoice)

	if err := s.donationRepo.Save(ctx, d); err != nil {
		return nil, s.fail(ctx, span, "Failed to save donation", fmt.Errorf("failed to save donation: %w", err), "donation_create_failed", fields)
	}

	s.metrics.RecordSettlement(ctx, "donation", donation.StatusPending.String())
	span.SetAttributes(attribute.String("donation_id", d.ID()))
	s.logger.Info(ctx, "Donation created", map[string]interface{}{
		"donation_id": d.ID(),
		"invoice_id":  invoice.InvoiceID,
		"amount":      d.Amount(),
	})
	return toResponse(d), nil
}

// CheckStatus 寄付者による支払い状況の確認
func (s *DonationApplicationService) CheckStatus(ctx context.Context, donationID string) (*CheckStatusResponse, error) {
	ctx, span := s.tracer.Start(ctx, "DonationApplicationService.CheckStatus")
	defer span.End()

	span.SetAttributes(attribute.String("donation_id", donationID))
	fields := map[string]interface{}{"donation_id": donationID}

	d, err := s.donationRepo.FindByID(ctx, donationID)
	if err != nil {
		return nil, s.fail(ctx, span, "Failed to find donation", err, "donation_check_failed", fields)
	}

	resp := &CheckStatusResponse{Expired: d.IsExpired(s.now())}
	if d.Status().IsTerminal() || d.InvoiceID() == nil {
		resp.Donation = toResponse(d)
		return resp, nil
	}

	report, err := s.gateway.CheckStatus(ctx, *d.InvoiceID())
	if err != nil {
		return nil, s.fail(ctx, span, "Failed to check payment status", err, "donation_check_failed", fields)
	}
	resp.PaymentStatus = report.Status.String()

	if _, err := s.apply(ctx, d, report.Status, report.PaidAt); err != nil {
		return nil, s.fail(ctx, span, "Failed to settle donation", err, "donation_check_failed", fields)
	}
	if d, err = s.donationRepo.FindByID(ctx, donationID); err != nil {
		return nil, s.fail(ctx, span, "Failed to reload donation", err, "donation_check_failed", fields)
	}

	resp.Donation = toResponse(d)
	return resp, nil
}

// HandleWebhook ゲートウェイからの通知を処理する
func (s *DonationApplicationService) HandleWebhook(ctx context.Context, req *WebhookRequest) (*WebhookResponse, error) {
	ctx, span := s.tracer.Start(ctx, "DonationApplicationService.HandleWebhook")
	defer span.End()

	span.SetAttributes(
		attribute.String("invoice_id", req.InvoiceID),
		attribute.String("status", req.Status.String()),
	)
	fields := map[string]interface{}{
		"invoice_id": req.InvoiceID,
		"status":     req.Status.String(),
	}
	s.logger.Info(ctx, "Handling donation webhook", fields)

	d, err := s.donationRepo.FindByInvoiceID(ctx, req.InvoiceID)
	if err != nil {
		if errors.Is(err, donation.ErrDonationNotFound) {
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, err
		}
		return nil, s.fail(ctx, span, "Failed to find donation", err, "donation_webhook_failed", fields)
	}

	changed, err := s.apply(ctx, d, req.Status, req.PaidAt)
	if err != nil {
		return nil, s.fail(ctx, span, "Failed to settle donation", err, "donation_webhook_failed", fields)
	}
	if d, err = s.donationRepo.FindByID(ctx, d.ID()); err != nil {
		return nil, s.fail(ctx, span, "Failed to reload donation", err, "donation_webhook_failed", fields)
	}

	return &WebhookResponse{DonationID: d.ID(), Status: d.Status().String(), Changed: changed}, nil
}

// ListRecent 支払い済みの寄付を新しい順に返す
func (s *DonationApplicationService) ListRecent(ctx context.Context, limit int) ([]*PublicDonation, error) {
	ctx, span := s.tracer.Start(ctx, "DonationApplicationService.ListRecent")
	defer span.End()

	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	span.SetAttributes(attribute.Int("limit", limit))

	donations, err := s.donationRepo.FindRecentPaid(ctx, limit)
	if err != nil {
		return nil, s.fail(ctx, span, "Failed to list recent donations", fmt.Errorf("failed to list recent donations: %w", err), "donation_list_failed", nil)
	}

	out := make([]*PublicDonation, 0, len(donations))
	for _, d := range donations {
		out = append(out, &PublicDonation{
			ID:        d.ID(),
			DonorName: d.DonorName(),
			Message:   d.Message(),
			Amount:    d.Amount(),
			PaidAt:    d.PaidAt(),
		})
	}
	return out, nil
}

// Reconcile 請求を持つpendingの寄付をゲートウェイに問い合わせて反映する
func (s *DonationApplicationService) Reconcile(ctx context.Context, limit int) (*ReconcileResult, error) {
	ctx, span := s.tracer.Start(ctx, "DonationApplicationService.Reconcile")
	defer span.End()

	// 前回の続きから取得し、末尾まで到達したら先頭へ戻る
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	now := s.now()
	donations, err := s.donationRepo.FindPendingWithInvoice(ctx, now.Add(-staleAfter), s.sweepCursor, limit)
	if err != nil {
		return nil, s.fail(ctx, span, "Failed to find pending donations", err, "donation_reconcile_failed", nil)
	}

	var last *payment.SweepCursor
	if n := len(donations); n > 0 {
		last = &payment.SweepCursor{CreatedAt: donations[n-1].CreatedAt(), ID: donations[n-1].ID()}
	}
	s.sweepCursor = payment.NextSweepCursor(len(donations), limit, last)

	result := &ReconcileResult{}
	for _, d := range donations {
		result.Checked++

		report, err := s.gateway.CheckStatus(ctx, *d.InvoiceID())
		if err != nil {
			result.Failed++
			s.logger.Warn(ctx, "Failed to check donation payment", map[string]interface{}{
				"donation_id": d.ID(),
				"error":       err.Error(),
			})
			continue
		}
		changed, err := s.apply(ctx, d, report.Status, report.PaidAt)
		if err != nil {
			result.Failed++
			s.logger.Error(ctx, "Failed to settle donation", err, map[string]interface{}{
				"donation_id": d.ID(),
			})
			continue
		}
		if changed {
			result.Settled++
		}
	}

	span.SetAttributes(
		attribute.Int("checked", result.Checked),
		attribute.Int("settled", result.Settled),
		attribute.Int("failed", result.Failed),
	)
	return result, nil
}

// apply 請求ステータスを寄付に反映する
// pending以外からの遷移は行わず、更新できた場合のみtrueを返す
func (s *DonationApplicationService) apply(ctx context.Context, d *donation.Donation, status payment.InvoiceStatus, paidAt *time.Time) (bool, error) {
	target := donation.StatusFromInvoice(status)
	if target == donation.StatusPending {
		return false, nil
	}

	if target == donation.StatusPaid && paidAt == nil {
		now := s.now().UTC()
		paidAt = &now
	}

	won, err := s.donationRepo.TransitionStatus(ctx, d.ID(), donation.StatusPending, target, paidAt)
	if err != nil {
		return false, fmt.Errorf("failed to transition donation: %w", err)
	}
	if !won {
		current, err := s.donationRepo.FindByID(ctx, d.ID())
		if err == nil && target == donation.StatusPaid && current.Status() != donation.StatusPaid {
			s.logger.Warn(ctx, "Payment reported for closed donation", map[string]interface{}{
				"donation_id": d.ID(),
				"status":      current.Status().String(),
			})
		}
		return false, nil
	}

	s.metrics.RecordSettlement(ctx, "donation", target.String())
	if target == donation.StatusPaid {
		s.notifier.Notify(ctx, event.TypeDonationPaid, d.ID(), "", d.Amount(), map[string]string{
			"donor_name": d.DonorName(),
		})
	}
	s.logger.Info(ctx, "Donation settled", map[string]interface{}{
		"donation_id": d.ID(),
		"status":      target.String(),
	})
	return true, nil
}

func (s *DonationApplicationService) fail(ctx context.Context, span trace.Span, msg string, err error, errorType string, fields map[string]interface{}) error {
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
	s.logger.Error(ctx, msg, err, fields)
	s.metrics.RecordError(ctx, errorType)
	return err
}
