package topup

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
	"flower-server/internal/domain/catalog"
	"flower-server/internal/domain/event"
	"flower-server/internal/domain/ledger"
	"flower-server/internal/domain/payment"
	"flower-server/internal/domain/service"
	"flower-server/internal/domain/topup"
	otelinfra "flower-server/internal/infrastructure/observability/otel"
)

// staleAfter 有効期限からこの時間を過ぎた請求は定期照合の対象外とする
const staleAfter = 24 * time.Hour

// TopUpApplicationService チャージ精算アプリケーションサービス
type TopUpApplicationService struct {
	catalogRepo   catalog.Repository
	topUpRepo     topup.Repository
	ledgerService *service.LedgerService
	txManager     ledger.TransactionManager
	gateway       payment.Gateway
	callbackURL   string
	notifier      *notifier.Notifier
	logger        *otelinfra.Logger
	metrics       *otelinfra.Metrics
	tracer        trace.Tracer
	newID         func() string
	now           func() time.Time

	sweepMu     sync.Mutex
	sweepCursor *payment.SweepCursor
}

// NewTopUpApplicationService 新しいTopUpApplicationServiceを作成
func NewTopUpApplicationService(
	catalogRepo catalog.Repository,
	topUpRepo topup.Repository,
	ledgerService *service.LedgerService,
	txManager ledger.TransactionManager,
	gateway payment.Gateway,
	callbackURL string,
	notifier *notifier.Notifier,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
) *TopUpApplicationService {
	return &TopUpApplicationService{
		catalogRepo:   catalogRepo,
		topUpRepo:     topUpRepo,
		ledgerService: ledgerService,
		txManager:     txManager,
		gateway:       gateway,
		callbackURL:   callbackURL,
		notifier:      notifier,
		logger:        logger,
		metrics:       metrics,
		tracer:        otel.Tracer("topup-service"),
		newID:         uuid.NewString,
		now:           time.Now,
	}
}

// Create チャージリクエストを作成する
// ゲートウェイ呼び出しはトランザクション外で行い、失敗しても請求なしのpendingとして保存する
func (s *TopUpApplicationService) Create(ctx context.Context, req *CreateTopUpRequest) (*CreateTopUpResponse, error) {
	ctx, span := s.tracer.Start(ctx, "TopUpApplicationService.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.String("package_id", req.PackageID),
	)

	s.logger.Info(ctx, "Creating top-up request", map[string]interface{}{
		"user_id":    req.UserID,
		"package_id": req.PackageID,
	})

	if err := ledger.ValidateUserID(req.UserID); err != nil {
		return nil, s.fail(ctx, span, "Invalid user", err, "topup_create_failed", map[string]interface{}{"user_id": req.UserID})
	}

	pkg, err := s.catalogRepo.FindTopUpPackage(ctx, req.PackageID)
	if err != nil {
		return nil, s.fail(ctx, span, "Failed to find top-up package", err, "topup_create_failed", map[string]interface{}{
			"user_id":    req.UserID,
			"package_id": req.PackageID,
		})
	}

	request := topup.NewRequest(s.newID(), req.UserID, pkg.ID, pkg.FlowersAmount, pkg.PriceAmount)

	degraded := false
	invoice, err := s.gateway.CreatePayment(ctx, pkg.PriceAmount, s.callbackURL)
	if err != nil {
		degraded = true
		span.AddEvent("gateway degraded")
		s.logger.Warn(ctx, "Payment gateway unavailable; falling back to manual confirmation", map[string]interface{}{
			"request_id": request.ID(),
			"error":      err.Error(),
		})
		s.metrics.RecordError(ctx, "topup_gateway_degraded")
	} else {
		request.AttachInvoice(invoice)
	}

	if err := s.topUpRepo.Save(ctx, request); err != nil {
		return nil, s.fail(ctx, span, "Failed to save top-up request", fmt.Errorf("failed to save top-up request: %w", err), "topup_create_failed", map[string]interface{}{
			"request_id": request.ID(),
		})
	}

	s.metrics.RecordSettlement(ctx, "topup", topup.StatusPending.String())
	span.SetAttributes(attribute.String("request_id", request.ID()), attribute.Bool("gateway_degraded", degraded))
	s.logger.Info(ctx, "Top-up request created", map[string]interface{}{
		"request_id":       request.ID(),
		"user_id":          req.UserID,
		"flowers_amount":   request.FlowersAmount(),
		"gateway_degraded": degraded,
	})

	return &CreateTopUpResponse{
		TopUp:           toResponse(request),
		GatewayDegraded: degraded,
	}, nil
}

// CheckStatus 利用者による支払い状況の確認
// ゲートウェイが支払い済みを報告した場合はその場で確定する
func (s *TopUpApplicationService) CheckStatus(ctx context.Context, req *CheckStatusRequest) (*CheckStatusResponse, error) {
	ctx, span := s.tracer.Start(ctx, "TopUpApplicationService.CheckStatus")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.String("request_id", req.RequestID),
	)

	fields := map[string]interface{}{
		"user_id":    req.UserID,
		"request_id": req.RequestID,
	}
	s.logger.Info(ctx, "Checking top-up status", fields)

	request, err := s.topUpRepo.FindByID(ctx, req.RequestID)
	if err != nil {
		return nil, s.fail(ctx, span, "Failed to find top-up request", err, "topup_check_failed", fields)
	}
	// 他人のリクエストは存在しないものとして扱う
	if request.UserID() != req.UserID {
		return nil, s.fail(ctx, span, "Top-up request owned by another user", topup.ErrTopUpNotFound, "topup_check_failed", fields)
	}

	resp := &CheckStatusResponse{Expired: request.IsExpired(s.now())}
	if request.Status().IsTerminal() || !request.HasInvoice() {
		resp.TopUp = toResponse(request)
		return resp, nil
	}

	report, err := s.gateway.CheckStatus(ctx, *request.InvoiceID())
	if err != nil {
		return nil, s.fail(ctx, span, "Failed to check payment status", err, "topup_check_failed", fields)
	}
	resp.PaymentStatus = report.Status.String()

	if report.Status.IsPaid() {
		if _, err := s.confirm(ctx, request, nil); err != nil {
			return nil, s.fail(ctx, span, "Failed to confirm top-up", err, "topup_confirm_failed", fields)
		}
		if request, err = s.topUpRepo.FindByID(ctx, req.RequestID); err != nil {
			return nil, s.fail(ctx, span, "Failed to reload top-up request", err, "topup_check_failed", fields)
		}
	}

	span.SetAttributes(attribute.String("payment_status", resp.PaymentStatus))
	resp.TopUp = toResponse(request)
	return resp, nil
}

// HandleWebhook ゲートウェイからの通知を処理する
// 支払い済み以外の通知は記録のみ行う
func (s *TopUpApplicationService) HandleWebhook(ctx context.Context, req *WebhookRequest) (*WebhookResponse, error) {
	ctx, span := s.tracer.Start(ctx, "TopUpApplicationService.HandleWebhook")
	defer span.End()

	span.SetAttributes(
		attribute.String("invoice_id", req.InvoiceID),
		attribute.String("status", req.Status.String()),
	)

	fields := map[string]interface{}{
		"invoice_id": req.InvoiceID,
		"status":     req.Status.String(),
	}
	s.logger.Info(ctx, "Handling top-up webhook", fields)

	request, err := s.topUpRepo.FindByInvoiceID(ctx, req.InvoiceID)
	if err != nil {
		if errors.Is(err, topup.ErrTopUpNotFound) {
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, err
		}
		return nil, s.fail(ctx, span, "Failed to find top-up request", err, "topup_webhook_failed", fields)
	}

	resp := &WebhookResponse{RequestID: request.ID()}
	if req.Status.IsPaid() {
		won, err := s.confirm(ctx, request, nil)
		if err != nil {
			return nil, s.fail(ctx, span, "Failed to confirm top-up", err, "topup_webhook_failed", fields)
		}
		resp.Confirmed = won
		if request, err = s.topUpRepo.FindByID(ctx, request.ID()); err != nil {
			return nil, s.fail(ctx, span, "Failed to reload top-up request", err, "topup_webhook_failed", fields)
		}
		resp.Status = request.Status().String()
		return resp, nil
	}

	s.logger.Info(ctx, "Top-up webhook ignored", map[string]interface{}{
		"request_id": request.ID(),
		"status":     req.Status.String(),
	})
	resp.Status = request.Status().String()
	return resp, nil
}

// Reconcile 請求を持つpendingのリクエストをゲートウェイに問い合わせて確定する
func (s *TopUpApplicationService) Reconcile(ctx context.Context, limit int) (*ReconcileResult, error) {
	ctx, span := s.tracer.Start(ctx, "TopUpApplicationService.Reconcile")
	defer span.End()

	// 前回の続きから取得し、末尾まで到達したら先頭へ戻る
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	now := s.now()
	requests, err := s.topUpRepo.FindPendingWithInvoice(ctx, now.Add(-staleAfter), s.sweepCursor, limit)
	if err != nil {
		return nil, s.fail(ctx, span, "Failed to find pending top-ups", err, "topup_reconcile_failed", nil)
	}

	var last *payment.SweepCursor
	if n := len(requests); n > 0 {
		last = &payment.SweepCursor{CreatedAt: requests[n-1].CreatedAt(), ID: requests[n-1].ID()}
	}
	s.sweepCursor = payment.NextSweepCursor(len(requests), limit, last)

	result := &ReconcileResult{}
	for _, request := range requests {
		result.Checked++

		report, err := s.gateway.CheckStatus(ctx, *request.InvoiceID())
		if err != nil {
			result.Failed++
			s.logger.Warn(ctx, "Failed to check top-up payment", map[string]interface{}{
				"request_id": request.ID(),
				"error":      err.Error(),
			})
			continue
		}
		if !report.Status.IsPaid() {
			continue
		}
		won, err := s.confirm(ctx, request, nil)
		if err != nil {
			result.Failed++
			s.logger.Error(ctx, "Failed to confirm top-up", err, map[string]interface{}{
				"request_id": request.ID(),
			})
			continue
		}
		if won {
			result.Confirmed++
		}
	}

	span.SetAttributes(
		attribute.Int("checked", result.Checked),
		attribute.Int("confirmed", result.Confirmed),
		attribute.Int("failed", result.Failed),
	)
	return result, nil
}

// ListPending 管理者向けに未処理のリクエストを古い順に返す
func (s *TopUpApplicationService) ListPending(ctx context.Context, req *ListPendingRequest) (*ListPendingResponse, error) {
	ctx, span := s.tracer.Start(ctx, "TopUpApplicationService.ListPending")
	defer span.End()

	limit, offset := normalizePage(req.Limit, req.Offset)
	span.SetAttributes(attribute.Int("limit", limit), attribute.Int("offset", offset))

	requests, err := s.topUpRepo.FindPending(ctx, limit, offset)
	if err != nil {
		return nil, s.fail(ctx, span, "Failed to list pending top-ups", fmt.Errorf("failed to list pending top-ups: %w", err), "topup_list_failed", nil)
	}

	resp := &ListPendingResponse{TopUps: make([]*TopUpResponse, 0, len(requests)), Limit: limit, Offset: offset}
	for _, r := range requests {
		resp.TopUps = append(resp.TopUps, toResponse(r))
	}
	return resp, nil
}

// AdminUpdate 管理者によるステータス変更とメモ更新
// 入力はすべて検証してから台帳に触れる
func (s *TopUpApplicationService) AdminUpdate(ctx context.Context, req *AdminUpdateRequest) (*TopUpResponse, error) {
	ctx, span := s.tracer.Start(ctx, "TopUpApplicationService.AdminUpdate")
	defer span.End()

	span.SetAttributes(attribute.String("request_id", req.RequestID))
	fields := map[string]interface{}{"request_id": req.RequestID}
	if req.Status != nil {
		fields["status"] = *req.Status
	}
	s.logger.Info(ctx, "Admin updating top-up request", fields)

	if req.Status == nil && req.AdminNote == nil {
		return nil, s.fail(ctx, span, "Nothing to update", topup.ErrEmptyUpdate, "topup_admin_failed", fields)
	}
	if err := topup.ValidateAdminNote(req.AdminNote); err != nil {
		return nil, s.fail(ctx, span, "Invalid admin note", err, "topup_admin_failed", fields)
	}
	var target topup.Status
	if req.Status != nil {
		st, err := topup.NewStatus(*req.Status)
		if err != nil || !st.IsTerminal() {
			return nil, s.fail(ctx, span, "Invalid target status", topup.ErrInvalidTransition, "topup_admin_failed", fields)
		}
		target = st
	}

	request, err := s.topUpRepo.FindByID(ctx, req.RequestID)
	if err != nil {
		return nil, s.fail(ctx, span, "Failed to find top-up request", err, "topup_admin_failed", fields)
	}

	switch target {
	case topup.StatusConfirmed:
		won, err := s.confirm(ctx, request, req.AdminNote)
		if err != nil {
			return nil, s.fail(ctx, span, "Failed to confirm top-up", err, "topup_admin_failed", fields)
		}
		if !won {
			return nil, s.fail(ctx, span, "Top-up already terminal", topup.ErrAlreadyTerminal, "topup_admin_failed", fields)
		}
	case topup.StatusRejected:
		won, err := s.topUpRepo.TransitionStatus(ctx, request.ID(), topup.StatusPending, topup.StatusRejected, req.AdminNote)
		if err != nil {
			return nil, s.fail(ctx, span, "Failed to reject top-up", fmt.Errorf("failed to reject top-up: %w", err), "topup_admin_failed", fields)
		}
		if !won {
			return nil, s.fail(ctx, span, "Top-up already terminal", topup.ErrAlreadyTerminal, "topup_admin_failed", fields)
		}
		s.metrics.RecordSettlement(ctx, "topup", topup.StatusRejected.String())
		s.notifier.Notify(ctx, event.TypeTopUpRejected, request.ID(), request.UserID(), 0, nil)
	default:
		if err := s.topUpRepo.UpdateAdminNote(ctx, request.ID(), *req.AdminNote); err != nil {
			return nil, s.fail(ctx, span, "Failed to update admin note", err, "topup_admin_failed", fields)
		}
	}

	updated, err := s.topUpRepo.FindByID(ctx, request.ID())
	if err != nil {
		return nil, s.fail(ctx, span, "Failed to reload top-up request", err, "topup_admin_failed", fields)
	}

	s.logger.Info(ctx, "Top-up request updated by admin", map[string]interface{}{
		"request_id": updated.ID(),
		"status":     updated.Status().String(),
	})
	return toResponse(updated), nil
}

// confirm pending→confirmedの条件付き更新に勝った場合のみフラワーを付与する
// 負けた場合（既に確定・却下済み）はfalseを返す
func (s *TopUpApplicationService) confirm(ctx context.Context, request *topup.Request, adminNote *string) (bool, error) {
	won := false
	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		won, err = s.topUpRepo.TransitionStatus(ctx, request.ID(), topup.StatusPending, topup.StatusConfirmed, adminNote)
		if err != nil {
			return fmt.Errorf("failed to transition top-up: %w", err)
		}
		if !won {
			return nil
		}
		_, err = s.ledgerService.Credit(ctx, request.UserID(), request.FlowersAmount(), ledger.ReasonTopUp, request.ID())
		return err
	})
	if err != nil {
		return false, err
	}

	if !won {
		s.logger.Info(ctx, "Top-up already settled", map[string]interface{}{
			"request_id": request.ID(),
		})
		return false, nil
	}

	s.metrics.RecordLedgerEntry(ctx, ledger.DirectionCredit.String(), ledger.ReasonTopUp.String(), request.FlowersAmount())
	s.metrics.RecordSettlement(ctx, "topup", topup.StatusConfirmed.String())
	s.notifier.Notify(ctx, event.TypeTopUpConfirmed, request.ID(), request.UserID(), request.FlowersAmount(), map[string]string{
		"package_id": request.PackageID(),
	})
	s.logger.Info(ctx, "Top-up confirmed", map[string]interface{}{
		"request_id":     request.ID(),
		"user_id":        request.UserID(),
		"flowers_amount": request.FlowersAmount(),
	})
	return true, nil
}

func (s *TopUpApplicationService) fail(ctx context.Context, span trace.Span, msg string, err error, errorType string, fields map[string]interface{}) error {
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
	s.logger.Error(ctx, msg, err, fields)
	s.metrics.RecordError(ctx, errorType)
	return err
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
