package withdrawal

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"flower-server/internal/application/notifier"
	"flower-server/internal/domain/catalog"
	"flower-server/internal/domain/event"
	"flower-server/internal/domain/ledger"
	"flower-server/internal/domain/service"
	"flower-server/internal/domain/withdrawal"
	"flower-server/internal/infrastructure/config"
	otelinfra "flower-server/internal/infrastructure/observability/otel"
)

// WithdrawalApplicationService 出金精算アプリケーションサービス
// 作成時にフラワーを保留し、却下時のみ返金する
type WithdrawalApplicationService struct {
	catalogRepo    catalog.Repository
	withdrawalRepo withdrawal.Repository
	ledgerService  *service.LedgerService
	txManager      ledger.TransactionManager
	minimum        int64
	exchangeRate   decimal.Decimal
	notifier       *notifier.Notifier
	logger         *otelinfra.Logger
	metrics        *otelinfra.Metrics
	tracer         trace.Tracer
	newID          func() string
}

// NewWithdrawalApplicationService 新しいWithdrawalApplicationServiceを作成
func NewWithdrawalApplicationService(
	catalogRepo catalog.Repository,
	withdrawalRepo withdrawal.Repository,
	ledgerService *service.LedgerService,
	txManager ledger.TransactionManager,
	settlement *config.SettlementConfig,
	notifier *notifier.Notifier,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
) *WithdrawalApplicationService {
	return &WithdrawalApplicationService{
		catalogRepo:    catalogRepo,
		withdrawalRepo: withdrawalRepo,
		ledgerService:  ledgerService,
		txManager:      txManager,
		minimum:        settlement.MinimumWithdrawal,
		exchangeRate:   settlement.WithdrawalExchangeRate,
		notifier:       notifier,
		logger:         logger,
		metrics:        metrics,
		tracer:         otel.Tracer("withdrawal-service"),
		newID:          uuid.NewString,
	}
}

// Create 出金リクエストを作成し、同一トランザクションでフラワーを保留する
func (s *WithdrawalApplicationService) Create(ctx context.Context, req *CreateWithdrawalRequest) (*WithdrawalResponse, error) {
	ctx, span := s.tracer.Start(ctx, "WithdrawalApplicationService.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.String("method_id", req.MethodID),
		attribute.Int64("flowers_amount", req.FlowersAmount),
	)

	fields := map[string]interface{}{
		"user_id":        req.UserID,
		"method_id":      req.MethodID,
		"flowers_amount": req.FlowersAmount,
	}
	s.logger.Info(ctx, "Creating withdrawal request", fields)

	if err := ledger.ValidateUserID(req.UserID); err != nil {
		return nil, s.fail(ctx, span, "Invalid user", err, "withdrawal_create_failed", fields)
	}

	request, err := withdrawal.NewRequest(
		s.newID(),
		req.UserID,
		req.MethodID,
		req.AccountNumber,
		req.AccountName,
		req.FlowersAmount,
		s.minimum,
		s.exchangeRate,
	)
	if err != nil {
		return nil, s.fail(ctx, span, "Invalid withdrawal request", err, "withdrawal_create_failed", fields)
	}

	if _, err := s.catalogRepo.FindWithdrawalMethod(ctx, req.MethodID); err != nil {
		return nil, s.fail(ctx, span, "Failed to find withdrawal method", err, "withdrawal_create_failed", fields)
	}

	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.ledgerService.Debit(ctx, req.UserID, request.FlowersAmount(), ledger.ReasonWithdrawalHold, request.ID()); err != nil {
			return err
		}
		if err := s.withdrawalRepo.Save(ctx, request); err != nil {
			return fmt.Errorf("failed to save withdrawal request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, span, "Failed to hold flowers for withdrawal", err, "withdrawal_create_failed", fields)
	}

	s.metrics.RecordLedgerEntry(ctx, ledger.DirectionDebit.String(), ledger.ReasonWithdrawalHold.String(), request.FlowersAmount())
	s.metrics.RecordSettlement(ctx, "withdrawal", withdrawal.StatusPending.String())
	s.notifier.Notify(ctx, event.TypeWithdrawalCreated, request.ID(), request.UserID(), request.FlowersAmount(), map[string]string{
		"method_id":   request.MethodID(),
		"cash_amount": fmt.Sprintf("%d", request.CashAmount()),
	})

	span.SetAttributes(attribute.String("request_id", request.ID()))
	s.logger.Info(ctx, "Withdrawal request created", map[string]interface{}{
		"request_id":     request.ID(),
		"user_id":        request.UserID(),
		"flowers_amount": request.FlowersAmount(),
		"cash_amount":    request.CashAmount(),
	})

	return toResponse(request), nil
}

// ListMine 利用者自身の出金リクエストを新しい順に返す
func (s *WithdrawalApplicationService) ListMine(ctx context.Context, req *ListMineRequest) (*ListResponse, error) {
	ctx, span := s.tracer.Start(ctx, "WithdrawalApplicationService.ListMine")
	defer span.End()

	limit, offset := normalizePage(req.Limit, req.Offset)
	span.SetAttributes(attribute.String("user_id", req.UserID), attribute.Int("limit", limit))

	if err := ledger.ValidateUserID(req.UserID); err != nil {
		return nil, s.fail(ctx, span, "Invalid user", err, "withdrawal_list_failed", nil)
	}

	requests, err := s.withdrawalRepo.FindByUserID(ctx, req.UserID, limit, offset)
	if err != nil {
		return nil, s.fail(ctx, span, "Failed to list withdrawals", fmt.Errorf("failed to list withdrawals: %w", err), "withdrawal_list_failed", map[string]interface{}{
			"user_id": req.UserID,
		})
	}
	return &ListResponse{Withdrawals: toResponses(requests), Limit: limit, Offset: offset}, nil
}

// ListPending 管理者向けに未完了（pending・approved）のリクエストを古い順に返す
func (s *WithdrawalApplicationService) ListPending(ctx context.Context, req *ListPendingRequest) (*ListResponse, error) {
	ctx, span := s.tracer.Start(ctx, "WithdrawalApplicationService.ListPending")
	defer span.End()

	limit, offset := normalizePage(req.Limit, req.Offset)
	span.SetAttributes(attribute.Int("limit", limit), attribute.Int("offset", offset))

	requests, err := s.withdrawalRepo.FindOpen(ctx, limit, offset)
	if err != nil {
		return nil, s.fail(ctx, span, "Failed to list open withdrawals", fmt.Errorf("failed to list open withdrawals: %w", err), "withdrawal_list_failed", nil)
	}
	return &ListResponse{Withdrawals: toResponses(requests), Limit: limit, Offset: offset}, nil
}

// AdminUpdate 管理者によるステータス変更とメモ更新
func (s *WithdrawalApplicationService) AdminUpdate(ctx context.Context, req *AdminUpdateRequest) (*WithdrawalResponse, error) {
	ctx, span := s.tracer.Start(ctx, "WithdrawalApplicationService.AdminUpdate")
	defer span.End()

	span.SetAttributes(attribute.String("request_id", req.RequestID))
	fields := map[string]interface{}{"request_id": req.RequestID}
	if req.Status != nil {
		fields["status"] = *req.Status
	}
	s.logger.Info(ctx, "Admin updating withdrawal request", fields)

	if req.Status == nil && req.AdminNote == nil {
		return nil, s.fail(ctx, span, "Nothing to update", withdrawal.ErrEmptyUpdate, "withdrawal_admin_failed", fields)
	}
	if err := withdrawal.ValidateAdminNote(req.AdminNote); err != nil {
		return nil, s.fail(ctx, span, "Invalid admin note", err, "withdrawal_admin_failed", fields)
	}
	var target withdrawal.Status
	if req.Status != nil {
		st, err := withdrawal.NewStatus(*req.Status)
		if err != nil || withdrawal.SourcesFor(st) == nil {
			return nil, s.fail(ctx, span, "Invalid target status", withdrawal.ErrInvalidTransition, "withdrawal_admin_failed", fields)
		}
		target = st
	}

	request, err := s.withdrawalRepo.FindByID(ctx, req.RequestID)
	if err != nil {
		return nil, s.fail(ctx, span, "Failed to find withdrawal request", err, "withdrawal_admin_failed", fields)
	}

	switch target {
	case withdrawal.StatusApproved, withdrawal.StatusPaid, withdrawal.StatusRejected:
		if err := s.transition(ctx, request, target, req.AdminNote); err != nil {
			return nil, s.fail(ctx, span, "Failed to update withdrawal status", err, "withdrawal_admin_failed", fields)
		}
	default:
		if err := s.withdrawalRepo.UpdateAdminNote(ctx, request.ID(), *req.AdminNote); err != nil {
			return nil, s.fail(ctx, span, "Failed to update admin note", err, "withdrawal_admin_failed", fields)
		}
	}

	updated, err := s.withdrawalRepo.FindByID(ctx, request.ID())
	if err != nil {
		return nil, s.fail(ctx, span, "Failed to reload withdrawal request", err, "withdrawal_admin_failed", fields)
	}

	s.logger.Info(ctx, "Withdrawal request updated by admin", map[string]interface{}{
		"request_id": updated.ID(),
		"status":     updated.Status().String(),
	})
	return toResponse(updated), nil
}

// transition 条件付きでステータスを更新する
// 却下の場合は更新に勝った呼び出しだけが保留分を返金する
func (s *WithdrawalApplicationService) transition(ctx context.Context, request *withdrawal.Request, to withdrawal.Status, adminNote *string) error {
	from := withdrawal.SourcesFor(to)

	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		won, err := s.withdrawalRepo.TransitionStatus(ctx, request.ID(), from, to, adminNote)
		if err != nil {
			return fmt.Errorf("failed to transition withdrawal: %w", err)
		}
		if !won {
			current, err := s.withdrawalRepo.FindByID(ctx, request.ID())
			if err != nil {
				return err
			}
			if current.Status().IsTerminal() {
				return withdrawal.ErrAlreadyTerminal
			}
			return withdrawal.ErrInvalidTransition
		}
		if to != withdrawal.StatusRejected {
			return nil
		}
		_, err = s.ledgerService.Credit(ctx, request.UserID(), request.FlowersAmount(), ledger.ReasonWithdrawalRefund, request.ID())
		return err
	})
	if err != nil {
		return err
	}

	s.metrics.RecordSettlement(ctx, "withdrawal", to.String())

	var typ event.Type
	switch to {
	case withdrawal.StatusApproved:
		typ = event.TypeWithdrawalApproved
	case withdrawal.StatusPaid:
		typ = event.TypeWithdrawalPaid
	case withdrawal.StatusRejected:
		typ = event.TypeWithdrawalRejected
		s.metrics.RecordLedgerEntry(ctx, ledger.DirectionCredit.String(), ledger.ReasonWithdrawalRefund.String(), request.FlowersAmount())
	}
	s.notifier.Notify(ctx, typ, request.ID(), request.UserID(), request.FlowersAmount(), map[string]string{
		"cash_amount": fmt.Sprintf("%d", request.CashAmount()),
	})
	return nil
}

func (s *WithdrawalApplicationService) fail(ctx context.Context, span trace.Span, msg string, err error, errorType string, fields map[string]interface{}) error {
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
