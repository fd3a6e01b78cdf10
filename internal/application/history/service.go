package history

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"flower-server/internal/domain/ledger"
	"flower-server/internal/domain/service"
	otelinfra "flower-server/internal/infrastructure/observability/otel"
)

// HistoryApplicationService 残高と台帳履歴の参照サービス
type HistoryApplicationService struct {
	ledgerService *service.LedgerService
	entryRepo     ledger.EntryRepository
	logger        *otelinfra.Logger
	metrics       *otelinfra.Metrics
	tracer        trace.Tracer
}

// NewHistoryApplicationService 新しいHistoryApplicationServiceを作成
func NewHistoryApplicationService(
	ledgerService *service.LedgerService,
	entryRepo ledger.EntryRepository,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
) *HistoryApplicationService {
	return &HistoryApplicationService{
		ledgerService: ledgerService,
		entryRepo:     entryRepo,
		logger:        logger,
		metrics:       metrics,
		tracer:        otel.Tracer("history-service"),
	}
}

// GetBalance 現在の残高を取得
func (s *HistoryApplicationService) GetBalance(ctx context.Context, userID string) (*GetBalanceResponse, error) {
	ctx, span := s.tracer.Start(ctx, "HistoryApplicationService.GetBalance")
	defer span.End()

	span.SetAttributes(attribute.String("user_id", userID))

	balance, err := s.ledgerService.GetBalance(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to get balance", err, map[string]interface{}{
			"user_id": userID,
		})
		s.metrics.RecordError(ctx, "balance_get_failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int64("balance", balance))
	return &GetBalanceResponse{UserID: userID, Balance: balance}, nil
}

// GetLedger 台帳エントリを新しい順に取得
// Totalは方向フィルタ適用前のユーザーの全件数
func (s *HistoryApplicationService) GetLedger(ctx context.Context, req *GetLedgerRequest) (*GetLedgerResponse, error) {
	ctx, span := s.tracer.Start(ctx, "HistoryApplicationService.GetLedger")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.Int("limit", req.Limit),
		attribute.Int("offset", req.Offset),
	)

	s.logger.Info(ctx, "Getting ledger history", map[string]interface{}{
		"user_id":   req.UserID,
		"limit":     req.Limit,
		"offset":    req.Offset,
		"direction": req.Direction,
	})

	fail := func(msg string, err error) error {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, msg, err, map[string]interface{}{
			"user_id": req.UserID,
		})
		s.metrics.RecordError(ctx, "ledger_history_failed")
		return err
	}

	if err := ledger.ValidateUserID(req.UserID); err != nil {
		return nil, fail("Invalid user", err)
	}

	var direction ledger.Direction
	if req.Direction != "" {
		d, err := ledger.NewDirection(req.Direction)
		if err != nil {
			return nil, fail("Invalid direction filter", ledger.ErrInvalidDirection)
		}
		direction = d
	}

	if req.Limit <= 0 {
		req.Limit = 50
	}
	if req.Limit > 100 {
		req.Limit = 100
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	entries, err := s.entryRepo.FindByUserID(ctx, req.UserID, req.Limit, req.Offset)
	if err != nil {
		return nil, fail("Failed to get ledger entries", fmt.Errorf("failed to get ledger entries: %w", err))
	}
	total, err := s.entryRepo.CountByUserID(ctx, req.UserID)
	if err != nil {
		return nil, fail("Failed to count ledger entries", fmt.Errorf("failed to count ledger entries: %w", err))
	}

	filtered := entries
	if direction != "" {
		filtered = make([]*ledger.Entry, 0, len(entries))
		for _, e := range entries {
			if e.Direction() == direction {
				filtered = append(filtered, e)
			}
		}
	}

	return &GetLedgerResponse{
		Entries: filtered,
		Total:   total,
		Limit:   req.Limit,
		Offset:  req.Offset,
	}, nil
}
