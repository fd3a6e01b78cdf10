package gift

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"flower-server/internal/application/notifier"
	"flower-server/internal/domain/catalog"
	"flower-server/internal/domain/event"
	"flower-server/internal/domain/gift"
	"flower-server/internal/domain/ledger"
	"flower-server/internal/domain/service"
	otelinfra "flower-server/internal/infrastructure/observability/otel"
)

// GiftApplicationService ギフト送信アプリケーションサービス
type GiftApplicationService struct {
	catalogRepo   catalog.Repository
	giftRepo      gift.Repository
	ledgerService *service.LedgerService
	txManager     ledger.TransactionManager
	notifier      *notifier.Notifier
	logger        *otelinfra.Logger
	metrics       *otelinfra.Metrics
	tracer        trace.Tracer
	newID         func() string
}

// NewGiftApplicationService 新しいGiftApplicationServiceを作成
func NewGiftApplicationService(
	catalogRepo catalog.Repository,
	giftRepo gift.Repository,
	ledgerService *service.LedgerService,
	txManager ledger.TransactionManager,
	notifier *notifier.Notifier,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
) *GiftApplicationService {
	return &GiftApplicationService{
		catalogRepo:   catalogRepo,
		giftRepo:      giftRepo,
		ledgerService: ledgerService,
		txManager:     txManager,
		notifier:      notifier,
		logger:        logger,
		metrics:       metrics,
		tracer:        otel.Tracer("gift-service"),
		newID:         uuid.NewString,
	}
}

// SendGift 送信者から受信者へギフトを送る
// 残高の移動とギフト記録は同一トランザクションで行い、残高不足の場合は何も残さない
func (s *GiftApplicationService) SendGift(ctx context.Context, req *SendGiftRequest) (*SendGiftResponse, error) {
	ctx, span := s.tracer.Start(ctx, "GiftApplicationService.SendGift")
	defer span.End()

	span.SetAttributes(
		attribute.String("sender_id", req.SenderID),
		attribute.String("receiver_id", req.ReceiverID),
		attribute.String("gift_kind_id", req.GiftKindID),
	)

	s.logger.Info(ctx, "Sending gift", map[string]interface{}{
		"sender_id":    req.SenderID,
		"receiver_id":  req.ReceiverID,
		"gift_kind_id": req.GiftKindID,
	})

	fail := func(msg string, err error) (*SendGiftResponse, error) {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, msg, err, map[string]interface{}{
			"sender_id":    req.SenderID,
			"receiver_id":  req.ReceiverID,
			"gift_kind_id": req.GiftKindID,
		})
		s.metrics.RecordError(ctx, "gift_send_failed")
		return nil, err
	}

	// バリデーション
	if err := ledger.ValidateUserID(req.SenderID); err != nil {
		return fail("Invalid sender", err)
	}
	if err := ledger.ValidateUserID(req.ReceiverID); err != nil {
		return fail("Invalid receiver", err)
	}
	if req.SenderID == req.ReceiverID {
		return fail("Sender and receiver are the same", ledger.ErrSameAccount)
	}
	if req.Message != nil && utf8.RuneCountInString(*req.Message) > gift.MaxMessageLength {
		return fail("Gift message too long", gift.ErrMessageTooLong)
	}

	kind, err := s.catalogRepo.FindGiftKind(ctx, req.GiftKindID)
	if err != nil {
		return fail("Failed to find gift kind", err)
	}

	record, err := gift.NewTransfer(s.newID(), req.SenderID, req.ReceiverID, kind.ID, kind.Cost, req.RelatedContentID, req.Message)
	if err != nil {
		return fail("Invalid gift", err)
	}

	enabled, err := s.catalogRepo.IsGiftingEnabled(ctx, req.SenderID)
	if err != nil {
		return fail("Failed to check gifting capability", fmt.Errorf("failed to check gifting capability: %w", err))
	}
	if !enabled {
		return fail("Gifting disabled for sender", gift.ErrCapabilityDisabled)
	}

	var result *service.TransferResult
	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.ledgerService.Transfer(ctx, req.SenderID, req.ReceiverID, kind.Cost,
			ledger.ReasonGiftSent, ledger.ReasonGiftReceived, record.ID())
		if err != nil {
			return err
		}
		if err := s.giftRepo.Save(ctx, record); err != nil {
			return fmt.Errorf("failed to save gift transfer: %w", err)
		}
		return nil
	})
	if err != nil {
		return fail("Failed to send gift", err)
	}

	s.metrics.RecordLedgerEntry(ctx, ledger.DirectionDebit.String(), ledger.ReasonGiftSent.String(), kind.Cost)
	s.metrics.RecordLedgerEntry(ctx, ledger.DirectionCredit.String(), ledger.ReasonGiftReceived.String(), kind.Cost)
	s.notifier.Notify(ctx, event.TypeGiftSent, record.ID(), req.SenderID, kind.Cost, map[string]string{
		"receiver_id":  req.ReceiverID,
		"gift_kind_id": kind.ID,
	})

	span.SetAttributes(attribute.String("gift_id", record.ID()))
	s.logger.Info(ctx, "Gift sent", map[string]interface{}{
		"gift_id":        record.ID(),
		"sender_id":      req.SenderID,
		"receiver_id":    req.ReceiverID,
		"cost":           kind.Cost,
		"sender_balance": result.DebitEntry.BalanceAfter(),
	})

	return &SendGiftResponse{
		GiftID:        record.ID(),
		GiftKindID:    kind.ID,
		Cost:          kind.Cost,
		SenderBalance: result.DebitEntry.BalanceAfter(),
		CreatedAt:     record.CreatedAt(),
	}, nil
}
