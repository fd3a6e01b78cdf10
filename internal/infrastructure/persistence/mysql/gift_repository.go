package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"flower-server/internal/domain/gift"
)

// GiftRepository MySQL実装のgift.Repository
type GiftRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewGiftRepository 新しいGiftRepositoryを作成
func NewGiftRepository(db *DB) *GiftRepository {
	return &GiftRepository{
		db:     db,
		tracer: otel.Tracer("gift-repository"),
	}
}

// Save ギフト記録を保存
func (r *GiftRepository) Save(ctx context.Context, t *gift.Transfer) error {
	ctx, span := r.tracer.Start(ctx, "GiftRepository.Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.gift_id", t.ID()),
		attribute.String("db.sender_id", t.SenderID()),
		attribute.String("db.receiver_id", t.ReceiverID()),
		attribute.Int64("db.cost", t.Cost()),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "gift_transfers"),
	)

	query := `
		INSERT INTO gift_transfers (
			id, sender_id, receiver_id, gift_kind_id, cost, related_content_id, message, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.conn(ctx).ExecContext(ctx, query,
		t.ID(),
		t.SenderID(),
		t.ReceiverID(),
		t.GiftKindID(),
		t.Cost(),
		t.RelatedContentID(),
		t.Message(),
		t.CreatedAt(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to save gift transfer: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "gift transfer saved")
	return nil
}

// FindByID IDで取得
func (r *GiftRepository) FindByID(ctx context.Context, id string) (*gift.Transfer, error) {
	ctx, span := r.tracer.Start(ctx, "GiftRepository.FindByID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.gift_id", id),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "gift_transfers"),
	)

	var (
		dbID, senderID, receiverID, giftKindID string
		cost                                   int64
		relatedContentID, message              sql.NullString
		createdAt                              time.Time
	)
	err := r.db.conn(ctx).QueryRowContext(ctx, `
		SELECT id, sender_id, receiver_id, gift_kind_id, cost, related_content_id, message, created_at
		FROM gift_transfers
		WHERE id = ?
	`, id).Scan(&dbID, &senderID, &receiverID, &giftKindID, &cost, &relatedContentID, &message, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(otelcodes.Ok, "gift transfer not found")
		return nil, gift.ErrTransferNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find gift transfer: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "gift transfer found")
	return gift.RestoreTransfer(dbID, senderID, receiverID, giftKindID, cost,
		nullStringPtr(relatedContentID), nullStringPtr(message), createdAt), nil
}
