package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"flower-server/internal/domain/ledger"
)

// EntryRepository MySQL実装のEntryRepository
type EntryRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewEntryRepository 新しいEntryRepositoryを作成
func NewEntryRepository(db *DB) *EntryRepository {
	return &EntryRepository{
		db:     db,
		tracer: otel.Tracer("entry-repository"),
	}
}

// Save エントリを追記
func (r *EntryRepository) Save(ctx context.Context, e *ledger.Entry) error {
	ctx, span := r.tracer.Start(ctx, "EntryRepository.Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.entry_id", e.EntryID()),
		attribute.String("db.user_id", e.UserID()),
		attribute.String("db.direction", e.Direction().String()),
		attribute.Int64("db.amount", e.Amount()),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "ledger_entries"),
	)

	query := `
		INSERT INTO ledger_entries (
			id, user_id, direction, amount, reason, reference_id, balance_after, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.conn(ctx).ExecContext(ctx, query,
		e.EntryID(),
		e.UserID(),
		e.Direction().String(),
		e.Amount(),
		e.Reason().String(),
		e.ReferenceID(),
		e.BalanceAfter(),
		e.CreatedAt(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to save ledger entry: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "ledger entry saved")
	return nil
}

// FindByUserID ユーザーIDでエントリ一覧を新しい順に取得
func (r *EntryRepository) FindByUserID(ctx context.Context, userID string, limit, offset int) ([]*ledger.Entry, error) {
	ctx, span := r.tracer.Start(ctx, "EntryRepository.FindByUserID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.user_id", userID),
		attribute.Int("db.limit", limit),
		attribute.Int("db.offset", offset),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "ledger_entries"),
	)

	query := `
		SELECT id, user_id, direction, amount, reason, reference_id, balance_after, created_at
		FROM ledger_entries
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`
	rows, err := r.db.conn(ctx).QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*ledger.Entry
	for rows.Next() {
		var (
			id, dbUserID, direction, reason string
			amount, balanceAfter            int64
			referenceID                     sql.NullString
			createdAt                       time.Time
		)
		if err := rows.Scan(&id, &dbUserID, &direction, &amount, &reason, &referenceID, &balanceAfter, &createdAt); err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		dir, err := ledger.NewDirection(direction)
		if err != nil {
			return nil, fmt.Errorf("invalid direction: %w", err)
		}
		entries = append(entries, ledger.RestoreEntry(
			id, dbUserID, dir, amount, ledger.Reason(reason), nullStringPtr(referenceID), balanceAfter, createdAt,
		))
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}

	span.SetAttributes(attribute.Int("db.rows_returned", len(entries)))
	span.SetStatus(otelcodes.Ok, "ledger entries found")
	return entries, nil
}

// CountByUserID ユーザーIDのエントリ件数を取得
func (r *EntryRepository) CountByUserID(ctx context.Context, userID string) (int, error) {
	ctx, span := r.tracer.Start(ctx, "EntryRepository.CountByUserID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.user_id", userID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "ledger_entries"),
	)

	var count int
	err := r.db.conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_entries WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "ledger entries counted")
	return count, nil
}
