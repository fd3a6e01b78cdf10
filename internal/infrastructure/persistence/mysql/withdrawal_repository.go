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

	"flower-server/internal/domain/withdrawal"
)

const withdrawalColumns = `id, user_id, method_id, account_number, account_name, flowers_amount,
	cash_amount, status, admin_note, created_at, updated_at`

// WithdrawalRepository MySQL実装のwithdrawal.Repository
type WithdrawalRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewWithdrawalRepository 新しいWithdrawalRepositoryを作成
func NewWithdrawalRepository(db *DB) *WithdrawalRepository {
	return &WithdrawalRepository{
		db:     db,
		tracer: otel.Tracer("withdrawal-repository"),
	}
}

// Save 新しいリクエストを保存
func (r *WithdrawalRepository) Save(ctx context.Context, req *withdrawal.Request) error {
	ctx, span := r.tracer.Start(ctx, "WithdrawalRepository.Save")
	defer span.End()

	s := req.Snapshot()
	span.SetAttributes(
		attribute.String("db.withdrawal_id", s.ID),
		attribute.String("db.user_id", s.UserID),
		attribute.Int64("db.flowers_amount", s.FlowersAmount),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "withdrawal_requests"),
	)

	query := `INSERT INTO withdrawal_requests (` + withdrawalColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.conn(ctx).ExecContext(ctx, query,
		s.ID, s.UserID, s.MethodID, s.AccountNumber, s.AccountName, s.FlowersAmount,
		s.CashAmount, s.Status.String(), s.AdminNote, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to save withdrawal request: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "withdrawal request saved")
	return nil
}

// FindByID IDで取得
func (r *WithdrawalRepository) FindByID(ctx context.Context, id string) (*withdrawal.Request, error) {
	ctx, span := r.tracer.Start(ctx, "WithdrawalRepository.FindByID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.withdrawal_id", id),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "withdrawal_requests"),
	)

	req, err := scanWithdrawal(r.db.conn(ctx).QueryRowContext(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(otelcodes.Ok, "withdrawal request not found")
		return nil, withdrawal.ErrWithdrawalNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find withdrawal request: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "withdrawal request found")
	return req, nil
}

// FindByUserID ユーザーのリクエストを新しい順に取得
func (r *WithdrawalRepository) FindByUserID(ctx context.Context, userID string, limit, offset int) ([]*withdrawal.Request, error) {
	return r.findMany(ctx, "WithdrawalRepository.FindByUserID", `
		SELECT `+withdrawalColumns+`
		FROM withdrawal_requests
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, userID, limit, offset)
}

// FindOpen 未完了（pending・approved）のリクエストを古い順に取得
func (r *WithdrawalRepository) FindOpen(ctx context.Context, limit, offset int) ([]*withdrawal.Request, error) {
	return r.findMany(ctx, "WithdrawalRepository.FindOpen", `
		SELECT `+withdrawalColumns+`
		FROM withdrawal_requests
		WHERE status IN ('pending', 'approved')
		ORDER BY created_at ASC, id ASC
		LIMIT ? OFFSET ?
	`, limit, offset)
}

// TransitionStatus 現在のステータスがfromのいずれかの場合のみtoへ更新する条件付き更新
func (r *WithdrawalRepository) TransitionStatus(ctx context.Context, id string, from []withdrawal.Status, to withdrawal.Status, adminNote *string) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "WithdrawalRepository.TransitionStatus")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.withdrawal_id", id),
		attribute.String("db.to_status", to.String()),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "withdrawal_requests"),
	)
	if len(from) == 0 {
		return false, nil
	}

	args := []any{to.String(), adminNote, time.Now(), id}
	for _, s := range from {
		args = append(args, s.String())
	}
	query := `
		UPDATE withdrawal_requests
		SET status = ?, admin_note = COALESCE(?, admin_note), updated_at = ?
		WHERE id = ? AND status IN (` + placeholders(len(from)) + `)
	`
	result, err := r.db.conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return false, fmt.Errorf("failed to transition withdrawal status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", rowsAffected))
	span.SetStatus(otelcodes.Ok, "withdrawal status transition attempted")
	return rowsAffected == 1, nil
}

// UpdateAdminNote 管理者メモのみ更新
func (r *WithdrawalRepository) UpdateAdminNote(ctx context.Context, id string, adminNote string) error {
	ctx, span := r.tracer.Start(ctx, "WithdrawalRepository.UpdateAdminNote")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.withdrawal_id", id),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "withdrawal_requests"),
	)

	result, err := r.db.conn(ctx).ExecContext(ctx,
		`UPDATE withdrawal_requests SET admin_note = ?, updated_at = ? WHERE id = ?`,
		adminNote, time.Now(), id,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to update admin note: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		span.SetStatus(otelcodes.Ok, "withdrawal request not found")
		return withdrawal.ErrWithdrawalNotFound
	}

	span.SetStatus(otelcodes.Ok, "admin note updated")
	return nil
}

func (r *WithdrawalRepository) findMany(ctx context.Context, spanName, query string, args ...any) ([]*withdrawal.Request, error) {
	ctx, span := r.tracer.Start(ctx, spanName)
	defer span.End()

	span.SetAttributes(
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "withdrawal_requests"),
	)

	rows, err := r.db.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to query withdrawal requests: %w", err)
	}
	defer rows.Close()

	var requests []*withdrawal.Request
	for rows.Next() {
		req, err := scanWithdrawal(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan withdrawal request: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to iterate withdrawal requests: %w", err)
	}

	span.SetAttributes(attribute.Int("db.rows_returned", len(requests)))
	span.SetStatus(otelcodes.Ok, "withdrawal requests found")
	return requests, nil
}

func scanWithdrawal(row rowScanner) (*withdrawal.Request, error) {
	var (
		s         withdrawal.Snapshot
		status    string
		adminNote sql.NullString
	)
	err := row.Scan(
		&s.ID, &s.UserID, &s.MethodID, &s.AccountNumber, &s.AccountName, &s.FlowersAmount,
		&s.CashAmount, &status, &adminNote, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	st, err := withdrawal.NewStatus(status)
	if err != nil {
		return nil, err
	}
	s.Status = st
	s.AdminNote = nullStringPtr(adminNote)
	return withdrawal.Restore(s), nil
}
