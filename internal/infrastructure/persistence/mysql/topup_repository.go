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

	"flower-server/internal/domain/payment"
	"flower-server/internal/domain/topup"
)

const topUpColumns = `id, user_id, package_id, flowers_amount, price_amount, status,
	invoice_id, payment_url, final_amount, expires_at, admin_note, created_at, updated_at`

// TopUpRepository MySQL実装のtopup.Repository
type TopUpRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewTopUpRepository 新しいTopUpRepositoryを作成
func NewTopUpRepository(db *DB) *TopUpRepository {
	return &TopUpRepository{
		db:     db,
		tracer: otel.Tracer("topup-repository"),
	}
}

// Save 新しいリクエストを保存
func (r *TopUpRepository) Save(ctx context.Context, req *topup.Request) error {
	ctx, span := r.tracer.Start(ctx, "TopUpRepository.Save")
	defer span.End()

	s := req.Snapshot()
	span.SetAttributes(
		attribute.String("db.topup_id", s.ID),
		attribute.String("db.user_id", s.UserID),
		attribute.Bool("db.has_invoice", s.InvoiceID != nil),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "topup_requests"),
	)

	query := `INSERT INTO topup_requests (` + topUpColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.conn(ctx).ExecContext(ctx, query,
		s.ID, s.UserID, s.PackageID, s.FlowersAmount, s.PriceAmount, s.Status.String(),
		s.InvoiceID, s.PaymentURL, s.FinalAmount, s.ExpiresAt, s.AdminNote, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to save top-up request: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "top-up request saved")
	return nil
}

// FindByID IDで取得
func (r *TopUpRepository) FindByID(ctx context.Context, id string) (*topup.Request, error) {
	return r.findOne(ctx, "TopUpRepository.FindByID", `SELECT `+topUpColumns+` FROM topup_requests WHERE id = ?`, id)
}

// FindByInvoiceID 請求IDで取得
func (r *TopUpRepository) FindByInvoiceID(ctx context.Context, invoiceID string) (*topup.Request, error) {
	return r.findOne(ctx, "TopUpRepository.FindByInvoiceID", `SELECT `+topUpColumns+` FROM topup_requests WHERE invoice_id = ?`, invoiceID)
}

func (r *TopUpRepository) findOne(ctx context.Context, spanName, query, arg string) (*topup.Request, error) {
	ctx, span := r.tracer.Start(ctx, spanName)
	defer span.End()

	span.SetAttributes(
		attribute.String("db.key", arg),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "topup_requests"),
	)

	req, err := scanTopUp(r.db.conn(ctx).QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(otelcodes.Ok, "top-up request not found")
		return nil, topup.ErrTopUpNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find top-up request: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "top-up request found")
	return req, nil
}

// TransitionStatus 現在のステータスがfromの場合のみtoへ更新する条件付き更新
func (r *TopUpRepository) TransitionStatus(ctx context.Context, id string, from, to topup.Status, adminNote *string) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "TopUpRepository.TransitionStatus")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.topup_id", id),
		attribute.String("db.from_status", from.String()),
		attribute.String("db.to_status", to.String()),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "topup_requests"),
	)

	query := `
		UPDATE topup_requests
		SET status = ?, admin_note = COALESCE(?, admin_note), updated_at = ?
		WHERE id = ? AND status = ?
	`
	result, err := r.db.conn(ctx).ExecContext(ctx, query, to.String(), adminNote, time.Now(), id, from.String())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return false, fmt.Errorf("failed to transition top-up status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", rowsAffected))
	span.SetStatus(otelcodes.Ok, "top-up status transition attempted")
	return rowsAffected == 1, nil
}

// UpdateAdminNote 管理者メモのみ更新
func (r *TopUpRepository) UpdateAdminNote(ctx context.Context, id string, adminNote string) error {
	ctx, span := r.tracer.Start(ctx, "TopUpRepository.UpdateAdminNote")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.topup_id", id),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "topup_requests"),
	)

	result, err := r.db.conn(ctx).ExecContext(ctx,
		`UPDATE topup_requests SET admin_note = ?, updated_at = ? WHERE id = ?`,
		adminNote, time.Now(), id,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to update admin note: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		span.SetStatus(otelcodes.Ok, "top-up request not found")
		return topup.ErrTopUpNotFound
	}

	span.SetStatus(otelcodes.Ok, "admin note updated")
	return nil
}

// FindPending pendingのリクエストを古い順に取得
func (r *TopUpRepository) FindPending(ctx context.Context, limit, offset int) ([]*topup.Request, error) {
	return r.findMany(ctx, "TopUpRepository.FindPending", `
		SELECT `+topUpColumns+`
		FROM topup_requests
		WHERE status = 'pending'
		ORDER BY created_at ASC, id ASC
		LIMIT ? OFFSET ?
	`, limit, offset)
}

// FindPendingWithInvoice 請求IDを持つpendingのリクエストを古い順に取得
// 有効期限切れから時間が経った請求を除外し、カーソル以降のみを返す
func (r *TopUpRepository) FindPendingWithInvoice(ctx context.Context, expiresAfter time.Time, after *payment.SweepCursor, limit int) ([]*topup.Request, error) {
	query := `
		SELECT `+topUpColumns+`
		FROM topup_requests
		WHERE status = 'pending' AND invoice_id IS NOT NULL
		  AND (expires_at IS NULL OR expires_at > ?)`
	args := []any{expiresAfter}
	if after != nil {
		query += `
		  AND (created_at > ? OR (created_at = ? AND id > ?))`
		args = append(args, after.CreatedAt, after.CreatedAt, after.ID)
	}
	query += `
		ORDER BY created_at ASC, id ASC
		LIMIT ?`
	args = append(args, limit)

	return r.findMany(ctx, "TopUpRepository.FindPendingWithInvoice", query, args...)
}

func (r *TopUpRepository) findMany(ctx context.Context, spanName, query string, args ...any) ([]*topup.Request, error) {
	ctx, span := r.tracer.Start(ctx, spanName)
	defer span.End()

	span.SetAttributes(
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "topup_requests"),
	)

	rows, err := r.db.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to query top-up requests: %w", err)
	}
	defer rows.Close()

	var requests []*topup.Request
	for rows.Next() {
		req, err := scanTopUp(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan top-up request: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to iterate top-up requests: %w", err)
	}

	span.SetAttributes(attribute.Int("db.rows_returned", len(requests)))
	span.SetStatus(otelcodes.Ok, "top-up requests found")
	return requests, nil
}

// rowScanner *sql.Row と *sql.Rows に共通するScan
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTopUp(row rowScanner) (*topup.Request, error) {
	var (
		s           topup.Snapshot
		status      string
		invoiceID   sql.NullString
		paymentURL  sql.NullString
		finalAmount sql.NullInt64
		expiresAt   sql.NullTime
		adminNote   sql.NullString
	)
	err := row.Scan(
		&s.ID, &s.UserID, &s.PackageID, &s.FlowersAmount, &s.PriceAmount, &status,
		&invoiceID, &paymentURL, &finalAmount, &expiresAt, &adminNote, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	st, err := topup.NewStatus(status)
	if err != nil {
		return nil, err
	}
	s.Status = st
	s.InvoiceID = nullStringPtr(invoiceID)
	s.PaymentURL = nullStringPtr(paymentURL)
	s.FinalAmount = nullInt64Ptr(finalAmount)
	s.ExpiresAt = nullTimePtr(expiresAt)
	s.AdminNote = nullStringPtr(adminNote)
	return topup.Restore(s), nil
}
