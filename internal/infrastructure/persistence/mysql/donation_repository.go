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

	"flower-server/internal/domain/donation"
	"flower-server/internal/domain/payment"
)

const donationColumns = `id, donor_name, message, amount, status, invoice_id, payment_url,
	final_amount, expires_at, paid_at, created_at, updated_at`

// DonationRepository MySQL実装のdonation.Repository
type DonationRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewDonationRepository 新しいDonationRepositoryを作成
func NewDonationRepository(db *DB) *DonationRepository {
	return &DonationRepository{
		db:     db,
		tracer: otel.Tracer("donation-repository"),
	}
}

// Save 新しい寄付を保存
func (r *DonationRepository) Save(ctx context.Context, d *donation.Donation) error {
	ctx, span := r.tracer.Start(ctx, "DonationRepository.Save")
	defer span.End()

	s := d.Snapshot()
	span.SetAttributes(
		attribute.String("db.donation_id", s.ID),
		attribute.Int64("db.amount", s.Amount),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "donations"),
	)

	query := `INSERT INTO donations (` + donationColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.conn(ctx).ExecContext(ctx, query,
		s.ID, s.DonorName, s.Message, s.Amount, s.Status.String(), s.InvoiceID, s.PaymentURL,
		s.FinalAmount, s.ExpiresAt, s.PaidAt, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to save donation: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "donation saved")
	return nil
}

// FindByID IDで取得
func (r *DonationRepository) FindByID(ctx context.Context, id string) (*donation.Donation, error) {
	return r.findOne(ctx, "DonationRepository.FindByID", `SELECT `+donationColumns+` FROM donations WHERE id = ?`, id)
}

// FindByInvoiceID 請求IDで取得
func (r *DonationRepository) FindByInvoiceID(ctx context.Context, invoiceID string) (*donation.Donation, error) {
	return r.findOne(ctx, "DonationRepository.FindByInvoiceID", `SELECT `+donationColumns+` FROM donations WHERE invoice_id = ?`, invoiceID)
}

func (r *DonationRepository) findOne(ctx context.Context, spanName, query, arg string) (*donation.Donation, error) {
	ctx, span := r.tracer.Start(ctx, spanName)
	defer span.End()

	span.SetAttributes(
		attribute.String("db.key", arg),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "donations"),
	)

	d, err := scanDonation(r.db.conn(ctx).QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(otelcodes.Ok, "donation not found")
		return nil, donation.ErrDonationNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find donation: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "donation found")
	return d, nil
}

// TransitionStatus 現在のステータスがfromの場合のみtoへ更新する条件付き更新
func (r *DonationRepository) TransitionStatus(ctx context.Context, id string, from, to donation.Status, paidAt *time.Time) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "DonationRepository.TransitionStatus")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.donation_id", id),
		attribute.String("db.from_status", from.String()),
		attribute.String("db.to_status", to.String()),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "donations"),
	)

	query := `
		UPDATE donations
		SET status = ?, paid_at = COALESCE(?, paid_at), updated_at = ?
		WHERE id = ? AND status = ?
	`
	result, err := r.db.conn(ctx).ExecContext(ctx, query, to.String(), paidAt, time.Now(), id, from.String())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return false, fmt.Errorf("failed to transition donation status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", rowsAffected))
	span.SetStatus(otelcodes.Ok, "donation status transition attempted")
	return rowsAffected == 1, nil
}

// FindRecentPaid 支払い済みの寄付を新しい順に取得
func (r *DonationRepository) FindRecentPaid(ctx context.Context, limit int) ([]*donation.Donation, error) {
	return r.findMany(ctx, "DonationRepository.FindRecentPaid", `
		SELECT `+donationColumns+`
		FROM donations
		WHERE status = 'paid'
		ORDER BY paid_at DESC, id DESC
		LIMIT ?
	`, limit)
}

// FindPendingWithInvoice 請求IDを持つpendingの寄付を古い順に取得
// 有効期限切れから時間が経った請求を除外し、カーソル以降のみを返す
func (r *DonationRepository) FindPendingWithInvoice(ctx context.Context, expiresAfter time.Time, after *payment.SweepCursor, limit int) ([]*donation.Donation, error) {
	query := `
		SELECT `+donationColumns+`
		FROM donations
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

	return r.findMany(ctx, "DonationRepository.FindPendingWithInvoice", query, args...)
}

func (r *DonationRepository) findMany(ctx context.Context, spanName, query string, args ...any) ([]*donation.Donation, error) {
	ctx, span := r.tracer.Start(ctx, spanName)
	defer span.End()

	span.SetAttributes(
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "donations"),
	)

	rows, err := r.db.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to query donations: %w", err)
	}
	defer rows.Close()

	var donations []*donation.Donation
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan donation: %w", err)
		}
		donations = append(donations, d)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to iterate donations: %w", err)
	}

	span.SetAttributes(attribute.Int("db.rows_returned", len(donations)))
	span.SetStatus(otelcodes.Ok, "donations found")
	return donations, nil
}

func scanDonation(row rowScanner) (*donation.Donation, error) {
	var (
		s           donation.Snapshot
		status      string
		message     sql.NullString
		invoiceID   sql.NullString
		paymentURL  sql.NullString
		finalAmount sql.NullInt64
		expiresAt   sql.NullTime
		paidAt      sql.NullTime
	)
	err := row.Scan(
		&s.ID, &s.DonorName, &message, &s.Amount, &status, &invoiceID, &paymentURL,
		&finalAmount, &expiresAt, &paidAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	st, err := donation.NewStatus(status)
	if err != nil {
		return nil, err
	}
	s.Status = st
	s.Message = nullStringPtr(message)
	s.InvoiceID = nullStringPtr(invoiceID)
	s.PaymentURL = nullStringPtr(paymentURL)
	s.FinalAmount = nullInt64Ptr(finalAmount)
	s.ExpiresAt = nullTimePtr(expiresAt)
	s.PaidAt = nullTimePtr(paidAt)
	return donation.Restore(s), nil
}
