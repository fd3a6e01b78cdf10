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

	"flower-server/internal/domain/ledger"
)

// AccountRepository MySQL実装のAccountRepository
type AccountRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewAccountRepository 新しいAccountRepositoryを作成
func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{
		db:     db,
		tracer: otel.Tracer("account-repository"),
	}
}

// FindByUserID ユーザーIDでアカウントを取得
func (r *AccountRepository) FindByUserID(ctx context.Context, userID string) (*ledger.Account, error) {
	return r.find(ctx, "AccountRepository.FindByUserID", `
		SELECT user_id, balance, created_at, updated_at
		FROM accounts
		WHERE user_id = ?
	`, userID)
}

// FindByUserIDForUpdate ユーザーIDでアカウントを取得し行ロックを獲得
// トランザクション内のコンテキストで呼び出すこと
func (r *AccountRepository) FindByUserIDForUpdate(ctx context.Context, userID string) (*ledger.Account, error) {
	return r.find(ctx, "AccountRepository.FindByUserIDForUpdate", `
		SELECT user_id, balance, created_at, updated_at
		FROM accounts
		WHERE user_id = ?
		FOR UPDATE
	`, userID)
}

func (r *AccountRepository) find(ctx context.Context, spanName, query, userID string) (*ledger.Account, error) {
	ctx, span := r.tracer.Start(ctx, spanName)
	defer span.End()

	span.SetAttributes(
		attribute.String("db.user_id", userID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "accounts"),
	)

	var dbUserID string
	var balance int64
	var createdAt, updatedAt time.Time
	err := r.db.conn(ctx).QueryRowContext(ctx, query, userID).Scan(&dbUserID, &balance, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(otelcodes.Ok, "account not found")
		return nil, ledger.ErrAccountNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	span.SetAttributes(attribute.Int64("db.balance", balance))
	span.SetStatus(otelcodes.Ok, "account found")
	return ledger.RestoreAccount(dbUserID, balance, createdAt, updatedAt), nil
}

// Create アカウントを作成（既に存在する場合は何もしない）
func (r *AccountRepository) Create(ctx context.Context, a *ledger.Account) error {
	ctx, span := r.tracer.Start(ctx, "AccountRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.user_id", a.UserID()),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "accounts"),
	)

	query := `
		INSERT IGNORE INTO accounts (user_id, balance, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`
	if _, err := r.db.conn(ctx).ExecContext(ctx, query, a.UserID(), a.Balance(), a.CreatedAt(), a.UpdatedAt()); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to create account: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "account created")
	return nil
}

// UpdateBalance 残高を更新
func (r *AccountRepository) UpdateBalance(ctx context.Context, a *ledger.Account) error {
	ctx, span := r.tracer.Start(ctx, "AccountRepository.UpdateBalance")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.user_id", a.UserID()),
		attribute.Int64("db.balance", a.Balance()),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "accounts"),
	)

	query := `
		UPDATE accounts
		SET balance = ?, updated_at = ?
		WHERE user_id = ?
	`
	result, err := r.db.conn(ctx).ExecContext(ctx, query, a.Balance(), a.UpdatedAt(), a.UserID())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to update balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		span.SetStatus(otelcodes.Error, "account not found")
		return ledger.ErrAccountNotFound
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", rowsAffected))
	span.SetStatus(otelcodes.Ok, "balance updated")
	return nil
}
