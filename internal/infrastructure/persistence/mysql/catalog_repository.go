package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"flower-server/internal/domain/catalog"
)

// CatalogRepository MySQL実装のcatalog.Repository
type CatalogRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewCatalogRepository 新しいCatalogRepositoryを作成
func NewCatalogRepository(db *DB) *CatalogRepository {
	return &CatalogRepository{
		db:     db,
		tracer: otel.Tracer("catalog-repository"),
	}
}

// FindGiftKind 有効なギフト種別を取得
func (r *CatalogRepository) FindGiftKind(ctx context.Context, id string) (*catalog.GiftKind, error) {
	ctx, span := r.startSelect(ctx, "CatalogRepository.FindGiftKind", "gift_kinds", id)
	defer span.End()

	k := &catalog.GiftKind{}
	err := r.db.conn(ctx).QueryRowContext(ctx, `
		SELECT id, name, cost, active
		FROM gift_kinds
		WHERE id = ? AND active = TRUE
	`, id).Scan(&k.ID, &k.Name, &k.Cost, &k.Active)
	if err := finishLookup(span, err, "gift kind"); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, catalog.ErrGiftKindNotFound
		}
		return nil, err
	}
	return k, nil
}

// FindTopUpPackage 有効なチャージパッケージを取得
func (r *CatalogRepository) FindTopUpPackage(ctx context.Context, id string) (*catalog.TopUpPackage, error) {
	ctx, span := r.startSelect(ctx, "CatalogRepository.FindTopUpPackage", "topup_packages", id)
	defer span.End()

	p := &catalog.TopUpPackage{}
	err := r.db.conn(ctx).QueryRowContext(ctx, `
		SELECT id, name, flowers_amount, price_amount, active
		FROM topup_packages
		WHERE id = ? AND active = TRUE
	`, id).Scan(&p.ID, &p.Name, &p.FlowersAmount, &p.PriceAmount, &p.Active)
	if err := finishLookup(span, err, "top-up package"); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, catalog.ErrPackageNotFound
		}
		return nil, err
	}
	return p, nil
}

// FindWithdrawalMethod 有効な出金方法を取得
func (r *CatalogRepository) FindWithdrawalMethod(ctx context.Context, id string) (*catalog.WithdrawalMethod, error) {
	ctx, span := r.startSelect(ctx, "CatalogRepository.FindWithdrawalMethod", "withdrawal_methods", id)
	defer span.End()

	m := &catalog.WithdrawalMethod{}
	err := r.db.conn(ctx).QueryRowContext(ctx, `
		SELECT id, name, kind, active
		FROM withdrawal_methods
		WHERE id = ? AND active = TRUE
	`, id).Scan(&m.ID, &m.Name, &m.Kind, &m.Active)
	if err := finishLookup(span, err, "withdrawal method"); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, catalog.ErrMethodNotFound
		}
		return nil, err
	}
	return m, nil
}

// IsGiftingEnabled ユーザーのギフト送信が有効か（設定行がなければ有効）
func (r *CatalogRepository) IsGiftingEnabled(ctx context.Context, userID string) (bool, error) {
	ctx, span := r.startSelect(ctx, "CatalogRepository.IsGiftingEnabled", "user_capabilities", userID)
	defer span.End()

	var enabled bool
	err := r.db.conn(ctx).QueryRowContext(ctx, `
		SELECT gifting_enabled
		FROM user_capabilities
		WHERE user_id = ?
	`, userID).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(otelcodes.Ok, "no capability row")
		return true, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return false, fmt.Errorf("failed to find user capability: %w", err)
	}
	span.SetStatus(otelcodes.Ok, "capability found")
	return enabled, nil
}

func (r *CatalogRepository) startSelect(ctx context.Context, name, table, id string) (context.Context, trace.Span) {
	ctx, span := r.tracer.Start(ctx, name)
	span.SetAttributes(
		attribute.String("db.id", id),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", table),
	)
	return ctx, span
}

// finishLookup 単一行検索の結果をスパンに記録する。見つからない場合はsql.ErrNoRowsを返す
func finishLookup(span trace.Span, err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(otelcodes.Ok, what+" not found")
		return sql.ErrNoRows
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to find %s: %w", what, err)
	}
	span.SetStatus(otelcodes.Ok, what+" found")
	return nil
}
