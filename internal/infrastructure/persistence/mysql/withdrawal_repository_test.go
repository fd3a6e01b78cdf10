package mysql

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"flower-server/internal/domain/withdrawal"
)

var withdrawalRowColumns = []string{
	"id", "user_id", "method_id", "account_number", "account_name", "flowers_amount",
	"cash_amount", "status", "admin_note", "created_at", "updated_at",
}

func newTestWithdrawalRepository(t *testing.T) (*WithdrawalRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return &WithdrawalRepository{db: &DB{DB: db}, tracer: otel.Tracer("test")}, mock, func() { db.Close() }
}

func TestWithdrawalRepository_Save(t *testing.T) {
	repo, mock, closeFn := newTestWithdrawalRepository(t)
	defer closeFn()

	req, err := withdrawal.NewRequest("wd-1", "user123", "bank-bca", "1234567890", "Budi", 1000, 100, decimal.NewFromInt(10))
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO withdrawal_requests`).
		WithArgs("wd-1", "user123", "bank-bca", "1234567890", "Budi", 1000, 10000, "pending", nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Save(context.Background(), req))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepository_FindByID(t *testing.T) {
	now := time.Now()

	t.Run("正常系: 見つかる", func(t *testing.T) {
		repo, mock, closeFn := newTestWithdrawalRepository(t)
		defer closeFn()

		mock.ExpectQuery(`FROM withdrawal_requests WHERE id = \?`).
			WithArgs("wd-1").
			WillReturnRows(sqlmock.NewRows(withdrawalRowColumns).
				AddRow("wd-1", "user123", "bank-bca", "1234567890", "Budi", 1000, 10000, "approved", "ok", now, now))

		got, err := repo.FindByID(context.Background(), "wd-1")
		require.NoError(t, err)
		assert.Equal(t, withdrawal.StatusApproved, got.Status())
		assert.Equal(t, "ok", *got.AdminNote())
	})

	t.Run("異常系: 見つからない", func(t *testing.T) {
		repo, mock, closeFn := newTestWithdrawalRepository(t)
		defer closeFn()

		mock.ExpectQuery(`FROM withdrawal_requests WHERE id = \?`).
			WithArgs("wd-x").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.FindByID(context.Background(), "wd-x")
		assert.ErrorIs(t, err, withdrawal.ErrWithdrawalNotFound)
	})
}

func TestWithdrawalRepository_TransitionStatus(t *testing.T) {
	note := "invalid account"

	tests := []struct {
		name         string
		from         []withdrawal.Status
		to           withdrawal.Status
		args         []any
		rowsAffected int64
		want         bool
	}{
		{
			name:         "正常系: pending・approvedから却下",
			from:         []withdrawal.Status{withdrawal.StatusPending, withdrawal.StatusApproved},
			to:           withdrawal.StatusRejected,
			rowsAffected: 1,
			want:         true,
		},
		{
			name:         "正常系: 二重却下は更新されない",
			from:         []withdrawal.Status{withdrawal.StatusPending, withdrawal.StatusApproved},
			to:           withdrawal.StatusRejected,
			rowsAffected: 0,
			want:         false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, closeFn := newTestWithdrawalRepository(t)
			defer closeFn()

			mock.ExpectExec(`UPDATE withdrawal_requests\s+SET status = \?.*\s+WHERE id = \? AND status IN \(\?,\?\)`).
				WithArgs("rejected", note, sqlmock.AnyArg(), "wd-1", "pending", "approved").
				WillReturnResult(sqlmock.NewResult(0, tt.rowsAffected))

			got, err := repo.TransitionStatus(context.Background(), "wd-1", tt.from, tt.to, &note)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestWithdrawalRepository_FindOpen(t *testing.T) {
	repo, mock, closeFn := newTestWithdrawalRepository(t)
	defer closeFn()

	now := time.Now()
	mock.ExpectQuery(`WHERE status IN \('pending', 'approved'\)`).
		WithArgs(20, 0).
		WillReturnRows(sqlmock.NewRows(withdrawalRowColumns).
			AddRow("wd-1", "user123", "bank-bca", "1234567890", "Budi", 1000, 10000, "pending", nil, now, now))

	got, err := repo.FindOpen(context.Background(), 20, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].AdminNote())
	assert.NoError(t, mock.ExpectationsWereMet())
}
