package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"flower-server/internal/domain/payment"
	"flower-server/internal/domain/topup"
)

var topUpRowColumns = []string{
	"id", "user_id", "package_id", "flowers_amount", "price_amount", "status",
	"invoice_id", "payment_url", "final_amount", "expires_at", "admin_note", "created_at", "updated_at",
}

func newTestTopUpRepository(t *testing.T) (*TopUpRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return &TopUpRepository{db: &DB{DB: db}, tracer: otel.Tracer("test")}, mock, func() { db.Close() }
}

func TestTopUpRepository_Save(t *testing.T) {
	tests := []struct {
		name      string
		invoice   *payment.Invoice
		invoiceID any
	}{
		{
			name: "正常系: 請求情報あり",
			invoice: &payment.Invoice{
				InvoiceID:   "inv-1",
				PaymentURL:  "https://pay.example.com/inv-1",
				FinalAmount: 10100,
				ExpiresAt:   time.Now().Add(15 * time.Minute),
			},
			invoiceID: "inv-1",
		},
		{
			name:      "正常系: ゲートウェイ障害時は請求情報なし",
			invoiceID: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, closeFn := newTestTopUpRepository(t)
			defer closeFn()

			req := topup.NewRequest("topup-1", "user123", "pkg-1000", 1000, 10000)
			req.AttachInvoice(tt.invoice)

			mock.ExpectExec(`INSERT INTO topup_requests`).
				WithArgs("topup-1", "user123", "pkg-1000", 1000, 10000, "pending",
					tt.invoiceID, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(0, 1))

			assert.NoError(t, repo.Save(context.Background(), req))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTopUpRepository_FindByInvoiceID(t *testing.T) {
	now := time.Now()

	t.Run("正常系: 請求IDで見つかる", func(t *testing.T) {
		repo, mock, closeFn := newTestTopUpRepository(t)
		defer closeFn()

		mock.ExpectQuery(`FROM topup_requests WHERE invoice_id = \?`).
			WithArgs("inv-1").
			WillReturnRows(sqlmock.NewRows(topUpRowColumns).AddRow(
				"topup-1", "user123", "pkg-1000", 1000, 10000, "pending",
				"inv-1", "https://pay.example.com/inv-1", 10100, now.Add(time.Hour), nil, now, now,
			))

		got, err := repo.FindByInvoiceID(context.Background(), "inv-1")
		require.NoError(t, err)
		assert.Equal(t, topup.StatusPending, got.Status())
		assert.Equal(t, "inv-1", *got.InvoiceID())
		assert.Equal(t, int64(10100), *got.FinalAmount())
		assert.Nil(t, got.AdminNote())
	})

	t.Run("異常系: 見つからない", func(t *testing.T) {
		repo, mock, closeFn := newTestTopUpRepository(t)
		defer closeFn()

		mock.ExpectQuery(`FROM topup_requests WHERE invoice_id = \?`).
			WithArgs("inv-x").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.FindByInvoiceID(context.Background(), "inv-x")
		assert.ErrorIs(t, err, topup.ErrTopUpNotFound)
	})
}

func TestTopUpRepository_TransitionStatus(t *testing.T) {
	tests := []struct {
		name         string
		rowsAffected int64
		want         bool
	}{
		{name: "正常系: 条件付き更新に勝つ", rowsAffected: 1, want: true},
		{name: "正常系: 既に遷移済みなら何もしない", rowsAffected: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, closeFn := newTestTopUpRepository(t)
			defer closeFn()

			mock.ExpectExec(`UPDATE topup_requests\s+SET status = \?.*\s+WHERE id = \? AND status = \?`).
				WithArgs("confirmed", nil, sqlmock.AnyArg(), "topup-1", "pending").
				WillReturnResult(sqlmock.NewResult(0, tt.rowsAffected))

			got, err := repo.TransitionStatus(context.Background(), "topup-1", topup.StatusPending, topup.StatusConfirmed, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTopUpRepository_FindPendingWithInvoice(t *testing.T) {
	now := time.Now()
	cutoff := now.Add(-24 * time.Hour)
	cursor := &payment.SweepCursor{CreatedAt: now.Add(-time.Hour), ID: "topup-0"}

	tests := []struct {
		name      string
		after     *payment.SweepCursor
		wantQuery string
		wantArgs  []driver.Value
	}{
		{
			name:      "正常系: 先頭から取得する場合は期限の下限のみで絞り込む",
			after:     nil,
			wantQuery: `WHERE status = 'pending' AND invoice_id IS NOT NULL\s+AND \(expires_at IS NULL OR expires_at > \?\)\s+ORDER BY created_at ASC, id ASC\s+LIMIT \?`,
			wantArgs:  []driver.Value{cutoff, 50},
		},
		{
			name:      "正常系: カーソル指定時はその位置より後ろから取得する",
			after:     cursor,
			wantQuery: `AND \(created_at > \? OR \(created_at = \? AND id > \?\)\)\s+ORDER BY created_at ASC, id ASC`,
			wantArgs:  []driver.Value{cutoff, cursor.CreatedAt, cursor.CreatedAt, "topup-0", 50},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, closeFn := newTestTopUpRepository(t)
			defer closeFn()

			mock.ExpectQuery(tt.wantQuery).
				WithArgs(tt.wantArgs...).
				WillReturnRows(sqlmock.NewRows(topUpRowColumns).
					AddRow("topup-1", "user123", "pkg-1000", 1000, 10000, "pending", "inv-1", "u1", 10100, now, nil, now, now).
					AddRow("topup-2", "user456", "pkg-500", 500, 5000, "pending", "inv-2", "u2", 5050, now, nil, now, now))

			got, err := repo.FindPendingWithInvoice(context.Background(), cutoff, tt.after, 50)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "topup-2", got[1].ID())
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTopUpRepository_UpdateAdminNote(t *testing.T) {
	repo, mock, closeFn := newTestTopUpRepository(t)
	defer closeFn()

	mock.ExpectExec(`UPDATE topup_requests SET admin_note = \?`).
		WithArgs("checked manually", sqlmock.AnyArg(), "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateAdminNote(context.Background(), "missing", "checked manually")
	assert.ErrorIs(t, err, topup.ErrTopUpNotFound)
}
