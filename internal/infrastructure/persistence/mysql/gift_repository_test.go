package mysql

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"flower-server/internal/domain/gift"
)

func newTestGiftRepository(t *testing.T) (*GiftRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return &GiftRepository{db: &DB{DB: db}, tracer: otel.Tracer("test")}, mock, func() { db.Close() }
}

func TestGiftRepository_Save(t *testing.T) {
	repo, mock, closeFn := newTestGiftRepository(t)
	defer closeFn()

	content := "live-42"
	transfer, err := gift.NewTransfer("gift-1", "alice", "bob", "rose", 100, &content, nil)
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO gift_transfers`).
		WithArgs("gift-1", "alice", "bob", "rose", 100, "live-42", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Save(context.Background(), transfer))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGiftRepository_Save_WithMessage(t *testing.T) {
	repo, mock, closeFn := newTestGiftRepository(t)
	defer closeFn()

	msg := "great quote"
	transfer, err := gift.NewTransfer("gift-1", "alice", "bob", "rose", 100, nil, &msg)
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO gift_transfers`).
		WithArgs("gift-1", "alice", "bob", "rose", 100, nil, "great quote", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Save(context.Background(), transfer))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGiftRepository_Save_Error(t *testing.T) {
	repo, mock, closeFn := newTestGiftRepository(t)
	defer closeFn()

	transfer, err := gift.NewTransfer("gift-1", "alice", "bob", "rose", 100, nil, nil)
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO gift_transfers`).WillReturnError(sql.ErrConnDone)

	err = repo.Save(context.Background(), transfer)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGiftRepository_FindByID(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(mock sqlmock.Sqlmock)
		wantErr error
		check   func(t *testing.T, got *gift.Transfer)
	}{
		{
			name: "正常系: メッセージ付きのギフト記録を取得",
			setup: func(mock sqlmock.Sqlmock) {
				createdAt := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
				rows := sqlmock.NewRows([]string{
					"id", "sender_id", "receiver_id", "gift_kind_id", "cost", "related_content_id", "message", "created_at",
				}).AddRow("gift-1", "alice", "bob", "bouquet", 2500, nil, "congrats", createdAt)
				mock.ExpectQuery(`SELECT .+ FROM gift_transfers\s+WHERE id = \?`).
					WithArgs("gift-1").
					WillReturnRows(rows)
			},
			check: func(t *testing.T, got *gift.Transfer) {
				assert.Equal(t, "gift-1", got.ID())
				assert.Equal(t, "alice", got.SenderID())
				assert.Equal(t, "bob", got.ReceiverID())
				assert.Equal(t, "bouquet", got.GiftKindID())
				assert.Equal(t, int64(2500), got.Cost())
				assert.Nil(t, got.RelatedContentID())
				require.NotNil(t, got.Message())
				assert.Equal(t, "congrats", *got.Message())
			},
		},
		{
			name: "異常系: 存在しないID",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .+ FROM gift_transfers`).
					WithArgs("missing").
					WillReturnError(sql.ErrNoRows)
			},
			wantErr: gift.ErrTransferNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, closeFn := newTestGiftRepository(t)
			defer closeFn()
			tt.setup(mock)

			id := "gift-1"
			if tt.wantErr != nil {
				id = "missing"
			}
			got, err := repo.FindByID(context.Background(), id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				tt.check(t, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
