package mysql

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"flower-server/internal/domain/catalog"
)

func newTestCatalogRepository(t *testing.T) (*CatalogRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return &CatalogRepository{db: &DB{DB: db}, tracer: otel.Tracer("test")}, mock, func() { db.Close() }
}

func TestCatalogRepository_FindGiftKind(t *testing.T) {
	t.Run("正常系: 有効なギフト種別", func(t *testing.T) {
		repo, mock, closeFn := newTestCatalogRepository(t)
		defer closeFn()

		mock.ExpectQuery(`FROM gift_kinds\s+WHERE id = \? AND active = TRUE`).
			WithArgs("rose").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "cost", "active"}).AddRow("rose", "Rose", 100, true))

		got, err := repo.FindGiftKind(context.Background(), "rose")
		require.NoError(t, err)
		assert.Equal(t, int64(100), got.Cost)
	})

	t.Run("異常系: 無効化済みまたは未登録", func(t *testing.T) {
		repo, mock, closeFn := newTestCatalogRepository(t)
		defer closeFn()

		mock.ExpectQuery(`FROM gift_kinds`).WithArgs("tulip").WillReturnError(sql.ErrNoRows)

		_, err := repo.FindGiftKind(context.Background(), "tulip")
		assert.ErrorIs(t, err, catalog.ErrGiftKindNotFound)
	})
}

func TestCatalogRepository_FindTopUpPackage(t *testing.T) {
	repo, mock, closeFn := newTestCatalogRepository(t)
	defer closeFn()

	mock.ExpectQuery(`FROM topup_packages`).
		WithArgs("pkg-1000").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "flowers_amount", "price_amount", "active"}).
			AddRow("pkg-1000", "1000 Flowers", 1000, 10000, true))

	got, err := repo.FindTopUpPackage(context.Background(), "pkg-1000")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.FlowersAmount)
	assert.Equal(t, int64(10000), got.PriceAmount)
}

func TestCatalogRepository_FindWithdrawalMethod(t *testing.T) {
	repo, mock, closeFn := newTestCatalogRepository(t)
	defer closeFn()

	mock.ExpectQuery(`FROM withdrawal_methods`).WithArgs("bank-x").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindWithdrawalMethod(context.Background(), "bank-x")
	assert.ErrorIs(t, err, catalog.ErrMethodNotFound)
}

func TestCatalogRepository_IsGiftingEnabled(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		want      bool
	}{
		{
			name: "正常系: 設定行がなければ有効",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM user_capabilities`).WithArgs("user123").WillReturnError(sql.ErrNoRows)
			},
			want: true,
		},
		{
			name: "正常系: 無効化されている",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM user_capabilities`).WithArgs("user123").
					WillReturnRows(sqlmock.NewRows([]string{"gifting_enabled"}).AddRow(false))
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, closeFn := newTestCatalogRepository(t)
			defer closeFn()
			tt.setupMock(mock)

			got, err := repo.IsGiftingEnabled(context.Background(), "user123")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
