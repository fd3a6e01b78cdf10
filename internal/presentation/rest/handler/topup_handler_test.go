package handler

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flower-server/internal/domain/payment"
)

func (e *testEnv) createTopUp(t *testing.T, userID, packageID string) CreateTopUpResponse {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/topups", userID, CreateTopUpRequest{PackageID: packageID})
	assertStatus(t, rec, http.StatusCreated)
	return decode[CreateTopUpResponse](t, rec)
}

func TestTopUpHandler_Create(t *testing.T) {
	t.Run("正常系: 請求付きで作成", func(t *testing.T) {
		env := newTestEnv(t)

		resp := env.createTopUp(t, "user123", "pkg-1000")

		assert.False(t, resp.GatewayDegraded)
		assert.Equal(t, "pending", resp.TopUp.Status)
		assert.Equal(t, int64(1000), resp.TopUp.FlowersAmount)
		assert.Equal(t, int64(10000), resp.TopUp.PriceAmount)
		require.NotNil(t, resp.TopUp.PaymentURL)
		require.NotNil(t, resp.TopUp.FinalAmount)
		assert.Equal(t, int64(10150), *resp.TopUp.FinalAmount)
		assert.NotNil(t, resp.TopUp.ExpiresAt)
	})

	t.Run("正常系: ゲートウェイ障害時は請求なしで作成", func(t *testing.T) {
		env := newTestEnv(t)
		env.gateway.createErr = &payment.GatewayError{Op: "create", StatusCode: http.StatusServiceUnavailable, Err: errors.New("unavailable")}

		resp := env.createTopUp(t, "user123", "pkg-100")

		assert.True(t, resp.GatewayDegraded)
		assert.Nil(t, resp.TopUp.PaymentURL)
		assert.Nil(t, resp.TopUp.InvoiceID)
	})

	tests := []struct {
		name           string
		userID         string
		body           interface{}
		expectedStatus int
	}{
		{
			name:           "異常系: 存在しないパッケージ",
			userID:         "user123",
			body:           CreateTopUpRequest{PackageID: "pkg-unknown"},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "異常系: package_idが空",
			userID:         "user123",
			body:           CreateTopUpRequest{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "異常系: 未認証",
			body:           CreateTopUpRequest{PackageID: "pkg-100"},
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.do(t, http.MethodPost, "/topups", tt.userID, tt.body)
			assertStatus(t, rec, tt.expectedStatus)
		})
	}
}

func TestTopUpHandler_CheckStatus(t *testing.T) {
	t.Run("正常系: 支払い済みになると一度だけ付与される", func(t *testing.T) {
		env := newTestEnv(t)
		created := env.createTopUp(t, "user123", "pkg-1000")
		env.gateway.set(*created.TopUp.InvoiceID, payment.InvoiceStatusPaid)

		for i := 0; i < 3; i++ {
			rec := env.do(t, http.MethodGet, "/topups/"+created.TopUp.ID+"/status", "user123", nil)
			assertStatus(t, rec, http.StatusOK)
			assert.Equal(t, "confirmed", decode[TopUpStatusResponse](t, rec).TopUp.Status)
		}

		assert.Equal(t, int64(1000), env.balance(t, "user123"))
	})

	t.Run("正常系: 未払いの場合はpendingのまま", func(t *testing.T) {
		env := newTestEnv(t)
		created := env.createTopUp(t, "user123", "pkg-100")

		rec := env.do(t, http.MethodGet, "/topups/"+created.TopUp.ID+"/status", "user123", nil)

		assertStatus(t, rec, http.StatusOK)
		resp := decode[TopUpStatusResponse](t, rec)
		assert.Equal(t, "pending", resp.TopUp.Status)
		assert.Equal(t, "pending", resp.PaymentStatus)
		assert.False(t, resp.Expired)
		assert.Equal(t, int64(0), env.balance(t, "user123"))
	})

	t.Run("異常系: 他人のチャージは見つからない", func(t *testing.T) {
		env := newTestEnv(t)
		created := env.createTopUp(t, "user123", "pkg-100")

		rec := env.do(t, http.MethodGet, "/topups/"+created.TopUp.ID+"/status", "user456", nil)

		assertStatus(t, rec, http.StatusNotFound)
		assert.Equal(t, "topup_not_found", decode[ErrorResponse](t, rec).Error)
	})
}

func TestTopUpHandler_Admin(t *testing.T) {
	t.Run("正常系: 未処理一覧", func(t *testing.T) {
		env := newTestEnv(t)
		env.createTopUp(t, "user123", "pkg-100")
		env.createTopUp(t, "user456", "pkg-1000")

		rec := env.do(t, http.MethodGet, "/admin/topups/pending?limit=10", "", nil)

		assertStatus(t, rec, http.StatusOK)
		resp := decode[TopUpListResponse](t, rec)
		assert.Len(t, resp.TopUps, 2)
		assert.Equal(t, 10, resp.Limit)
	})

	t.Run("正常系: 手動確認で付与され、二度目は409", func(t *testing.T) {
		env := newTestEnv(t)
		env.gateway.createErr = &payment.GatewayError{Op: "create", Err: errors.New("timeout")}
		created := env.createTopUp(t, "user123", "pkg-5000")
		status := "confirmed"
		note := "bank transfer verified"

		rec := env.do(t, http.MethodPatch, "/admin/topups/"+created.TopUp.ID, "", AdminUpdateTopUpRequest{Status: &status, AdminNote: &note})
		assertStatus(t, rec, http.StatusOK)
		item := decode[TopUpItem](t, rec)
		assert.Equal(t, "confirmed", item.Status)
		require.NotNil(t, item.AdminNote)
		assert.Equal(t, note, *item.AdminNote)
		assert.Equal(t, int64(5000), env.balance(t, "user123"))

		rec = env.do(t, http.MethodPatch, "/admin/topups/"+created.TopUp.ID, "", AdminUpdateTopUpRequest{Status: &status})
		assertStatus(t, rec, http.StatusConflict)
		assert.Equal(t, "already_terminal", decode[ErrorResponse](t, rec).Error)
		assert.Equal(t, int64(5000), env.balance(t, "user123"))
	})

	t.Run("正常系: 却下は台帳を変更しない", func(t *testing.T) {
		env := newTestEnv(t)
		created := env.createTopUp(t, "user123", "pkg-100")
		status := "rejected"

		rec := env.do(t, http.MethodPatch, "/admin/topups/"+created.TopUp.ID, "", AdminUpdateTopUpRequest{Status: &status})

		assertStatus(t, rec, http.StatusOK)
		assert.Equal(t, "rejected", decode[TopUpItem](t, rec).Status)
		assert.Equal(t, int64(0), env.balance(t, "user123"))
	})

	tests := []struct {
		name           string
		body           interface{}
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "異常系: 更新項目なし",
			body:           AdminUpdateTopUpRequest{},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "empty_update",
		},
		{
			name:           "異常系: 終端でないステータス",
			body:           map[string]string{"status": "pending"},
			expectedStatus: http.StatusConflict,
			expectedCode:   "invalid_transition",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			created := env.createTopUp(t, "user123", "pkg-100")

			rec := env.do(t, http.MethodPatch, "/admin/topups/"+created.TopUp.ID, "", tt.body)

			assertStatus(t, rec, tt.expectedStatus)
			assert.Equal(t, tt.expectedCode, decode[ErrorResponse](t, rec).Error)
		})
	}

	t.Run("異常系: 存在しないチャージ", func(t *testing.T) {
		env := newTestEnv(t)
		status := "rejected"

		rec := env.do(t, http.MethodPatch, "/admin/topups/missing", "", AdminUpdateTopUpRequest{Status: &status})

		assertStatus(t, rec, http.StatusNotFound)
	})
}
