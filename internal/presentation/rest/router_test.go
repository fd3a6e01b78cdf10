package rest

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	authapp "flower-server/internal/application/auth"
	donationapp "flower-server/internal/application/donation"
	giftapp "flower-server/internal/application/gift"
	historyapp "flower-server/internal/application/history"
	"flower-server/internal/application/notifier"
	topupapp "flower-server/internal/application/topup"
	withdrawalapp "flower-server/internal/application/withdrawal"
	"flower-server/internal/domain/ledger"
	"flower-server/internal/domain/payment"
	"flower-server/internal/domain/service"
	cacheredis "flower-server/internal/infrastructure/cache/redis"
	"flower-server/internal/infrastructure/config"
	"flower-server/internal/infrastructure/messaging/rabbitmq"
	otelinfra "flower-server/internal/infrastructure/observability/otel"
	"flower-server/internal/infrastructure/persistence/memory"
	restmiddleware "flower-server/internal/presentation/rest/middleware"
)

const (
	testAPIKey        = "test-admin-key"
	testWebhookSecret = "test-webhook-secret"
)

type stubGateway struct {
	mu  sync.Mutex
	seq int
}

func (g *stubGateway) CreatePayment(ctx context.Context, amount int64, callbackURL string) (*payment.Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	id := fmt.Sprintf("inv-%d", g.seq)
	return &payment.Invoice{
		InvoiceID:   id,
		PaymentURL:  "https://pay.example.com/" + id,
		FinalAmount: amount,
		ExpiresAt:   time.Now().Add(15 * time.Minute),
	}, nil
}

func (g *stubGateway) CheckStatus(ctx context.Context, invoiceID string) (*payment.StatusReport, error) {
	return &payment.StatusReport{InvoiceID: invoiceID, Status: payment.InvoiceStatusPending}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			ReadTimeout:    5 * time.Second,
			WriteTimeout:   5 * time.Second,
			IdleTimeout:    30 * time.Second,
			AllowedOrigins: []string{"*"},
		},
		JWT: config.JWTConfig{
			Secret:     "test-secret-key",
			Issuer:     "flower-server",
			Expiration: time.Hour,
		},
		AdminAPI: config.AdminAPIConfig{
			Enabled: true,
			APIKey:  testAPIKey,
		},
		Gateway: config.GatewayConfig{
			WebhookSecret: testWebhookSecret,
			CallbackURL:   "https://flowers.example.com/api/v1/webhooks/payments",
		},
		Settlement: config.SettlementConfig{
			MinimumWithdrawal:      100,
			WithdrawalExchangeRate: decimal.RequireFromString("7.5"),
			MinimumDonation:        1000,
			MaximumDonation:        1_000_000,
		},
		RateLimit: config.RateLimitConfig{
			DonationLimit: 2,
			WebhookLimit:  100,
			Window:        time.Minute,
		},
	}
}

type testServer struct {
	router *Router
	ledger *service.LedgerService
}

func setupTestRouter(t *testing.T, cfg *config.Config, limiter restmiddleware.RateLimiter) *testServer {
	t.Helper()

	store := memory.NewStore()
	store.SeedDefaultCatalog()
	repos := memory.NewRepositories(store)
	ledgerService := service.NewLedgerService(repos.Accounts, repos.Entries, store)

	logger := otelinfra.NewLogger(noop.NewTracerProvider().Tracer("test")).WithOutput(io.Discard)
	metrics, err := otelinfra.NewMetrics("test")
	require.NoError(t, err)

	n := notifier.New(rabbitmq.NewFallbackPublisher(logger), logger)
	gw := &stubGateway{}

	services := &Services{
		Auth:    authapp.NewAuthApplicationService(&cfg.JWT, logger),
		History: historyapp.NewHistoryApplicationService(ledgerService, repos.Entries, logger, metrics),
		Gift:    giftapp.NewGiftApplicationService(repos.Catalog, repos.Gifts, ledgerService, store, n, logger, metrics),
		TopUp: topupapp.NewTopUpApplicationService(repos.Catalog, repos.TopUps, ledgerService, store, gw,
			cfg.Gateway.CallbackURL, n, logger, metrics),
		Withdrawal: withdrawalapp.NewWithdrawalApplicationService(repos.Catalog, repos.Withdrawals, ledgerService, store,
			&cfg.Settlement, n, logger, metrics),
		Donation: donationapp.NewDonationApplicationService(repos.Donations, gw, cfg.Gateway.CallbackURL,
			&cfg.Settlement, n, logger, metrics),
	}

	router, err := NewRouter(cfg, logger, metrics, services, limiter)
	require.NoError(t, err)
	require.NotNil(t, router)

	return &testServer{router: router, ledger: ledgerService}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) issueToken(t *testing.T, userID string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"user_id": userID})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/auth/token", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-API-Key", testAPIKey)

	rec := s.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp["token"].(string)
}

func jsonRequest(method, path string, body interface{}) *http.Request {
	var raw []byte
	if body != nil {
		raw, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestNewRouter(t *testing.T) {
	_, err := NewRouter(testConfig(), otelinfra.NewLogger(noop.NewTracerProvider().Tracer("test")), nil, nil, nil)
	assert.Error(t, err)

	srv := setupTestRouter(t, testConfig(), nil)
	assert.NotNil(t, srv.router.echo)
}

func TestRouter_HealthCheck(t *testing.T) {
	srv := setupTestRouter(t, testConfig(), nil)

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var response map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "ok", response["status"])
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestRouter_UserEndpoints(t *testing.T) {
	srv := setupTestRouter(t, testConfig(), nil)
	_, err := srv.ledger.Credit(context.Background(), "user123", 1000, ledger.ReasonTopUp, "seed")
	require.NoError(t, err)
	token := srv.issueToken(t, "user123")

	tests := []struct {
		name           string
		method         string
		path           string
		body           interface{}
		authorization  string
		expectedStatus int
	}{
		{
			name:           "正常系: 残高取得",
			method:         http.MethodGet,
			path:           "/api/v1/me/balance",
			authorization:  "Bearer " + token,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "正常系: ギフト送信",
			method:         http.MethodPost,
			path:           "/api/v1/gifts",
			body:           map[string]string{"receiver_id": "user456", "gift_kind_id": "rose"},
			authorization:  "Bearer " + token,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "正常系: チャージ作成",
			method:         http.MethodPost,
			path:           "/api/v1/topups",
			body:           map[string]string{"package_id": "pkg-100"},
			authorization:  "Bearer " + token,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "正常系: 出金一覧",
			method:         http.MethodGet,
			path:           "/api/v1/withdrawals",
			authorization:  "Bearer " + token,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "異常系: トークンなし",
			method:         http.MethodGet,
			path:           "/api/v1/me/balance",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "異常系: 不正なトークン",
			method:         http.MethodGet,
			path:           "/api/v1/me/ledger",
			authorization:  "Bearer invalid.token.value",
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := jsonRequest(tt.method, tt.path, tt.body)
			if tt.authorization != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.authorization)
			}

			rec := srv.do(req)

			assert.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestRouter_AdminEndpoints(t *testing.T) {
	srv := setupTestRouter(t, testConfig(), nil)

	tests := []struct {
		name           string
		apiKey         string
		expectedStatus int
	}{
		{name: "正常系: 有効なAPIキー", apiKey: testAPIKey, expectedStatus: http.StatusOK},
		{name: "異常系: APIキーなし", expectedStatus: http.StatusUnauthorized},
		{name: "異常系: 不正なAPIキー", apiKey: "wrong", expectedStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, path := range []string{"/api/v1/admin/topups/pending", "/api/v1/admin/withdrawals/pending", "/api/v1/admin/users/user123/ledger"} {
				req := httptest.NewRequest(http.MethodGet, path, nil)
				if tt.apiKey != "" {
					req.Header.Set("X-API-Key", tt.apiKey)
				}

				rec := srv.do(req)

				assert.Equal(t, tt.expectedStatus, rec.Code, path)
			}
		})
	}
}

func TestRouter_Webhook(t *testing.T) {
	srv := setupTestRouter(t, testConfig(), nil)
	token := srv.issueToken(t, "user123")

	createReq := jsonRequest(http.MethodPost, "/api/v1/topups", map[string]string{"package_id": "pkg-1000"})
	createReq.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := srv.do(createReq)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		TopUp struct {
			InvoiceID string `json:"invoice_id"`
		} `json:"topup"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	body := []byte(`{"invoice_id":"` + created.TopUp.InvoiceID + `","status":"paid"}`)
	send := func(signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", bytes.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		if signature != "" {
			req.Header.Set(restmiddleware.SignatureHeader, signature)
		}
		return srv.do(req)
	}

	t.Run("異常系: 署名なし", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, send("").Code)
	})

	t.Run("異常系: 別の鍵による署名", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, send(hex.EncodeToString(restmiddleware.Sign("other", body))).Code)
	})

	t.Run("正常系: 正しい署名で一度だけ付与される", func(t *testing.T) {
		signature := hex.EncodeToString(restmiddleware.Sign(testWebhookSecret, body))

		assert.Equal(t, http.StatusOK, send(signature).Code)
		assert.Equal(t, http.StatusOK, send(signature).Code)

		balance, err := srv.ledger.GetBalance(context.Background(), "user123")
		require.NoError(t, err)
		assert.Equal(t, int64(1000), balance)
	})
}

func TestRouter_DonationRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	srv := setupTestRouter(t, testConfig(), cacheredis.NewRateLimiter(client, "test"))

	var codes []int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/donations/recent", nil)
		req.RemoteAddr = "203.0.113.7:40000"
		rec := srv.do(req)
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests {
			assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// 別のクライアントは独立して数える
	req := httptest.NewRequest(http.MethodGet, "/api/v1/donations/recent", nil)
	req.RemoteAddr = "198.51.100.9:40000"
	assert.Equal(t, http.StatusOK, srv.do(req).Code)
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	t.Run("正常系: prometheus選択時のみ公開", func(t *testing.T) {
		cfg := testConfig()
		cfg.OpenTelemetry = config.OpenTelemetryConfig{Enabled: true, MetricsExporter: "prometheus"}
		srv := setupTestRouter(t, cfg, nil)

		rec := srv.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("正常系: それ以外では404", func(t *testing.T) {
		srv := setupTestRouter(t, testConfig(), nil)

		rec := srv.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRouter_SwaggerEndpoints(t *testing.T) {
	srv := setupTestRouter(t, testConfig(), nil)

	tests := []struct {
		name string
		path string
	}{
		{name: "Swagger UIエンドポイント", path: "/swagger/index.html"},
		{name: "ReDocエンドポイント", path: "/redoc"},
		{name: "OpenAPI仕様エンドポイント", path: "/openapi.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, http.StatusOK, rec.Code, "path: %s", tt.path)
		})
	}

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
	assert.Contains(t, rec.Body.String(), "/webhooks/payments")

	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)
	req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil)
	req.Header.Set("If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, srv.do(req).Code)
}

func TestRouter_StartShutdown(t *testing.T) {
	srv := setupTestRouter(t, testConfig(), nil)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.router.Start("127.0.0.1:0")
	}()

	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, srv.router.Shutdown(ctx))
	assert.NoError(t, <-errCh)
}
