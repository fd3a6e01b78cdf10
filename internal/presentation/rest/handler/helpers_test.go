package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
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
	"flower-server/internal/infrastructure/config"
	"flower-server/internal/infrastructure/messaging/rabbitmq"
	otelinfra "flower-server/internal/infrastructure/observability/otel"
	"flower-server/internal/infrastructure/persistence/memory"
	restmiddleware "flower-server/internal/presentation/rest/middleware"
)

// testUserHeader テスト用に認証済みユーザーを指定するヘッダー
const testUserHeader = "X-Test-User"

type fakeGateway struct {
	mu        sync.Mutex
	seq       int
	statuses  map[string]payment.InvoiceStatus
	createErr error
}

func (g *fakeGateway) CreatePayment(ctx context.Context, amount int64, callbackURL string) (*payment.Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.seq++
	id := fmt.Sprintf("inv-%d", g.seq)
	g.statuses[id] = payment.InvoiceStatusPending
	return &payment.Invoice{
		InvoiceID:   id,
		PaymentURL:  "https://pay.example.com/" + id,
		FinalAmount: amount + 150,
		ExpiresAt:   time.Now().Add(15 * time.Minute),
	}, nil
}

func (g *fakeGateway) CheckStatus(ctx context.Context, invoiceID string) (*payment.StatusReport, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return &payment.StatusReport{InvoiceID: invoiceID, Status: g.statuses[invoiceID]}, nil
}

func (g *fakeGateway) set(invoiceID string, st payment.InvoiceStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[invoiceID] = st
}

type testEnv struct {
	echo    *echo.Echo
	store   *memory.Store
	ledger  *service.LedgerService
	gateway *fakeGateway

	auth       *AuthHandler
	history    *HistoryHandler
	gift       *GiftHandler
	topUp      *TopUpHandler
	withdrawal *WithdrawalHandler
	donation   *DonationHandler
	webhook    *WebhookHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewStore()
	store.SeedDefaultCatalog()
	repos := memory.NewRepositories(store)
	ledgerService := service.NewLedgerService(repos.Accounts, repos.Entries, store)

	logger := otelinfra.NewLogger(noop.NewTracerProvider().Tracer("test")).WithOutput(io.Discard)
	metrics, err := otelinfra.NewMetrics("test")
	require.NoError(t, err)

	n := notifier.New(rabbitmq.NewFallbackPublisher(logger), logger)
	gw := &fakeGateway{statuses: make(map[string]payment.InvoiceStatus)}
	settlement := &config.SettlementConfig{
		MinimumWithdrawal:      100,
		WithdrawalExchangeRate: decimal.RequireFromString("7.5"),
		MinimumDonation:        1000,
		MaximumDonation:        1_000_000,
	}
	callbackURL := "https://flowers.example.com/api/v1/webhooks/payments"

	env := &testEnv{
		echo:    echo.New(),
		store:   store,
		ledger:  ledgerService,
		gateway: gw,
		auth: NewAuthHandler(authapp.NewAuthApplicationService(&config.JWTConfig{
			Secret:     "test-secret-key",
			Issuer:     "flower-server",
			Expiration: time.Hour,
		}, logger)),
		history: NewHistoryHandler(historyapp.NewHistoryApplicationService(ledgerService, repos.Entries, logger, metrics)),
		gift:    NewGiftHandler(giftapp.NewGiftApplicationService(repos.Catalog, repos.Gifts, ledgerService, store, n, logger, metrics)),
		withdrawal: NewWithdrawalHandler(withdrawalapp.NewWithdrawalApplicationService(
			repos.Catalog, repos.Withdrawals, ledgerService, store, settlement, n, logger, metrics)),
	}

	topUpService := topupapp.NewTopUpApplicationService(repos.Catalog, repos.TopUps, ledgerService, store, gw, callbackURL, n, logger, metrics)
	donationService := donationapp.NewDonationApplicationService(repos.Donations, gw, callbackURL, settlement, n, logger, metrics)
	env.topUp = NewTopUpHandler(topUpService)
	env.donation = NewDonationHandler(donationService)
	env.webhook = NewWebhookHandler(topUpService, donationService)

	e := env.echo
	e.Use(restmiddleware.ErrorHandlerMiddleware(logger))

	user := e.Group("", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if id := c.Request().Header.Get(testUserHeader); id != "" {
				c.Set(restmiddleware.UserIDKey, id)
			}
			return next(c)
		}
	})
	user.GET("/me/balance", env.history.GetBalance)
	user.GET("/me/ledger", env.history.GetLedger)
	user.POST("/gifts", env.gift.SendGift)
	user.POST("/topups", env.topUp.Create)
	user.GET("/topups/:id/status", env.topUp.CheckStatus)
	user.POST("/withdrawals", env.withdrawal.Create)
	user.GET("/withdrawals", env.withdrawal.ListMine)

	e.POST("/donations", env.donation.Create)
	e.GET("/donations/recent", env.donation.ListRecent)
	e.GET("/donations/:id/status", env.donation.CheckStatus)
	e.POST("/webhooks/payments", env.webhook.HandlePayment)

	e.POST("/admin/auth/token", env.auth.IssueToken)
	e.GET("/admin/users/:user_id/ledger", env.history.GetLedgerAdmin)
	e.GET("/admin/topups/pending", env.topUp.ListPending)
	e.PATCH("/admin/topups/:id", env.topUp.AdminUpdate)
	e.GET("/admin/withdrawals/pending", env.withdrawal.ListPending)
	e.PATCH("/admin/withdrawals/:id", env.withdrawal.AdminUpdate)

	return env
}

// do リクエストを実行する。userIDが空の場合は未認証として扱う
func (e *testEnv) do(t *testing.T, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(raw)
		}
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if userID != "" {
		req.Header.Set(testUserHeader, userID)
	}
	rec := httptest.NewRecorder()
	e.echo.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) fund(t *testing.T, userID string, amount int64) {
	t.Helper()
	_, err := e.ledger.Credit(context.Background(), userID, amount, ledger.ReasonTopUp, "seed-"+userID)
	require.NoError(t, err)
}

func (e *testEnv) balance(t *testing.T, userID string) int64 {
	t.Helper()
	b, err := e.ledger.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	return b
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	require.Equal(t, want, rec.Code, rec.Body.String())
}
