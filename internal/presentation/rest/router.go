package rest

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authapp "flower-server/internal/application/auth"
	donationapp "flower-server/internal/application/donation"
	giftapp "flower-server/internal/application/gift"
	historyapp "flower-server/internal/application/history"
	topupapp "flower-server/internal/application/topup"
	withdrawalapp "flower-server/internal/application/withdrawal"
	"flower-server/internal/infrastructure/config"
	otelinfra "flower-server/internal/infrastructure/observability/otel"
	"flower-server/internal/presentation/rest/handler"
	restmiddleware "flower-server/internal/presentation/rest/middleware"
)

// Services ルーターが公開するアプリケーションサービス
type Services struct {
	Auth       *authapp.AuthApplicationService
	History    *historyapp.HistoryApplicationService
	Gift       *giftapp.GiftApplicationService
	TopUp      *topupapp.TopUpApplicationService
	Withdrawal *withdrawalapp.WithdrawalApplicationService
	Donation   *donationapp.DonationApplicationService
}

// Router REST APIルーター
type Router struct {
	echo *echo.Echo
}

// NewRouter 新しいRouterを作成
// limiterがnilの場合、公開エンドポイントのレート制限は無効
func NewRouter(
	cfg *config.Config,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
	services *Services,
	limiter restmiddleware.RateLimiter,
) (*Router, error) {
	if services == nil {
		return nil, errors.New("services are required")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	e.Server.IdleTimeout = cfg.Server.IdleTimeout

	// エラーはErrorHandlerMiddlewareでレスポンスに変換済み
	e.HTTPErrorHandler = func(err error, c echo.Context) {}

	setupMiddleware(e, cfg, logger, metrics)
	setupRoutes(e, cfg, logger, services, limiter)
	SetupSwagger(e)

	return &Router{echo: e}, nil
}

// setupMiddleware ミドルウェアを設定
func setupMiddleware(e *echo.Echo, cfg *config.Config, logger *otelinfra.Logger, metrics *otelinfra.Metrics) {
	e.Use(middleware.Recover())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			"X-API-Key",
			restmiddleware.SignatureHeader,
		},
	}))

	e.Use(middleware.RequestID())
	e.Use(restmiddleware.SecurityHeadersMiddleware())
	e.Use(restmiddleware.TracingMiddleware())
	e.Use(restmiddleware.LoggingMiddleware(logger))
	e.Use(restmiddleware.MetricsMiddleware(metrics))
	e.Use(restmiddleware.ErrorHandlerMiddleware(logger))
}

// setupRoutes ルーティングを設定
func setupRoutes(
	e *echo.Echo,
	cfg *config.Config,
	logger *otelinfra.Logger,
	services *Services,
	limiter restmiddleware.RateLimiter,
) {
	authHandler := handler.NewAuthHandler(services.Auth)
	historyHandler := handler.NewHistoryHandler(services.History)
	giftHandler := handler.NewGiftHandler(services.Gift)
	topUpHandler := handler.NewTopUpHandler(services.TopUp)
	withdrawalHandler := handler.NewWithdrawalHandler(services.Withdrawal)
	donationHandler := handler.NewDonationHandler(services.Donation)
	webhookHandler := handler.NewWebhookHandler(services.TopUp, services.Donation)

	api := e.Group("/api/v1")

	// ユーザーAPI（JWT）
	user := api.Group("", restmiddleware.AuthMiddleware(services.Auth, logger))
	user.GET("/me/balance", historyHandler.GetBalance)
	user.GET("/me/ledger", historyHandler.GetLedger)
	user.POST("/gifts", giftHandler.SendGift)
	user.POST("/topups", topUpHandler.Create)
	user.GET("/topups/:id/status", topUpHandler.CheckStatus)
	user.POST("/withdrawals", withdrawalHandler.Create)
	user.GET("/withdrawals", withdrawalHandler.ListMine)

	// 公開API（認証不要、IP単位のレート制限）
	public := api.Group("/donations", restmiddleware.RateLimitMiddleware(
		limiter, "donations", cfg.RateLimit.DonationLimit, cfg.RateLimit.Window, logger))
	public.POST("", donationHandler.Create)
	public.GET("/recent", donationHandler.ListRecent)
	public.GET("/:id/status", donationHandler.CheckStatus)

	// 決済ゲートウェイからの通知（署名検証）
	webhooks := api.Group("/webhooks",
		restmiddleware.RateLimitMiddleware(limiter, "webhooks", cfg.RateLimit.WebhookLimit, cfg.RateLimit.Window, logger),
		restmiddleware.WebhookSignatureMiddleware(cfg.Gateway.WebhookSecret, logger),
	)
	webhooks.POST("/payments", webhookHandler.HandlePayment)

	// 管理API（APIキー）
	admin := api.Group("/admin", restmiddleware.APIKeyMiddleware(&cfg.AdminAPI, logger))
	admin.POST("/auth/token", authHandler.IssueToken)
	admin.GET("/users/:user_id/ledger", historyHandler.GetLedgerAdmin)
	admin.GET("/topups/pending", topUpHandler.ListPending)
	admin.PATCH("/topups/:id", topUpHandler.AdminUpdate)
	admin.GET("/withdrawals/pending", withdrawalHandler.ListPending)
	admin.PATCH("/withdrawals/:id", withdrawalHandler.AdminUpdate)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	if cfg.OpenTelemetry.Enabled && cfg.OpenTelemetry.MetricsExporter == "prometheus" {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}
}

// Start サーバーを起動
func (r *Router) Start(address string) error {
	if err := r.echo.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 処理中のリクエストを待ってサーバーを停止
func (r *Router) Shutdown(ctx context.Context) error {
	return r.echo.Shutdown(ctx)
}

// ServeHTTP http.Handlerを実装する
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.echo.ServeHTTP(w, req)
}
