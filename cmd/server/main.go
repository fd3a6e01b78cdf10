package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	authapp "flower-server/internal/application/auth"
	donationapp "flower-server/internal/application/donation"
	giftapp "flower-server/internal/application/gift"
	historyapp "flower-server/internal/application/history"
	"flower-server/internal/application/notifier"
	"flower-server/internal/application/reconciliation"
	topupapp "flower-server/internal/application/topup"
	withdrawalapp "flower-server/internal/application/withdrawal"
	"flower-server/internal/domain/catalog"
	"flower-server/internal/domain/donation"
	"flower-server/internal/domain/event"
	"flower-server/internal/domain/gift"
	"flower-server/internal/domain/ledger"
	"flower-server/internal/domain/service"
	"flower-server/internal/domain/topup"
	"flower-server/internal/domain/withdrawal"
	cacheredis "flower-server/internal/infrastructure/cache/redis"
	"flower-server/internal/infrastructure/config"
	"flower-server/internal/infrastructure/gateway/qrpay"
	"flower-server/internal/infrastructure/messaging/rabbitmq"
	otelinfra "flower-server/internal/infrastructure/observability/otel"
	"flower-server/internal/infrastructure/persistence/memory"
	"flower-server/internal/infrastructure/persistence/mysql"
	"flower-server/internal/infrastructure/scheduler"
	grpcserver "flower-server/internal/presentation/grpc"
	"flower-server/internal/presentation/rest"
	restmiddleware "flower-server/internal/presentation/rest/middleware"
)

// storage 永続化層の実装一式
type storage struct {
	accounts    ledger.AccountRepository
	entries     ledger.EntryRepository
	catalog     catalog.Repository
	gifts       gift.Repository
	topUps      topup.Repository
	withdrawals withdrawal.Repository
	donations   donation.Repository
	txManager   ledger.TransactionManager
	ping        func(ctx context.Context) error
	close       func() error
}

// publisher 精算イベントの配信先
type publisher interface {
	event.Publisher
	Close()
}

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// OpenTelemetryの初期化
	tracerShutdown, err := otelinfra.InitTracer(&cfg.OpenTelemetry)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerShutdown(ctx); err != nil {
			log.Printf("Failed to shutdown tracer: %v", err)
		}
	}()

	meterShutdown, err := otelinfra.InitMeter(&cfg.OpenTelemetry)
	if err != nil {
		log.Fatalf("Failed to initialize meter: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterShutdown(ctx); err != nil {
			log.Printf("Failed to shutdown meter: %v", err)
		}
	}()

	// ロガーとメトリクスの初期化
	tracer := otelinfra.Tracer("flower-server")
	logger := otelinfra.NewLogger(tracer).WithMinLevel(otelinfra.ParseLogLevel(cfg.LogLevel))
	metrics, err := otelinfra.NewMetrics("flower-server")
	if err != nil {
		log.Fatalf("Failed to create metrics: %v", err)
	}

	// 永続化層の初期化
	store, err := newStorage(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.close(); err != nil {
			log.Printf("Failed to close storage: %v", err)
		}
	}()

	// 精算イベントの配信
	events := newPublisher(&cfg.Messaging, logger)
	defer events.Close()
	settlementNotifier := notifier.New(events, logger)

	// 決済ゲートウェイ
	gateway := qrpay.NewClient(&cfg.Gateway, metrics)

	// ドメインサービスの初期化
	ledgerService := service.NewLedgerService(store.accounts, store.entries, store.txManager)

	// アプリケーションサービスの初期化
	services := &rest.Services{
		Auth:    authapp.NewAuthApplicationService(&cfg.JWT, logger),
		History: historyapp.NewHistoryApplicationService(ledgerService, store.entries, logger, metrics),
		Gift: giftapp.NewGiftApplicationService(
			store.catalog,
			store.gifts,
			ledgerService,
			store.txManager,
			settlementNotifier,
			logger,
			metrics,
		),
		TopUp: topupapp.NewTopUpApplicationService(
			store.catalog,
			store.topUps,
			ledgerService,
			store.txManager,
			gateway,
			cfg.Gateway.CallbackURL,
			settlementNotifier,
			logger,
			metrics,
		),
		Withdrawal: withdrawalapp.NewWithdrawalApplicationService(
			store.catalog,
			store.withdrawals,
			ledgerService,
			store.txManager,
			&cfg.Settlement,
			settlementNotifier,
			logger,
			metrics,
		),
		Donation: donationapp.NewDonationApplicationService(
			store.donations,
			gateway,
			cfg.Gateway.CallbackURL,
			&cfg.Settlement,
			settlementNotifier,
			logger,
			metrics,
		),
	}

	probes := map[string]grpcserver.Probe{}
	if store.ping != nil {
		probes["database"] = store.ping
	}

	// レート制限（Redis無効時は制限なし）
	var limiter restmiddleware.RateLimiter
	if cfg.Redis.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := cacheredis.NewClient(ctx, &cfg.Redis)
		cancel()
		if err != nil {
			log.Printf("Redis unavailable, rate limiting disabled: %v", err)
		} else {
			defer client.Close()
			limiter = cacheredis.NewRateLimiter(client, "flowers")
			probes["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		}
	}

	// REST APIルーターの初期化
	router, err := rest.NewRouter(cfg, logger, metrics, services, limiter)
	if err != nil {
		log.Fatalf("Failed to create router: %v", err)
	}

	// 運用向けgRPCサーバー（ヘルスチェック）
	var opsServer *grpcserver.Server
	if cfg.Server.GRPCPort > 0 {
		opsServer, err = grpcserver.NewServer(cfg, logger, probes)
		if err != nil {
			log.Fatalf("Failed to create gRPC server: %v", err)
		}
		if err := opsServer.Check(context.Background()); err != nil {
			log.Printf("Initial health check failed: %v", err)
		}
	}

	// 定期ジョブ
	sched := scheduler.New(logger, cfg.Gateway.Timeout*2)
	if cfg.Reconciler.Enabled {
		sweeper := reconciliation.NewSweeper(services.TopUp, services.Donation, cfg.Reconciler.BatchSize, logger)
		if err := sched.Register("reconcile-invoices", cfg.Reconciler.Schedule, sweeper.Sweep); err != nil {
			log.Fatalf("Failed to schedule reconciler: %v", err)
		}
	}
	if opsServer != nil {
		if err := sched.Register("health-probe", "@every 15s", opsServer.Check); err != nil {
			log.Fatalf("Failed to schedule health probe: %v", err)
		}
	}
	sched.Start()

	address := fmt.Sprintf(":%d", cfg.Server.Port)

	// グレースフルシャットダウンの設定
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("REST API server starting on %s", address)
		if err := router.Start(address); err != nil {
			log.Printf("REST API server error: %v", err)
			quit <- syscall.SIGTERM
		}
	}()

	if opsServer != nil {
		go func() {
			if err := opsServer.Start(); err != nil {
				log.Printf("gRPC server error: %v", err)
				quit <- syscall.SIGTERM
			}
		}()
	}

	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := router.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down REST API server: %v", err)
	}
	if opsServer != nil {
		if err := opsServer.Stop(shutdownCtx); err != nil {
			log.Printf("Error shutting down gRPC server: %v", err)
		}
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		log.Printf("Error stopping scheduler: %v", err)
	}

	log.Println("Server stopped")
}

// newStorage 設定されたドライバーの永続化層を作成
func newStorage(cfg *config.DatabaseConfig) (*storage, error) {
	switch cfg.Driver {
	case "memory":
		s := memory.NewStore()
		s.SeedDefaultCatalog()
		repos := memory.NewRepositories(s)
		log.Println("Using in-memory storage; data is lost on restart")
		return &storage{
			accounts:    repos.Accounts,
			entries:     repos.Entries,
			catalog:     repos.Catalog,
			gifts:       repos.Gifts,
			topUps:      repos.TopUps,
			withdrawals: repos.Withdrawals,
			donations:   repos.Donations,
			txManager:   s,
			close:       func() error { return nil },
		}, nil
	default:
		if cfg.AutoMigrate {
			if err := mysql.MigrateUp(cfg); err != nil {
				return nil, err
			}
			log.Println("Database migrations applied")
		}
		db, err := mysql.NewDB(cfg)
		if err != nil {
			return nil, err
		}
		return &storage{
			accounts:    mysql.NewAccountRepository(db),
			entries:     mysql.NewEntryRepository(db),
			catalog:     mysql.NewCatalogRepository(db),
			gifts:       mysql.NewGiftRepository(db),
			topUps:      mysql.NewTopUpRepository(db),
			withdrawals: mysql.NewWithdrawalRepository(db),
			donations:   mysql.NewDonationRepository(db),
			txManager:   mysql.NewTransactionManager(db),
			ping:        db.Probe,
			close:       db.Close,
		}, nil
	}
}

// newPublisher AMQPが設定されていればRabbitMQへ、なければログへ配信する
func newPublisher(cfg *config.MessagingConfig, logger *otelinfra.Logger) publisher {
	if cfg.AMQPURL == "" {
		return rabbitmq.NewFallbackPublisher(logger)
	}
	p, err := rabbitmq.NewEventPublisher(cfg.AMQPURL, cfg.Exchange, logger)
	if err != nil {
		log.Printf("RabbitMQ unavailable, settlement events will be logged only: %v", err)
		return rabbitmq.NewFallbackPublisher(logger)
	}
	return p
}
