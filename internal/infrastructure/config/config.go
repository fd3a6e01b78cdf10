package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config アプリケーション全体の設定
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	AdminAPI      AdminAPIConfig
	OpenTelemetry OpenTelemetryConfig
	Gateway       GatewayConfig
	Settlement    SettlementConfig
	Messaging     MessagingConfig
	Reconciler    ReconcilerConfig
	RateLimit     RateLimitConfig
	Environment   string
	LogLevel      string
}

// ServerConfig サーバー設定
type ServerConfig struct {
	Port            int
	GRPCPort        int // 0のとき無効
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// DatabaseConfig データベース設定
type DatabaseConfig struct {
	Driver          string // "mysql", "memory"
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	AutoMigrate     bool // 起動時に未適用のマイグレーションを適用する
}

// RedisConfig Redis設定
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

// JWTConfig JWT設定
type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

// AdminAPIConfig 管理API設定
type AdminAPIConfig struct {
	Enabled    bool
	APIKey     string
	AllowedIPs []string
}

// OpenTelemetryConfig OpenTelemetry設定
type OpenTelemetryConfig struct {
	Enabled         bool
	ServiceName     string
	ServiceVersion  string
	OTLPEndpoint    string
	OTLPInsecure    bool
	TraceExporter   string // "otlp", "none"
	MetricsExporter string // "otlp", "prometheus", "none"
	SampleRatio     float64
	Environment     string
}

// GatewayConfig QR決済ゲートウェイ設定
type GatewayConfig struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	WebhookSecret string
	CallbackURL   string
}

// SettlementConfig 精算ルール設定
type SettlementConfig struct {
	MinimumWithdrawal      int64
	WithdrawalExchangeRate decimal.Decimal // 1フラワーあたりの現金額
	MinimumDonation        int64
	MaximumDonation        int64
}

// MessagingConfig 精算イベント配信設定
type MessagingConfig struct {
	AMQPURL  string
	Exchange string
}

// ReconcilerConfig 未確定請求の定期照合設定
type ReconcilerConfig struct {
	Enabled   bool
	Schedule  string
	BatchSize int
}

// RateLimitConfig 公開エンドポイントのレート制限設定
type RateLimitConfig struct {
	DonationLimit int
	WebhookLimit  int
	Window        time.Duration
}

// Load 設定を読み込む
func Load() (*Config, error) {
	// .envファイルを読み込む（存在しない場合は無視）
	_ = godotenv.Load()

	env := getEnv("ENVIRONMENT", "development")

	cfg := &Config{
		Environment: env,
		LogLevel:    getEnv("LOG_LEVEL", "INFO"),
		Server: ServerConfig{
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			GRPCPort:        getEnvAsInt("GRPC_PORT", 9090),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvAsSlice("SERVER_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "mysql"),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 3306),
			User:            getEnv("DB_USER", "root"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "flowers"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 10*time.Minute),
			AutoMigrate:     getEnvAsBool("DB_AUTO_MIGRATE", false),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", ""),
			Expiration: getEnvAsDuration("JWT_EXPIRATION", 24*time.Hour),
			Issuer:     getEnv("JWT_ISSUER", "flower-server"),
		},
		AdminAPI: AdminAPIConfig{
			Enabled:    getEnvAsBool("ADMIN_API_ENABLED", true),
			APIKey:     getEnv("ADMIN_API_KEY", ""),
			AllowedIPs: getEnvAsSlice("ADMIN_API_ALLOWED_IPS", nil),
		},
		OpenTelemetry: OpenTelemetryConfig{
			Enabled:         getEnvAsBool("OTEL_ENABLED", true),
			ServiceName:     getEnv("OTEL_SERVICE_NAME", "flower-server"),
			ServiceVersion:  getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			OTLPEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
			OTLPInsecure:    getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			TraceExporter:   getEnv("OTEL_TRACES_EXPORTER", "otlp"),
			MetricsExporter: getEnv("OTEL_METRICS_EXPORTER", "otlp"),
			SampleRatio:     getEnvAsFloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
			Environment:     env,
		},
		Gateway: GatewayConfig{
			BaseURL:       getEnv("PAYMENT_GATEWAY_BASE_URL", "http://localhost:9090"),
			APIKey:        getEnv("PAYMENT_GATEWAY_API_KEY", ""),
			Timeout:       getEnvAsDuration("PAYMENT_GATEWAY_TIMEOUT", 30*time.Second),
			WebhookSecret: getEnv("PAYMENT_WEBHOOK_SECRET", ""),
			CallbackURL:   getEnv("PAYMENT_CALLBACK_URL", "http://localhost:8080/api/v1/webhooks/payments"),
		},
		Settlement: SettlementConfig{
			MinimumWithdrawal:      getEnvAsInt64("MINIMUM_WITHDRAWAL_FLOWERS", 100),
			WithdrawalExchangeRate: getEnvAsDecimal("WITHDRAWAL_EXCHANGE_RATE", decimal.NewFromInt(10)),
			MinimumDonation:        getEnvAsInt64("MINIMUM_DONATION_AMOUNT", 1000),
			MaximumDonation:        getEnvAsInt64("MAXIMUM_DONATION_AMOUNT", 10_000_000),
		},
		Messaging: MessagingConfig{
			AMQPURL:  getEnv("AMQP_URL", ""),
			Exchange: getEnv("AMQP_EXCHANGE", "flowers.settlement"),
		},
		Reconciler: ReconcilerConfig{
			Enabled:   getEnvAsBool("RECONCILER_ENABLED", true),
			Schedule:  getEnv("RECONCILER_SCHEDULE", "@every 1m"),
			BatchSize: getEnvAsInt("RECONCILER_BATCH_SIZE", 50),
		},
		RateLimit: RateLimitConfig{
			DonationLimit: getEnvAsInt("RATE_LIMIT_DONATIONS", 10),
			WebhookLimit:  getEnvAsInt("RATE_LIMIT_WEBHOOKS", 120),
			Window:        getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
	}

	// 必須設定の検証
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate 設定の検証
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "mysql":
		if c.Database.Host == "" {
			return fmt.Errorf("DB_HOST is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("DB_NAME is required")
		}
	case "memory":
	default:
		return fmt.Errorf("DB_DRIVER must be mysql or memory: %s", c.Database.Driver)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.AdminAPI.Enabled && c.AdminAPI.APIKey == "" {
		return fmt.Errorf("ADMIN_API_KEY is required when ADMIN_API_ENABLED is true")
	}
	if c.Gateway.BaseURL == "" {
		return fmt.Errorf("PAYMENT_GATEWAY_BASE_URL is required")
	}
	if c.Gateway.WebhookSecret == "" && c.Environment == "production" {
		return fmt.Errorf("PAYMENT_WEBHOOK_SECRET is required in production")
	}
	if c.Settlement.MinimumWithdrawal <= 0 {
		return fmt.Errorf("MINIMUM_WITHDRAWAL_FLOWERS must be positive")
	}
	if !c.Settlement.WithdrawalExchangeRate.IsPositive() {
		return fmt.Errorf("WITHDRAWAL_EXCHANGE_RATE must be positive")
	}
	if c.Settlement.MaximumDonation > 0 && c.Settlement.MaximumDonation < c.Settlement.MinimumDonation {
		return fmt.Errorf("MAXIMUM_DONATION_AMOUNT must not be below MINIMUM_DONATION_AMOUNT")
	}
	if c.Reconciler.BatchSize <= 0 {
		return fmt.Errorf("RECONCILER_BATCH_SIZE must be positive")
	}
	return nil
}

// DSN データベース接続文字列を返す
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// MigrationDSN マイグレーション用の接続文字列を返す（複数ステートメント許可）
func (c *DatabaseConfig) MigrationDSN() string {
	return c.DSN() + "&multiStatements=true"
}

// Address Redis接続アドレスを返す
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnv 環境変数を取得（デフォルト値付き）
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt 環境変数を整数として取得
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64 環境変数を64bit整数として取得
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat 環境変数を浮動小数点数として取得
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool 環境変数を真偽値として取得
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration 環境変数を時間として取得
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDecimal 環境変数を10進数として取得
func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSlice カンマ区切りの環境変数をスライスとして取得
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}
