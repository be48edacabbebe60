package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	AdminToken  string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Telemetry  TelemetryConfig
	Redis      RedisConfig
	Accrual    AccrualConfig
	Stats      StatsConfig
	Notify     NotifyConfig
	Referral   ReferralConfig
	Withdrawal WithdrawalConfig
	RateLimit  RateLimitConfig
}

// TelemetryConfig follows the OTEL_* variable names so collectors configured
// for other services work unchanged.
type TelemetryConfig struct {
	LogLevel      string
	LogFormat     string
	OtelEnabled   bool
	OTLPEndpoint  string
	OTLPProtocol  string
	SamplingRatio float64
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type AccrualConfig struct {
	Enabled      bool
	RunInterval  time.Duration
	Schedule     string
	FetchSpacing time.Duration
	FetchTimeout time.Duration
	BatchSize    int
	CycleTimeout time.Duration
	LockTTL      time.Duration
}

type StatsConfig struct {
	YTDLPPath  string
	APIBaseURL string
	APIKey     string
	CacheTTL   time.Duration
}

type NotifyConfig struct {
	TelegramToken   string
	TelegramBaseURL string
	QueueSize       int
	SendTimeout     time.Duration
}

type ReferralConfig struct {
	Bonus decimal.Decimal
}

type WithdrawalConfig struct {
	Minimum decimal.Decimal
}

type RateLimitConfig struct {
	Enabled         bool
	SubmissionRate  float64
	SubmissionBurst int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "cliprail"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		AdminToken:  strings.TrimSpace(getenv("ADMIN_TOKEN", "")),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "cliprail"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "cliprail.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 300),

		Telemetry: TelemetryConfig{
			LogLevel:      strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
			LogFormat:     strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
			OtelEnabled:   getenvBool("OTEL_ENABLED", false),
			OTLPEndpoint:  strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")),
			OTLPProtocol:  strings.ToLower(strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))),
			SamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},
		Redis: RedisConfig{
			Enabled:  getenvBool("REDIS_ENABLED", false),
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "localhost:6379")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},
		Accrual: AccrualConfig{
			Enabled:      getenvBool("ACCRUAL_ENABLED", true),
			RunInterval:  getenvDuration("ACCRUAL_INTERVAL", 15*time.Minute),
			Schedule:     strings.TrimSpace(getenv("ACCRUAL_SCHEDULE", "")),
			FetchSpacing: getenvDuration("ACCRUAL_FETCH_SPACING", 2*time.Second),
			FetchTimeout: getenvDuration("ACCRUAL_FETCH_TIMEOUT", 20*time.Second),
			BatchSize:    getenvInt("ACCRUAL_BATCH_SIZE", 100),
			CycleTimeout: getenvDuration("ACCRUAL_CYCLE_TIMEOUT", 30*time.Minute),
			LockTTL:      getenvDuration("ACCRUAL_LOCK_TTL", 45*time.Minute),
		},
		Stats: StatsConfig{
			YTDLPPath:  strings.TrimSpace(getenv("YTDLP_PATH", "yt-dlp")),
			APIBaseURL: strings.TrimRight(strings.TrimSpace(getenv("STATS_API_BASE_URL", "")), "/"),
			APIKey:     strings.TrimSpace(getenv("STATS_API_KEY", "")),
			CacheTTL:   getenvDuration("STATS_CACHE_TTL", time.Minute),
		},
		Notify: NotifyConfig{
			TelegramToken:   strings.TrimSpace(getenv("TELEGRAM_BOT_TOKEN", "")),
			TelegramBaseURL: strings.TrimRight(getenv("TELEGRAM_API_BASE_URL", "https://api.telegram.org"), "/"),
			QueueSize:       getenvInt("NOTIFY_QUEUE_SIZE", 256),
			SendTimeout:     getenvDuration("NOTIFY_SEND_TIMEOUT", 10*time.Second),
		},
		Referral: ReferralConfig{
			Bonus: getenvDecimal("REFERRAL_BONUS", decimal.Zero),
		},
		Withdrawal: WithdrawalConfig{
			Minimum: getenvDecimal("WITHDRAWAL_MINIMUM", decimal.NewFromInt(10)),
		},
		RateLimit: RateLimitConfig{
			Enabled:         getenvBool("RATE_LIMIT_ENABLED", false),
			SubmissionRate:  getenvFloat("RATE_LIMIT_SUBMISSION_RATE", 0.1),
			SubmissionBurst: getenvInt("RATE_LIMIT_SUBMISSION_BURST", 5),
		},
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

// getenvDuration accepts Go durations ("90s") or plain seconds ("90").
func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return def
}

func getenvDecimal(key string, def decimal.Decimal) decimal.Decimal {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return def
	}
	return parsed
}
