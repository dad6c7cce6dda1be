package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the broker.
type Config struct {
	HTTPPort  string
	JWTSecret []byte

	// AdminPasswordHash is the bcrypt hash of the admin password used to
	// obtain a management JWT.
	AdminPasswordHash string

	// EncryptionKey is the base64-encoded 32-byte AES key protecting
	// provider API keys at rest.
	EncryptionKey string

	Database DatabaseConfig
	Cache    CacheConfig
	Redis    RedisConfig
	Billing  BillingConfig
	Provider ProviderConfig
	Images   ImagesConfig
	Audit    AuditConfig
	Telegram TelegramConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// CacheConfig holds cache settings
type CacheConfig struct {
	ModelCacheSize int
	ModelCacheTTL  time.Duration
	GrantCacheSize int
	GrantCacheTTL  time.Duration
}

// RedisConfig holds Redis connection settings. Redis is optional: when no
// address is configured the notification queue falls back to memory.
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// BillingConfig holds the pricing knobs of the billing engine.
type BillingConfig struct {
	// MarkupCoefficient multiplies the provider's basic cost. Default 2.
	MarkupCoefficient float64

	// RateSourceURL is the USD/RUB quote endpoint.
	RateSourceURL string

	// FallbackRate is used whenever the quote source fails. Default 100.
	FallbackRate float64

	// RateTimeout bounds a single quote fetch.
	RateTimeout time.Duration

	// BalanceFloor is the minimum balance (RUB) required to accept a request.
	BalanceFloor float64
}

// ProviderConfig holds settings for outbound AI provider calls
type ProviderConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
}

// ImagesConfig holds settings for locally persisted provider images
type ImagesConfig struct {
	// Dir is the directory generated images are written to.
	Dir string

	// PublicBaseURL prefixes served image paths, e.g. "https://host/images".
	PublicBaseURL string
}

// AuditConfig holds configuration for the settlement audit sink
type AuditConfig struct {
	BufferSize    int
	FlushSize     int
	FlushInterval time.Duration

	FilePath string

	S3Enabled bool
	S3Bucket  string
	S3Region  string
	S3Prefix  string
	PodName   string
}

// TelegramConfig holds settings for owner notifications
type TelegramConfig struct {
	BotToken string
	Enabled  bool
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvFloat(key string, defaultValue float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	floatVal, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultValue
	}
	return floatVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if os.Getenv("ENCRYPTION_KEY") == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required")
	}

	cfg := &Config{
		HTTPPort:          getEnvString("HTTP_PORT", "4444"),
		JWTSecret:         []byte(getEnvString("JWT_SECRET", "supersecretkey")),
		AdminPasswordHash: getEnvString("ADMIN_PASSWORD_HASH", ""),
		EncryptionKey:     getEnvString("ENCRYPTION_KEY", ""),
		Database: DatabaseConfig{
			URL:             dbURL,
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
		},
		Cache: CacheConfig{
			ModelCacheSize: getEnvInt("CACHE_MODEL_SIZE", 500),
			ModelCacheTTL:  getEnvDuration("CACHE_MODEL_TTL", 15*time.Minute),
			GrantCacheSize: getEnvInt("CACHE_GRANT_SIZE", 1000),
			GrantCacheTTL:  getEnvDuration("CACHE_GRANT_TTL", 5*time.Minute),
		},
		Redis: RedisConfig{
			Address:      getEnvString("REDIS_ADDRESS", ""),
			Password:     getEnvString("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Billing: BillingConfig{
			MarkupCoefficient: getEnvFloat("MARKUP_COEFFICIENT", 2),
			RateSourceURL:     getEnvString("RATE_SOURCE_URL", "https://www.cbr-xml-daily.ru/daily_json.js"),
			FallbackRate:      getEnvFloat("FALLBACK_RATE", 100),
			RateTimeout:       getEnvDuration("RATE_TIMEOUT", 10*time.Second),
			BalanceFloor:      getEnvFloat("BALANCE_FLOOR", 20),
		},
		Provider: ProviderConfig{
			BaseURL:        getEnvString("PROVIDER_BASE_URL", "https://api.openai.com/v1"),
			RequestTimeout: getEnvDuration("PROVIDER_REQUEST_TIMEOUT", 60*time.Second),
		},
		Images: ImagesConfig{
			Dir:           getEnvString("IMAGES_DIR", "/var/lib/modelbroker/images"),
			PublicBaseURL: getEnvString("IMAGES_PUBLIC_BASE_URL", "http://localhost:4444/images"),
		},
		Audit: AuditConfig{
			BufferSize:    getEnvInt("AUDIT_BUFFER_SIZE", 10000),
			FlushSize:     getEnvInt("AUDIT_FLUSH_SIZE", 1000),
			FlushInterval: getEnvDuration("AUDIT_FLUSH_INTERVAL", 5*time.Minute),
			FilePath:      getEnvString("AUDIT_FILE_PATH", "/var/log/modelbroker/settlements.jsonl"),
			S3Enabled:     getEnvString("AUDIT_S3_ENABLED", "false") == "true",
			S3Bucket:      getEnvString("AUDIT_S3_BUCKET", ""),
			S3Region:      getEnvString("AUDIT_S3_REGION", "us-east-1"),
			S3Prefix:      getEnvString("AUDIT_S3_PREFIX", "settlements/"),
			PodName:       getEnvString("POD_NAME", "broker-0"),
		},
		Telegram: TelegramConfig{
			BotToken: getEnvString("TELEGRAM_BOT_TOKEN", ""),
			Enabled:  getEnvString("TELEGRAM_NOTIFY_ENABLED", "false") == "true",
		},
	}

	return cfg, nil
}
