package internal

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	LogLevel string

	// Telegram
	TelegramBotToken     string
	PaymentProviderToken string
	PollTimeout          time.Duration

	// Account store
	Store    string // "mongo" or "memory"
	MongoURI string

	// AI Provider Configuration
	AIProvider         string // "openai" or "mock"
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	OpenAIOrganization string
	OpenAIProject      string
	AIMaxRetries       int
	AIRetryBaseDelay   time.Duration
	AIRequestTimeout   time.Duration

	// Optional tariff override file (YAML)
	TariffsFile string

	// Storage Configuration
	StorageProvider string // "local" or "s3"

	// Local Storage (development)
	LocalStoragePath string

	// S3-compatible Storage (production)
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3BucketName      string

	// Operational HTTP server (health and metrics)
	OpsPort int

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		PollTimeout: getEnvDuration("TELEGRAM_POLL_TIMEOUT", 30*time.Second),

		// Account store defaults to MongoDB
		Store:    getEnv("STORE", "mongo"),
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017"),

		// AI provider defaults
		AIProvider:         getEnv("AI_PROVIDER", "mock"),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:      getEnv("OPENAI_BASE_URL", ""),
		OpenAIOrganization: getEnv("OPENAI_ORGANIZATION", ""),
		OpenAIProject:      getEnv("OPENAI_PROJECT", ""),
		AIMaxRetries:       getEnvInt("AI_MAX_RETRIES", 3),
		AIRetryBaseDelay:   getEnvDuration("AI_RETRY_BASE_DELAY", 1*time.Second),
		AIRequestTimeout:   getEnvDuration("AI_REQUEST_TIMEOUT", 60*time.Second),

		TariffsFile: getEnv("TARIFFS_FILE", ""),

		// Storage defaults to local filesystem for development
		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./storage"),

		// S3 configuration (production only)
		S3Region:          getEnv("S3_REGION", "auto"),
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3BucketName:      getEnv("S3_BUCKET_NAME", ""),

		OpsPort: getEnvInt("OPS_PORT", 8080),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	// Required
	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if cfg.TelegramBotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	// Optional: without it the premium flow is disabled
	cfg.PaymentProviderToken = os.Getenv("PAYMENT_PROVIDER_TOKEN")

	// Validate store configuration
	if cfg.Store != "mongo" && cfg.Store != "memory" {
		return nil, fmt.Errorf("STORE must be either 'mongo' or 'memory', got: %s", cfg.Store)
	}

	// Validate storage configuration
	if cfg.StorageProvider == "s3" {
		if cfg.S3AccessKeyID == "" {
			return nil, fmt.Errorf("S3_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 's3'")
		}
		if cfg.S3SecretAccessKey == "" {
			return nil, fmt.Errorf("S3_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 's3'")
		}
		if cfg.S3BucketName == "" {
			return nil, fmt.Errorf("S3_BUCKET_NAME is required when STORAGE_PROVIDER is 's3'")
		}
	} else if cfg.StorageProvider != "local" {
		return nil, fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 's3', got: %s", cfg.StorageProvider)
	}

	// Validate AI provider configuration
	if cfg.AIProvider == "openai" {
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is 'openai'")
		}
	} else if cfg.AIProvider != "mock" {
		return nil, fmt.Errorf("AI_PROVIDER must be either 'openai' or 'mock', got: %s", cfg.AIProvider)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
