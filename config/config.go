// Package config loads service configuration from the environment
package config

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName  string `env:"APP_NAME" env-default:"fern-api"`
	Env      string `env:"ENV" env-default:"local"`
	Version  string `env:"APP_VERSION" env-default:"dev"`
	Port     int    `env:"PORT" env-default:"3000"`
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`

	HttpServerWriteTimeoutSeconds int `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"30"`
	HttpServerReadTimeoutSeconds  int `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"30"`
	HttpServerIdleTimeoutSeconds  int `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"60"`

	// Database driver
	DatabaseDriver string `env:"DB_DRIVER" env-default:"postgres"`
	// Database host
	DatabaseHost string `env:"DB_HOST" env-default:"localhost"`
	// Database port
	DatabasePort string `env:"DB_PORT" env-default:"5432"`
	// Database user
	DatabaseUserName string `env:"DB_USER_NAME" env-default:"fern"`
	// Database user password
	DatabasePassword string `env:"DB_PASSWORD" env-default:""`
	// Database name
	DatabaseName string `env:"DB_NAME" env-default:"fern"`
	// Database SSL Mode
	DatabaseSSLMode string `env:"DB_SSL_MODE" env-default:"disable"`
	// Max Open Conns
	DatabaseMaxOpenConns int `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	// Max Idle Conns
	DatabaseMaxIdleConns int `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	// Conn Max Lifetime
	DatabaseConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10m"`
	// Migration Folder Path
	DatabaseMigrationFolderPath string `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`

	// JWT signing secret for session tokens
	JWTSecret string `env:"JWT_SECRET" env-default:""`
	// Access token lifetime
	JWTAccessTTL time.Duration `env:"JWT_ACCESS_TTL" env-default:"15m"`
	// Refresh token lifetime
	JWTRefreshTTL time.Duration `env:"JWT_REFRESH_TTL" env-default:"720h"`

	// OIDC issuer URL; when set, bearer tokens are validated against the
	// external provider instead of the local token service
	AuthIssuerURL string `env:"AUTH_ISSUER_URL" env-default:""`
	// OIDC client ID
	AuthClientID string `env:"AUTH_CLIENT_ID" env-default:""`

	// Redis enabled; without it the assistant rate limiter allows everything
	RedisEnabled bool `env:"REDIS_ENABLED" env-default:"false"`
	// Redis host
	RedisHost string `env:"REDIS_HOST" env-default:"localhost"`
	// Redis port
	RedisPort int `env:"REDIS_PORT" env-default:"6379"`
	// Redis password
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	// Redis database number
	RedisDB int `env:"REDIS_DB" env-default:"0"`

	// Kafka enabled; without it audit events are dropped
	KafkaEnabled bool `env:"KAFKA_ENABLED" env-default:"false"`
	// Kafka brokers (comma-separated)
	KafkaBrokers []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	// Kafka topic for workspace audit events
	KafkaEventsTopic string `env:"KAFKA_EVENTS_TOPIC" env-default:"fern-events"`

	// LLM provider API key
	LLMAPIKey string `env:"LLM_API_KEY" env-default:""`
	// LLM provider base URL override (for proxies and local models)
	LLMBaseURL string `env:"LLM_BASE_URL" env-default:""`
	// Chat model
	LLMModel string `env:"LLM_MODEL" env-default:"gpt-4o-mini"`
	// Max completion tokens per call
	LLMMaxTokens int `env:"LLM_MAX_TOKENS" env-default:"4096"`
	// Sampling temperature
	LLMTemperature float64 `env:"LLM_TEMPERATURE" env-default:"0.7"`
	// Per-call timeout
	LLMTimeout time.Duration `env:"LLM_TIMEOUT" env-default:"60s"`
	// Retries after the first failed attempt
	LLMMaxRetries uint64 `env:"LLM_MAX_RETRIES" env-default:"2"`
	// Euro cost per 1000 prompt tokens, markup included
	LLMPromptRatePer1K float64 `env:"LLM_PROMPT_RATE_PER_1K" env-default:"0.0035"`
	// Euro cost per 1000 completion tokens, markup included
	LLMCompletionRatePer1K float64 `env:"LLM_COMPLETION_RATE_PER_1K" env-default:"0.014"`

	// Assistant orchestration budget per workspace per window
	AssistantRateLimit int64 `env:"ASSISTANT_RATE_LIMIT" env-default:"30"`
	// Assistant rate window
	AssistantRateWindow time.Duration `env:"ASSISTANT_RATE_WINDOW" env-default:"1m"`

	// Stripe webhook signing secret; empty disables the webhook endpoint
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET" env-default:""`
	// Stripe price id for the growth plan
	StripeGrowthPriceID string `env:"STRIPE_GROWTH_PRICE_ID" env-default:""`
	// Stripe price id for the scale plan
	StripeScalePriceID string `env:"STRIPE_SCALE_PRICE_ID" env-default:""`

	// Tracing settings
	// Enable OTLP tracing export (set to true to send traces to collector)
	OTLPEnabled bool `env:"OTLP_ENABLED" env-default:"false"`
	// OTLP collector endpoint
	OTLPEndpoint string `env:"OTLP_ENDPOINT" env-default:"localhost:4317"`
	// OTLP protocol (grpc or http)
	OTLPProtocol string `env:"OTLP_PROTOCOL" env-default:"grpc"`
	// Disable TLS for OTLP (for local development)
	OTLPInsecure bool `env:"OTLP_INSECURE" env-default:"true"`
}

// Load reads configuration from the environment, layering a local .env file
// underneath when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
