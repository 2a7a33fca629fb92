package config

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"fern-api"`
	Port                          int      `env:"PORT" env-default:"3000"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,PUT,DELETE,PATCH"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// Database driver
	DatabaseDriver string `env:"DB_DRIVER" env-default:"postgres"`
	// Database host
	DatabaseHost string `env:"DB_HOST" env-default:""`
	// Database port
	DatabasePort string `env:"DB_PORT" env-default:"5432"`
	// Database user
	DatabaseUserName string `env:"DB_USER_NAME" env-default:""`
	// Database user password
	DatabasePassword string `env:"DB_PASSWORD" env-default:""`
	// Database name
	DatabaseName string `env:"DB_NAME" env-default:"fern"`
	// Database SQL Mode
	DatabaseSSLMode string `env:"DB_SQL_MODE" env-default:"disable"`
	// Reconnect Retry Count
	DatabaseReconnectRetryCount int `env:"DB_RECONNECT_RETRY_COUNT" env-default:"3"`
	// Max Open Conns
	DatabaseMaxOpenConns int `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	// Max Idle Conns
	DatabaseMaxIdleConns int `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	// Conn Max Lifetime
	DatabaseConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	// Migration Folder Path
	DatabaseMigrationFolderPath string `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	// Database Migration Version
	DatabaseMigrationVersion int `env:"DB_MIGRATION_VERSION" env-default:"0"`
	// Database Migration Force
	DatabaseMigrationForce int `env:"DB_MIGRATION_FORCE" env-default:"0"`
	// Database Migration Auto Rollback
	DatabaseMigrationAutoRollback bool `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Auth Issuer URL
	AuthIssuerURL string `env:"AUTH_ISSUER_URL" env-default:""`
	// Auth Client ID
	AuthClientID string `env:"AUTH_CLIENT_ID" env-default:""`
	// Auth Enabled - when false, allows the X-User-ID header for testing
	AuthEnabled bool `env:"AUTH_ENABLED" env-default:"false"`

	// Instagram Graph API base URL
	InstagramBaseURL string `env:"INSTAGRAM_BASE_URL" env-default:"https://graph.instagram.com" validate:"required,url"`
	// Instagram token exchange endpoint
	InstagramTokenURL string `env:"INSTAGRAM_TOKEN_URL" env-default:"https://api.instagram.com/oauth/access_token" validate:"required,url"`
	// Instagram app client ID
	InstagramClientID string `env:"INSTAGRAM_CLIENT_ID" validate:"required"`
	// Instagram app client secret
	InstagramClientSecret string `env:"INSTAGRAM_CLIENT_SECRET" validate:"required"`
	// Full embedded OAuth URL presented to users. The redirect_uri query param
	// inside it is the one sent on code exchange and must match exactly.
	InstagramEmbeddedOAuthURL string `env:"INSTAGRAM_EMBEDDED_OAUTH_URL" validate:"required,url"`
	// Webhook verification token for the Instagram webhook subscription
	InstagramWebhookVerifyToken string `env:"INSTAGRAM_WEBHOOK_VERIFY_TOKEN" env-default:""`
	// Per-request timeout for Instagram API calls
	InstagramRequestTimeout time.Duration `env:"INSTAGRAM_REQUEST_TIMEOUT" env-default:"15s"`

	// Smart AI completions endpoint
	SmartAIURL string `env:"SMART_AI_URL" env-default:""`
	// Smart AI API key
	SmartAIKey string `env:"SMART_AI_KEY" env-default:""`
	// Smart AI model name
	SmartAIModel string `env:"SMART_AI_MODEL" env-default:"gpt-4o"`
	// Max tokens per generated reply
	SmartAIMaxTokens int `env:"SMART_AI_MAX_TOKENS" env-default:"256"`

	// Redis host
	RedisHost string `env:"REDIS_HOST" env-default:"localhost"`
	// Redis port
	RedisPort int `env:"REDIS_PORT" env-default:"6379"`
	// Redis password
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	// Redis database number
	RedisDB int `env:"REDIS_DB" env-default:"0"`

	// Kafka brokers (comma-separated)
	KafkaBrokers string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	// Kafka topic carrying inbound Instagram events from the ingestion pipeline
	KafkaEventTopic string `env:"KAFKA_EVENT_TOPIC" env-default:"instagram-events"`
	// Kafka consumer group for the event topic
	KafkaConsumerGroup string `env:"KAFKA_CONSUMER_GROUP" env-default:"fern-events"`
	// Kafka topic receiving dispatch outcomes
	KafkaDispatchTopic string `env:"KAFKA_DISPATCH_TOPIC" env-default:"fern-dispatches"`
	// Enable/disable the kafka event consumer
	KafkaConsumerEnabled bool `env:"KAFKA_CONSUMER_ENABLED" env-default:"false"`

	// Scheduler settings
	// Scheduler poll interval
	SchedulerPollInterval time.Duration `env:"SCHEDULER_POLL_INTERVAL" env-default:"1h"`
	// Refresh tokens expiring within this window
	TokenRefreshWindow time.Duration `env:"TOKEN_REFRESH_WINDOW" env-default:"120h"`
	// Enable/disable the scheduler
	SchedulerEnabled bool `env:"SCHEDULER_ENABLED" env-default:"true"`

	// Redis Streams settings
	// Job queue stream name
	RedisStreamsJobQueue string `env:"REDIS_STREAMS_JOB_QUEUE" env-default:"fern:events"`
	// Consumer group name
	RedisStreamsConsumerGroup string `env:"REDIS_STREAMS_CONSUMER_GROUP" env-default:"fern-workers"`
	// Consumer name (defaults to hostname if empty)
	RedisStreamsConsumerName string `env:"REDIS_STREAMS_CONSUMER_NAME" env-default:""`
	// Number of queue workers
	QueueWorkerCount int `env:"QUEUE_WORKER_COUNT" env-default:"5"`
	// Max delivery attempts before a job lands in the DLQ
	QueueMaxRetries int `env:"QUEUE_MAX_RETRIES" env-default:"3"`

	// Rate limit for outbound sends per Instagram account
	SendRateLimit int `env:"SEND_RATE_LIMIT" env-default:"100"`
	// Window for the send rate limit
	SendRateWindow time.Duration `env:"SEND_RATE_WINDOW" env-default:"1h"`

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

// Load reads configuration from the environment, preferring variables from a
// local .env file when present, and fails fast on missing required settings.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env is optional

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
