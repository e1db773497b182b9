package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	HTTPAddr    string
	LogLevel    string

	CRDBDSN   string
	MongoURI  string
	MongoDB   string
	RedisAddr string
	RabbitURL string

	JWTSecret          string
	TicketSigningKey   string
	OTLPEndpoint       string
	IdempotencyTTL     time.Duration
	RateLimitPerUser   int
	RateLimitPerIP     int
	RateLimitWindow    time.Duration
	MaxProofBytes      int64
	PaymentWindow      time.Duration
	ReviewWindow       time.Duration
	EnforceDeadline    bool
	DeadlineScanPeriod time.Duration

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFrom     string
	MailFromName string
	MailDryRun   bool
	NotifyQueue  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		CRDBDSN:   os.Getenv("CRDB_DSN"),
		MongoURI:  os.Getenv("MONGO_URI"),
		MongoDB:   getEnv("MONGO_DB", "eventhub"),
		RedisAddr: os.Getenv("REDIS_ADDR"),
		RabbitURL: os.Getenv("RABBIT_URL"),

		JWTSecret:          os.Getenv("JWT_SECRET"),
		TicketSigningKey:   getEnv("TICKET_SIGNING_KEY", os.Getenv("JWT_SECRET")),
		OTLPEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		IdempotencyTTL:     getEnvAsDuration("IDEMPOTENCY_TTL", "1h"),
		RateLimitPerUser:   getEnvAsInt("RATE_LIMIT_PER_USER", 60),
		RateLimitPerIP:     getEnvAsInt("RATE_LIMIT_PER_IP", 300),
		RateLimitWindow:    getEnvAsDuration("RATE_LIMIT_WINDOW", "1m"),
		MaxProofBytes:      int64(getEnvAsInt("MAX_PROOF_BYTES", 5*1024*1024)),
		PaymentWindow:      getEnvAsDuration("PAYMENT_WINDOW", "2h"),
		ReviewWindow:       getEnvAsDuration("REVIEW_WINDOW", "72h"),
		EnforceDeadline:    getEnvAsBool("ENFORCE_PAYMENT_DEADLINE", false),
		DeadlineScanPeriod: getEnvAsDuration("DEADLINE_SCAN_PERIOD", "1m"),

		OutboxPollInterval: getEnvAsDuration("OUTBOX_POLL_INTERVAL", "5s"),
		OutboxBatchSize:    getEnvAsInt("OUTBOX_BATCH_SIZE", 50),
		OutboxMaxAttempts:  getEnvAsInt("OUTBOX_MAX_ATTEMPTS", 10),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASS"),
		MailFrom:     getEnv("SMTP_FROM_EMAIL", "no-reply@eventhub.local"),
		MailFromName: getEnv("SMTP_FROM_NAME", "EventHub"),
		MailDryRun:   getEnvAsBool("MAIL_DRY_RUN", false),
		NotifyQueue:  getEnv("NOTIFY_QUEUE", "notifications.q"),
	}, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	if d, err := time.ParseDuration(getEnv(key, defaultValue)); err == nil && d > 0 {
		return d
	}
	d, _ := time.ParseDuration(defaultValue)
	return d
}
