package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Run modes
const (
	ModeServer   = "server"
	ModeWorker   = "worker"
	ModeEmbedded = "embedded"
)

// Config holds application configuration loaded from environment variables
type Config struct {
	Env       string
	Port      string
	Mode      string
	LogLevel  string
	LogFormat string

	DatabaseURL string
	RedisURL    string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string
	SessionSecret      string
	AuthJWTSecret      string

	CronSecret         string
	ReminderSchedule   string
	ReminderBatchSize  int
	ReminderRetryDelay time.Duration

	AnthropicAPIKey   string
	AnthropicModel    string
	AnthropicBaseURL  string
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAIBaseURL     string
	AITimeout         time.Duration
	AIMaxOutputTokens int
	AIStubMode        bool

	AWSRegion string
	EmailFrom string
	AppURL    string

	SentryDSN                     string
	DeleteIdentityOnAccountDelete bool
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first when present.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("WARNING: failed to load .env file: %v", err)
	}

	cfg := &Config{
		Env:       getEnvWithDefault("ENV", "development"),
		Port:      getEnvWithDefault("PORT", "8080"),
		Mode:      strings.ToLower(getEnvWithDefault("MODE", ModeEmbedded)),
		LogLevel:  getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvWithDefault("LOG_FORMAT", "text"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleCallbackURL:  os.Getenv("GOOGLE_CALLBACK_URL"),
		SessionSecret:      os.Getenv("SESSION_SECRET"),
		AuthJWTSecret:      os.Getenv("AUTH_JWT_SECRET"),

		CronSecret:         os.Getenv("CRON_SECRET"),
		ReminderSchedule:   getEnvWithDefault("REMINDER_SCHEDULE", "*/30 * * * *"),
		ReminderBatchSize:  getEnvInt("REMINDER_BATCH_SIZE", 20),
		ReminderRetryDelay: getEnvDuration("REMINDER_RETRY_DELAY", 500*time.Millisecond),

		AnthropicAPIKey:   os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:    getEnvWithDefault("ANTHROPIC_MODEL", "claude-3-haiku-20240307"),
		AnthropicBaseURL:  getEnvWithDefault("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:       getEnvWithDefault("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:     getEnvWithDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		AITimeout:         time.Duration(getEnvInt("AI_TIMEOUT_S", 10)) * time.Second,
		AIMaxOutputTokens: getEnvInt("AI_MAX_OUTPUT_TOKENS", 2000),
		AIStubMode:        getEnvBool("AI_STUB_MODE", false),

		AWSRegion: os.Getenv("AWS_REGION"),
		EmailFrom: getEnvWithDefault("EMAIL_FROM", "Accomplish <reminders@accomplish.today>"),
		AppURL:    getEnvWithDefault("APP_URL", "http://localhost:8080"),

		SentryDSN:                     os.Getenv("SENTRY_DSN"),
		DeleteIdentityOnAccountDelete: getEnvBool("DELETE_IDENTITY_ON_ACCOUNT_DELETE", false),
	}

	// Warn if using default session secret (insecure for production)
	if cfg.SessionSecret == "" {
		cfg.SessionSecret = "dev-secret-change-in-production-use-openssl-rand-hex-32"
		log.Println("WARNING: Using default SESSION_SECRET. Generate a secure secret with: openssl rand -hex 32")
	}

	if cfg.ReminderBatchSize <= 0 {
		cfg.ReminderBatchSize = 20
	}

	return cfg
}

// IsProduction reports whether the service runs with ENV=production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// IsDevelopment reports whether the service runs with ENV=development
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// EmailConfigured reports whether reminder emails can be delivered
func (c *Config) EmailConfigured() bool {
	return c.AWSRegion != "" && c.EmailFrom != ""
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("WARNING: invalid integer for %s=%q, using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("WARNING: invalid boolean for %s=%q, using %t", key, value, defaultValue)
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("WARNING: invalid duration for %s=%q, using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}
