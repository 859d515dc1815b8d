// Package config loads the service configuration from environment variables.
// The .env file is loaded in main.go for local development using
// godotenv.Load() before LoadConfig runs.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration.
type Config struct {
	Port string

	TwilioAccountSID string
	TwilioAuthToken  string
	WorkspaceSid     string
	WorkflowSid      string

	// Domain is the public origin webhooks and asset URLs are built on,
	// e.g. "https://callbacks.example.com".
	Domain string

	JWTSecret string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Artifact retrieval tuning.
	RetryLimit      int
	RetryMinBackoff time.Duration
	RetryMaxBackoff time.Duration
	CacheTTL        time.Duration
}

var (
	// DefaultConfig holds the default configuration values.
	DefaultConfig = Config{
		Port:            "8080",
		RedisHost:       "localhost",
		RedisPort:       "6379",
		RetryLimit:      3,
		RetryMinBackoff: 250 * time.Millisecond,
		RetryMaxBackoff: time.Second,
		CacheTTL:        30 * time.Minute,
	}

	// AppConfig holds the current configuration.
	AppConfig Config
)

// LoadConfig loads configuration from environment variables.
func LoadConfig() {
	cfg := DefaultConfig

	setString(&cfg.Port, "PORT")
	setString(&cfg.TwilioAccountSID, "TWILIO_ACCOUNT_SID")
	setString(&cfg.TwilioAuthToken, "TWILIO_AUTH_TOKEN")
	setString(&cfg.WorkspaceSid, "TWILIO_WORKSPACE_SID")
	setString(&cfg.WorkflowSid, "TWILIO_WORKFLOW_SID")
	setString(&cfg.Domain, "SERVICE_DOMAIN")
	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.RedisHost, "REDIS_HOST")
	setString(&cfg.RedisPort, "REDIS_PORT")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	setInt(&cfg.RedisDB, "REDIS_DB")
	setInt(&cfg.RetryLimit, "TWILIO_SERVICE_RETRY_LIMIT")
	setMillis(&cfg.RetryMinBackoff, "TWILIO_SERVICE_MIN_BACKOFF")
	setMillis(&cfg.RetryMaxBackoff, "TWILIO_SERVICE_MAX_BACKOFF")
	setMillis(&cfg.CacheTTL, "ARTIFACT_CACHE_TTL")

	AppConfig = cfg
}

// GetConfig returns the current configuration.
func GetConfig() Config {
	return AppConfig
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setMillis(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(n) * time.Millisecond
		}
	}
}
