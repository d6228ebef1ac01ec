// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends selectable via STORE_BACKEND.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP API listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// StoreBackend selects session/wallet persistence: memory, file, postgres, or redis.
	StoreBackend string `mapstructure:"STORE_BACKEND"`
	// SessionsFile is the JSON file path for the file backend's session table.
	SessionsFile string `mapstructure:"SESSIONS_FILE"`
	// WalletsFile is the JSON file path for the file backend's wallet table.
	WalletsFile string `mapstructure:"WALLETS_FILE"`
	// DatabaseURL is the Postgres DSN; required for the postgres backend.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisAddr is the Redis host:port; required for the redis backend.
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// RedisPassword is the optional Redis auth password.
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	// BundlerRPCURL is the smart-account infrastructure JSON-RPC endpoint.
	BundlerRPCURL string `mapstructure:"BUNDLER_RPC_URL"`
	// JWTSigningSecret is the shared HS256 secret bearer tokens are verified with.
	JWTSigningSecret string `mapstructure:"JWT_SIGNING_SECRET"`
	// JWTIssuer is the expected iss claim; empty disables the check.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the expected aud claim; empty disables the check.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// ConfirmTimeout bounds the post-submission confirmation wait (e.g. "30s").
	ConfirmTimeout string `mapstructure:"CONFIRM_TIMEOUT"`
	// ConfirmPollInterval is the confirmation poll period (e.g. "2s").
	ConfirmPollInterval string `mapstructure:"CONFIRM_POLL_INTERVAL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is the zap level (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Events (optional). When Kafka brokers are set, lifecycle events are emitted to Kafka.
	// EventsKafkaBrokers is a comma-separated list of broker addresses (e.g. "localhost:9092").
	EventsKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// EventsKafkaTopic is the Kafka topic for lifecycle events.
	EventsKafkaTopic string `mapstructure:"EVENTS_KAFKA_TOPIC"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("STORE_BACKEND", StoreMemory)
	v.SetDefault("SESSIONS_FILE", "sessions.json")
	v.SetDefault("WALLETS_FILE", "wallets.json")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("BUNDLER_RPC_URL", "")
	v.SetDefault("JWT_SIGNING_SECRET", "")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")
	v.SetDefault("CONFIRM_TIMEOUT", "30s")
	v.SetDefault("CONFIRM_POLL_INTERVAL", "2s")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("EVENTS_KAFKA_TOPIC", "session-key-events")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	switch cfg.StoreBackend {
	case StoreMemory, StoreFile:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("config: DATABASE_URL must be set for the postgres backend")
		}
	case StoreRedis:
		if cfg.RedisAddr == "" {
			return nil, errors.New("config: REDIS_ADDR must be set for the redis backend")
		}
	default:
		return nil, fmt.Errorf("config: unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	if cfg.StoreBackend == StoreMemory && cfg.Env == "production" {
		return nil, errors.New("config: STORE_BACKEND=memory must not be used when APP_ENV=production")
	}

	return &cfg, nil
}

// ConfirmWindow parses ConfirmTimeout and ConfirmPollInterval as durations.
// Returns 30s / 2s when unset or invalid.
func (c *Config) ConfirmWindow() (timeout, interval time.Duration) {
	timeout, err := time.ParseDuration(c.ConfirmTimeout)
	if err != nil || timeout <= 0 {
		timeout = 30 * time.Second
	}
	interval, err = time.ParseDuration(c.ConfirmPollInterval)
	if err != nil || interval <= 0 {
		interval = 2 * time.Second
	}
	return timeout, interval
}

// EventsKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if event emission is enabled (non-empty list) and to create the producer.
func (c *Config) EventsKafkaBrokersList() []string {
	if c == nil || c.EventsKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.EventsKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
