package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const minSecretLen = 32

// Invalid-token backends.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config contains runtime configuration values.
type Config struct {
	Environment         string
	LogLevel            string
	DatabaseURL         string
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	TokenSecret         []byte
	SessionTTL          time.Duration
	SeedTTL             time.Duration
	InvalidTokenGrace   time.Duration
	InvalidTokenBackend string
	SeedRatePerMinute   int
	SeedBurst           int
}

// Load reads configuration from the environment, after merging a .env file
// from the working directory when one exists.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads configuration from environment variables only.
func FromEnv() (Config, error) {
	secret := strings.TrimSpace(os.Getenv("AUTHCORE_TOKEN_SECRET"))
	if secret == "" {
		return Config{}, fmt.Errorf("AUTHCORE_TOKEN_SECRET is required")
	}
	if len(secret) < minSecretLen {
		return Config{}, fmt.Errorf("AUTHCORE_TOKEN_SECRET must be at least %d bytes", minSecretLen)
	}

	cfg := Config{
		Environment:         getEnv("AUTHCORE_ENV", "production"),
		LogLevel:            getEnv("AUTHCORE_LOG_LEVEL", "info"),
		DatabaseURL:         os.Getenv("AUTHCORE_PG_DSN"),
		RedisAddr:           getEnv("AUTHCORE_REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:       os.Getenv("AUTHCORE_REDIS_PASSWORD"),
		RedisDB:             getInt("AUTHCORE_REDIS_DB", 0),
		TokenSecret:         []byte(secret),
		SessionTTL:          getDuration("AUTHCORE_SESSION_TTL", 12*time.Hour),
		SeedTTL:             getDuration("AUTHCORE_SEED_TTL", 15*time.Minute),
		InvalidTokenGrace:   getDuration("AUTHCORE_INVALID_TOKEN_GRACE", 120*time.Second),
		InvalidTokenBackend: strings.ToLower(getEnv("AUTHCORE_INVALID_TOKEN_BACKEND", BackendPostgres)),
		SeedRatePerMinute:   getInt("AUTHCORE_SEED_RATE_PER_MINUTE", 5),
		SeedBurst:           getInt("AUTHCORE_SEED_BURST", 3),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("AUTHCORE_PG_DSN is required")
	}
	switch cfg.InvalidTokenBackend {
	case BackendPostgres, BackendRedis:
	default:
		return Config{}, fmt.Errorf("AUTHCORE_INVALID_TOKEN_BACKEND must be %q or %q", BackendPostgres, BackendRedis)
	}
	if cfg.SessionTTL <= 0 || cfg.SeedTTL <= 0 {
		return Config{}, fmt.Errorf("token lifetimes must be positive")
	}
	if cfg.SeedBurst < 1 {
		cfg.SeedBurst = 1
	}
	return cfg, nil
}

// Development reports whether the process runs with development settings.
func (c Config) Development() bool {
	return strings.EqualFold(c.Environment, "development")
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err == nil {
			return n
		}
	}
	return def
}
