package app

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	ServerPort      string
	Environment     string
	SigningSecret   string
	DBHost          string
	DBPort          string
	DBUser          string
	DBPassword      string
	DBName          string
	DBSSLMode       string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RateLimitMax    int
	RateLimitWindow time.Duration
	NATSURL         string
	LogLevel        string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		SigningSecret:   getEnv("SIGNING_SECRET", ""),
		DBHost:          getEnv("DB_HOST", "localhost"),
		DBPort:          getEnv("DB_PORT", "5432"),
		DBUser:          getEnv("DB_USER", "postgres"),
		DBPassword:      getEnv("DB_PASSWORD", "postgres"),
		DBName:          getEnv("DB_NAME", "ingestdb"),
		DBSSLMode:       getEnv("DB_SSL_MODE", "disable"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		RateLimitMax:    getEnvInt("RATE_LIMIT_MAX", 100),
		RateLimitWindow: time.Duration(getEnvInt("RATE_LIMIT_WINDOW_SEC", 60)) * time.Second,
		NATSURL:         getEnv("NATS_URL", ""),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}

	if cfg.SigningSecret == "" {
		return nil, fmt.Errorf("SIGNING_SECRET must be set")
	}

	return cfg, nil
}

// ConnString builds the Postgres connection string.
func (c *Config) ConnString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

// SlogLevel maps the configured verbosity onto a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
