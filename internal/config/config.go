package config

import (
	"errors"
	"os"
	"strings"
)

const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds all server settings, loaded from environment variables.
type Config struct {
	Port         string
	StoreBackend string
	DatabaseURL  string
	SQLitePath   string
	RedisAddr    string
	// JWTSecret enables room-token checks on the WebSocket endpoint when set.
	JWTSecret      string
	AllowedOrigins []string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnvOrDefault("PORT", "8080"),
		StoreBackend:   getEnvOrDefault("STORE_BACKEND", BackendSQLite),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		SQLitePath:     getEnvOrDefault("SQLITE_PATH", "pairpad.db"),
		RedisAddr:      getEnvOrDefault("REDIS_ADDR", "redis:6379"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		AllowedOrigins: splitList(getEnvOrDefault("ALLOWED_ORIGINS", "*")),
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.StoreBackend {
	case BackendSQLite, BackendRedis:
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
	default:
		return errors.New("unsupported store backend: " + cfg.StoreBackend +
			". Currently supported: sqlite, postgres, redis")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
