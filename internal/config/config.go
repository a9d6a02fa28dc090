package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr        string
	GRPCAddr        string
	DBDriver        string
	DatabaseDSN     string
	RedisAddr       string // empty selects the in-process locker
	LockWait        time.Duration
	LockTTL         time.Duration
	IdempotencyTTL  time.Duration
	CommitAttempts  int
	LogLevel        string
	LogDevelopment  bool
	ShutdownTimeout time.Duration
}

// Load reads the environment and falls back to local development defaults.
func Load() (*Config, error) {
	var errs []error

	cfg := &Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		GRPCAddr:        getEnv("GRPC_ADDR", ":50051"),
		DBDriver:        getEnv("DB_DRIVER", "mysql"),
		DatabaseDSN:     getEnv("DATABASE_DSN", "root:root@tcp(localhost:3306)/stockledger?parseTime=true"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		LockWait:        getDuration("LOCK_WAIT", 5*time.Second, &errs),
		LockTTL:         getDuration("LOCK_TTL", 10*time.Second, &errs),
		IdempotencyTTL:  getDuration("IDEMPOTENCY_TTL", 24*time.Hour, &errs),
		CommitAttempts:  getInt("COMMIT_ATTEMPTS", 3, &errs),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogDevelopment:  getEnv("LOG_DEVELOPMENT", "false") == "true",
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 5*time.Second, &errs),
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DBDriver != "mysql" && c.DBDriver != "sqlite" {
		return fmt.Errorf("DB_DRIVER must be mysql or sqlite, got %q", c.DBDriver)
	}
	if c.DatabaseDSN == "" {
		return errors.New("DATABASE_DSN is empty")
	}
	if c.LockWait <= 0 || c.LockTTL <= 0 || c.IdempotencyTTL <= 0 || c.ShutdownTimeout <= 0 {
		return errors.New("durations must be positive")
	}
	if c.CommitAttempts < 1 {
		return fmt.Errorf("COMMIT_ATTEMPTS must be at least 1, got %d", c.CommitAttempts)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func getInt(key string, def int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}
