package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds service configuration.
type Config struct {
	DatabaseURL string
	ServerAddr  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	IdleTimeout    time.Duration
	SweepInterval  time.Duration
	SweepBatchSize int

	DispatchInterval  time.Duration
	DispatchBatchSize int
	GatewayURL        string
	GatewayTimeout    time.Duration
}

// Load reads configuration from the environment, with an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		user := getenv("POSTGRES_USER", "bargain_hub")
		pass := getenv("POSTGRES_PASSWORD", "bargain_hub_pass")
		db := getenv("POSTGRES_DB", "bargain_hub")
		host := getenv("POSTGRES_HOST", "localhost")
		port := getenv("POSTGRES_PORT", "5432")
		sslmode := getenv("DATABASE_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, sslmode)
	}

	return &Config{
		DatabaseURL: dsn,
		ServerAddr:  getenv("SERVER_ADDR", "0.0.0.0:8080"),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       parseInt(getenv("REDIS_DB", "0"), 0),
		CacheTTL:      parseDuration(getenv("CACHE_TTL", "5m"), 5*time.Minute),

		IdleTimeout:    parseDuration(getenv("IDLE_TIMEOUT", "72h"), 72*time.Hour),
		SweepInterval:  parseDuration(getenv("SWEEP_INTERVAL", "10m"), 10*time.Minute),
		SweepBatchSize: parseInt(getenv("SWEEP_BATCH_SIZE", "100"), 100),

		DispatchInterval:  parseDuration(getenv("DISPATCH_INTERVAL", "15s"), 15*time.Second),
		DispatchBatchSize: parseInt(getenv("DISPATCH_BATCH_SIZE", "50"), 50),
		GatewayURL:        os.Getenv("PUSH_GATEWAY_URL"),
		GatewayTimeout:    parseDuration(getenv("PUSH_GATEWAY_TIMEOUT", "10s"), 10*time.Second),
	}, nil
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func parseDuration(val string, def time.Duration) time.Duration {
	if val == "" {
		return def
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return def
	}
	return d
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return n
}
