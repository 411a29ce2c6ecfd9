package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port               int
	DevMode            bool
	DatabasePath       string
	LogLevel           string
	PriceFeedURL       string
	PriceSyncSchedule  string        // cron spec for the price sync job
	PriceStaleAfter    time.Duration // valuations older than this are flagged stale
	RiskFreeRate       float64       // annual, as decimal (0.02 = 2%)
	StreamBufferSize   int           // per-subscriber event buffer
	MetricsCacheTTL    time.Duration
	RequestTimeout     time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnvAsInt("PORT", 8002),
		DevMode:           getEnvAsBool("DEV_MODE", false),
		DatabasePath:      getEnv("DATABASE_PATH", "./data/portfolio.db"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		PriceFeedURL:      getEnv("PRICE_FEED_URL", "http://localhost:9100"),
		PriceSyncSchedule: getEnv("PRICE_SYNC_SCHEDULE", "@every 1m"),
		PriceStaleAfter:   getEnvAsDuration("PRICE_STALE_THRESHOLD", 15*time.Minute),
		RiskFreeRate:      getEnvAsFloat("RISK_FREE_RATE", 0.02),
		StreamBufferSize:  getEnvAsInt("STREAM_BUFFER_SIZE", 64),
		MetricsCacheTTL:   getEnvAsDuration("METRICS_CACHE_TTL", 30*time.Second),
		RequestTimeout:    getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.StreamBufferSize < 1 {
		return fmt.Errorf("STREAM_BUFFER_SIZE must be positive")
	}
	if c.PriceStaleAfter <= 0 {
		return fmt.Errorf("PRICE_STALE_THRESHOLD must be positive")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
