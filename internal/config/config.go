// Package config loads the Aggregator's environment-variable configuration
// (spec §6.4) into a typed, immutable value passed explicitly to every
// component that needs it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the fully resolved, validated configuration for one run of the
// Aggregator.
type Config struct {
	NATSURL      string
	NATSUser     string
	NATSPassword string

	DBPath string

	PublishInterval time.Duration
	CleanupInterval time.Duration
	RetentionDays   int

	RateLimitPerNode int
	RateLimitWindow  time.Duration
	GlobalRateLimit  int

	IndexerBaseURL string
	TRUContract    string

	MetricsAddr string

	DevMode bool
}

const (
	defaultDBPath          = "/data/aggregator.db"
	defaultPublishInterval = 30 * time.Second
	defaultCleanupInterval = 24 * time.Hour
	defaultRetentionDays   = 30
	defaultRateLimitWindow = 1 * time.Second
	defaultRateLimitNode   = 10
	defaultGlobalRateLimit = 1000
	defaultMetricsAddr     = "127.0.0.1:9464"
	defaultNATSURL         = "wss://127.0.0.1:4223"
)

// Load reads the process environment and returns a validated Config, or a
// FatalStartupError-shaped error if a required value is missing.
func Load() (Config, error) {
	cfg := Config{
		NATSURL:          getenv("NATS_URL", defaultNATSURL),
		NATSUser:         os.Getenv("NATS_USER"),
		NATSPassword:     os.Getenv("NATS_AGGREGATOR_PASSWORD"),
		DBPath:           getenv("DB_PATH", defaultDBPath),
		PublishInterval:  getDuration("PUBLISH_INTERVAL", defaultPublishInterval),
		CleanupInterval:  getDuration("CLEANUP_INTERVAL", defaultCleanupInterval),
		RetentionDays:    getInt("RETENTION_DAYS", defaultRetentionDays),
		RateLimitPerNode: getInt("RATE_LIMIT_PER_NODE", defaultRateLimitNode),
		RateLimitWindow:  getDuration("RATE_LIMIT_WINDOW", defaultRateLimitWindow),
		GlobalRateLimit:  getInt("GLOBAL_RATE_LIMIT", defaultGlobalRateLimit),
		IndexerBaseURL:   getenv("TRU_INDEXER_URL", "https://blockscout.example/api/v2"),
		TRUContract:      getenv("TRU_CONTRACT", "0x0000000000085d4780B73119b644AE5ecd22b376"),
		MetricsAddr:      getenv("METRICS_ADDR", defaultMetricsAddr),
		DevMode:          os.Getenv("DEV_MODE") == "1",
	}

	if cfg.NATSPassword == "" && !cfg.DevMode {
		return Config{}, fmt.Errorf("NATS_AGGREGATOR_PASSWORD must be set (set DEV_MODE=1 to bypass for local development)")
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
