package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"NATS_URL", "NATS_USER", "NATS_AGGREGATOR_PASSWORD", "DB_PATH",
		"PUBLISH_INTERVAL", "CLEANUP_INTERVAL", "RETENTION_DAYS",
		"RATE_LIMIT_PER_NODE", "RATE_LIMIT_WINDOW", "GLOBAL_RATE_LIMIT",
		"TRU_INDEXER_URL", "TRU_CONTRACT", "METRICS_ADDR", "DEV_MODE",
	}
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_FailsWithoutPasswordOutsideDevMode(t *testing.T) {
	clearEnv(t)
	_, err := Load()
	require.Error(t, err)
}

func TestLoad_DevModeBypassesPasswordRequirement(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEV_MODE", "1")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.DevMode)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEV_MODE", "1")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.PublishInterval)
	assert.Equal(t, 24*time.Hour, cfg.CleanupInterval)
	assert.Equal(t, 30, cfg.RetentionDays)
	assert.Equal(t, 10, cfg.RateLimitPerNode)
	assert.Equal(t, 1000, cfg.GlobalRateLimit)
}

func TestLoad_ParsesDurationEnvAsMilliseconds(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEV_MODE", "1")
	t.Setenv("PUBLISH_INTERVAL", "5000")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.PublishInterval)
}

func TestLoad_InvalidIntFallsBackToDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEV_MODE", "1")
	t.Setenv("RETENTION_DAYS", "not-a-number")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.RetentionDays)
}
