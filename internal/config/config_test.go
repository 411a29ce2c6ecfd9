package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8002, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "@every 1m", cfg.PriceSyncSchedule)
	assert.Equal(t, 15*time.Minute, cfg.PriceStaleAfter)
	assert.Equal(t, 0.02, cfg.RiskFreeRate)
	assert.Equal(t, 64, cfg.StreamBufferSize)
	assert.Equal(t, 30*time.Second, cfg.MetricsCacheTTL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("RISK_FREE_RATE", "0.05")
	t.Setenv("PRICE_STALE_THRESHOLD", "5m")
	t.Setenv("STREAM_BUFFER_SIZE", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, 0.05, cfg.RiskFreeRate)
	assert.Equal(t, 5*time.Minute, cfg.PriceStaleAfter)
	assert.Equal(t, 8, cfg.StreamBufferSize)
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	t.Setenv("PRICE_STALE_THRESHOLD", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8002, cfg.Port)
	assert.Equal(t, 15*time.Minute, cfg.PriceStaleAfter)
}

func TestValidate(t *testing.T) {
	valid := &Config{DatabasePath: ":memory:", StreamBufferSize: 1, PriceStaleAfter: time.Minute}
	assert.NoError(t, valid.Validate())

	noDB := &Config{StreamBufferSize: 1, PriceStaleAfter: time.Minute}
	assert.Error(t, noDB.Validate())

	badBuffer := &Config{DatabasePath: ":memory:", PriceStaleAfter: time.Minute}
	assert.Error(t, badBuffer.Validate())
}
