package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"MONITOR_INTERVAL", "MACD_FAST", "MACD_SLOW", "MACD_SIGNAL", "DRY_RUN", "STRATEGY_DEBOUNCE", "KLINE_INTERVAL"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, cfg.MonitorInterval)
	assert.Equal(t, "5m", cfg.KlineInterval)
	assert.Equal(t, 2*time.Hour, cfg.KlineLookback)
	assert.Equal(t, 24, cfg.KlineLimit)
	assert.Equal(t, 20, cfg.DepthLimit)
	assert.Equal(t, 12, cfg.MACDFast)
	assert.Equal(t, 26, cfg.MACDSlow)
	assert.Equal(t, 9, cfg.MACDSignal)
	assert.False(t, cfg.StrategyDebounce)
	assert.False(t, cfg.DryRun)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MONITOR_INTERVAL", "15")
	t.Setenv("HTTP_TIMEOUT", "3s")
	t.Setenv("MACD_FAST", "5")
	t.Setenv("DRY_RUN", "true")
	t.Setenv("RATE_LIMIT_RPS", "2.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.MonitorInterval)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 5, cfg.MACDFast)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	assert.ErrorIs(t, cfg.Validate(), ErrMissingCredentials)

	cfg.DryRun = true
	assert.NoError(t, cfg.Validate())

	cfg = &Config{BingXAPIKey: "k", BingXAPISecret: "s"}
	assert.NoError(t, cfg.Validate())
}
