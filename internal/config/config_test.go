package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LAYERS_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 0.23, cfg.LoanAnnualRate)
	assert.Equal(t, 60*time.Second, cfg.PollInterval)
	assert.Equal(t, 400, cfg.HistoryKeepDays)
	assert.Contains(t, cfg.PortfolioDBPath(), "portfolio.db")
	assert.Contains(t, cfg.HistoryDBPath(), "history.db")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LAYERS_DATA_DIR", t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("LOAN_ANNUAL_RATE", "0.30")
	t.Setenv("PRICEFEED_POLL_SECONDS", "15")
	t.Setenv("DEV_MODE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 0.30, cfg.LoanAnnualRate)
	assert.Equal(t, 15*time.Second, cfg.PollInterval)
	assert.True(t, cfg.DevMode)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Port:            8080,
			PollInterval:    time.Minute,
			LoanAnnualRate:  0.23,
			HistoryKeepDays: 400,
		}
	}

	require.NoError(t, base().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Port = 0 }},
		{"zero rate", func(c *Config) { c.LoanAnnualRate = 0 }},
		{"rate above one", func(c *Config) { c.LoanAnnualRate = 1.5 }},
		{"poll too fast", func(c *Config) { c.PollInterval = 100 * time.Millisecond }},
		{"retention too short", func(c *Config) { c.HistoryKeepDays = 7 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
