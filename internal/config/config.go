// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	DataDir  string // base directory for both databases, always absolute
	Port     int
	DevMode  bool
	LogLevel string

	// Price feed endpoints. The websocket is the primary source; the
	// poller covers it when the socket is down.
	PricefeedWSURL   string
	PricefeedPollURL string
	PollInterval     time.Duration

	// RegistryFile optionally overrides the built-in asset table (YAML).
	RegistryFile string

	// LoanAnnualRate is the default annual interest rate applied when a
	// loan request does not carry one.
	LoanAnnualRate float64

	// HistoryKeepDays bounds the price history side database.
	HistoryKeepDays int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("LAYERS_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:          absDataDir,
		Port:             getEnvAsInt("PORT", 8080),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		PricefeedWSURL:   getEnv("PRICEFEED_WS_URL", ""),
		PricefeedPollURL: getEnv("PRICEFEED_POLL_URL", ""),
		PollInterval:     time.Duration(getEnvAsInt("PRICEFEED_POLL_SECONDS", 60)) * time.Second,
		RegistryFile:     getEnv("REGISTRY_FILE", ""),
		LoanAnnualRate:   getEnvAsFloat("LOAN_ANNUAL_RATE", 0.23),
		HistoryKeepDays:  getEnvAsInt("HISTORY_KEEP_DAYS", 400),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.LoanAnnualRate <= 0 || c.LoanAnnualRate > 1 {
		return fmt.Errorf("loan annual rate %.4f out of range (0, 1]", c.LoanAnnualRate)
	}
	if c.PollInterval < time.Second {
		return fmt.Errorf("poll interval %s is too short", c.PollInterval)
	}
	if c.HistoryKeepDays < 30 {
		return fmt.Errorf("history retention of %d days is too short", c.HistoryKeepDays)
	}
	return nil
}

// PortfolioDBPath is the location of the main portfolio database.
func (c *Config) PortfolioDBPath() string {
	return filepath.Join(c.DataDir, "portfolio.db")
}

// HistoryDBPath is the location of the price history side database.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.DataDir, "history.db")
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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
