package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Alpaca API
	APIKey    string
	SecretKey string
	IsPaper   bool   // Default to the paper endpoint for safety
	BaseURL   string // Optional override; derived from IsPaper when empty

	// Profit-taking monitor
	MonitorInterval time.Duration // How often armed rules are evaluated
	GatewayTimeout  time.Duration // Per-call deadline for brokerage requests

	// Rule store
	RuleStore string // "memory" or "sqlite"
	DBPath    string // SQLite file path when RuleStore is "sqlite"

	// Logging
	LogLevel  string // trace, debug, info, warn, error
	LogFormat string // "json" or "console"
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []string // Collect validation errors

	// Alpaca API. Both the project-native names and the names the Alpaca
	// SDK documents (APCA_*, API_KEY_ID) are accepted.
	cfg.APIKey = firstEnv("ALPACA_API_KEY", "API_KEY_ID", "APCA_API_KEY_ID")
	cfg.SecretKey = firstEnv("ALPACA_SECRET_KEY", "API_SECRET_KEY", "APCA_API_SECRET_KEY")
	cfg.IsPaper = getEnvAsBool("ALPACA_PAPER", true)
	cfg.BaseURL = firstEnv("ALPACA_BASE_URL", "APCA_API_BASE_URL")

	if cfg.APIKey == "" {
		errs = append(errs, "ALPACA_API_KEY must be set")
	}
	if cfg.SecretKey == "" {
		errs = append(errs, "ALPACA_SECRET_KEY must be set")
	}

	// Monitor settings
	intervalSeconds := getEnvAsInt("MONITOR_INTERVAL_SECONDS", 30)
	if intervalSeconds <= 0 {
		errs = append(errs, "MONITOR_INTERVAL_SECONDS must be positive")
	}
	cfg.MonitorInterval = time.Duration(intervalSeconds) * time.Second

	timeoutSeconds := getEnvAsInt("GATEWAY_TIMEOUT_SECONDS", 10)
	if timeoutSeconds <= 0 {
		errs = append(errs, "GATEWAY_TIMEOUT_SECONDS must be positive")
	}
	cfg.GatewayTimeout = time.Duration(timeoutSeconds) * time.Second

	// Rule store
	cfg.RuleStore = strings.ToLower(getEnv("RULE_STORE", "memory"))
	if cfg.RuleStore != "memory" && cfg.RuleStore != "sqlite" {
		errs = append(errs, fmt.Sprintf("RULE_STORE must be 'memory' or 'sqlite', got %q", cfg.RuleStore))
	}
	cfg.DBPath = getEnv("DB_PATH", "./data/invest_pilot.db")
	if cfg.RuleStore == "sqlite" && cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set when RULE_STORE is 'sqlite'")
	}

	// Logging
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "json"))
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT must be 'json' or 'console', got %q", cfg.LogFormat))
	}

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// firstEnv returns the first non-empty value among the given keys.
func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
