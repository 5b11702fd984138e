// Package config provides configuration management for the advisor servers.
// This file contains the lightweight configuration for standalone operation.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/diagnostic-test-advisor/internal/domain"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external services; orders are kept in SQLite.
type LiteConfig struct {
	DataDir string // Base directory for data files

	CacheMaxItems int           // Maximum cached recommendation passes
	CacheTTL      time.Duration // Recommendation cache TTL

	CatalogPath string // Optional catalog override; empty uses the built-in catalog
	MaxSessions int    // Upper bound on live selection sessions

	Urgency domain.UrgencyConfig

	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".diagnostic-test-advisor")

	return &LiteConfig{
		DataDir:       dataDir,
		CacheMaxItems: 1000,
		CacheTTL:      10 * time.Minute,
		MaxSessions:   64,
		Urgency:       domain.DefaultUrgencyConfig(),
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("ADVISOR_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	if v := os.Getenv("ADVISOR_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("ADVISOR_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}

	cfg.CatalogPath = os.Getenv("ADVISOR_CATALOG_PATH")
	if v := os.Getenv("ADVISOR_MAX_SESSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxSessions = n
		}
	}

	if v, ok := os.LookupEnv("ADVISOR_URGENCY_IMMEDIATE"); ok {
		cfg.Urgency.Immediate = splitList(v)
	}
	if v, ok := os.LookupEnv("ADVISOR_URGENCY_WITHIN_24H"); ok {
		cfg.Urgency.Within24h = splitList(v)
	}
	if v, ok := os.LookupEnv("ADVISOR_URGENCY_WITHIN_WEEK"); ok {
		cfg.Urgency.WithinWeek = splitList(v)
	}

	if v := os.Getenv("ADVISOR_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ADVISOR_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// splitList parses a comma separated list, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// OrdersDBPath returns the path to the orders SQLite database.
func (c *LiteConfig) OrdersDBPath() string {
	return filepath.Join(c.DataDir, "orders.db")
}

// ExportDir returns the directory for JSON order exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}
