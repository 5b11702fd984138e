package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	MCP      MCPConfig      `mapstructure:"mcp"`
	Advisor  AdvisorConfig  `mapstructure:"advisor"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

// DatabaseConfig represents database connection configuration.
// An empty Host disables PostgreSQL; orders then go to SQLite at SQLitePath.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
}

// Enabled reports whether a PostgreSQL host has been configured.
func (c DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

// CacheConfig represents recommendation cache configuration.
// An empty RedisURL keeps the cache process-local.
type CacheConfig struct {
	RedisURL    string        `mapstructure:"redis_url"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	MaxItems    int           `mapstructure:"max_items"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MCPConfig represents MCP server configuration
type MCPConfig struct {
	ServerName    string `mapstructure:"server_name"`
	ServerVersion string `mapstructure:"server_version"`
}

// AdvisorConfig holds the engine's configuration data.
type AdvisorConfig struct {
	CatalogPath string        `mapstructure:"catalog_path"`
	MaxSessions int           `mapstructure:"max_sessions"`
	Urgency     UrgencyConfig `mapstructure:"urgency"`
}

// UrgencyConfig lists the symptom sets that trigger each patient-level
// urgency. Rules are evaluated immediate, within_24h, within_week in order.
type UrgencyConfig struct {
	Immediate  []string `mapstructure:"immediate"`
	Within24h  []string `mapstructure:"within_24h"`
	WithinWeek []string `mapstructure:"within_week"`
}

// DefaultUrgencyConfig returns the built-in urgency symptom sets.
func DefaultUrgencyConfig() UrgencyConfig {
	return UrgencyConfig{
		Immediate:  []string{"chest pain", "shortness of breath", "loss of consciousness"},
		Within24h:  []string{"fever", "severe pain"},
		WithinWeek: []string{"weakness", "fatigue"},
	}
}
