package domain

import (
	"context"
)

// RecommendationCache stores completed recommendation passes keyed by a
// digest of the normalized inputs.
type RecommendationCache interface {
	Get(ctx context.Context, key string) ([]TestRecommendation, bool)
	Set(ctx context.Context, key string, recs []TestRecommendation) error
}

// PassRecorder persists surfaced recommendation passes for audit.
type PassRecorder interface {
	RecordPass(ctx context.Context, record *PassRecord) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]*PassRecord, error)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	GetAdvisorConfig() *AdvisorConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetDatabaseURL() string
	IsProduction() bool
	IsDevelopment() bool
}
