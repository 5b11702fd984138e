// Package mcp exposes the advisor as Model Context Protocol tools.
// The lite server requires no external services.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/diagnostic-test-advisor/internal/cache"
	"github.com/diagnostic-test-advisor/internal/catalog"
	litecfg "github.com/diagnostic-test-advisor/internal/config"
	"github.com/diagnostic-test-advisor/internal/orders"
	"github.com/diagnostic-test-advisor/internal/service"
	"github.com/diagnostic-test-advisor/internal/session"
)

// ServerName and ServerVersion identify the lite server to MCP clients.
const (
	ServerName    = "diagnostic-test-advisor-lite"
	ServerVersion = "v1.0.0"
)

// LiteServer is a lightweight MCP server that requires no external databases.
// It uses in-memory caching and SQLite for persistence.
type LiteServer struct {
	config     *litecfg.LiteConfig
	mcpServer  *mcp.Server
	advisor    *service.Advisor
	sessions   *session.Registry
	orderStore orders.Store
	cache      *cache.MemoryCache
	logger     *logrus.Logger
}

// LiteServerOption is a functional option for LiteServer.
type LiteServerOption func(*LiteServer) error

// WithOrderStore sets a custom order store.
func WithOrderStore(store orders.Store) LiteServerOption {
	return func(s *LiteServer) error {
		s.orderStore = store
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) LiteServerOption {
	return func(s *LiteServer) error {
		s.logger = logger
		return nil
	}
}

// NewLiteServer creates a new lightweight MCP server instance.
func NewLiteServer(cfg *litecfg.LiteConfig, opts ...LiteServerOption) (*LiteServer, error) {
	server := &LiteServer{
		config: cfg,
		logger: logrus.New(),
	}

	if cfg.LogFormat == "text" {
		server.logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		server.logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		server.logger.SetLevel(level)
	}

	for _, opt := range opts {
		if err := opt(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	server.cache = cache.NewMemoryCache(cfg.CacheMaxItems, cfg.CacheTTL)

	if server.orderStore == nil {
		store, err := orders.NewSQLiteStore(cfg.OrdersDBPath())
		if err != nil {
			return nil, fmt.Errorf("failed to create order store: %w", err)
		}
		server.orderStore = store
	}

	registry, err := session.NewRegistry(server.logger, cfg.MaxSessions)
	if err != nil {
		return nil, err
	}
	server.sessions = registry

	server.advisor = service.NewAdvisor(server.logger, cat, cfg.Urgency,
		service.WithCache(server.cache),
		service.WithOrderStore(server.orderStore),
	)

	server.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: ServerVersion,
	}, nil)
	server.registerTools()

	server.logger.WithFields(logrus.Fields{
		"tests":    cat.Len(),
		"data_dir": cfg.DataDir,
	}).Info("Lite server initialized successfully")
	return server, nil
}

// Start serves MCP over stdio until ctx is cancelled or the client disconnects.
func (s *LiteServer) Start(ctx context.Context) error {
	s.logger.Info("Starting diagnostic test advisor MCP server (lite)")

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Connect serves a single session over t.
func (s *LiteServer) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcpServer.Connect(ctx, t, nil)
}

// Close cleans up server resources.
func (s *LiteServer) Close() error {
	if s.orderStore != nil {
		if err := s.orderStore.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close order store")
			return err
		}
	}
	return nil
}

// GetOrderStore returns the order store for external access.
func (s *LiteServer) GetOrderStore() orders.Store {
	return s.orderStore
}
