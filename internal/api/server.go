// Package api exposes the advisor over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/diagnostic-test-advisor/internal/domain"
	"github.com/diagnostic-test-advisor/internal/middleware"
	"github.com/diagnostic-test-advisor/internal/service"
	"github.com/diagnostic-test-advisor/internal/session"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	advisor       *service.Advisor
	sessions      *session.Registry
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
	upgrader      websocket.Upgrader
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, advisor *service.Advisor, sessions *session.Registry, logger *logrus.Logger) *Server {
	cfg := configManager.GetConfig()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger(logger))
	router.Use(middleware.RateLimit(middleware.NewRateLimiter(
		cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, 10*time.Minute)))

	s := &Server{
		configManager: configManager,
		advisor:       advisor,
		sessions:      sessions,
		logger:        logger,
		router:        router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}

	s.setupRoutes()

	return s
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("address", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/catalog", s.handleCatalog)
		v1.POST("/sessions", s.handleCreateSession)

		sess := v1.Group("/sessions/:id", s.loadSession)
		{
			sess.DELETE("", s.handleDeleteSession)
			sess.POST("/recommendations", s.handleRecommend)
			sess.GET("/recommendations", s.handleLatestRecommendations)
			sess.GET("/tests", s.handleViewTests)
			sess.POST("/selection", s.handleSelectTest)
			sess.GET("/selection", s.handleGetSelection)
			sess.GET("/selection/:testId", s.handleIsSelected)
			sess.POST("/orders", s.handleSubmitOrder)
			sess.GET("/orders", s.handleListOrders)
			sess.GET("/history", s.handleHistory)
			sess.GET("/stream", s.handleStream)
		}
	}
}
