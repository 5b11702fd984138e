// Command advisor-server runs the diagnostic test advisor HTTP API and its
// maintenance commands.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/diagnostic-test-advisor/internal/api"
	"github.com/diagnostic-test-advisor/internal/cache"
	"github.com/diagnostic-test-advisor/internal/catalog"
	"github.com/diagnostic-test-advisor/internal/config"
	"github.com/diagnostic-test-advisor/internal/database"
	"github.com/diagnostic-test-advisor/internal/domain"
	"github.com/diagnostic-test-advisor/internal/orders"
	"github.com/diagnostic-test-advisor/internal/repository"
	"github.com/diagnostic-test-advisor/internal/service"
	"github.com/diagnostic-test-advisor/internal/session"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:          "advisor-server",
		Short:        "Diagnostic test recommendation API server",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config.yaml (default: search ., ./config, /etc/diagnostic-test-advisor)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(ordersCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var autoMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(autoMigrate)
		},
	}
	cmd.Flags().BoolVar(&autoMigrate, "migrate", false, "Apply pending migrations before serving")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	var dir string
	run := func(apply func(context.Context, *database.MigrationRunner) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cm, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if !cm.GetDatabaseConfig().Enabled() {
				return fmt.Errorf("database.host is not configured")
			}
			path := dir
			if path == "" {
				path = cm.GetDatabaseConfig().MigrationsPath
			}
			runner, err := database.NewMigrationRunner(cm.GetDatabaseURL(), path, logger)
			if err != nil {
				return err
			}
			defer runner.Close()
			return apply(cmd.Context(), runner)
		}
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: run(func(ctx context.Context, r *database.MigrationRunner) error {
			return r.Up(ctx)
		}),
	}
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: run(func(ctx context.Context, r *database.MigrationRunner) error {
			return r.Down(ctx)
		}),
	}
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: run(func(ctx context.Context, r *database.MigrationRunner) error {
			version, dirty, err := r.Version()
			if err != nil {
				return err
			}
			fmt.Printf("version=%d dirty=%t\n", version, dirty)
			return nil
		}),
	}

	for _, c := range []*cobra.Command{upCmd, downCmd, versionCmd} {
		c.Flags().StringVar(&dir, "dir", "", "Migrations directory (default: embedded migrations)")
		cmd.AddCommand(c)
	}
	return cmd
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect test catalogs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate [path]",
		Short: "Validate a catalog file, or the built-in catalog when no path is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			cat, err := catalog.Load(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog ok: %d tests\n", cat.Len())
			return nil
		},
	})
	return cmd
}

func loadConfig() (*config.Manager, *logrus.Logger, error) {
	cm, err := config.NewManager(configFile)
	if err != nil {
		return nil, nil, err
	}
	if err := cm.Validate(); err != nil {
		return nil, nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	logger, err := newLogger(cm.GetConfig().Logging)
	if err != nil {
		return nil, nil, err
	}
	return cm, logger, nil
}

func newLogger(cfg domain.LoggingConfig) (*logrus.Logger, error) {
	logger := logrus.New()
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(level)

	var out io.Writer = os.Stdout
	switch cfg.Output {
	case "", "stdout":
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = f
	}
	logger.SetOutput(out)
	return logger, nil
}

func runServer(autoMigrate bool) error {
	cm, logger, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := cm.GetConfig()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cat, err := catalog.Load(cfg.Advisor.CatalogPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	opts := []service.Option{}

	// Recommendation cache: process-local, optionally backed by Redis
	memCache := cache.NewMemoryCache(cfg.Cache.MaxItems, cfg.Cache.DefaultTTL)
	if cfg.Cache.RedisURL != "" {
		redisCache, err := cache.NewRedisCache(logger, cfg.Cache)
		if err != nil {
			return fmt.Errorf("failed to create redis cache: %w", err)
		}
		defer redisCache.Close()
		opts = append(opts, service.WithCache(cache.NewTiered(memCache, redisCache)))
	} else {
		opts = append(opts, service.WithCache(memCache))
	}

	if cfg.Database.Enabled() {
		if autoMigrate {
			runner, err := database.NewMigrationRunner(cm.GetDatabaseURL(), cfg.Database.MigrationsPath, logger)
			if err != nil {
				return err
			}
			err = runner.Up(ctx)
			runner.Close()
			if err != nil {
				return err
			}
		}

		db, err := database.NewConnection(ctx, database.ConfigFrom(cfg.Database), logger)
		if err != nil {
			return err
		}
		defer db.Close()
		opts = append(opts, service.WithPassRecorder(repository.NewPassRepository(db.Pool, logger)))
	} else {
		logger.WithField("path", cfg.Database.SQLitePath).Info("Using SQLite order store")
	}

	store, err := openOrderStore(cm)
	if err != nil {
		return fmt.Errorf("failed to open order store: %w", err)
	}
	defer store.Close()
	opts = append(opts, service.WithOrderStore(store))

	registry, err := session.NewRegistry(logger, cfg.Advisor.MaxSessions)
	if err != nil {
		return err
	}

	advisor := service.NewAdvisor(logger, cat, cfg.Advisor.Urgency, opts...)
	server := api.NewServer(cm, advisor, registry, logger)

	logger.WithFields(logrus.Fields{
		"host":  cfg.Server.Host,
		"port":  cfg.Server.Port,
		"tests": cat.Len(),
	}).Info("Starting diagnostic test advisor")

	if err := server.Start(ctx); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}

// openOrderStore returns the configured order store: PostgreSQL when a
// database host is set, SQLite otherwise.
func openOrderStore(cm *config.Manager) (orders.Store, error) {
	if cm.GetDatabaseConfig().Enabled() {
		return orders.NewPostgresStoreFromURL(cm.GetDatabaseURL())
	}
	return orders.NewSQLiteStore(cm.GetDatabaseConfig().SQLitePath)
}

func ordersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Export and import submitted orders",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "export [file]",
		Short: "Write all orders as JSON to file, or stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cm, _, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openOrderStore(cm)
			if err != nil {
				return err
			}
			defer store.Close()

			var out io.Writer = cmd.OutOrStdout()
			if len(args) == 1 {
				f, err := os.Create(args[0])
				if err != nil {
					return fmt.Errorf("failed to create export file: %w", err)
				}
				defer f.Close()
				out = f
			}
			return store.ExportJSON(cmd.Context(), out)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Import orders from a JSON export, skipping existing IDs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cm, _, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openOrderStore(cm)
			if err != nil {
				return err
			}
			defer store.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open import file: %w", err)
			}
			defer f.Close()

			imported, skipped, err := store.ImportJSON(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported=%d skipped=%d\n", imported, skipped)
			return nil
		},
	})
	return cmd
}
