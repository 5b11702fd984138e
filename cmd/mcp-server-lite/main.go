// Package main provides the lightweight MCP entry point for the diagnostic
// test advisor. It needs no external services and speaks MCP over stdio.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/diagnostic-test-advisor/internal/config"
	"github.com/diagnostic-test-advisor/internal/mcp"
	"github.com/diagnostic-test-advisor/internal/orders"
	"github.com/diagnostic-test-advisor/internal/setup"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "mcp-server-lite",
		Short:        "Diagnostic test advisor MCP server (stdio)",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
	rootCmd.AddCommand(setupCmd())
	rootCmd.AddCommand(exportCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer() error {
	cfg := config.LoadLiteConfig()

	// stdout carries the MCP stream, so diagnostics go to stderr
	log.SetOutput(os.Stderr)
	log.Printf("Starting diagnostic test advisor MCP server (lite), data directory: %s", cfg.DataDir)

	server, err := mcp.NewLiteServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer server.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := server.Start(ctx); err != nil {
		return err
	}

	log.Println("Diagnostic test advisor MCP server (lite) stopped")
	return nil
}

func setupCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Register the server with a desktop MCP client",
	}
	cmd.PersistentFlags().StringVar(&configPath, "client-config", "", "Client config file (default: platform location)")

	var opts setup.Options
	install := &cobra.Command{
		Use:   "install",
		Short: "Add or update the server entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ConfigPath = configPath
			path, err := setup.Install(opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s in %s\n", setup.ServerKey, path)
			return nil
		},
	}
	install.Flags().StringVar(&opts.BinaryPath, "binary", "", "Path to the mcp-server-lite binary")
	install.Flags().StringVar(&opts.DataDir, "data-dir", "", "Data directory passed as ADVISOR_DATA_DIR")
	install.Flags().StringVar(&opts.LogLevel, "log-level", "", "Log level passed as ADVISOR_LOG_LEVEL")

	uninstall := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the server entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := setup.Uninstall(configPath)
			if err != nil {
				return err
			}
			if removed {
				fmt.Fprintln(cmd.OutOrStdout(), "Server entry removed")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Server was not registered")
			}
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the current registration",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := setup.GetStatus(configPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config:     %s\n", st.ConfigPath)
			fmt.Fprintf(out, "Registered: %t\n", st.Registered)
			if st.Registered {
				fmt.Fprintf(out, "Binary:     %s\n", st.ServerPath)
				fmt.Fprintf(out, "Data dir:   %s\n", st.DataDir)
			}
			for _, issue := range st.Issues {
				fmt.Fprintf(out, "  ! %s\n", issue)
			}
			return nil
		},
	}

	cmd.AddCommand(install, uninstall, status)
	return cmd
}

func exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Export submitted orders as JSON into the data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadLiteConfig()
			if err := cfg.EnsureDataDir(); err != nil {
				return err
			}
			store, err := orders.NewSQLiteStore(cfg.OrdersDBPath())
			if err != nil {
				return err
			}
			defer store.Close()

			path := filepath.Join(cfg.ExportDir(), "orders-"+time.Now().UTC().Format("20060102T150405Z")+".json")
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("failed to create export file: %w", err)
			}
			defer f.Close()

			if err := store.ExportJSON(cmd.Context(), f); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Orders exported to %s\n", path)
			return nil
		},
	}
}
