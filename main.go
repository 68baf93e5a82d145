package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"trading-journal/app"
	"trading-journal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "alert-engine",
		Short:        "Strategy performance alert engine for the trading journal",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, realtime streams and background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load config from .env file and environment
			cfg := config.LoadFromEnv()
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			logger, err := app.NewLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			logger.Info("🚀 Starting alert engine", zap.Int("port", cfg.Server.Port))
			return app.New(cfg, logger).Start()
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP port (overrides PORT)")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadFromEnv()
			logger, err := app.NewLogger(cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			return app.New(cfg, logger).Migrate()
		},
	}
}
