package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/config"
	"github.com/vaforge/vaforge-engine/pkg/database"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "vaforge-engine",
		Short:         "Role analysis, SOP generation and client knowledge for VA agencies",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(serveCmd, migrateCmd, enrichCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app bundles what every command needs before doing its own work.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *database.DB
}

// bootstrap loads configuration, builds the logger and connects to Postgres.
func bootstrap(ctx context.Context) (*app, error) {
	// .env is optional; real deployments set the environment directly.
	envErr := godotenv.Load()

	cfg, err := config.Load(Version)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	if envErr != nil && !os.IsNotExist(envErr) {
		logger.Warn("Failed to load .env file", zap.Error(envErr))
	}

	db, err := database.NewConnection(ctx, database.ConfigFromSettings(&cfg.Database))
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &app{cfg: cfg, logger: logger, db: db}, nil
}

func (r *app) close() {
	r.db.Close()
	_ = r.logger.Sync()
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopmentConfig().Build()
	}
	return zap.NewProductionConfig().Build()
}
