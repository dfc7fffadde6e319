// Package cmd defines and implements the CLI commands for the actions-ingest executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/actions-ingest/internal/api"
	"github.com/JakeFAU/actions-ingest/internal/app"
	"github.com/JakeFAU/actions-ingest/internal/config"
	"github.com/JakeFAU/actions-ingest/internal/logging"
	"github.com/JakeFAU/actions-ingest/internal/records"
	"github.com/JakeFAU/actions-ingest/internal/scheduler"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application surface that commands use.
type App interface {
	Close()
	Logger() *zap.Logger
	Config() config.Config
	Records() *records.Store
	Scheduler() *scheduler.Scheduler
	Server() *api.Server
}

// newApp is the application factory. Tests replace it.
var newApp = func(ctx context.Context, configPath string) (App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(logging.Config{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync() //nolint:errcheck
		return nil, err
	}
	return a, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "actions-ingest",
		Short: "Ingests presidential actions and related coverage.",
		Long: `actions-ingest walks the White House presidential-actions listing, stores each
document once by title, and searches for third-party coverage of every new document.`,
		SilenceUsage: true,

		// Build the application once and hand it to subcommands through the context.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (env INGEST_* overrides apply either way)")

	cmd.AddCommand(newIngestCmd(), newServeCmd(), newResetCmd(), newDocumentsCmd())
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "actions-ingest: %v\n", err)
		stop()
		os.Exit(1) //nolint:gocritic
	}
}
