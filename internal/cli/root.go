// Package cli implements the adinsights command line: the HTTP server and a
// one-shot sync that prints its report.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"adinsights/internal/app"
	"adinsights/pkg/config"
	"adinsights/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	// logLevel overrides LOG_LEVEL when set.
	logLevel string

	rootCmd = &cobra.Command{
		Use:           "adinsights",
		Short:         "Ad insights sync and reporting",
		Long:          `Pulls daily ad insights into a normalized fact store and serves aggregated metrics.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")

	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewSyncCommand())
}

// bootstrap loads configuration and builds the application.
func bootstrap(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	log := logger.New(cfg.Logging.Level)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Error("Failed to initialize application")
		return nil, err
	}
	return a, nil
}
