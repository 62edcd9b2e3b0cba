package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/app"
	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/config"
	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/log"
)

var (
	// Version is set via -ldflags at release build time.
	Version = "dev"

	logLevel string
	logJSON  bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "aggregator",
	Short:   "TrueBit Federation Aggregator",
	Long:    "Subscribes to the TrueBit compute-node pub/sub fabric, aggregates per-node telemetry into network-wide statistics, and tracks TRU token burns.",
	Version: Version,
	RunE:    runAggregator,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit logs as JSON")
}

func runAggregator(cmd *cobra.Command, args []string) error {
	logger := log.New(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})

	runID := uuid.NewString()
	logger = log.WithRunID(logger, runID)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize aggregator")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return a.Run(ctx)
}
