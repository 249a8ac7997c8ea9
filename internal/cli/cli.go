// Package cli implements the command-line interface for retaildw.
package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"retaildw/internal/config"
	"retaildw/internal/logging"
	"retaildw/internal/metrics"
	"retaildw/internal/metrics/datadog"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	// Global flags
	cfgFile       string
	source        string
	processedDir  string
	warehouseKind string
	dsn           string
	batchSize     int
	logLevel      string

	// Global config
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "retaildw",
		Short: "Superstore retail sales warehouse loader",
		Long: `retaildw ingests retail sales exports in the Superstore flat-file
layout into a star-schema warehouse.

A run has three phases: extract verifies the source file and detects its
text encoding, transform normalizes rows and commits a processed file, and
load upserts the date, product, and customer dimensions and appends fact
rows in a single transaction. Each phase can also be run on its own.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ./retaildw.yaml)")
	rootCmd.PersistentFlags().StringVar(&source, "source", "",
		"raw Superstore CSV file to ingest")
	rootCmd.PersistentFlags().StringVar(&processedDir, "processed-dir", "",
		"directory for committed processed files")
	rootCmd.PersistentFlags().StringVar(&warehouseKind, "warehouse", "",
		"warehouse backend (postgres, mssql, sqlite)")
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", "",
		"warehouse connection string")
	rootCmd.PersistentFlags().IntVar(&batchSize, "batch-size", 0,
		"rows per multi-row insert statement")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level (debug, info, warn, error)")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(transformCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(sampleCmd)
}

func initConfig() error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return err
	}

	// Override with CLI flags
	if source != "" {
		cfg.Source = source
	}
	if processedDir != "" {
		cfg.ProcessedDir = processedDir
	}
	if warehouseKind != "" {
		cfg.Warehouse.Kind = warehouseKind
	}
	if dsn != "" {
		cfg.Warehouse.DSN = dsn
	}
	if batchSize > 0 {
		cfg.Warehouse.BatchSize = batchSize
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	// Reinitialize logger with config
	logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	return nil
}

// setupMetrics installs the configured metrics backend and returns a
// shutdown function that flushes buffered observations.
func setupMetrics(ctx context.Context) (func(), error) {
	if cfg.Metrics.Backend != "datadog" {
		return func() {}, nil
	}

	backend, err := datadog.NewBackend(ctx, datadog.Options{
		JobName:    "retaildw",
		Tags:       []string{"warehouse:" + cfg.Warehouse.Kind},
		FlushEvery: time.Duration(cfg.Metrics.FlushSeconds) * time.Second,
	})
	if err != nil {
		return nil, err
	}

	metrics.SetBackend(backend)
	return func() {
		if err := backend.Close(); err != nil {
			logging.Warn().Err(err).Msg("final metrics flush failed")
		}
		metrics.SetBackend(nil)
	}, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("retaildw " + Version)
	},
}
