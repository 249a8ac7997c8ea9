// Package config handles configuration management for retaildw.
// Configuration is loaded from a YAML file and CLI flags; CLI flags take
// precedence over config file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all configuration for retaildw.
type Config struct {
	// Source is the raw Superstore CSV file to ingest.
	Source string `mapstructure:"source"`

	// ProcessedDir is where the transform phase writes its committed output.
	ProcessedDir string `mapstructure:"processed_dir"`

	// LogLevel controls logging verbosity (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`

	// Warehouse holds the destination store configuration.
	Warehouse WarehouseConfig `mapstructure:"warehouse"`

	// Encoding holds encoding detection policy.
	Encoding EncodingConfig `mapstructure:"encoding"`

	// Metrics holds the metrics backend configuration.
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// WarehouseConfig selects and configures the warehouse backend.
type WarehouseConfig struct {
	// Kind is the backend: "postgres", "mssql", or "sqlite".
	Kind string `mapstructure:"kind"`

	// DSN is the backend connection string. Environment variables are
	// expanded, so DSNs can reference e.g. ${DW_PASSWORD}.
	DSN string `mapstructure:"dsn"`

	// BatchSize bounds multi-row insert statements.
	BatchSize int `mapstructure:"batch_size"`
}

// EncodingConfig controls how an ambiguous source encoding is handled.
type EncodingConfig struct {
	// FailBelow aborts extraction when detection confidence is below this
	// value (0..1). Zero keeps the default behavior: proceed with the best
	// guess and log a warning.
	FailBelow float64 `mapstructure:"fail_below"`
}

// MetricsConfig selects the metrics backend.
type MetricsConfig struct {
	// Backend is "datadog" or "none".
	Backend string `mapstructure:"backend"`

	// FlushSeconds is the periodic flush interval for buffering backends.
	FlushSeconds int `mapstructure:"flush_seconds"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Source:       filepath.Join("data", "superstore.csv"),
		ProcessedDir: filepath.Join("data", "processed"),
		LogLevel:     "info",
		Warehouse: WarehouseConfig{
			Kind:      "sqlite",
			DSN:       filepath.Join("data", "retaildw.db"),
			BatchSize: 500,
		},
		Metrics: MetricsConfig{
			Backend:      "none",
			FlushSeconds: 60,
		},
	}
}

// Load reads configuration from config files.
// Config file locations (in order of precedence):
// 1. Path specified by configFile parameter
// 2. ./retaildw.yaml
// 3. ~/.config/retaildw/config.yaml
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("retaildw")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "retaildw"))
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	// A missing config file is fine; defaults plus flags are enough.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present for a full run.
func (c *Config) Validate() error {
	if err := c.ValidateSource(); err != nil {
		return err
	}
	return c.ValidateWarehouse()
}

// ValidateSource checks the configuration the extract and transform phases
// need. Warehouse settings are deliberately not required here, so a
// transform-only invocation works without a destination store.
func (c *Config) ValidateSource() error {
	if c.Source == "" {
		return fmt.Errorf("source file is required")
	}
	if c.ProcessedDir == "" {
		return fmt.Errorf("processed_dir is required")
	}
	if c.Encoding.FailBelow < 0 || c.Encoding.FailBelow > 1 {
		return fmt.Errorf("encoding.fail_below must be between 0 and 1")
	}
	return nil
}

// ValidateWarehouse checks the configuration the load phase needs.
func (c *Config) ValidateWarehouse() error {
	if c.Warehouse.Kind == "" {
		return fmt.Errorf("warehouse.kind is required")
	}
	if c.Warehouse.DSN == "" {
		return fmt.Errorf("warehouse.dsn is required")
	}
	if c.Warehouse.BatchSize < 1 {
		return fmt.Errorf("warehouse.batch_size must be at least 1")
	}
	return nil
}
