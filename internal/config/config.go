// Package config loads runtime configuration from environment variables and
// an optional config file.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the runtime configuration shared by the binaries. Every field
// can be set through an environment variable with the SPENDLENS_ prefix,
// e.g. SPENDLENS_BIGQUERY_PROJECT.
type Config struct {
	// Port is the HTTP listen port of the API service.
	Port int `mapstructure:"port"`

	// BigQueryProject and BigQueryDataset locate the ledger tables. When
	// the project is empty the binaries fall back to in-memory stores.
	BigQueryProject string `mapstructure:"bigquery_project"`
	BigQueryDataset string `mapstructure:"bigquery_dataset"`

	// StorageBucket stages uploaded statement files between the API and
	// the worker. Empty means in-memory staging.
	StorageBucket string `mapstructure:"storage_bucket"`

	// ScanWindowDays is the default anomaly analysis window.
	ScanWindowDays int `mapstructure:"scan_window_days"`

	// QueueBuffer and QueueWorkers size the statement-processing queue.
	QueueBuffer  int `mapstructure:"queue_buffer"`
	QueueWorkers int `mapstructure:"queue_workers"`

	// DefaultAccountType is used for policy checks when an upload does not
	// declare one.
	DefaultAccountType string `mapstructure:"default_account_type"`
}

// Load reads configuration from the environment and, if present, a
// spendlens.yaml in the working directory. Environment variables win.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("port", 8080)
	v.SetDefault("bigquery_project", "")
	v.SetDefault("bigquery_dataset", "spendlens")
	v.SetDefault("storage_bucket", "")
	v.SetDefault("scan_window_days", 30)
	v.SetDefault("queue_buffer", 64)
	v.SetDefault("queue_workers", 4)
	v.SetDefault("default_account_type", "personal")

	v.SetEnvPrefix("SPENDLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("spendlens")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("Load: reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("Load: unmarshaling config: %w", err)
	}

	return &cfg, nil
}
