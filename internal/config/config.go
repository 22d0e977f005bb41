package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds runtime configuration for the engine services. Values come
// from environment variables prefixed BUDGET_ENGINE_ (e.g.
// BUDGET_ENGINE_GCP_PROJECT_ID) or an optional YAML file.
type Config struct {
	// HTTP
	Port string `mapstructure:"port"`

	// GCP
	GCPProjectID    string `mapstructure:"gcp_project_id"`
	BigQueryDataset string `mapstructure:"bigquery_dataset"`
	AuditTable      string `mapstructure:"audit_table"`
	SnapshotBucket  string `mapstructure:"snapshot_bucket"`

	// Eventing
	QueueBufferSize int `mapstructure:"queue_buffer_size"`
	WorkerCount     int `mapstructure:"worker_count"`

	// HorizonMonths is how far forward period allocations are generated for
	// ongoing budgets, and the default for extend-periods requests.
	HorizonMonths int `mapstructure:"horizon_months"`
}

// Load reads configuration from the environment and, when path is non-empty,
// the YAML file at that path. File values are overridden by environment
// variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("port", "8080")
	v.SetDefault("bigquery_dataset", "budget_engine")
	v.SetDefault("audit_table", "reconciliation_runs")
	v.SetDefault("queue_buffer_size", 100)
	v.SetDefault("worker_count", 5)
	v.SetDefault("horizon_months", 3)

	v.SetEnvPrefix("BUDGET_ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}
