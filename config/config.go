// Package config loads service configuration from YAML files and
// environment variables.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"argus/correlate"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all configuration for the argus service.
type Config struct {
	Logging struct {
		// Level is one of debug, info, warn, error.
		Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
		// Format is "console" or "json".
		Format string `mapstructure:"format" validate:"oneof=console json"`
	} `mapstructure:"logging"`

	DataPaths struct {
		// DataDir is the base data directory (ARGUS_DATA_DIR).
		DataDir string `mapstructure:"data_dir" validate:"required"`
		// SQLitePath overrides the database file path; empty derives it
		// from DataDir.
		SQLitePath string `mapstructure:"sqlite_path"`
	} `mapstructure:"data_paths"`

	Rules struct {
		// Directory is scanned recursively for .yml/.yaml rule files.
		Directory string `mapstructure:"directory" validate:"required"`
	} `mapstructure:"rules"`

	Correlation correlate.Config `mapstructure:"correlation"`

	Scan struct {
		// Interval between scheduled clustering scans.
		Interval time.Duration `mapstructure:"interval" validate:"gt=0"`
		// OnDemandPerMinute rate-limits manually triggered scans.
		OnDemandPerMinute int `mapstructure:"on_demand_per_minute" validate:"gte=1"`
		Lock              struct {
			// Backend is "local" or "redis". Redis is required when several
			// instances share one database.
			Backend  string `mapstructure:"backend" validate:"oneof=local redis"`
			Addr     string `mapstructure:"addr"`
			Password string `mapstructure:"password"`
			DB       int    `mapstructure:"db"`
		} `mapstructure:"lock"`
	} `mapstructure:"scan"`

	Metrics struct {
		Addr string `mapstructure:"addr" validate:"required"`
	} `mapstructure:"metrics"`
}

func setDefaults() {
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")

	viper.SetDefault("data_paths.data_dir", "./data")
	viper.SetDefault("data_paths.sqlite_path", "")

	viper.SetDefault("rules.directory", "./rules")

	defaults := correlate.DefaultConfig()
	viper.SetDefault("correlation.time_window_minutes", defaults.TimeWindowMinutes)
	viper.SetDefault("correlation.min_events_for_campaign", defaults.MinEventsForCampaign)
	viper.SetDefault("correlation.min_ips_for_pattern_campaign", defaults.MinIPsForPatternCampaign)
	viper.SetDefault("correlation.scan_window_hours", defaults.ScanWindowHours)

	viper.SetDefault("scan.interval", 5*time.Minute)
	viper.SetDefault("scan.on_demand_per_minute", 2)
	viper.SetDefault("scan.lock.backend", "local")
	viper.SetDefault("scan.lock.addr", "localhost:6379")
	viper.SetDefault("scan.lock.password", "")
	viper.SetDefault("scan.lock.db", 0)

	viper.SetDefault("metrics.addr", ":9090")
}

func loadFromEnv() {
	viper.SetEnvPrefix("ARGUS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("data_paths.data_dir", "ARGUS_DATA_DIR")
	_ = viper.BindEnv("data_paths.sqlite_path", "ARGUS_SQLITE_PATH")
	_ = viper.BindEnv("rules.directory", "ARGUS_RULES_DIR")
	_ = viper.BindEnv("scan.lock.addr", "ARGUS_REDIS_ADDR")
	_ = viper.BindEnv("scan.lock.password", "ARGUS_REDIS_PASSWORD")
}

// LoadConfig reads config.yaml (if present), applies environment overrides
// and validates the result. A missing config file is not an error; defaults
// plus environment are enough to run.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()
	loadFromEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

// SQLitePath returns the configured database path, deriving it from the
// data directory when not set explicitly.
func (c *Config) SQLitePath() string {
	if c.DataPaths.SQLitePath != "" {
		return c.DataPaths.SQLitePath
	}
	return filepath.Join(c.DataPaths.DataDir, "argus.db")
}
