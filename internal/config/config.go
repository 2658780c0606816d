// Package config loads application configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces environment overrides. A double underscore separates
// nesting levels, a single underscore stays part of the key:
// COURIER_DATABASE__URL overrides database.url,
// COURIER_DELIVERY__MAX_ATTEMPTS overrides delivery.max_attempts.
const envPrefix = "COURIER_"

// Config is the root application configuration.
type Config struct {
	Log       LogConfig             `koanf:"log"`
	Database  DatabaseConfig        `koanf:"database"`
	Delivery  DeliveryConfig        `koanf:"delivery"`
	Driver    DriverConfig          `koanf:"driver"`
	Health    HealthConfig          `koanf:"health"`
	Retention RetentionConfig       `koanf:"retention"`
	WorkRoot  string                `koanf:"work_root" validate:"required"`
	Metrics   MetricsConfig         `koanf:"metrics"`
	Rules     map[string]RuleConfig `koanf:"rules"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// DatabaseConfig contains PostgreSQL connection configuration.
type DatabaseConfig struct {
	URL             string        `koanf:"url" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"min=1"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts int           `koanf:"connect_attempts" validate:"min=1"`
}

// DeliveryConfig tunes the push retry loop.
type DeliveryConfig struct {
	MaxAttempts      int           `koanf:"max_attempts" validate:"min=1"`
	AttemptTimeout   time.Duration `koanf:"attempt_timeout"`
	UploadsPerSecond float64       `koanf:"uploads_per_second" validate:"min=0"`
}

// DriverConfig tunes queue processing.
type DriverConfig struct {
	BatchSize int `koanf:"batch_size" validate:"min=1"`
}

// HealthConfig holds the queue-age thresholds for the check command.
type HealthConfig struct {
	Warning  time.Duration `koanf:"warning"`
	Critical time.Duration `koanf:"critical"`
}

// RetentionConfig controls the clean-queue sweep.
type RetentionConfig struct {
	Age time.Duration `koanf:"age"`
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	// Addr is the listen address for /metrics. Empty disables the listener.
	Addr string `koanf:"addr"`
}

// RuleConfig carries the per-rule deployment settings; the rule behaviour
// itself is code.
type RuleConfig struct {
	PushURLs []string `koanf:"push_urls" validate:"min=1,dive,required"`

	// ContentRoot is where entity file fields resolve from, for rules that
	// export binaries.
	ContentRoot string `koanf:"content_root"`
}

// Default returns the built-in defaults, applied before file and environment
// loading.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectTimeout:  30 * time.Second,
			ConnectAttempts: 5,
		},
		Delivery: DeliveryConfig{
			MaxAttempts:    3,
			AttemptTimeout: 2 * time.Minute,
		},
		Driver: DriverConfig{
			BatchSize: 100,
		},
		Health: HealthConfig{
			Warning:  10 * time.Minute,
			Critical: 30 * time.Minute,
		},
		Retention: RetentionConfig{
			Age: 30 * 24 * time.Hour,
		},
	}
}

// Load reads configuration from the given YAML file, overlays COURIER_*
// environment variables and validates the result. The file is optional when
// path is empty.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
