// Package config loads ledgerctl settings.
//
// Values come from three layers, later ones winning: the built-in
// defaults, an optional YAML file, and LEDGER_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "LEDGER_"

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the full ledgerctl configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store"     envPrefix:"STORE_"`
	Index     IndexConfig     `yaml:"index"     envPrefix:"INDEX_"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"OTEL_"`
	Log       LogConfig       `yaml:"log"       envPrefix:"LOG_"`
	Metrics   MetricsConfig   `yaml:"metrics"   envPrefix:"METRICS_"`
}

// StoreConfig selects the primary store.
type StoreConfig struct {
	Driver string `yaml:"driver" env:"DRIVER"`
	Path   string `yaml:"path"   env:"PATH"`
	DSN    string `yaml:"dsn"    env:"DSN"`
}

// IndexConfig locates the search index.
type IndexConfig struct {
	Path     string `yaml:"path"     env:"PATH"`
	Disabled bool   `yaml:"disabled" env:"DISABLED"`
}

// LedgerConfig holds the engine settings.
type LedgerConfig struct {
	Tenants        []int  `yaml:"tenants"        env:"TENANTS" envSeparator:","`
	AdminTenant    int    `yaml:"adminTenant"    env:"ADMIN_TENANT"`
	OperationSlice int    `yaml:"operationSlice" env:"OPERATION_SLICE"`
	LifecycleSlice int    `yaml:"lifecycleSlice" env:"LIFECYCLE_SLICE"`
	Platform       uint32 `yaml:"platform"       env:"PLATFORM_ID"`
}

// TelemetryConfig configures trace export. An empty endpoint disables it.
type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint"    env:"ENDPOINT"`
	ServiceName string `yaml:"serviceName" env:"SERVICE_NAME"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// MetricsConfig configures the Prometheus textfile written when a command
// exits. An empty path disables metrics.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" env:"TEXTFILE"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Store: StoreConfig{Driver: DriverSQLite, Path: "ledger.db"},
		Index: IndexConfig{Path: "ledger-index.db"},
		Ledger: LedgerConfig{
			Tenants:        []int{0, 1},
			AdminTenant:    1,
			OperationSlice: 2,
			LifecycleSlice: 1,
		},
		Telemetry: TelemetryConfig{ServiceName: "ledger"},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is not empty) and the environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.Store.Path) == "" {
			errs = append(errs, errors.New("store.path is required for the sqlite driver"))
		}
	case DriverPostgres:
		if strings.TrimSpace(c.Store.DSN) == "" {
			errs = append(errs, errors.New("store.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of %s, %s", c.Store.Driver, DriverSQLite, DriverPostgres))
	}
	if !c.Index.Disabled && strings.TrimSpace(c.Index.Path) == "" {
		errs = append(errs, errors.New("index.path is required unless the index is disabled"))
	}
	if len(c.Ledger.Tenants) == 0 {
		errs = append(errs, errors.New("ledger.tenants must not be empty"))
	} else if !slices.Contains(c.Ledger.Tenants, c.Ledger.AdminTenant) {
		errs = append(errs, fmt.Errorf("ledger.adminTenant %d is not in ledger.tenants", c.Ledger.AdminTenant))
	}
	if c.Ledger.OperationSlice < 1 {
		errs = append(errs, fmt.Errorf("ledger.operationSlice must be at least 1, got %d", c.Ledger.OperationSlice))
	}
	if c.Ledger.LifecycleSlice < 1 {
		errs = append(errs, fmt.Errorf("ledger.lifecycleSlice must be at least 1, got %d", c.Ledger.LifecycleSlice))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format %q is not one of text, json", c.Log.Format))
	}
	return errors.Join(errs...)
}

// SlogLevel parses the configured level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
