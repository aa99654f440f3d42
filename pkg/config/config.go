// pkg/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure for the SLO recommendation engine.
type Config struct {
	App       AppConfig       `koanf:"app"`
	Log       LogConfig       `koanf:"log"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Database  DatabaseConfig  `koanf:"database"`
	Cache     CacheConfig     `koanf:"cache"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Batch     BatchConfig     `koanf:"batch"`
}

// AppConfig holds process-wide settings.
type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"` // development, staging, production
	Debug       bool   `koanf:"debug"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level      string `koanf:"level"`       // debug, info, warn, error
	Format     string `koanf:"format"`      // json, text
	Output     string `koanf:"output"`      // stdout, stderr, file
	FilePath   string `koanf:"file_path"`   // path to log file, when output=file
	MaxSize    int    `koanf:"max_size"`    // MB
	MaxBackups int    `koanf:"max_backups"` // number of rotated backups to keep
	MaxAge     int    `koanf:"max_age"`     // days
	Compress   bool   `koanf:"compress"`
}

// MetricsConfig configures Prometheus metrics registration. Exposition
// (mounting an HTTP server) is left to the caller; the engine only decides
// whether to record under these namespace/subsystem labels.
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Namespace string `koanf:"namespace"`
	Subsystem string `koanf:"subsystem"`
}

// DatabaseConfig configures the PostgreSQL connection pool.
type DatabaseConfig struct {
	Driver          string        `koanf:"driver"` // postgres
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Database        string        `koanf:"database"`
	Username        string        `koanf:"username"`
	Password        string        `koanf:"password"`
	SSLMode         string        `koanf:"ssl_mode"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	MigrationsPath  string        `koanf:"migrations_path"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// DSN returns the connection string for the configured driver.
func (d DatabaseConfig) DSN() string {
	switch strings.ToLower(d.Driver) {
	case "postgres", "postgresql":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.Username, d.Password, d.Database, d.SSLMode,
		)
	default:
		return ""
	}
}

// CacheConfig configures the telemetry-completeness cache.
type CacheConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Driver     string        `koanf:"driver"` // redis, memory
	Host       string        `koanf:"host"`
	Port       int           `koanf:"port"`
	Password   string        `koanf:"password"`
	DB         int           `koanf:"db"`
	DefaultTTL time.Duration `koanf:"default_ttl"`
	MaxEntries int           `koanf:"max_entries"` // applies to the in-memory backend only
}

// Address returns the host:port of the cache backend.
func (c CacheConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TelemetryConfig configures the telemetry port adapter that backs
// availability/latency queries against the metrics store.
type TelemetryConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port"`
	Timeout           time.Duration `koanf:"timeout"`
	DefaultLookback   time.Duration `koanf:"default_lookback"`   // e.g. 30 days
	ColdStartLookback time.Duration `koanf:"cold_start_lookback"` // extended window, e.g. 90 days
	CompletenessFloor float64       `koanf:"completeness_floor"`  // below this, cold-start extension triggers
}

// PipelineConfig configures the single-service recommendation pipeline.
type PipelineConfig struct {
	BootstrapResamples   int     `koanf:"bootstrap_resamples"`    // e.g. 1000
	ConfidenceLowerPctl  float64 `koanf:"confidence_lower_pctl"`  // e.g. 2.5
	ConfidenceUpperPctl  float64 `koanf:"confidence_upper_pctl"`  // e.g. 97.5
	MonthlyBudgetMinutes float64 `koanf:"monthly_budget_minutes"` // e.g. 43200 (30-day month)
}

// BatchConfig configures the fleet-wide batch orchestrator.
type BatchConfig struct {
	MaxConcurrency int           `koanf:"max_concurrency"` // bounded in-flight pipeline runs, e.g. 20
	PerServiceTimeout time.Duration `koanf:"per_service_timeout"`
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	var errs []string

	if c.App.Name == "" {
		errs = append(errs, "app.name is required")
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log.level must be one of: debug, info, warn, error, got %s", c.Log.Level))
	}

	if c.Pipeline.BootstrapResamples <= 0 {
		errs = append(errs, "pipeline.bootstrap_resamples must be positive")
	}

	if c.Pipeline.ConfidenceLowerPctl < 0 || c.Pipeline.ConfidenceUpperPctl > 100 ||
		c.Pipeline.ConfidenceLowerPctl >= c.Pipeline.ConfidenceUpperPctl {
		errs = append(errs, "pipeline confidence percentiles must satisfy 0 <= lower < upper <= 100")
	}

	if c.Telemetry.CompletenessFloor < 0 || c.Telemetry.CompletenessFloor > 1 {
		errs = append(errs, "telemetry.completeness_floor must be between 0 and 1")
	}

	if c.Batch.MaxConcurrency <= 0 {
		errs = append(errs, "batch.max_concurrency must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// IsDevelopment reports whether the app is running in a development environment.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development" || c.App.Environment == "dev"
}

// IsProduction reports whether the app is running in production.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production" || c.App.Environment == "prod"
}
