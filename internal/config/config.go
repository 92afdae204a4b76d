// Package config loads learnstats settings from built-in defaults, an
// optional YAML file and LEARNSTATS_* environment variables, in that order
// of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "LEARNSTATS_"

// ConfigPathEnvVar can point at a YAML file when no path is passed explicitly
const ConfigPathEnvVar = EnvPrefix + "CONFIG"

// Lock backends
const (
	LockBackendAuto     = "auto"
	LockBackendPostgres = "postgres"
	LockBackendTable    = "table"
	LockBackendRedis    = "redis"
)

type Config struct {
	Database    DatabaseConfig    `koanf:"database"`
	Lock        LockConfig        `koanf:"lock"`
	Analytics   AnalyticsConfig   `koanf:"analytics"`
	Maintenance MaintenanceConfig `koanf:"maintenance"`
	Metrics     MetricsConfig     `koanf:"metrics"`
	Logging     LoggingConfig     `koanf:"logging"`
}

type DatabaseConfig struct {
	Type         string `koanf:"type"` // "sqlite" or "postgres"
	URL          string `koanf:"url"`  // postgres DSN
	SQLitePath   string `koanf:"sqlite_path"`
	MaxOpenConns int    `koanf:"max_open_conns"`
}

type LockConfig struct {
	Backend   string        `koanf:"backend"` // auto, postgres, table or redis
	Name      string        `koanf:"name"`
	TTL       time.Duration `koanf:"ttl"` // lease length for table and redis backends
	RedisAddr string        `koanf:"redis_addr"`
}

type AnalyticsConfig struct {
	ActiveReviewThreshold int `koanf:"active_review_threshold"`
}

type MaintenanceConfig struct {
	SweepInterval time.Duration `koanf:"sweep_interval"` // 0 disables the background sweeper
}

type MetricsConfig struct {
	Addr string `koanf:"addr"` // empty disables the /metrics listener
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json or console
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Type:         "sqlite",
			SQLitePath:   "data/learnstats.db",
			MaxOpenConns: 10,
		},
		Lock: LockConfig{
			Backend: LockBackendAuto,
			Name:    "learnstats:analytics-maintenance",
			TTL:     10 * time.Minute,
		},
		Analytics: AnalyticsConfig{
			ActiveReviewThreshold: 3,
		},
		Maintenance: MaintenanceConfig{
			SweepInterval: 0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// envKeys maps LEARNSTATS_* suffixes onto koanf paths
var envKeys = map[string]string{
	"database_type":                     "database.type",
	"database_url":                      "database.url",
	"database_sqlite_path":              "database.sqlite_path",
	"database_max_open_conns":           "database.max_open_conns",
	"lock_backend":                      "lock.backend",
	"lock_name":                         "lock.name",
	"lock_ttl":                          "lock.ttl",
	"lock_redis_addr":                   "lock.redis_addr",
	"analytics_active_review_threshold": "analytics.active_review_threshold",
	"maintenance_sweep_interval":        "maintenance.sweep_interval",
	"metrics_addr":                      "metrics.addr",
	"log_level":                         "logging.level",
	"log_format":                        "logging.format",
}

func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if path, ok := envKeys[key]; ok {
		return path
	}
	// unknown keys land outside any struct path and are ignored by Unmarshal
	return "unmapped_" + key
}

// Load builds the configuration. configPath may be empty, in which case
// LEARNSTATS_CONFIG is consulted; a missing file at an explicit path is an error.
func Load(configPath string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath == "" {
		configPath = os.Getenv(ConfigPathEnvVar)
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// Configuration validation errors
var (
	ErrUnknownDatabaseType = errors.New("database.type must be sqlite or postgres")
	ErrMissingDatabaseURL  = errors.New("database.url is required for postgres")
	ErrMissingSQLitePath   = errors.New("database.sqlite_path is required for sqlite")
	ErrUnknownLockBackend  = errors.New("lock.backend must be auto, postgres, table or redis")
	ErrPostgresLockOnLite  = errors.New("lock.backend postgres requires database.type postgres")
	ErrMissingRedisAddr    = errors.New("lock.redis_addr is required for the redis lock backend")
	ErrInvalidLockTTL      = errors.New("lock.ttl must be positive")
	ErrInvalidThreshold    = errors.New("analytics.active_review_threshold must be at least 1")
	ErrNegativeSweep       = errors.New("maintenance.sweep_interval must not be negative")
	ErrPoolTooSmall        = errors.New("database.max_open_conns must be at least 2 with postgres advisory locks")
)

// Validate returns every problem found, or nil
func (c *Config) Validate() []error {
	var errs []error

	switch c.Database.Type {
	case "postgres":
		if c.Database.URL == "" {
			errs = append(errs, ErrMissingDatabaseURL)
		}
	case "sqlite":
		if c.Database.SQLitePath == "" {
			errs = append(errs, ErrMissingSQLitePath)
		}
	default:
		errs = append(errs, ErrUnknownDatabaseType)
	}

	switch c.Lock.Backend {
	case LockBackendAuto, LockBackendTable:
	case LockBackendPostgres:
		if c.Database.Type != "postgres" {
			errs = append(errs, ErrPostgresLockOnLite)
		}
	case LockBackendRedis:
		if c.Lock.RedisAddr == "" {
			errs = append(errs, ErrMissingRedisAddr)
		}
	default:
		errs = append(errs, ErrUnknownLockBackend)
	}
	if c.Lock.TTL <= 0 {
		errs = append(errs, ErrInvalidLockTTL)
	}
	// the advisory lock pins one pooled connection for the whole pass
	if c.LockBackend() == LockBackendPostgres && c.Database.MaxOpenConns == 1 {
		errs = append(errs, ErrPoolTooSmall)
	}

	if c.Analytics.ActiveReviewThreshold < 1 {
		errs = append(errs, ErrInvalidThreshold)
	}
	if c.Maintenance.SweepInterval < 0 {
		errs = append(errs, ErrNegativeSweep)
	}
	return errs
}

// LockBackend resolves "auto" to the backend matching the database
func (c *Config) LockBackend() string {
	if c.Lock.Backend != LockBackendAuto {
		return c.Lock.Backend
	}
	if c.Database.Type == "postgres" {
		return LockBackendPostgres
	}
	return LockBackendTable
}
