// Package config loads dbroute settings from defaults, an optional YAML file
// and the environment, in that order of precedence (environment wins).
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/koustreak/dbroute/internal/errs"
	"github.com/koustreak/dbroute/internal/region"
)

// Config is the full process configuration.
type Config struct {
	// Environment is the deployment environment (production, development, ...).
	Environment string `yaml:"environment"`

	// RegionOverride wins over platform region detection.
	RegionOverride string `yaml:"region_override"`

	// Region is resolved once at boot from RegionOverride and the platform
	// signals. Read-only afterwards.
	Region region.Region `yaml:"-"`

	Database    Database    `yaml:"database"`
	Consistency Consistency `yaml:"consistency"`
	Log         Log         `yaml:"log"`
	HTTP        HTTP        `yaml:"http"`
}

// Database describes the primary and its replicas.
type Database struct {
	PrimaryURL       string   `yaml:"primary_url"`
	PrimaryPoolerURL string   `yaml:"primary_pooler_url"`
	ReplicaURLs      []string `yaml:"replica_urls"`
	// ReplicaRegions, when set, has one region per replica URL.
	ReplicaRegions []string `yaml:"replica_regions"`

	Strategy       string        `yaml:"strategy"`
	ConnectRetries int           `yaml:"connect_retries"`
	RetryInterval  time.Duration `yaml:"retry_interval"`
}

// Consistency configures the read-after-write window.
type Consistency struct {
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	// RedisURL switches mutation tracking from in-memory to Redis.
	RedisURL string `yaml:"redis_url"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// HTTP configures the operational HTTP surface.
type HTTP struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Environment: "production",
		Region:      region.Unresolved,
		Database: Database{
			Strategy:       "region",
			ConnectRetries: 3,
			RetryInterval:  time.Second,
		},
		Consistency: Consistency{
			TTL:             5 * time.Second,
			CleanupInterval: 30 * time.Second,
		},
		Log: Log{
			Level:  "info",
			Format: "json",
		},
		HTTP: HTTP{
			Addr: ":8080",
		},
	}
}

// Load reads path (optional) and the process environment, then validates.
func Load(path string) (*Config, error) {
	return LoadWith(path, os.Getenv)
}

// LoadWith is Load with an injectable environment lookup.
func LoadWith(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindConfigInvalid, "read config file "+path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errs.Wrap(errs.ErrKindConfigInvalid, "parse config file "+path, err)
		}
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that must hold before any connection is made.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.PrimaryURL) == "" {
		return errs.New(errs.ErrKindConfigInvalid, "primary url is required")
	}
	if n, m := len(c.Database.ReplicaURLs), len(c.Database.ReplicaRegions); m > 0 && n != m {
		return errs.Newf(errs.ErrKindConfigInvalid,
			"replica regions count (%d) does not match replica urls count (%d)", m, n)
	}
	if c.Database.ConnectRetries < 1 {
		return errs.Newf(errs.ErrKindConfigInvalid, "connect retries must be at least 1, got %d", c.Database.ConnectRetries)
	}
	if c.Database.RetryInterval <= 0 {
		return errs.New(errs.ErrKindConfigInvalid, "retry interval must be positive")
	}
	if c.Consistency.TTL <= 0 {
		return errs.New(errs.ErrKindConfigInvalid, "consistency ttl must be positive")
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v := getenv(key); strings.TrimSpace(v) != "" {
			*dst = SplitList(v)
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return errs.Wrap(errs.ErrKindConfigInvalid, "invalid duration in "+key, err)
		}
		*dst = d
		return nil
	}

	str("APP_ENV", &c.Environment)
	str("REGION_OVERRIDE", &c.RegionOverride)

	str("PRIMARY_URL", &c.Database.PrimaryURL)
	str("PRIMARY_POOLER_URL", &c.Database.PrimaryPoolerURL)
	list("REPLICA_URLS", &c.Database.ReplicaURLs)
	list("REPLICA_REGIONS", &c.Database.ReplicaRegions)
	str("DB_SELECTION_STRATEGY", &c.Database.Strategy)

	if v := strings.TrimSpace(getenv("DB_CONNECT_RETRIES")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errs.Wrap(errs.ErrKindConfigInvalid, "invalid DB_CONNECT_RETRIES", err)
		}
		c.Database.ConnectRetries = n
	}
	if err := dur("DB_RETRY_INTERVAL", &c.Database.RetryInterval); err != nil {
		return err
	}

	if err := dur("CONSISTENCY_TTL", &c.Consistency.TTL); err != nil {
		return err
	}
	if err := dur("CONSISTENCY_CLEANUP_INTERVAL", &c.Consistency.CleanupInterval); err != nil {
		return err
	}
	str("CONSISTENCY_REDIS_URL", &c.Consistency.RedisURL)

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("HTTP_ADDR", &c.HTTP.Addr)
	return nil
}

// SplitList splits a comma-separated value, trimming items and dropping
// empty ones.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
