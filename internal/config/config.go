package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/adhocore/gronx"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dyluth/steamhub/internal/timespec"
)

// Defaults applied by Validate when a setting is omitted.
const (
	DefaultWatcherCap      = 20
	DefaultWatcherSchedule = "*/5 * * * *"
	DefaultLanguage        = "english"
	DefaultLanguagesDir    = "languages"
	DefaultPollInterval    = 500 * time.Millisecond
	DefaultMaxPolls        = 120
	DefaultHealthAddr      = ":8080"
	DefaultCatalogTimeout  = 10 * time.Second
)

// Duration is a time.Duration that unmarshals from "30s" or bare seconds "30".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := timespec.ParseDuration(raw)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the top-level steamhub.yml configuration
type Config struct {
	Version        string              `yaml:"version"`
	Redis          RedisConfig         `yaml:"redis"`
	Shards         ShardsConfig        `yaml:"shards"`
	Watcher        *WatcherConfig      `yaml:"watcher,omitempty"`
	Cooldowns      map[string]Duration `yaml:"cooldowns,omitempty"`
	CooldownExempt []string            `yaml:"cooldown_exempt,omitempty"`
	PremiumRoles   []string            `yaml:"premium_roles,omitempty"`
	Languages      LanguagesConfig     `yaml:"languages"`
	Query          QueryConfig         `yaml:"query"`
	Health         HealthConfig        `yaml:"health"`
	Catalog        CatalogConfig       `yaml:"catalog"`
	Logging        LoggingConfig       `yaml:"logging"`
}

// RedisConfig locates the backing key-value store
type RedisConfig struct {
	URL string `yaml:"url"`
}

// ShardsConfig describes the shard cluster
type ShardsConfig struct {
	Count int `yaml:"count"`
}

// WatcherConfig controls the watcher alert cycle
type WatcherConfig struct {
	Cap                 *int    `yaml:"cap,omitempty"`      // Max active watchers per user (default 20)
	Schedule            string  `yaml:"schedule,omitempty"` // Cron expression for the alert cycle
	Shard               int     `yaml:"shard,omitempty"`    // Shard that runs the cycle
	DeliveriesPerSecond float64 `yaml:"deliveries_per_second,omitempty"`
}

// LanguagesConfig locates language definition files
type LanguagesConfig struct {
	Dir     string `yaml:"dir,omitempty"`
	Default string `yaml:"default,omitempty"`
}

// QueryConfig bounds the shard query wait
type QueryConfig struct {
	PollInterval Duration `yaml:"poll_interval,omitempty"`
	MaxPolls     int      `yaml:"max_polls,omitempty"`
}

// HealthConfig controls the health and metrics listener
type HealthConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// CatalogConfig points at the game catalog service
type CatalogConfig struct {
	URL     string   `yaml:"url,omitempty"`
	Timeout Duration `yaml:"timeout,omitempty"`
}

// LoggingConfig selects the zap logger flavour
type LoggingConfig struct {
	Level       string `yaml:"level,omitempty"`
	Development bool   `yaml:"development,omitempty"`
}

// Validate performs strict validation on the configuration and applies defaults
func (c *Config) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("redis.url is required")
	}

	if c.Shards.Count == 0 {
		c.Shards.Count = 1
	}
	if c.Shards.Count < 0 {
		return fmt.Errorf("shards.count must be >= 1, got %d", c.Shards.Count)
	}

	if c.Watcher == nil {
		c.Watcher = &WatcherConfig{}
	}
	if c.Watcher.Cap == nil {
		defaultCap := DefaultWatcherCap
		c.Watcher.Cap = &defaultCap
	}
	if *c.Watcher.Cap < 1 {
		return fmt.Errorf("watcher.cap must be >= 1, got %d", *c.Watcher.Cap)
	}
	if c.Watcher.Schedule == "" {
		c.Watcher.Schedule = DefaultWatcherSchedule
	}
	if !gronx.IsValid(c.Watcher.Schedule) {
		return fmt.Errorf("invalid watcher.schedule cron expression: %s", c.Watcher.Schedule)
	}
	if c.Watcher.Shard < 0 || c.Watcher.Shard >= c.Shards.Count {
		return fmt.Errorf("watcher.shard %d out of range (shards.count = %d)", c.Watcher.Shard, c.Shards.Count)
	}
	if c.Watcher.DeliveriesPerSecond < 0 {
		return fmt.Errorf("watcher.deliveries_per_second must be >= 0")
	}

	if c.Languages.Dir == "" {
		c.Languages.Dir = DefaultLanguagesDir
	}
	if c.Languages.Default == "" {
		c.Languages.Default = DefaultLanguage
	}

	if c.Query.PollInterval == 0 {
		c.Query.PollInterval = Duration(DefaultPollInterval)
	}
	if c.Query.MaxPolls == 0 {
		c.Query.MaxPolls = DefaultMaxPolls
	}
	if c.Query.MaxPolls < 0 {
		return fmt.Errorf("query.max_polls must be >= 1, got %d", c.Query.MaxPolls)
	}

	if c.Health.Addr == "" {
		c.Health.Addr = DefaultHealthAddr
	}
	if c.Catalog.Timeout == 0 {
		c.Catalog.Timeout = Duration(DefaultCatalogTimeout)
	}

	return nil
}

// CooldownDurations returns the configured cooldowns as plain durations.
func (c *Config) CooldownDurations() map[string]time.Duration {
	out := make(map[string]time.Duration, len(c.Cooldowns))
	for name, d := range c.Cooldowns {
		out[name] = d.Std()
	}
	return out
}

// ApplyEnv overrides file settings with REDIS_URL and STEAMHUB_SHARD_COUNT.
func (c *Config) ApplyEnv() error {
	if url := os.Getenv("REDIS_URL"); url != "" {
		c.Redis.URL = url
	}
	if raw := os.Getenv("STEAMHUB_SHARD_COUNT"); raw != "" {
		count, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid STEAMHUB_SHARD_COUNT: %w", err)
		}
		c.Shards.Count = count
	}
	return nil
}

// LoadDotEnv loads variables from a .env file if one exists. Variables that
// are already set in the environment win.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load reads steamhub.yml from the specified path, applies environment
// overrides and validates the result
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
