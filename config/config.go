// Package config loads fitvault settings from YAML or JSON files and turns
// them into ready-to-use component configurations: store, queue, logger and
// conflict rules. Files are optional; the zero Config with defaults applied
// runs a working installation.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fitvault/fitvault/conflict"
	"github.com/fitvault/fitvault/logging"
	"github.com/fitvault/fitvault/queue"
	"github.com/fitvault/fitvault/storage"
)

// Config is the root configuration document.
type Config struct {
	Version string `json:"version" yaml:"version"`

	Logging logging.Config `json:"logging,omitempty" yaml:"logging,omitempty"`

	Storage StorageSettings `json:"storage,omitempty" yaml:"storage,omitempty"`

	Sync SyncSettings `json:"sync,omitempty" yaml:"sync,omitempty"`

	Conflicts ConflictSettings `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`
}

// StorageSettings configures the encrypted local store.
type StorageSettings struct {
	// Path is the SQLite database file. Defaults to "fitvault.db".
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// QuotaBytes is the advisory storage budget. Zero keeps the default.
	QuotaBytes int64 `json:"quota_bytes,omitempty" yaml:"quota_bytes,omitempty"`

	// DisableWAL turns off write-ahead logging.
	DisableWAL bool `json:"disable_wal,omitempty" yaml:"disable_wal,omitempty"`
}

// SyncSettings configures queue flushing and remote timeouts. Durations are
// Go duration strings ("30s", "5m").
type SyncSettings struct {
	FlushInterval string  `json:"flush_interval,omitempty" yaml:"flush_interval,omitempty"`
	RemoteTimeout string  `json:"remote_timeout,omitempty" yaml:"remote_timeout,omitempty"`
	MaxRetries    int     `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	InitialDelay  string  `json:"initial_delay,omitempty" yaml:"initial_delay,omitempty"`
	MaxDelay      string  `json:"max_delay,omitempty" yaml:"max_delay,omitempty"`
	Multiplier    float64 `json:"multiplier,omitempty" yaml:"multiplier,omitempty"`
}

// ConflictSettings configures the resolution rule set.
type ConflictSettings struct {
	// DisableDefaults drops the built-in rules, leaving only Rules.
	DisableDefaults bool `json:"disable_defaults,omitempty" yaml:"disable_defaults,omitempty"`

	Rules []RuleEntry `json:"rules,omitempty" yaml:"rules,omitempty"`
}

// RuleEntry is one configured conflict rule: fields matching Pattern resolve
// with Strategy. Rules apply in file order, before the built-in defaults.
type RuleEntry struct {
	Name     string `json:"name" yaml:"name"`
	Pattern  string `json:"pattern" yaml:"pattern"`
	Strategy string `json:"strategy" yaml:"strategy"`
}

var knownStrategies = map[string]conflict.Strategy{
	"local_wins":           conflict.StrategyLocalWins,
	"remote_wins":          conflict.StrategyRemoteWins,
	"merge_values":         conflict.StrategyMergeValues,
	"use_latest_timestamp": conflict.StrategyUseLatestTimestamp,
	"user_choice":          conflict.StrategyUserChoice,
	"create_new":           conflict.StrategyCreateNew,
	"skip_field":           conflict.StrategySkipField,
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	c := &Config{Version: "1"}
	c.setDefaults()
	return c
}

// Load reads a configuration file, detecting YAML or JSON by extension.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return LoadBytes(data, detectFormat(path))
}

// LoadBytes parses configuration from raw bytes in the given format
// ("yaml" or "json").
func LoadBytes(data []byte, format string) (*Config, error) {
	var c Config
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	case "json":
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("parsing JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", format)
	}

	c.setDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) setDefaults() {
	if c.Storage.Path == "" {
		c.Storage.Path = "fitvault.db"
	}
	if c.Logging.Level == "" {
		c.Logging = logging.GetConfigFromEnv()
	}
	if c.Sync.FlushInterval == "" {
		c.Sync.FlushInterval = "30s"
	}
	if c.Sync.RemoteTimeout == "" {
		c.Sync.RemoteTimeout = "10s"
	}
}

// Validate checks the configuration for inconsistencies a loaded file could
// introduce. Called by Load; direct constructions may call it themselves.
func (c *Config) Validate() error {
	if _, err := c.FlushInterval(); err != nil {
		return err
	}
	if _, err := c.RemoteTimeout(); err != nil {
		return err
	}
	if c.Sync.MaxRetries < 0 {
		return fmt.Errorf("sync.max_retries cannot be negative")
	}

	names := make(map[string]bool, len(c.Conflicts.Rules))
	for _, r := range c.Conflicts.Rules {
		if r.Name == "" {
			return fmt.Errorf("conflict rule without a name")
		}
		if names[r.Name] {
			return fmt.Errorf("duplicate conflict rule name %q", r.Name)
		}
		names[r.Name] = true
		if r.Pattern == "" {
			return fmt.Errorf("conflict rule %q has no field pattern", r.Name)
		}
		if _, ok := knownStrategies[strings.ToLower(r.Strategy)]; !ok {
			return fmt.Errorf("conflict rule %q uses unknown strategy %q", r.Name, r.Strategy)
		}
	}
	return nil
}

// FlushInterval parses the background flush interval.
func (c *Config) FlushInterval() (time.Duration, error) {
	return parseDuration("sync.flush_interval", c.Sync.FlushInterval)
}

// RemoteTimeout parses the per-operation remote timeout.
func (c *Config) RemoteTimeout() (time.Duration, error) {
	return parseDuration("sync.remote_timeout", c.Sync.RemoteTimeout)
}

func parseDuration(field, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s cannot be negative", field)
	}
	return d, nil
}

// StoreConfig builds the storage configuration.
func (c *Config) StoreConfig() *storage.Config {
	cfg := storage.DefaultConfig(c.Storage.Path)
	cfg.EnableWAL = !c.Storage.DisableWAL
	if c.Storage.QuotaBytes > 0 {
		cfg.QuotaBytes = c.Storage.QuotaBytes
	}
	cfg.Logger = logging.NewLogger(c.Logging)
	return cfg
}

// QueueConfig builds the sync queue configuration.
func (c *Config) QueueConfig() *queue.Config {
	cfg := &queue.Config{
		MaxRetries: c.Sync.MaxRetries,
		Logger:     logging.NewLogger(c.Logging),
	}

	retry := queue.DefaultRetryConfig()
	if d, err := parseDuration("sync.initial_delay", c.Sync.InitialDelay); err == nil && d > 0 {
		retry.InitialDelay = d
	}
	if d, err := parseDuration("sync.max_delay", c.Sync.MaxDelay); err == nil && d > 0 {
		retry.MaxDelay = d
	}
	if c.Sync.Multiplier > 1 {
		retry.Multiplier = c.Sync.Multiplier
	}
	cfg.Retry = retry
	return cfg
}

// ConflictOptions builds engine options from the configured rules.
func (c *Config) ConflictOptions() []conflict.Option {
	var opts []conflict.Option
	if c.Conflicts.DisableDefaults {
		opts = append(opts, conflict.WithoutDefaultRules())
	}
	for _, r := range c.Conflicts.Rules {
		strategy := knownStrategies[strings.ToLower(r.Strategy)]
		opts = append(opts, conflict.WithFieldRule(r.Name, r.Pattern, strategy))
	}
	return opts
}

func detectFormat(path string) string {
	idx := strings.LastIndex(path, ".")
	if idx < 0 {
		return "yaml"
	}
	switch strings.ToLower(path[idx+1:]) {
	case "json":
		return "json"
	default:
		return "yaml"
	}
}
