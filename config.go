package modelfetch

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultHubURL is the hub queried when Config.HubURL is empty.
const DefaultHubURL = "https://modelscope.cn"

// Config configures an Engine. The zero value is usable: NewEngine fills
// every unset field from the defaults below.
type Config struct {
	// HubURL is the base URL of the model hub.
	HubURL string `yaml:"hub_url"`

	// StateDir is the directory status records are stored in.
	// If empty, a platform-appropriate default is used.
	StateDir string `yaml:"state_dir"`

	// Concurrency is the number of parallel download workers.
	Concurrency int `yaml:"workers"`

	// ChunkSize is the number of bytes read from the network per chunk.
	ChunkSize int64 `yaml:"chunk_size"`

	// MaxAttempts is the per-file bounded attempt count. A transient
	// failure re-enters the resume logic until attempts are exhausted.
	MaxAttempts int `yaml:"retry_attempts"`

	// CheckpointInterval is the minimum time between two persisted
	// status snapshots during a transfer.
	CheckpointInterval time.Duration `yaml:"-"`

	// SkipVerify disables SHA-256 verification of downloaded files.
	SkipVerify bool `yaml:"skip_verify"`
}

// DefaultConfig returns a Config with every field set to its default.
func DefaultConfig() Config {
	return Config{
		HubURL:             DefaultHubURL,
		Concurrency:        DefaultConcurrency,
		ChunkSize:          DefaultChunkSize,
		MaxAttempts:        DefaultMaxAttempts,
		CheckpointInterval: DefaultCheckpointInterval,
	}
}

// withDefaults returns a copy of c with unset fields filled in.
// StateDir is left empty; the status store resolves the platform default.
func (c Config) withDefaults() Config {
	if c.HubURL == "" {
		c.HubURL = DefaultHubURL
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.CheckpointInterval <= 0 {
		c.CheckpointInterval = DefaultCheckpointInterval
	}
	return c
}

// yamlConfig mirrors Config for unmarshaling, with durations as strings.
type yamlConfig struct {
	HubURL             string `yaml:"hub_url"`
	StateDir           string `yaml:"state_dir"`
	Workers            int    `yaml:"workers"`
	ChunkSize          int64  `yaml:"chunk_size"`
	RetryAttempts      int    `yaml:"retry_attempts"`
	CheckpointInterval string `yaml:"checkpoint_interval"`
	SkipVerify         bool   `yaml:"skip_verify"`
}

// LoadConfig loads configuration from a YAML file, layered over defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := DefaultConfig()
	if yc.HubURL != "" {
		cfg.HubURL = yc.HubURL
	}
	if yc.StateDir != "" {
		cfg.StateDir = yc.StateDir
	}
	if yc.Workers != 0 {
		cfg.Concurrency = yc.Workers
	}
	if yc.ChunkSize != 0 {
		cfg.ChunkSize = yc.ChunkSize
	}
	if yc.RetryAttempts != 0 {
		cfg.MaxAttempts = yc.RetryAttempts
	}
	if yc.CheckpointInterval != "" {
		d, err := time.ParseDuration(yc.CheckpointInterval)
		if err != nil {
			return Config{}, fmt.Errorf("parse checkpoint_interval: %w", err)
		}
		cfg.CheckpointInterval = d
	}
	cfg.SkipVerify = yc.SkipVerify

	return cfg, nil
}

// LoadFromEnv applies MODELFETCH_* environment variables to c.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("MODELFETCH_HUB_URL"); v != "" {
		c.HubURL = v
	}
	if v := os.Getenv("MODELFETCH_STATE_DIR"); v != "" {
		c.StateDir = v
	}
	if v := os.Getenv("MODELFETCH_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse MODELFETCH_WORKERS: %w", err)
		}
		c.Concurrency = n
	}
	if v := os.Getenv("MODELFETCH_CHUNK_SIZE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parse MODELFETCH_CHUNK_SIZE: %w", err)
		}
		c.ChunkSize = n
	}
	if v := os.Getenv("MODELFETCH_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse MODELFETCH_RETRY_ATTEMPTS: %w", err)
		}
		c.MaxAttempts = n
	}
	if v := os.Getenv("MODELFETCH_CHECKPOINT_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse MODELFETCH_CHECKPOINT_INTERVAL: %w", err)
		}
		c.CheckpointInterval = d
	}
	if v := os.Getenv("MODELFETCH_SKIP_VERIFY"); v != "" {
		c.SkipVerify = v == "true" || v == "1"
	}
	return nil
}
