// Package config loads smartretry settings from YAML and opens the
// configured failure store.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/aponysus/smartretry/policy"
	"github.com/aponysus/smartretry/store/filestore"
	"github.com/aponysus/smartretry/store/redisstore"
)

// Config is the top-level configuration file.
type Config struct {
	Retry   RetryConfig   `yaml:"retry"`
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// RetryConfig mirrors policy.RetryPolicy in file-friendly units.
type RetryConfig struct {
	MaxRetries int    `yaml:"max_retries"`
	DelayMS    int64  `yaml:"delay_ms"`
	Backoff    string `yaml:"backoff"`
	Classifier string `yaml:"classifier"`
}

// StoreConfig selects and configures the failure store.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	URL    string `yaml:"url"`
	Prefix string `yaml:"prefix"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from a YAML file. ${VAR} references are expanded
// from the environment before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDotEnv loads .env from the working directory. A missing file is not
// an error.
func LoadDotEnv() error {
	if _, err := os.Stat(".env"); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Retry.MaxRetries == 0 {
		c.Retry.MaxRetries = policy.DefaultMaxAttempts
	}
	if c.Retry.DelayMS == 0 {
		c.Retry.DelayMS = policy.DefaultBaseDelay.Milliseconds()
	}
	if c.Retry.Backoff == "" {
		c.Retry.Backoff = string(policy.DefaultBackoff)
	}
	if c.Store.Driver == "" {
		c.Store.Driver = DriverFile
	}
	if c.Store.Driver == DriverFile && c.Store.Path == "" {
		c.Store.Path = filestore.DefaultFileName
	}
	if c.Store.Prefix == "" {
		c.Store.Prefix = redisstore.DefaultPrefix
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks fields that cannot be fixed by defaulting.
func (c *Config) Validate() error {
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("config: retry.max_retries must be >= 0, got %d", c.Retry.MaxRetries)
	}
	if c.Retry.DelayMS < 0 {
		return fmt.Errorf("config: retry.delay_ms must be >= 0, got %d", c.Retry.DelayMS)
	}
	if _, err := policy.ParseBackoff(c.Retry.Backoff); err != nil {
		return err
	}
	if !knownDriver(c.Store.Driver) {
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	return nil
}

// Policy converts the retry section into a normalized policy.
func (c *Config) Policy() (policy.RetryPolicy, error) {
	kind, err := policy.ParseBackoff(c.Retry.Backoff)
	if err != nil {
		return policy.RetryPolicy{}, err
	}
	p := policy.RetryPolicy{
		MaxAttempts:    c.Retry.MaxRetries,
		BaseDelay:      time.Duration(c.Retry.DelayMS) * time.Millisecond,
		Backoff:        kind,
		ClassifierName: c.Retry.Classifier,
	}
	return p.Normalize()
}
