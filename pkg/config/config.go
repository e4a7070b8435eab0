// Package config loads client configuration from an optional YAML file, an
// optional .env file and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultBaseURL is the public Ximilar API.
const DefaultBaseURL = "https://api.ximilar.com/"

// ErrNoCredentials is returned by Validate when neither token nor JWT is set.
var ErrNoCredentials = errors.New("XIMILAR_TOKEN or XIMILAR_JWT must be set")

// Config holds the client configuration.
type Config struct {
	Token     string        `env:"XIMILAR_TOKEN" yaml:"token"`
	JWT       string        `env:"XIMILAR_JWT" yaml:"jwt"`
	Workspace string        `env:"XIMILAR_WORKSPACE" yaml:"workspace"`
	BaseURL   string        `env:"XIMILAR_BASE_URL" yaml:"base_url"`
	ProxyURL  string        `env:"XIMILAR_PROXY_URL" yaml:"proxy_url"`
	Timeout   time.Duration `env:"XIMILAR_TIMEOUT" yaml:"timeout"`
	UserAgent string        `env:"XIMILAR_USER_AGENT" yaml:"user_agent"`
	Debug     bool          `env:"XIMILAR_DEBUG" yaml:"debug"`

	RedisURL string `env:"REDIS_URL" yaml:"redis_url"`

	LogLevel  string `env:"LOG_LEVEL" yaml:"log_level"`
	LogPretty bool   `env:"LOG_PRETTY" yaml:"log_pretty"`
	LogFile   string `env:"LOG_FILE" yaml:"log_file"`

	BatchWorkers int `env:"BATCH_WORKERS" yaml:"batch_workers"`
	BatchSize    int `env:"BATCH_SIZE" yaml:"batch_size"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		BaseURL:      DefaultBaseURL,
		Timeout:      90 * time.Second,
		LogLevel:     "info",
		BatchWorkers: 3,
		BatchSize:    1,
	}
}

// Load reads an optional .env file from the working directory, then the
// environment, over the defaults.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile overlays the YAML file at path (if path is not empty) on the
// defaults, then applies .env and the environment, which take precedence.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	// .env file is optional, don't fail if not found
	_ = godotenv.Load()

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for use against the API.
func (c *Config) Validate() error {
	if c.Token == "" && c.JWT == "" {
		return ErrNoCredentials
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base url is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive (got %s)", c.Timeout)
	}
	if c.BatchWorkers < 1 {
		return fmt.Errorf("batch workers must be >= 1 (got %d)", c.BatchWorkers)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be >= 1 (got %d)", c.BatchSize)
	}
	return nil
}
