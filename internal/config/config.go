// # internal/config/config.go
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	SearchPaths []string           `toml:"search_paths"`
	Dialects    map[string]Dialect `toml:"dialects"`
	Watch       Watch              `toml:"watch"`
	Store       Store              `toml:"store"`
	Server      Server             `toml:"server"`
	Limits      Limits             `toml:"limits"`
}

type Dialect struct {
	Enabled    *bool    `toml:"enabled"`
	Extensions []string `toml:"extensions"`
}

type Watch struct {
	Paths    []string      `toml:"paths"`
	Debounce time.Duration `toml:"debounce"`
	Exclude  []string      `toml:"exclude"` // glob patterns
}

type Store struct {
	Path string `toml:"path"`
}

type Server struct {
	Addr         string `toml:"addr"`          // metrics/health listen address
	OTLPEndpoint string `toml:"otlp_endpoint"` // empty disables tracing
}

type Limits struct {
	ScansPerSecond float64 `toml:"scans_per_second"`
	Burst          int     `toml:"burst"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if len(c.SearchPaths) == 0 {
		c.SearchPaths = []string{"."}
	}
	if len(c.Watch.Paths) == 0 {
		c.Watch.Paths = c.SearchPaths
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = 500 * time.Millisecond
	}
	if c.Limits.ScansPerSecond == 0 {
		c.Limits.ScansPerSecond = 20
	}
	if c.Limits.Burst == 0 {
		c.Limits.Burst = 40
	}
}
