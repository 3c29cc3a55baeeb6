// Package config provides configuration management for graphsketch.
//
// Config file locations (priority order):
//  1. $GRAPHSKETCH_CONFIG
//  2. ./graphsketch.yaml
//  3. $XDG_CONFIG_HOME/graphsketch/config.yaml
//  4. ~/.config/graphsketch/config.yaml
//  5. /etc/graphsketch/config.yaml
//
// Environment variables (optionally read from a .env file) override the
// file; command line flags override both.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment overrides
const (
	EnvAddr     = "GRAPHSKETCH_ADDR"
	EnvDB       = "GRAPHSKETCH_DB"
	EnvLogLevel = "GRAPHSKETCH_LOG_LEVEL"
	EnvDot      = "GRAPHSKETCH_DOT"
)

// Load reads an optional .env file, loads the config file at path (searching
// the default locations when path is empty, and using defaults if none is
// found) and applies environment overrides
func Load(path string) (*Config, string, error) {
	// A missing .env file is not an error
	_ = godotenv.Load()

	if path == "" {
		path = FindConfigPath()
	}

	var (
		cfg *Config
		err error
	)
	if path == "" {
		cfg = DefaultConfig()
	} else if cfg, _, err = LoadFromPath(path); err != nil {
		return nil, path, err
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(10 * time.Second)
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = Duration(60 * time.Second)
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = Duration(60 * time.Second)
	}
	if c.Database.Path == "" {
		c.Database.Path = "./graphsketch.db"
	}
	if c.Render.DotBinary == "" {
		c.Render.DotBinary = "dot"
	}
	if c.Render.Format == "" {
		c.Render.Format = "png"
	}
	if c.Render.OutputPath == "" {
		c.Render.OutputPath = "static/images/graph." + c.Render.Format
	}
	if c.Render.Timeout == 0 {
		c.Render.Timeout = Duration(30 * time.Second)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// ApplyEnv overrides file values with any GRAPHSKETCH_* variables that are set
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(EnvDB); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvDot); v != "" {
		c.Render.DotBinary = v
	}
}

// Validate checks values that have no sensible fallback
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format %q", c.Log.Format)
	}
	if c.Seed.Watch && c.Seed.Path == "" {
		return fmt.Errorf("seed.watch requires seed.path")
	}
	return nil
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	summary := fmt.Sprintf("Listen: %s, Database: %s\n", c.Server.Addr, c.Database.Path)
	summary += fmt.Sprintf("Render: %s -T%s -> %s", c.Render.DotBinary, c.Render.Format, c.Render.OutputPath)
	if c.Seed.Path != "" {
		summary += fmt.Sprintf("\nSeed: %s (watch: %t)", c.Seed.Path, c.Seed.Watch)
	}
	return summary
}
