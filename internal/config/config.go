package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the default config file looked up in the working directory.
const FileName = "outlay.yaml"

// Config represents the top-level outlay.yaml configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	List     ListConfig     `yaml:"list"`
}

// DatabaseConfig locates and tunes the SQLite store.
type DatabaseConfig struct {
	Path          string `yaml:"path"`
	BusyTimeoutMS int    `yaml:"busy_timeout_ms"`
	LogQueries    bool   `yaml:"log_queries"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file,omitempty"`
}

// ListConfig bounds paginated listings.
type ListConfig struct {
	PerPage    int `yaml:"per_page"`
	MaxPerPage int `yaml:"max_per_page"`
}

// Environment variables that override file values.
const (
	EnvDBPath   = "OUTLAY_DB_PATH"
	EnvLogLevel = "OUTLAY_LOG_LEVEL"
	EnvLogFile  = "OUTLAY_LOG_FILE"
)

var validLevels = []string{"debug", "info", "warn", "error"}

// Load reads an outlay.yaml file from disk and applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from a .env file into the process
// environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new ledger.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:          "data/outlay.db",
			BusyTimeoutMS: 5000,
		},
		Log: LogConfig{
			Level: "info",
		},
		List: ListConfig{
			PerPage:    20,
			MaxPerPage: 100,
		},
	}
}

// ApplyEnv overrides file values with any OUTLAY_* variables that are set.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvDBPath); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		c.Log.File = v
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path cannot be empty")
	}
	if c.Database.BusyTimeoutMS < 0 {
		return fmt.Errorf("invalid busy timeout %d: must not be negative", c.Database.BusyTimeoutMS)
	}
	levelOK := false
	for _, l := range validLevels {
		if c.Log.Level == l {
			levelOK = true
			break
		}
	}
	if !levelOK {
		return fmt.Errorf("invalid log level '%s': must be one of %v", c.Log.Level, validLevels)
	}
	if c.List.PerPage < 1 {
		return fmt.Errorf("invalid per_page %d: must be at least 1", c.List.PerPage)
	}
	if c.List.MaxPerPage < c.List.PerPage {
		return fmt.Errorf("invalid max_per_page %d: must be at least per_page (%d)", c.List.MaxPerPage, c.List.PerPage)
	}
	return nil
}
