// Package config handles the configuration management for acfsync.
// It provides functionality to load, save, and validate application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Supported record store drivers
const (
	DriverBolt   = "bolt"
	DriverSQLite = "sqlite"
)

// Config represents the acfsync configuration
type Config struct {
	StorePath    string        `yaml:"store_path" env:"STORE_PATH"`
	Driver       string        `yaml:"driver" env:"DRIVER"`
	LockTimeout  time.Duration `yaml:"lock_timeout" env:"LOCK_TIMEOUT"`
	LogLevel     string        `yaml:"log_level" env:"LOG_LEVEL"`
	OutputFormat string        `yaml:"output_format" env:"OUTPUT_FORMAT"`
	EnvFile      string        `yaml:"env_file"`
}

// EnvPrefix is prepended to every environment variable name
const EnvPrefix = "ACFSYNC_"

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		StorePath:    filepath.Join(home, ".local", "share", "acfsync", "records.db"),
		Driver:       DriverBolt,
		LockTimeout:  10 * time.Second,
		LogLevel:     "warn",
		OutputFormat: "auto",
		EnvFile:      ".env",
	}
}

// LoadConfig loads configuration from file or returns default, then applies
// the optional dotenv file and ACFSYNC_* environment overrides.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if err := loadFile(cfg, configPath); err != nil {
			return cfg, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

func loadFile(cfg *Config, configPath string) error {
	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Create default config file
		if err := SaveConfig(cfg, configPath); err != nil {
			return fmt.Errorf("failed to create default config: %w", err)
		}
		return nil
	}

	// Clean the file path to prevent directory traversal
	cleanPath := filepath.Clean(configPath)

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func applyEnv(cfg *Config) error {
	if cfg.EnvFile != "" {
		// godotenv never overrides variables already set in the process
		if err := godotenv.Load(cfg.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load env file %s: %w", cfg.EnvFile, err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}

	return nil
}

// Validate checks the configuration for unusable values
func (c *Config) Validate() error {
	var errs []error

	if c.StorePath == "" {
		errs = append(errs, errors.New("store_path must not be empty"))
	}
	switch c.Driver {
	case DriverBolt, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown driver %q (want %s or %s)", c.Driver, DriverBolt, DriverSQLite))
	}
	if c.LockTimeout <= 0 {
		errs = append(errs, fmt.Errorf("lock_timeout must be positive, got %s", c.LockTimeout))
	}
	switch c.OutputFormat {
	case "auto", "table", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown output_format %q", c.OutputFormat))
	}

	return errors.Join(errs...)
}

// SaveConfig saves configuration to file
func SaveConfig(cfg *Config, configPath string) error {
	// Clean the file path to prevent directory traversal
	cleanPath := filepath.Clean(configPath)

	// Create directory if it doesn't exist
	dir := filepath.Dir(cleanPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(cleanPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
