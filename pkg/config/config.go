package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mslinn/unittree/pkg/unittest"
)

// Config represents the harness configuration
type Config struct {
	DatabasePath    string        `yaml:"database"`
	Column          int           `yaml:"column"`
	Color           bool          `yaml:"color"`
	NestedExecution bool          `yaml:"nested_execution"`
	Record          bool          `yaml:"record"`
	Timeout         time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	dbPath := filepath.Join(".unittree", "history.db")
	if homeDir, err := os.UserHomeDir(); err == nil {
		dbPath = filepath.Join(homeDir, ".unittree", "history.db")
	}
	return &Config{
		DatabasePath:    dbPath,
		Column:          unittest.DefaultColumn,
		Color:           true,
		NestedExecution: true,
		Record:          true,
		Timeout:         30 * time.Second,
	}
}

// Load loads configuration from file and environment variables
// Priority: environment variables > config file > defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if err := loadFromFile(cfg, GetConfigPath()); err != nil {
		// Config file is optional, so we just skip if not found
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv overrides cfg with environment variables
func applyEnv(cfg *Config) error {
	if db := os.Getenv("UNITTREE_DB"); db != "" {
		cfg.DatabasePath = db
	}
	if color := os.Getenv("UNITTREE_COLOR"); color != "" {
		v, err := strconv.ParseBool(color)
		if err != nil {
			return fmt.Errorf("invalid UNITTREE_COLOR %q: %w", color, err)
		}
		cfg.Color = v
	}
	if nested := os.Getenv("UNITTREE_NESTED"); nested != "" {
		v, err := strconv.ParseBool(nested)
		if err != nil {
			return fmt.Errorf("invalid UNITTREE_NESTED %q: %w", nested, err)
		}
		cfg.NestedExecution = v
	}
	if column := os.Getenv("UNITTREE_COLUMN"); column != "" {
		n, err := strconv.Atoi(column)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid UNITTREE_COLUMN %q: must be a positive integer", column)
		}
		cfg.Column = n
	}
	if timeout := os.Getenv("UNITTREE_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid UNITTREE_TIMEOUT %q: %w", timeout, err)
		}
		cfg.Timeout = d
	}
	return nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// Save saves the configuration to a file
func (cfg *Config) Save(path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	configPath := os.Getenv("UNITTREE_CONFIG")
	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			configPath = filepath.Join(homeDir, ".unittree-config")
		} else {
			configPath = ".unittree-config"
		}
	}
	return configPath
}

// GetDatabasePath returns the database path, expanding ~/ if needed
func (cfg *Config) GetDatabasePath() string {
	if len(cfg.DatabasePath) > 1 && cfg.DatabasePath[:2] == "~/" {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(homeDir, cfg.DatabasePath[2:])
		}
	}
	return cfg.DatabasePath
}

// RunnerOptions translates the configuration into runner options
func (cfg *Config) RunnerOptions() []unittest.Option {
	return []unittest.Option{
		unittest.WithColumn(cfg.Column),
		unittest.WithColor(cfg.Color),
		unittest.WithNestedExecution(cfg.NestedExecution),
	}
}

// ValidateDatabase checks the database path and creates its directory
func (cfg *Config) ValidateDatabase() error {
	dbPath := cfg.GetDatabasePath()
	if dbPath == "" {
		return fmt.Errorf("database path is empty")
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	return nil
}

// Validate checks every configuration value. The database is only
// validated when recording is enabled.
func (cfg *Config) Validate() error {
	if cfg.Column <= 0 {
		return fmt.Errorf("column must be positive, got %d", cfg.Column)
	}
	if cfg.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", cfg.Timeout)
	}
	if cfg.Record {
		if err := cfg.ValidateDatabase(); err != nil {
			return err
		}
	}
	return nil
}
