package config

import (
	"fmt"
	"strconv"
	"time"
)

// Key describes one configuration key
type Key struct {
	Name        string
	Env         string
	Description string
}

// Keys lists every configuration key in file order
var Keys = []Key{
	{"database", "UNITTREE_DB", "Path to the SQLite history database"},
	{"column", "UNITTREE_COLUMN", "Column suite statistics are aligned to"},
	{"color", "UNITTREE_COLOR", "Print ANSI colors (true/false)"},
	{"nested_execution", "UNITTREE_NESTED", "Execute child suites too (true/false)"},
	{"record", "", "Store every run in the history database (true/false)"},
	{"timeout", "UNITTREE_TIMEOUT", "Time limit for each build and run command"},
}

// KeyNames returns the names of all configuration keys
func KeyNames() []string {
	names := make([]string, len(Keys))
	for i, k := range Keys {
		names[i] = k.Name
	}
	return names
}

// Get returns the value of key formatted as it is written in the config file
func (cfg *Config) Get(key string) (string, error) {
	switch key {
	case "database":
		return cfg.DatabasePath, nil
	case "column":
		return strconv.Itoa(cfg.Column), nil
	case "color":
		return strconv.FormatBool(cfg.Color), nil
	case "nested_execution":
		return strconv.FormatBool(cfg.NestedExecution), nil
	case "record":
		return strconv.FormatBool(cfg.Record), nil
	case "timeout":
		return cfg.Timeout.String(), nil
	default:
		return "", fmt.Errorf("unknown config key '%s'", key)
	}
}

// Set parses value and assigns it to key
func (cfg *Config) Set(key, value string) error {
	switch key {
	case "database":
		if value == "" {
			return fmt.Errorf("database path is empty")
		}
		cfg.DatabasePath = value
	case "column":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid value for column: %q is not a positive integer", value)
		}
		cfg.Column = n
	case "color", "nested_execution", "record":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s (use true/false or 1/0)", key)
		}
		switch key {
		case "color":
			cfg.Color = b
		case "nested_execution":
			cfg.NestedExecution = b
		default:
			cfg.Record = b
		}
	case "timeout":
		d, err := time.ParseDuration(value)
		if err != nil || d < 0 {
			return fmt.Errorf("invalid value for timeout: %q is not a duration", value)
		}
		cfg.Timeout = d
	default:
		return fmt.Errorf("unknown config key '%s'", key)
	}
	return nil
}
