// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the CLI configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	// Connections
	APIKey      string `json:"api_key,omitempty"`      // Gemini API key
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL

	// Content
	CatalogPath string `json:"catalog,omitempty"` // Path to a custom catalog YAML file

	// Pipeline behavior
	Mode             string `json:"mode,omitempty"`              // generate, evaluate, or full
	BatchSize        int    `json:"batch_size,omitempty"`        // Concurrent units per wave
	QualityThreshold int    `json:"quality_threshold,omitempty"` // Minimum passing score (1-10)
	MaxRetries       int    `json:"max_retries,omitempty"`       // Attempts per model call
	BatchDelayMS     int    `json:"batch_delay_ms,omitempty"`    // Pause between waves, in milliseconds
	Order            string `json:"order,omitempty"`             // topdown or bottomup

	// Behavior
	Verbose bool `json:"verbose,omitempty"` // Print detailed progress information
	Port    int  `json:"port,omitempty"`    // HTTP server port
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields since those are handled
// by CLI flag validation after merging.
func (c *Config) Validate() error {
	if c.BatchSize < 0 {
		return fmt.Errorf("config error: 'batch_size' must be non-negative")
	}
	if c.QualityThreshold < 0 || c.QualityThreshold > 10 {
		return fmt.Errorf("config error: 'quality_threshold' must be between 0 and 10")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("config error: 'max_retries' must be non-negative")
	}
	if c.BatchDelayMS < 0 {
		return fmt.Errorf("config error: 'batch_delay_ms' must be non-negative")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be a valid TCP port")
	}

	switch c.Mode {
	case "", "generate", "evaluate", "full":
	default:
		return fmt.Errorf("config error: 'mode' must be generate, evaluate, or full")
	}
	switch c.Order {
	case "", "topdown", "bottomup":
	default:
		return fmt.Errorf("config error: 'order' must be topdown or bottomup")
	}

	if c.CatalogPath != "" {
		if _, err := os.Stat(c.CatalogPath); os.IsNotExist(err) {
			return fmt.Errorf("config error: catalog file not found: %s", c.CatalogPath)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with zero-valued fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.CatalogPath == "" {
		result.CatalogPath = defaults.CatalogPath
	}
	if result.Mode == "" {
		result.Mode = defaults.Mode
	}
	if result.Order == "" {
		result.Order = defaults.Order
	}
	if result.BatchSize == 0 {
		result.BatchSize = defaults.BatchSize
	}
	if result.QualityThreshold == 0 {
		result.QualityThreshold = defaults.QualityThreshold
	}
	if result.MaxRetries == 0 {
		result.MaxRetries = defaults.MaxRetries
	}
	if result.BatchDelayMS == 0 {
		result.BatchDelayMS = defaults.BatchDelayMS
	}
	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if !result.Verbose {
		result.Verbose = defaults.Verbose
	}

	return result
}
