// config.go - Configuration management for the signaling service
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"semaphore/internal/circuits"
)

// Config represents the daemon configuration
type Config struct {
	// Service settings
	ListenAddr       string `json:"listen_addr"`
	DefaultTreeDepth int    `json:"default_tree_depth"`
	PreloadDepths    []int  `json:"preload_depths"`

	// File paths
	KeyDir string `json:"key_dir"`

	// Logging
	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`

	// Performance
	TimeoutSeconds int `json:"timeout_seconds"`

	// Rate limiting
	RateLimitBurst  int `json:"rate_limit_burst"`
	RateLimitRefill int `json:"rate_limit_refill"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:       ":8080",
		DefaultTreeDepth: 16,
		PreloadDepths:    []int{16},
		KeyDir:           "keys",
		LogLevel:         "info",
		LogFile:          "",
		TimeoutSeconds:   30,
		RateLimitBurst:   20,
		RateLimitRefill:  10,
	}
}

// LoadConfig loads configuration from file or creates default
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); err == nil {
		file, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer file.Close()

		var config Config
		if err := json.NewDecoder(file).Decode(&config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
		return &config, nil
	}

	// Create default config and save it
	config := DefaultConfig()
	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save default config: %w", err)
	}
	return config, nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if !circuits.SupportedDepth(c.DefaultTreeDepth) {
		return fmt.Errorf("default_tree_depth must be between %d and %d",
			circuits.MinTreeDepth, circuits.MaxTreeDepth)
	}
	for _, depth := range c.PreloadDepths {
		if !circuits.SupportedDepth(depth) {
			return fmt.Errorf("preload depth %d outside supported range", depth)
		}
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be positive")
	}
	if c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate_limit_burst must be positive")
	}
	if c.RateLimitRefill <= 0 {
		return fmt.Errorf("rate_limit_refill must be positive")
	}
	return nil
}
