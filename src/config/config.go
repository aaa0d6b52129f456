package config

import (
	"fmt"
	"os"
	"strings"

	"hypersync/src/models"
	"hypersync/src/utils"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyDefaults()

	// 3. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// applyDefaults fills optional fields the YAML may omit.
func (c *Config) applyDefaults() {
	if len(c.Timeframes) == 0 {
		c.Timeframes = append(c.Timeframes, utils.DefaultTimeframes...)
	}
	if c.Account.PollIntervalSeconds <= 0 {
		c.Account.PollIntervalSeconds = 30
	}
	if c.Account.EquityHistorySize <= 0 {
		c.Account.EquityHistorySize = 1000
	}
	if c.Storage.RetentionDays <= 0 {
		c.Storage.RetentionDays = 30
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	// Validate App configuration (Flattened)
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Validate Server configuration (Flattened)
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}

	// Validate Feed configuration
	if c.Feed.URL == "" {
		return fmt.Errorf("feed url cannot be empty")
	}
	if !strings.HasPrefix(c.Feed.URL, "ws://") && !strings.HasPrefix(c.Feed.URL, "wss://") {
		return fmt.Errorf("feed url must be a ws:// or wss:// endpoint")
	}
	if len(c.Feed.DefaultSymbols) == 0 {
		return fmt.Errorf("feed must have at least one default symbol")
	}

	// Validate Exchange configuration
	if c.Exchange.InfoURL == "" {
		return fmt.Errorf("exchange info url cannot be empty")
	}
	if c.Exchange.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if c.Exchange.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	// Validate Storage configuration
	if c.Storage.DBPath == "" {
		return fmt.Errorf("candle cache path cannot be empty")
	}

	// Validate Account configuration
	if c.Account.Address == "" {
		return fmt.Errorf("account address cannot be empty")
	}

	// Validate timeframes against the known portfolio windows
	known := make(map[string]bool, len(utils.DefaultTimeframes))
	for _, tf := range utils.DefaultTimeframes {
		known[tf] = true
	}
	for i, tf := range c.Timeframes {
		if tf == "" {
			return fmt.Errorf("timeframe %d cannot be empty", i)
		}
		if !known[tf] {
			return fmt.Errorf("unknown timeframe '%s'", tf)
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
