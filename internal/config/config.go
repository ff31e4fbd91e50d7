// Package config provides centralized configuration management for the crypto history scraper.
// Configuration is layered from defaults, an optional JSON or YAML file, an optional .env
// file and CRYPTOSCRAPE_* environment variables, then validated as a whole.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix is the prefix of every environment variable read by the loader.
const EnvPrefix = "CRYPTOSCRAPE"

// DefaultStartDate is the first day of history requested when no start is given.
const DefaultStartDate = "2013-04-28"

// AppConfig represents the complete application configuration
type AppConfig struct {
	// Application metadata
	AppName string `json:"app_name" yaml:"app_name" split_words:"true" validate:"required"`
	Version string `json:"version" yaml:"version" split_words:"true"`

	// Remote data source configuration
	Source SourceConfig `json:"source" yaml:"source" envconfig:"SOURCE"`

	// Output defaults
	Output OutputConfig `json:"output" yaml:"output" envconfig:"OUTPUT"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" yaml:"logging" envconfig:"LOG"`

	// Metrics configuration
	Metrics MetricsConfig `json:"metrics" yaml:"metrics" envconfig:"METRICS"`
}

// SourceConfig configures the remote historical-data and listing endpoints
type SourceConfig struct {
	BaseURL    string `json:"base_url" yaml:"base_url" split_words:"true" validate:"required,url"`          // Historical-data site root
	ListingURL string `json:"listing_url" yaml:"listing_url" split_words:"true" validate:"required,url"` // JSON symbol listing endpoint
	UserAgent  string `json:"user_agent" yaml:"user_agent" split_words:"true" validate:"required"`        // Fixed client label sent with every request
	Timeout    string `json:"timeout" yaml:"timeout" split_words:"true"`                                     // HTTP timeout, "0s" disables it
}

// OutputConfig configures default output destination and format
type OutputConfig struct {
	Destination string `json:"destination" yaml:"destination" split_words:"true" validate:"required"`                  // "stdout" or a file path
	Format      string `json:"format" yaml:"format" split_words:"true" validate:"oneof=csv xlsx duckdb"`                    // Output format
	StartDate   string `json:"start_date" yaml:"start_date" split_words:"true" validate:"required,datetime=2006-01-02"` // Default history start
}

// LoggingConfig configures structured logging
type LoggingConfig struct {
	Level         string            `json:"level" yaml:"level" split_words:"true" validate:"oneof=debug info warn error"`
	Format        string            `json:"format" yaml:"format" split_words:"true" validate:"oneof=json text"`
	Output        string            `json:"output" yaml:"output" split_words:"true" validate:"oneof=stdout stderr file"`
	FilePath      string            `json:"file_path" yaml:"file_path" split_words:"true" validate:"required_if=Output file"`
	MaxSize       int               `json:"max_size" yaml:"max_size" split_words:"true" validate:"gte=0"`          // Maximum log file size in MB
	MaxBackups    int               `json:"max_backups" yaml:"max_backups" split_words:"true" validate:"gte=0"` // Maximum log file backups
	MaxAge        int               `json:"max_age" yaml:"max_age" split_words:"true" validate:"gte=0"`             // Maximum log file age in days
	Compress      bool              `json:"compress" yaml:"compress" split_words:"true"`
	ContextFields map[string]string `json:"context_fields" yaml:"context_fields" ignored:"true"`
}

// MetricsConfig configures the run metrics textfile
type MetricsConfig struct {
	Enabled      bool   `json:"enabled" yaml:"enabled" split_words:"true"`
	TextfilePath string `json:"textfile_path" yaml:"textfile_path" split_words:"true" validate:"required_if=Enabled true"`
}

// ConfigManager handles configuration loading and validation
type ConfigManager struct {
	configPath string
	envFile    string
	logger     *slog.Logger
	validate   *validator.Validate
}

// NewConfigManager creates a new configuration manager
func NewConfigManager(configPath string, logger *slog.Logger) *ConfigManager {
	if logger == nil {
		logger = slog.Default()
	}

	return &ConfigManager{
		configPath: configPath,
		envFile:    ".env",
		logger:     logger,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// WithEnvFile overrides the dotenv file consulted before reading the environment.
// An empty path disables dotenv loading.
func (cm *ConfigManager) WithEnvFile(path string) *ConfigManager {
	cm.envFile = path
	return cm
}

// LoadConfig loads configuration from multiple sources with priority order:
// 1. Environment variables, including those from the .env file (highest priority)
// 2. Configuration file
// 3. Default values (lowest priority)
func (cm *ConfigManager) LoadConfig(ctx context.Context) (*AppConfig, error) {
	config := DefaultConfig()

	if cm.configPath != "" {
		if err := cm.loadFromFile(config); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := cm.loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cm.validateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	cm.logger.DebugContext(ctx, "configuration loaded",
		"config_path", cm.configPath,
		"base_url", config.Source.BaseURL,
		"log_level", config.Logging.Level)

	return config, nil
}

// loadFromFile loads configuration from a JSON or YAML file, chosen by extension
func (cm *ConfigManager) loadFromFile(config *AppConfig) error {
	if _, err := os.Stat(cm.configPath); os.IsNotExist(err) {
		cm.logger.Debug("config file does not exist, using defaults", "path", cm.configPath)
		return nil
	}

	data, err := os.ReadFile(cm.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cm.configPath, err)
	}

	switch strings.ToLower(filepath.Ext(cm.configPath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	default:
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", cm.configPath, err)
	}

	cm.logger.Debug("loaded configuration from file", "path", cm.configPath)
	return nil
}

// loadFromEnv applies the optional dotenv file, then CRYPTOSCRAPE_* variables
func (cm *ConfigManager) loadFromEnv(config *AppConfig) error {
	if cm.envFile != "" {
		if _, err := os.Stat(cm.envFile); err == nil {
			if err := godotenv.Load(cm.envFile); err != nil {
				return fmt.Errorf("failed to load env file %s: %w", cm.envFile, err)
			}
			cm.logger.Debug("loaded env file", "path", cm.envFile)
		}
	}

	if err := envconfig.Process(EnvPrefix, config); err != nil {
		return err
	}

	cm.logger.Debug("loaded configuration from environment variables")
	return nil
}

// validateConfig validates the configuration for consistency and required fields
func (cm *ConfigManager) validateConfig(config *AppConfig) error {
	var problems []string

	if err := cm.validate.Struct(config); err != nil {
		validationErrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		for _, fe := range validationErrors {
			problems = append(problems, describeFieldError(fe))
		}
	}

	if config.Source.Timeout != "" {
		if d, err := time.ParseDuration(config.Source.Timeout); err != nil {
			problems = append(problems, fmt.Sprintf("source.timeout is not a valid duration: %v", err))
		} else if d < 0 {
			problems = append(problems, "source.timeout cannot be negative")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation errors:\n- %s", strings.Join(problems, "\n- "))
	}

	return nil
}

// describeFieldError turns a validator field error into a dotted-path message
func describeFieldError(fe validator.FieldError) string {
	path := strings.ToLower(strings.TrimPrefix(fe.Namespace(), "AppConfig."))
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", path)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", path, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "url":
		return fmt.Sprintf("%s must be a valid URL", path)
	case "datetime":
		return fmt.Sprintf("%s must use the %s layout", path, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", path, fe.Tag())
	}
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *AppConfig {
	return &AppConfig{
		AppName: "cryptoscrape",
		Version: "1.0.0",
		Source: SourceConfig{
			BaseURL:    "https://coinmarketcap.com",
			ListingURL: "https://api.coinmarketcap.com/v1/ticker/?limit=0",
			UserAgent:  "crypto-scraper/0.0.1",
			Timeout:    "0s",
		},
		Output: OutputConfig{
			Destination: "stdout",
			Format:      "csv",
			StartDate:   DefaultStartDate,
		},
		Logging: LoggingConfig{
			Level:      "warn",
			Format:     "text",
			Output:     "stderr",
			FilePath:   "",
			MaxSize:    100, // 100MB
			MaxBackups: 5,
			MaxAge:     30, // 30 days
			Compress:   true,
			ContextFields: map[string]string{
				"service": "cryptoscrape",
			},
		},
		Metrics: MetricsConfig{
			Enabled:      false,
			TextfilePath: "",
		},
	}
}

// HTTPTimeout returns the parsed source timeout; zero means no timeout.
func (c SourceConfig) HTTPTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}
