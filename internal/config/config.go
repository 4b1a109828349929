// Package config loads and watches chaptermill configuration: structure
// detection thresholds, pattern overrides, and LLM provider credentials.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/chaptermill/chaptermill/internal/hybrid"
	"github.com/chaptermill/chaptermill/internal/parser"
	"github.com/chaptermill/chaptermill/internal/providers"
)

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	defaults := DefaultConfig()
	viper.SetDefault("llm_providers", defaults.LLMProviders)
	viper.SetDefault("defaults", defaults.Defaults)
	viper.SetDefault("parse", defaults.Parse)

	// Environment variables with CHAPTERMILL_ prefix
	viper.SetEnvPrefix("CHAPTERMILL")
	viper.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.chaptermill")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	viper.WatchConfig()
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	pattern := regexp.MustCompile(`\$\{([^}]+)\}`)
	return pattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// ToProviderRegistryConfig converts the config to a format suitable for
// providers.Registry. It resolves all ${ENV_VAR} references in API keys.
func (c *Config) ToProviderRegistryConfig() providers.RegistryConfig {
	cfg := providers.RegistryConfig{
		LLMProviders: make(map[string]providers.LLMProviderConfig),
	}

	for name, llm := range c.LLMProviders {
		cfg.LLMProviders[name] = providers.LLMProviderConfig{
			Type:      llm.Type,
			Model:     llm.Model,
			APIKey:    ResolveEnvVars(llm.APIKey),
			BaseURL:   llm.BaseURL,
			RateLimit: llm.RateLimit,
			Enabled:   llm.Enabled,
		}
	}

	return cfg
}

// ToParserOptions converts the parse settings for the rule parser.
func (c *Config) ToParserOptions() parser.Options {
	return parser.Options{
		Toc: parser.TocConfig{
			ScoreThreshold: c.Parse.TocDetectionScoreThreshold,
			MaxScanLines:   c.Parse.TocMaxScanLines,
			Weights:        c.Parse.TocWeights,
		},
		Patterns: parser.LibraryOptions{
			CustomChapterPatterns: c.Parse.CustomChapterPatterns,
			CustomVolumePatterns:  c.Parse.CustomVolumePatterns,
			CustomSectionPatterns: c.Parse.CustomSectionPatterns,
			IgnorePatterns:        c.Parse.IgnorePatterns,
		},
	}
}

// ToValidateOptions converts the parse settings for the validator.
func (c *Config) ToValidateOptions() parser.ValidateOptions {
	return parser.ValidateOptions{
		MinChapterLength: c.Parse.MinChapterLength,
		MinSectionLength: c.Parse.MinSectionLength,
		Direction:        parser.MergeDirection(c.Parse.ShortMergeDirection),
		Tolerance:        c.Parse.ValidationTolerance,
	}
}

// ToHybridConfig converts the parse settings for the hybrid parser.
func (c *Config) ToHybridConfig() hybrid.Config {
	return hybrid.Config{
		EnableLLM:             c.Parse.EnableLLMAssistance,
		ConfidenceThreshold:   c.Parse.LLMConfidenceThreshold,
		TocDetectionThreshold: c.Parse.LLMTocDetectionThreshold,
		NoTocThreshold:        c.Parse.LLMNoTocThreshold,
		TocScoreThreshold:     c.Parse.TocDetectionScoreThreshold,
		TocScanLines:          c.Parse.TocMaxScanLines,
	}
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Chaptermill configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export OPENROUTER_API_KEY=xxx OPENAI_API_KEY=xxx

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
