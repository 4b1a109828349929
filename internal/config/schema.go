package config

import (
	"fmt"

	"github.com/chaptermill/chaptermill/internal/parser"
)

// Config holds chaptermill configuration.
// Loaded from ./config.yaml or $HOME/.chaptermill/config.yaml.
type Config struct {
	LLMProviders map[string]LLMProviderCfg `mapstructure:"llm_providers" yaml:"llm_providers"`
	Defaults     DefaultsCfg               `mapstructure:"defaults" yaml:"defaults"`
	Parse        ParseCfg                  `mapstructure:"parse" yaml:"parse"`
}

// LLMProviderCfg configures an LLM provider.
type LLMProviderCfg struct {
	Type      string  `mapstructure:"type" yaml:"type"`             // "openrouter", "openai", "mock"
	Model     string  `mapstructure:"model" yaml:"model"`           // Model name
	APIKey    string  `mapstructure:"api_key" yaml:"api_key"`       // API key (supports ${ENV_VAR} syntax)
	BaseURL   string  `mapstructure:"base_url" yaml:"base_url"`     // Override endpoint
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per minute
	Enabled   bool    `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultsCfg specifies default selections.
type DefaultsCfg struct {
	LLMProvider string `mapstructure:"llm_provider" yaml:"llm_provider"` // Default LLM provider
}

// ParseCfg controls structure detection and validation.
type ParseCfg struct {
	EnableLLMAssistance        bool    `mapstructure:"enable_llm_assistance" yaml:"enable_llm_assistance"`
	LLMConfidenceThreshold     float64 `mapstructure:"llm_confidence_threshold" yaml:"llm_confidence_threshold"`
	LLMTocDetectionThreshold   float64 `mapstructure:"llm_toc_detection_threshold" yaml:"llm_toc_detection_threshold"`
	LLMNoTocThreshold          float64 `mapstructure:"llm_no_toc_threshold" yaml:"llm_no_toc_threshold"`
	TocDetectionScoreThreshold float64 `mapstructure:"toc_detection_score_threshold" yaml:"toc_detection_score_threshold"`
	TocMaxScanLines            int     `mapstructure:"toc_max_scan_lines" yaml:"toc_max_scan_lines"`

	TocWeights parser.TocWeights `mapstructure:"toc_weights" yaml:"toc_weights"`

	MinChapterLength    int     `mapstructure:"min_chapter_length" yaml:"min_chapter_length"`
	MinSectionLength    int     `mapstructure:"min_section_length" yaml:"min_section_length"`
	MaxContentLength    int     `mapstructure:"max_content_length" yaml:"max_content_length"`
	ValidationTolerance float64 `mapstructure:"validation_tolerance" yaml:"validation_tolerance"`
	ShortMergeDirection string  `mapstructure:"short_merge_direction" yaml:"short_merge_direction"` // "forward" or "backward"

	CustomChapterPatterns []string `mapstructure:"custom_chapter_patterns" yaml:"custom_chapter_patterns"`
	CustomVolumePatterns  []string `mapstructure:"custom_volume_patterns" yaml:"custom_volume_patterns"`
	CustomSectionPatterns []string `mapstructure:"custom_section_patterns" yaml:"custom_section_patterns"`
	IgnorePatterns        []string `mapstructure:"ignore_patterns" yaml:"ignore_patterns"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LLMProviders: map[string]LLMProviderCfg{
			"openrouter": {
				Type:      "openrouter",
				Model:     "anthropic/claude-sonnet-4",
				APIKey:    "${OPENROUTER_API_KEY}",
				RateLimit: 60,
				Enabled:   true,
			},
			"openai": {
				Type:      "openai",
				Model:     "gpt-4o-mini",
				APIKey:    "${OPENAI_API_KEY}",
				RateLimit: 60,
				Enabled:   false,
			},
		},
		Defaults: DefaultsCfg{
			LLMProvider: "openrouter",
		},
		Parse: ParseCfg{
			EnableLLMAssistance:        false,
			LLMConfidenceThreshold:     0.5,
			LLMTocDetectionThreshold:   0.7,
			LLMNoTocThreshold:          0.8,
			TocDetectionScoreThreshold: 30,
			TocMaxScanLines:            300,
			TocWeights:                 parser.DefaultTocWeights(),
			MinChapterLength:           100,
			MinSectionLength:           50,
			MaxContentLength:           400,
			ValidationTolerance:        0.005,
			ShortMergeDirection:        "forward",
		},
	}
}

// GetLLMProvider returns an LLM provider config by name.
func (c *Config) GetLLMProvider(name string) (LLMProviderCfg, bool) {
	cfg, ok := c.LLMProviders[name]
	return cfg, ok
}

// EnabledLLMProviders returns all enabled LLM providers.
func (c *Config) EnabledLLMProviders() map[string]LLMProviderCfg {
	result := make(map[string]LLMProviderCfg)
	for name, cfg := range c.LLMProviders {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}

// Validate checks ranges and enumerations. It runs after unmarshal so a bad
// config file fails at startup, not mid-conversion.
func (c *Config) Validate() error {
	p := c.Parse
	for name, v := range map[string]float64{
		"llm_confidence_threshold":    p.LLMConfidenceThreshold,
		"llm_toc_detection_threshold": p.LLMTocDetectionThreshold,
		"llm_no_toc_threshold":        p.LLMNoTocThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("parse.%s must be in [0,1], got %v", name, v)
		}
	}
	if p.TocDetectionScoreThreshold < 0 || p.TocDetectionScoreThreshold > 100 {
		return fmt.Errorf("parse.toc_detection_score_threshold must be in [0,100], got %v", p.TocDetectionScoreThreshold)
	}
	if p.TocMaxScanLines < 0 {
		return fmt.Errorf("parse.toc_max_scan_lines must not be negative, got %d", p.TocMaxScanLines)
	}
	if p.ValidationTolerance < 0 {
		return fmt.Errorf("parse.validation_tolerance must not be negative, got %v", p.ValidationTolerance)
	}
	switch p.ShortMergeDirection {
	case "", string(parser.MergeForward), string(parser.MergeBackward):
	default:
		return fmt.Errorf("parse.short_merge_direction must be %q or %q, got %q",
			parser.MergeForward, parser.MergeBackward, p.ShortMergeDirection)
	}
	if c.Parse.EnableLLMAssistance {
		if _, ok := c.LLMProviders[c.Defaults.LLMProvider]; !ok {
			return fmt.Errorf("defaults.llm_provider %q is not configured", c.Defaults.LLMProvider)
		}
	}
	return nil
}
