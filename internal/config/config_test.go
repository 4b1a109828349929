package config

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/chaptermill/chaptermill/internal/parser"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Parse.EnableLLMAssistance {
		t.Error("LLM assistance must default to off")
	}
	if cfg.Parse.LLMConfidenceThreshold != 0.5 {
		t.Errorf("llm_confidence_threshold = %v, want 0.5", cfg.Parse.LLMConfidenceThreshold)
	}
	if cfg.Parse.TocMaxScanLines != 300 {
		t.Errorf("toc_max_scan_lines = %v, want 300", cfg.Parse.TocMaxScanLines)
	}
	if cfg.Parse.ShortMergeDirection != "forward" {
		t.Errorf("short_merge_direction = %q, want forward", cfg.Parse.ShortMergeDirection)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
	if _, ok := cfg.GetLLMProvider("openrouter"); !ok {
		t.Error("openrouter provider missing from defaults")
	}
	if enabled := cfg.EnabledLLMProviders(); len(enabled) != 1 {
		t.Errorf("enabled providers = %d, want 1", len(enabled))
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"threshold above one", func(c *Config) { c.Parse.LLMConfidenceThreshold = 1.5 }},
		{"negative tolerance", func(c *Config) { c.Parse.ValidationTolerance = -0.1 }},
		{"bad merge direction", func(c *Config) { c.Parse.ShortMergeDirection = "sideways" }},
		{"score threshold above range", func(c *Config) { c.Parse.TocDetectionScoreThreshold = 200 }},
		{"assistance on with unknown provider", func(c *Config) {
			c.Parse.EnableLLMAssistance = true
			c.Defaults.LLMProvider = "nope"
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Setenv("CHAPTERMILL_TEST_KEY", "secret123")

	if got := ResolveEnvVars("${CHAPTERMILL_TEST_KEY}"); got != "secret123" {
		t.Errorf("resolved = %q, want secret123", got)
	}
	if got := ResolveEnvVars("plain-value"); got != "plain-value" {
		t.Errorf("plain value changed: %q", got)
	}
	if got := ResolveEnvVars("${CHAPTERMILL_UNSET_KEY}"); got != "" {
		t.Errorf("unset variable should expand empty, got %q", got)
	}
}

func TestToProviderRegistryConfigResolvesKeys(t *testing.T) {
	t.Setenv("CHAPTERMILL_TEST_KEY", "resolved-key")

	cfg := DefaultConfig()
	p := cfg.LLMProviders["openrouter"]
	p.APIKey = "${CHAPTERMILL_TEST_KEY}"
	cfg.LLMProviders["openrouter"] = p

	reg := cfg.ToProviderRegistryConfig()
	if got := reg.LLMProviders["openrouter"].APIKey; got != "resolved-key" {
		t.Errorf("api key = %q, want resolved-key", got)
	}
}

func TestConverters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Parse.TocDetectionScoreThreshold = 25
	cfg.Parse.MinChapterLength = 200
	cfg.Parse.ShortMergeDirection = "backward"

	popts := cfg.ToParserOptions()
	if popts.Toc.ScoreThreshold != 25 {
		t.Errorf("parser toc threshold = %v, want 25", popts.Toc.ScoreThreshold)
	}
	if popts.Toc.Weights != parser.DefaultTocWeights() {
		t.Error("toc weights not carried through")
	}

	vopts := cfg.ToValidateOptions()
	if vopts.MinChapterLength != 200 || vopts.Direction != parser.MergeBackward {
		t.Errorf("validate options = %+v", vopts)
	}

	hcfg := cfg.ToHybridConfig()
	if hcfg.TocScoreThreshold != 25 || hcfg.ConfidenceThreshold != 0.5 {
		t.Errorf("hybrid config = %+v", hcfg)
	}
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("written config does not parse: %v", err)
	}
	if cfg.Parse.LLMConfidenceThreshold != 0.5 {
		t.Errorf("round-tripped threshold = %v, want 0.5", cfg.Parse.LLMConfidenceThreshold)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("round-tripped config must validate: %v", err)
	}
}
