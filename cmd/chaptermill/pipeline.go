package main

import (
	"fmt"
	"log/slog"

	"github.com/chaptermill/chaptermill/internal/assistant"
	"github.com/chaptermill/chaptermill/internal/config"
	"github.com/chaptermill/chaptermill/internal/hybrid"
	"github.com/chaptermill/chaptermill/internal/llmcall"
	"github.com/chaptermill/chaptermill/internal/parser"
	"github.com/chaptermill/chaptermill/internal/providers"
)

// pipeline bundles everything one conversion needs.
type pipeline struct {
	cfg      *config.Config
	parser   *hybrid.Parser
	recorder *llmcall.Recorder
}

// newPipeline loads config and wires the rule parser, the provider
// registry, and the assistant into a hybrid parser.
func newPipeline(logger *slog.Logger) (*pipeline, error) {
	cm, err := config.NewManager(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg := cm.Get()

	rule, err := parser.New(cfg.ToParserOptions(), logger)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern configuration: %w", err)
	}

	recorder := llmcall.NewRecorder()
	var asst *assistant.Assistant
	if cfg.Parse.EnableLLMAssistance {
		registry, err := providers.NewRegistry(cfg.ToProviderRegistryConfig())
		if err != nil {
			return nil, err
		}
		name := cfg.Defaults.LLMProvider
		client, ok := registry.Client(name)
		if !ok {
			return nil, fmt.Errorf("llm provider %q is not enabled", name)
		}
		limiter, _ := registry.Limiter(name)

		asst, err = assistant.New(assistant.Options{
			Client:           client,
			Limiter:          limiter,
			Recorder:         recorder,
			Logger:           logger,
			MaxContentLength: cfg.Parse.MaxContentLength,
		})
		if err != nil {
			return nil, err
		}
		logger.Debug("llm assistance enabled", "provider", name)
	}

	return &pipeline{
		cfg:      cfg,
		parser:   hybrid.New(rule, asst, cfg.ToHybridConfig(), logger),
		recorder: recorder,
	}, nil
}
