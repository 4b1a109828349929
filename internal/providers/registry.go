package providers

import (
	"fmt"
	"time"
)

// LLMProviderConfig configures one named LLM provider.
type LLMProviderConfig struct {
	Type      string  // "openrouter", "openai", "mock"
	Model     string  // default model name
	APIKey    string  // resolved key (env references already expanded)
	BaseURL   string  // optional endpoint override
	RateLimit float64 // requests per minute
	Enabled   bool
}

// RegistryConfig holds all provider configurations.
type RegistryConfig struct {
	LLMProviders map[string]LLMProviderConfig
}

// Registry constructs and caches clients with their rate limiters.
type Registry struct {
	clients  map[string]LLMClient
	limiters map[string]*RateLimiter
}

// NewRegistry builds clients for every enabled provider.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	r := &Registry{
		clients:  make(map[string]LLMClient),
		limiters: make(map[string]*RateLimiter),
	}

	for name, pc := range cfg.LLMProviders {
		if !pc.Enabled {
			continue
		}
		client, err := buildClient(pc)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", name, err)
		}
		r.clients[name] = client
		r.limiters[name] = NewRateLimiter(int(pc.RateLimit))
	}

	return r, nil
}

func buildClient(pc LLMProviderConfig) (LLMClient, error) {
	switch pc.Type {
	case "openrouter":
		return NewOpenRouterClient(OpenRouterConfig{
			APIKey:       pc.APIKey,
			BaseURL:      pc.BaseURL,
			DefaultModel: pc.Model,
			Timeout:      120 * time.Second,
		}), nil
	case "openai":
		return NewOpenAIClient(OpenAIConfig{
			APIKey:       pc.APIKey,
			BaseURL:      pc.BaseURL,
			DefaultModel: pc.Model,
		}), nil
	case "mock":
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", pc.Type)
	}
}

// Client returns a client by name.
func (r *Registry) Client(name string) (LLMClient, bool) {
	c, ok := r.clients[name]
	return c, ok
}

// Limiter returns the rate limiter paired with a named client.
func (r *Registry) Limiter(name string) (*RateLimiter, bool) {
	l, ok := r.limiters[name]
	return l, ok
}

// Names lists the registered provider names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	return names
}
