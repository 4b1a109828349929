package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newChatServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *OpenRouterClient) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewOpenRouterClient(OpenRouterConfig{
		APIKey:       "test-key",
		BaseURL:      srv.URL,
		DefaultModel: "test/model",
		Timeout:      5 * time.Second,
	})
	return srv, client
}

func chatResponse(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":    "resp-1",
		"model": "test/model",
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
		"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})
	return string(b)
}

func TestOpenRouterChat(t *testing.T) {
	_, client := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(chatResponse("hello")))
	})

	result, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if !result.Success || result.Content != "hello" {
		t.Errorf("result = %+v", result)
	}
	if result.TotalTokens != 15 {
		t.Errorf("TotalTokens = %d", result.TotalTokens)
	}
}

func TestOpenRouterSingleAttempt(t *testing.T) {
	var calls atomic.Int64
	_, client := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	})

	result, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatalf("expected error for 502 response")
	}
	if result.Success || result.ErrorType != ErrorTypeTransport {
		t.Errorf("result = %+v", result)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server called %d times, want exactly 1 (no retry loop)", got)
	}
}

func TestOpenRouterStructuredOutputRecovery(t *testing.T) {
	fenced := "```json\n{\"value\": 42}\n```"
	_, client := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatResponse(fenced)))
	})

	result, err := client.Chat(context.Background(), &ChatRequest{
		Messages:       []Message{{Role: "user", Content: "hi"}},
		ResponseFormat: &ResponseFormat{Type: "json_schema"},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if !result.Success {
		t.Fatalf("structured parse failed: %s", result.ErrorMessage)
	}
	var doc map[string]any
	if err := json.Unmarshal(result.ParsedJSON, &doc); err != nil {
		t.Fatalf("ParsedJSON: %v", err)
	}
	if doc["value"] != float64(42) {
		t.Errorf("doc = %v", doc)
	}
}

func TestOpenRouterMalformedStructuredOutput(t *testing.T) {
	_, client := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatResponse("I could not produce JSON, sorry.")))
	})

	result, err := client.Chat(context.Background(), &ChatRequest{
		Messages:       []Message{{Role: "user", Content: "hi"}},
		ResponseFormat: &ResponseFormat{Type: "json_schema"},
	})
	if err != nil {
		t.Fatalf("Chat returned transport error for parse failure: %v", err)
	}
	if result.Success || result.ErrorType != ErrorTypeParse {
		t.Errorf("result = %+v", result)
	}
}

func TestRegistryBuildsEnabledProviders(t *testing.T) {
	reg, err := NewRegistry(RegistryConfig{
		LLMProviders: map[string]LLMProviderConfig{
			"primary":  {Type: "openrouter", Model: "test/model", APIKey: "k", Enabled: true},
			"disabled": {Type: "openai", Enabled: false},
			"test":     {Type: "mock", Enabled: true},
		},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if _, ok := reg.Client("primary"); !ok {
		t.Errorf("primary client missing")
	}
	if _, ok := reg.Client("disabled"); ok {
		t.Errorf("disabled client built")
	}
	if _, ok := reg.Limiter("test"); !ok {
		t.Errorf("limiter missing for mock client")
	}
}

func TestRegistryUnknownType(t *testing.T) {
	_, err := NewRegistry(RegistryConfig{
		LLMProviders: map[string]LLMProviderConfig{
			"bad": {Type: "telegraph", Enabled: true},
		},
	})
	if err == nil {
		t.Fatalf("expected error for unknown provider type")
	}
}
