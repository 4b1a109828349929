package assistant

import (
	"sync"

	"github.com/chaptermill/chaptermill/internal/providers"
)

// Stats is a point-in-time snapshot of assistant usage. It carries no lock
// and copies freely.
type Stats struct {
	TotalCalls       int            `json:"total_calls"`
	FailedCalls      int            `json:"failed_calls"`
	PromptTokens     int            `json:"prompt_tokens"`
	CompletionTokens int            `json:"completion_tokens"`
	TotalCostUSD     float64        `json:"total_cost_usd"`
	ByOperation      map[string]int `json:"by_operation"`
}

// statsTracker accumulates usage behind a mutex; callers only ever see
// detached Stats snapshots.
type statsTracker struct {
	mu sync.Mutex
	s  Stats
}

func (t *statsTracker) record(op string, result *providers.ChatResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.s.ByOperation == nil {
		t.s.ByOperation = make(map[string]int)
	}
	t.s.TotalCalls++
	t.s.ByOperation[op]++
	if result == nil {
		t.s.FailedCalls++
		return
	}
	t.s.PromptTokens += result.PromptTokens
	t.s.CompletionTokens += result.CompletionTokens
	t.s.TotalCostUSD += result.CostUSD
	if !result.Success {
		t.s.FailedCalls++
	}
}

func (t *statsTracker) snapshot() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := t.s
	out.ByOperation = make(map[string]int, len(t.s.ByOperation))
	for k, v := range t.s.ByOperation {
		out.ByOperation[k] = v
	}
	return out
}
