package llmcall

import "sync"

// Recorder keeps an in-memory log of LLM calls for one conversion job.
// Nothing is persisted; the record feeds the diagnostics output.
type Recorder struct {
	mu    sync.Mutex
	calls []*Call
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends a call. Nil calls are ignored.
func (r *Recorder) Record(c *Call) {
	if c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

// Calls returns a snapshot of recorded calls in order.
func (r *Recorder) Calls() []*Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Totals sums token usage across all recorded calls.
func (r *Recorder) Totals() (calls, inputTokens, outputTokens int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		calls++
		inputTokens += c.InputTokens
		outputTokens += c.OutputTokens
	}
	return calls, inputTokens, outputTokens
}
