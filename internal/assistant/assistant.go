// Package assistant implements the narrowly-scoped LLM query operations
// used to resolve ambiguous structure: heading confirmation, title
// generation, disambiguation, format identification, structure inference,
// and table-of-contents verdicts.
//
// Every operation is synchronous, best-effort, and single-attempt. Failures
// are reported as ErrTransport or ErrBadResponse and the caller falls back
// to the rule-only result; nothing here is fatal. A response that omits its
// confidence value is treated as confidence 0 (untrusted).
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chaptermill/chaptermill/internal/book"
	"github.com/chaptermill/chaptermill/internal/llmcall"
	"github.com/chaptermill/chaptermill/internal/prompts/confirm_headings"
	"github.com/chaptermill/chaptermill/internal/prompts/detect_toc"
	"github.com/chaptermill/chaptermill/internal/prompts/disambiguate"
	"github.com/chaptermill/chaptermill/internal/prompts/identify_format"
	"github.com/chaptermill/chaptermill/internal/prompts/infer_structure"
	"github.com/chaptermill/chaptermill/internal/prompts/title_batch"
	"github.com/chaptermill/chaptermill/internal/providers"
)

// Sentinel errors for the two failure modes at the assistant boundary.
var (
	ErrTransport   = errors.New("llm transport failure")
	ErrBadResponse = errors.New("llm response parse failure")
)

const (
	defaultTemperature = 0.1
	titleTemperature   = 0.3 // titles benefit from a little variety
	defaultMaxTokens   = 4096

	// DefaultMaxContentLength bounds the excerpt sent per chapter for
	// title generation.
	DefaultMaxContentLength = 400
)

// Options configures an Assistant.
type Options struct {
	Client           providers.LLMClient
	Limiter          *providers.RateLimiter // optional
	Recorder         *llmcall.Recorder      // optional
	Logger           *slog.Logger
	Model            string // uses the client default if empty
	MaxContentLength int    // runes per excerpt; defaults to 400
	JobID            string
}

// Assistant issues LLM queries and tracks per-instance statistics. One
// instance serves one conversion job; it is not meant for concurrent use.
type Assistant struct {
	client   providers.LLMClient
	limiter  *providers.RateLimiter
	recorder *llmcall.Recorder
	logger   *slog.Logger
	model    string
	maxLen   int
	jobID    string
	stats    statsTracker
}

// New creates an Assistant.
func New(opts Options) (*Assistant, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("assistant requires an LLM client")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxContentLength <= 0 {
		opts.MaxContentLength = DefaultMaxContentLength
	}
	return &Assistant{
		client:   opts.Client,
		limiter:  opts.Limiter,
		recorder: opts.Recorder,
		logger:   opts.Logger,
		model:    opts.Model,
		maxLen:   opts.MaxContentLength,
		jobID:    opts.JobID,
	}, nil
}

// Stats returns a snapshot of the running statistics.
func (a *Assistant) Stats() Stats {
	return a.stats.snapshot()
}

// Excerpt truncates chapter content to the configured sampling length.
func (a *Assistant) Excerpt(body string) string {
	count := 0
	for i := range body {
		if count == a.maxLen {
			return body[:i]
		}
		count++
	}
	return body
}

// ConfirmHeadings asks whether each low-confidence candidate is a genuine
// heading. Decisions correlate to inputs by the echoed 1-based index.
func (a *Assistant) ConfirmHeadings(ctx context.Context, lang book.Language, candidates []confirm_headings.Candidate) (*confirm_headings.Result, error) {
	if len(candidates) == 0 {
		return &confirm_headings.Result{}, nil
	}
	raw, err := a.call(ctx, "confirm_headings", defaultTemperature,
		confirm_headings.SystemPrompt,
		confirm_headings.BuildUserPrompt(lang, candidates),
		confirm_headings.BuildResponseFormat())
	if err != nil {
		return nil, err
	}
	result, perr := confirm_headings.ParseResult(raw)
	if perr != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, perr)
	}
	return result, nil
}

// GenerateTitle produces a title for a single chapter. The batch path is
// preferred whenever more than one chapter needs a title.
func (a *Assistant) GenerateTitle(ctx context.Context, lang book.Language, numberToken, excerpt string) (string, float64, error) {
	result, err := a.GenerateTitlesBatch(ctx, lang, []title_batch.Entry{
		{Index: 1, NumberToken: numberToken, Excerpt: excerpt},
	})
	if err != nil {
		return "", 0, err
	}
	t, ok := result[1]
	if !ok {
		return "", 0, fmt.Errorf("%w: response missing index 1", ErrBadResponse)
	}
	return t.Title, confidenceOf(t.Confidence), nil
}

// GenerateTitlesBatch produces titles for up to MaxBatchSize chapters per
// call, splitting larger inputs into multiple calls. The returned map is
// keyed by the caller's 1-based entry index; entries the model omitted are
// absent.
func (a *Assistant) GenerateTitlesBatch(ctx context.Context, lang book.Language, entries []title_batch.Entry) (map[int]title_batch.Title, error) {
	out := make(map[int]title_batch.Title, len(entries))
	for start := 0; start < len(entries); start += title_batch.MaxBatchSize {
		end := min(start+title_batch.MaxBatchSize, len(entries))
		batch := entries[start:end]

		raw, err := a.call(ctx, "title_batch", titleTemperature,
			title_batch.SystemPrompt,
			title_batch.BuildUserPrompt(lang, batch),
			title_batch.BuildResponseFormat())
		if err != nil {
			return nil, err
		}
		result, perr := title_batch.ParseResult(raw)
		if perr != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadResponse, perr)
		}

		valid := make(map[int]bool, len(batch))
		for _, e := range batch {
			valid[e.Index] = true
		}
		// Correlate by the echoed index, never by position: the model may
		// reorder or omit entries.
		for _, t := range result.Titles {
			if !valid[t.Index] {
				a.logger.Warn("title response carried unknown index", "index", t.Index)
				continue
			}
			out[t.Index] = t
		}
	}
	return out, nil
}

// DetectToc asks for a ToC verdict over the document head.
func (a *Assistant) DetectToc(ctx context.Context, lang book.Language, head string) (*detect_toc.Result, error) {
	raw, err := a.call(ctx, "detect_toc", defaultTemperature,
		detect_toc.SystemPrompt,
		detect_toc.BuildUserPrompt(lang, head),
		detect_toc.BuildResponseFormat())
	if err != nil {
		return nil, err
	}
	result, perr := detect_toc.ParseResult(raw)
	if perr != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, perr)
	}
	return result, nil
}

// Disambiguate picks among conflicting interpretations of one span.
func (a *Assistant) Disambiguate(ctx context.Context, lang book.Language, span, surrounding string, options []disambiguate.Interpretation) (*disambiguate.Result, error) {
	raw, err := a.call(ctx, "disambiguate", defaultTemperature,
		disambiguate.SystemPrompt,
		disambiguate.BuildUserPrompt(lang, span, surrounding, options),
		disambiguate.BuildResponseFormat())
	if err != nil {
		return nil, err
	}
	result, perr := disambiguate.ParseResult(raw)
	if perr != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, perr)
	}
	if result.Choice < 1 || result.Choice > len(options)+1 {
		return nil, fmt.Errorf("%w: choice %d out of range", ErrBadResponse, result.Choice)
	}
	return result, nil
}

// IdentifyFormat classifies the document's heading convention.
func (a *Assistant) IdentifyFormat(ctx context.Context, lang book.Language, sample string) (*identify_format.Result, error) {
	raw, err := a.call(ctx, "identify_format", defaultTemperature,
		identify_format.SystemPrompt,
		identify_format.BuildUserPrompt(lang, sample),
		identify_format.BuildResponseFormat())
	if err != nil {
		return nil, err
	}
	result, perr := identify_format.ParseResult(raw)
	if perr != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, perr)
	}
	return result, nil
}

// InferStructure proposes a chapter segmentation for an unmarked sample.
func (a *Assistant) InferStructure(ctx context.Context, lang book.Language, sample string) (*infer_structure.Result, error) {
	raw, err := a.call(ctx, "infer_structure", defaultTemperature,
		infer_structure.SystemPrompt,
		infer_structure.BuildUserPrompt(lang, sample),
		infer_structure.BuildResponseFormat())
	if err != nil {
		return nil, err
	}
	result, perr := infer_structure.ParseResult(raw)
	if perr != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, perr)
	}
	return result, nil
}

// call issues one single-attempt chat request and records it.
func (a *Assistant) call(ctx context.Context, op string, temperature float64, system, user string, rf *providers.ResponseFormat) (json.RawMessage, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransport, err)
		}
	}

	req := &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Model:          a.model,
		Temperature:    temperature,
		MaxTokens:      defaultMaxTokens,
		ResponseFormat: rf,
	}

	result, err := a.client.Chat(ctx, req)
	a.record(op, temperature, result)
	a.stats.record(op, result)

	if err != nil {
		a.logger.Warn("assistant call failed", "operation", op, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if !result.Success || len(result.ParsedJSON) == 0 {
		a.logger.Warn("assistant response unusable", "operation", op, "error_type", result.ErrorType)
		return nil, fmt.Errorf("%w: %s", ErrBadResponse, result.ErrorMessage)
	}
	return result.ParsedJSON, nil
}

func (a *Assistant) record(op string, temperature float64, result *providers.ChatResult) {
	if a.recorder == nil {
		return
	}
	a.recorder.Record(llmcall.FromChatResult(result, llmcall.RecordOptions{
		JobID:       a.jobID,
		PromptKey:   op,
		Temperature: &temperature,
	}))
}

func confidenceOf(p *float64) float64 {
	// Missing confidence means untrusted.
	if p == nil {
		return 0
	}
	if *p < 0 {
		return 0
	}
	if *p > 1 {
		return 1
	}
	return *p
}
