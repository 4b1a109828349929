package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/chaptermill/chaptermill/internal/book"
	"github.com/chaptermill/chaptermill/internal/llmcall"
	"github.com/chaptermill/chaptermill/internal/prompts/confirm_headings"
	"github.com/chaptermill/chaptermill/internal/prompts/disambiguate"
	"github.com/chaptermill/chaptermill/internal/prompts/title_batch"
	"github.com/chaptermill/chaptermill/internal/providers"
)

func newTestAssistant(t *testing.T, mock *providers.MockClient) *Assistant {
	t.Helper()
	a, err := New(Options{Client: mock, Model: "test-model"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestConfirmHeadings(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ResponseJSON = json.RawMessage(`{"decisions": [
		{"index": 1, "is_chapter": true, "confidence": 0.9},
		{"index": 2, "is_chapter": false, "confidence": 0.85, "reason": "inline reference"}
	]}`)
	a := newTestAssistant(t, mock)

	result, err := a.ConfirmHeadings(context.Background(), book.LanguageChinese, []confirm_headings.Candidate{
		{Index: 1, Line: "第三章 风起"},
		{Index: 2, Line: "正如第三章所说"},
	})
	if err != nil {
		t.Fatalf("ConfirmHeadings: %v", err)
	}
	if len(result.Decisions) != 2 {
		t.Fatalf("expected 2 decisions, got %d", len(result.Decisions))
	}
	if !result.Decisions[0].IsChapter || result.Decisions[1].IsChapter {
		t.Errorf("unexpected verdicts: %+v", result.Decisions)
	}
}

func TestConfirmHeadingsEmptyInput(t *testing.T) {
	mock := providers.NewMockClient()
	a := newTestAssistant(t, mock)

	result, err := a.ConfirmHeadings(context.Background(), book.LanguageChinese, nil)
	if err != nil {
		t.Fatalf("ConfirmHeadings: %v", err)
	}
	if len(result.Decisions) != 0 {
		t.Errorf("expected no decisions, got %d", len(result.Decisions))
	}
	if mock.RequestCount() != 0 {
		t.Errorf("expected no requests for empty input, got %d", mock.RequestCount())
	}
}

func TestBatchTitleIndexCorrelation(t *testing.T) {
	// Response deliberately out of order and missing index 2: correlation
	// must follow the echoed index, not array position.
	mock := providers.NewMockClient()
	mock.ResponseJSON = json.RawMessage(`{"titles": [
		{"index": 3, "title": "雪夜", "confidence": 0.8},
		{"index": 1, "title": "风起", "confidence": 0.9},
		{"index": 7, "title": "幽灵条目", "confidence": 0.5}
	]}`)
	a := newTestAssistant(t, mock)

	titles, err := a.GenerateTitlesBatch(context.Background(), book.LanguageChinese, []title_batch.Entry{
		{Index: 1, NumberToken: "1", Excerpt: "大风骤起……"},
		{Index: 2, NumberToken: "2", Excerpt: "翌日清晨……"},
		{Index: 3, NumberToken: "3", Excerpt: "雪落无声……"},
	})
	if err != nil {
		t.Fatalf("GenerateTitlesBatch: %v", err)
	}
	if got := titles[1].Title; got != "风起" {
		t.Errorf("index 1 title = %q, want 风起", got)
	}
	if got := titles[3].Title; got != "雪夜" {
		t.Errorf("index 3 title = %q, want 雪夜", got)
	}
	if _, ok := titles[2]; ok {
		t.Error("index 2 was omitted by the model and must be absent")
	}
	if _, ok := titles[7]; ok {
		t.Error("unknown index 7 must be discarded")
	}
}

func TestBatchTitleSplitsAtCap(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ResponseJSON = json.RawMessage(`{"titles": []}`)
	a := newTestAssistant(t, mock)

	entries := make([]title_batch.Entry, 120)
	for i := range entries {
		entries[i] = title_batch.Entry{Index: i + 1, NumberToken: fmt.Sprint(i + 1), Excerpt: "content"}
	}
	if _, err := a.GenerateTitlesBatch(context.Background(), book.LanguageEnglish, entries); err != nil {
		t.Fatalf("GenerateTitlesBatch: %v", err)
	}
	// 120 entries at a 50-per-call cap is 3 calls.
	if got := mock.RequestCount(); got != 3 {
		t.Errorf("expected 3 requests, got %d", got)
	}
}

func TestMissingConfidenceTreatedAsZero(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ResponseJSON = json.RawMessage(`{"titles": [{"index": 1, "title": "Untrusted"}]}`)
	a := newTestAssistant(t, mock)

	_, conf, err := a.GenerateTitle(context.Background(), book.LanguageEnglish, "1", "Some opening text.")
	if err != nil {
		t.Fatalf("GenerateTitle: %v", err)
	}
	if conf != 0 {
		t.Errorf("missing confidence must map to 0, got %v", conf)
	}
}

func TestTransportErrorTyped(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ShouldFail = true
	a := newTestAssistant(t, mock)

	_, _, err := a.GenerateTitle(context.Background(), book.LanguageChinese, "1", "text")
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}

	stats := a.Stats()
	if stats.TotalCalls != 1 || stats.FailedCalls != 1 {
		t.Errorf("stats = %+v, want 1 call 1 failure", stats)
	}
}

func TestBadResponseTyped(t *testing.T) {
	// Success without structured output means the response was unusable.
	mock := providers.NewMockClient()
	mock.ResponseJSON = nil
	a := newTestAssistant(t, mock)

	_, err := a.DetectToc(context.Background(), book.LanguageChinese, "目录\n第一章 1\n第二章 9")
	if !errors.Is(err, ErrBadResponse) {
		t.Fatalf("expected ErrBadResponse, got %v", err)
	}
}

func TestSingleAttemptPerCall(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ShouldFail = true
	a := newTestAssistant(t, mock)

	_, _, _ = a.GenerateTitle(context.Background(), book.LanguageChinese, "1", "text")
	if got := mock.RequestCount(); got != 1 {
		t.Errorf("expected exactly 1 attempt, got %d", got)
	}
}

func TestDisambiguateChoiceRange(t *testing.T) {
	options := []disambiguate.Interpretation{
		{Index: 1, Level: book.LevelChapter, NumberToken: "3", Title: "风起"},
		{Index: 2, Level: book.LevelSection, NumberToken: "3", Title: "风起"},
	}

	mock := providers.NewMockClient()
	mock.ResponseJSON = json.RawMessage(`{"choice": 2, "confidence": 0.8, "reason": "nested under a chapter"}`)
	a := newTestAssistant(t, mock)

	result, err := a.Disambiguate(context.Background(), book.LanguageChinese, "第三节 风起", "…", options)
	if err != nil {
		t.Fatalf("Disambiguate: %v", err)
	}
	if result.Choice != 2 {
		t.Errorf("choice = %d, want 2", result.Choice)
	}

	// Out-of-range choice (beyond the "none of the above" slot) is a bad
	// response, not a silent default.
	mock2 := providers.NewMockClient()
	mock2.ResponseJSON = json.RawMessage(`{"choice": 9, "confidence": 0.8}`)
	a2 := newTestAssistant(t, mock2)
	if _, err := a2.Disambiguate(context.Background(), book.LanguageChinese, "第三节 风起", "…", options); !errors.Is(err, ErrBadResponse) {
		t.Fatalf("expected ErrBadResponse for out-of-range choice, got %v", err)
	}
}

func TestStatsAndRecorder(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ResponseJSON = json.RawMessage(`{"has_toc": true, "confidence": 0.9, "reason": "dense entry list", "end_line": 12}`)
	rec := llmcall.NewRecorder()
	a, err := New(Options{Client: mock, Recorder: rec, JobID: "job-1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := a.DetectToc(context.Background(), book.LanguageChinese, "目录\n第一章 1"); err != nil {
		t.Fatalf("DetectToc: %v", err)
	}

	stats := a.Stats()
	if stats.TotalCalls != 1 || stats.FailedCalls != 0 {
		t.Errorf("stats = %+v, want 1 successful call", stats)
	}
	if stats.ByOperation["detect_toc"] != 1 {
		t.Errorf("by-operation count = %v", stats.ByOperation)
	}
	if stats.PromptTokens == 0 {
		t.Error("expected prompt tokens to accumulate")
	}

	calls := rec.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 recorded call, got %d", len(calls))
	}
	if calls[0].PromptKey != "detect_toc" || calls[0].JobID != "job-1" {
		t.Errorf("recorded call = %+v", calls[0])
	}
}

func TestStatsSnapshotDetached(t *testing.T) {
	// Stats values are plain copies: mutating one must not bleed into the
	// tracker or later snapshots.
	mock := providers.NewMockClient()
	mock.ResponseJSON = json.RawMessage(`{"has_toc": false, "confidence": 0.8, "reason": "prose"}`)
	a := newTestAssistant(t, mock)

	if _, err := a.DetectToc(context.Background(), book.LanguageChinese, "正文第一行"); err != nil {
		t.Fatalf("DetectToc: %v", err)
	}

	first := a.Stats()
	first.TotalCalls = 99
	first.ByOperation["detect_toc"] = 99

	second := a.Stats()
	if second.TotalCalls != 1 {
		t.Errorf("TotalCalls = %d, want 1", second.TotalCalls)
	}
	if second.ByOperation["detect_toc"] != 1 {
		t.Errorf("ByOperation = %v, want detect_toc:1", second.ByOperation)
	}
}

func TestExcerptTruncation(t *testing.T) {
	a, err := New(Options{Client: providers.NewMockClient(), MaxContentLength: 10})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	long := strings.Repeat("长", 50)
	got := a.Excerpt(long)
	if n := len([]rune(got)); n != 10 {
		t.Errorf("excerpt length = %d runes, want 10", n)
	}
	short := "short"
	if a.Excerpt(short) != short {
		t.Error("short content must pass through unchanged")
	}
}
