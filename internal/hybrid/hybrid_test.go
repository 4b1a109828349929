package hybrid

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/chaptermill/chaptermill/internal/assistant"
	"github.com/chaptermill/chaptermill/internal/book"
	"github.com/chaptermill/chaptermill/internal/parser"
	"github.com/chaptermill/chaptermill/internal/providers"
)

func newRuleParser(t *testing.T) *parser.Parser {
	t.Helper()
	p, err := parser.New(parser.Options{}, nil)
	if err != nil {
		t.Fatalf("parser.New: %v", err)
	}
	return p
}

func newHybrid(t *testing.T, mock *providers.MockClient) *Parser {
	t.Helper()
	rule := newRuleParser(t)
	var asst *assistant.Assistant
	if mock != nil {
		var err error
		asst, err = assistant.New(assistant.Options{Client: mock})
		if err != nil {
			t.Fatalf("assistant.New: %v", err)
		}
	}
	cfg := DefaultConfig()
	cfg.EnableLLM = mock != nil
	return New(rule, asst, cfg, nil)
}

func body(n int) string {
	return strings.Repeat("山", n)
}

// titledNovel has three well-formed chapters plus one cross-reference line
// that the patterns misread as a fourth chapter heading.
func titledNovel() string {
	return strings.Join([]string{
		"第一章 风起云涌时",
		body(600),
		"第二章 雪落无声夜",
		body(600),
		"第四章，走了",
		body(600),
		"第三章 大江东去也",
		body(600),
	}, "\n")
}

func bareNovel() string {
	return strings.Join([]string{
		"第一章",
		body(600),
		"第二章",
		body(600),
		"第三章",
		body(600),
	}, "\n")
}

func TestAssistanceOffReturnsRuleResultUnchanged(t *testing.T) {
	text := titledNovel()
	rule := newRuleParser(t)
	want := rule.Parse(text).Result

	h := New(newRuleParser(t), nil, DefaultConfig(), nil)
	got := h.Parse(context.Background(), text)
	if !reflect.DeepEqual(got, want) {
		t.Error("with assistance off the hybrid result must equal the rule result exactly")
	}
}

func TestNoEscalationWhenConfident(t *testing.T) {
	// Three well-formed titled chapters leave nothing below the threshold,
	// so the assistant must not be consulted at all.
	text := strings.Join([]string{
		"第一章 风起云涌时",
		body(600),
		"第二章 雪落无声夜",
		body(600),
		"第三章 大江东去也",
		body(600),
	}, "\n")

	mock := providers.NewMockClient()
	h := newHybrid(t, mock)
	result := h.Parse(context.Background(), text)

	if mock.RequestCount() != 0 {
		t.Errorf("expected no LLM calls, got %d", mock.RequestCount())
	}
	if got := len(result.Chapters()); got != 3 {
		t.Errorf("chapter count = %d, want 3", got)
	}
}

func TestRejectedCandidateMergedBack(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ResponseJSON = json.RawMessage(`{"decisions": [
		{"index": 1, "is_chapter": false, "confidence": 0.9, "reason": "continues a sentence"}
	]}`)
	h := newHybrid(t, mock)

	result := h.Parse(context.Background(), titledNovel())

	chapters := result.Chapters()
	if len(chapters) != 3 {
		t.Fatalf("chapter count = %d, want 3 after rejection", len(chapters))
	}
	if result.Diagnostics.LLMRejected != 1 {
		t.Errorf("LLMRejected = %d, want 1", result.Diagnostics.LLMRejected)
	}
	// The rejected line is body text, not a boundary: it must survive inside
	// the second chapter.
	if !strings.Contains(chapters[1].Body, "第四章，走了") {
		t.Error("rejected heading text must remain in the preceding chapter body")
	}
	if mock.RequestCount() != 1 {
		t.Errorf("expected exactly 1 LLM call, got %d", mock.RequestCount())
	}
}

func TestUntrustedVerdictKeepsRuleCandidate(t *testing.T) {
	// A decision without a confidence value counts as confidence 0 and must
	// not override the rules.
	mock := providers.NewMockClient()
	mock.ResponseJSON = json.RawMessage(`{"decisions": [
		{"index": 1, "is_chapter": false}
	]}`)
	h := newHybrid(t, mock)

	result := h.Parse(context.Background(), titledNovel())
	if got := len(result.Chapters()); got != 4 {
		t.Errorf("chapter count = %d, want 4 (rule result kept)", got)
	}
	if result.Diagnostics.LLMRejected != 0 {
		t.Errorf("LLMRejected = %d, want 0", result.Diagnostics.LLMRejected)
	}
}

func TestBatchTitlesAppliedByIndex(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ResponseJSON = json.RawMessage(`{"titles": [
		{"index": 3, "title": "大江东去", "confidence": 0.8},
		{"index": 1, "title": "风起云涌", "confidence": 0.9}
	]}`)
	h := newHybrid(t, mock)

	result := h.Parse(context.Background(), bareNovel())
	chapters := result.Chapters()
	if len(chapters) != 3 {
		t.Fatalf("chapter count = %d, want 3", len(chapters))
	}
	if chapters[0].Title != "风起云涌" || chapters[2].Title != "大江东去" {
		t.Errorf("titles = %q, %q; correlation must follow the echoed index",
			chapters[0].Title, chapters[2].Title)
	}
	if chapters[0].Source != book.SourceLLM {
		t.Error("an LLM-titled chapter must be marked as LLM-sourced")
	}
	// The omitted chapter falls back to a lead-sentence title.
	if chapters[1].Title == "" {
		t.Error("chapter skipped by the model must get a fallback title")
	}
	if chapters[1].Source == book.SourceLLM {
		t.Error("fallback-titled chapter must not be marked as LLM-sourced")
	}
	if result.Diagnostics.LLMAssisted != 2 {
		t.Errorf("LLMAssisted = %d, want 2", result.Diagnostics.LLMAssisted)
	}
}

func TestTitleFailureFallsBackToLeadSentence(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ShouldFail = true
	h := newHybrid(t, mock)

	result := h.Parse(context.Background(), bareNovel())
	chapters := result.Chapters()
	if len(chapters) != 3 {
		t.Fatalf("chapter count = %d, want 3", len(chapters))
	}
	for i, ch := range chapters {
		if ch.Title == "" {
			t.Errorf("chapter %d has no title after fallback", i)
		}
		if ch.Source == book.SourceLLM {
			t.Errorf("chapter %d marked LLM-sourced after a failed call", i)
		}
	}
}

func TestAmbiguousTocFlippedByLLM(t *testing.T) {
	// Three consecutive short headings followed by long body score inside
	// the ambiguous band, and the detector treats the first two headings as
	// a ToC fragment. A confident LLM "no ToC" verdict restores them.
	text := strings.Join([]string{
		"第一章 起",
		"第二章 落",
		"第三章 归",
		"",
		body(600),
		body(600),
	}, "\n")

	ruleOnly := newRuleParser(t).Parse(text).Result
	if got := len(ruleOnly.Chapters()); got >= 3 {
		t.Fatalf("fixture must lose chapters to ToC removal under rules alone, got %d", got)
	}

	mock := providers.NewMockClient()
	mock.ResponseJSON = json.RawMessage(`{"has_toc": false, "confidence": 0.9, "reason": "headings have body content"}`)
	h := newHybrid(t, mock)

	result := h.Parse(context.Background(), text)
	if got := len(result.Chapters()); got != 3 {
		t.Errorf("chapter count = %d, want 3 after the verdict flip", got)
	}
	if result.Diagnostics.TocRemoved {
		t.Error("no ToC should be recorded after the flip")
	}
}

func TestAmbiguousNoTocFlippedByLLM(t *testing.T) {
	// Enough long body lines keep the short-line ratio below the ToC bar,
	// so the rules say "no ToC" with a borderline score; the LLM overrules
	// with an explicit end line.
	text := strings.Join([]string{
		"第一章 起",
		"第二章 落",
		"第三章 归",
		"",
		body(600),
		body(600),
		body(600),
		body(600),
	}, "\n")

	mock := providers.NewMockClient()
	mock.ResponseJSON = json.RawMessage(`{"has_toc": true, "confidence": 0.75, "reason": "leading entry list", "end_line": 3}`)
	h := newHybrid(t, mock)

	result := h.Parse(context.Background(), text)
	if !result.Diagnostics.TocRemoved {
		t.Fatal("expected the LLM verdict to mark a ToC as removed")
	}
	if result.Diagnostics.TocLines != 3 {
		t.Errorf("TocLines = %d, want 3", result.Diagnostics.TocLines)
	}
	chapters := result.Chapters()
	if len(chapters) != 1 {
		t.Fatalf("chapter count = %d, want 1 implicit chapter", len(chapters))
	}
	if chapters[0].NumberToken != "" {
		t.Error("remaining content should assemble as an implicit chapter")
	}
}

func TestTocFlipWithoutEndLineKeepsContent(t *testing.T) {
	// Long opening prose followed by a short heading cluster lands in the
	// ambiguous band with a "no ToC" rule verdict. The model flips to "has
	// ToC" but gives no end line, and the detector finds no boundary either
	// (the scored window starts on a long paragraph), so the rule verdict
	// must stand: stripping anything here would throw away real content.
	var lines []string
	for i := 0; i < 10; i++ {
		lines = append(lines, body(120))
	}
	lines = append(lines, "第一章 风起云涌时", "第二章 雪落无声夜", "第三章 大江东去也")
	for i := 0; i < 6; i++ {
		lines = append(lines, body(120))
	}
	text := strings.Join(lines, "\n")

	want := newRuleParser(t).Parse(text).Result
	if want.Diagnostics.TocRemoved {
		t.Fatal("fixture must not trip rule-based ToC removal")
	}

	mock := providers.NewMockClient()
	mock.ResponseJSON = json.RawMessage(`{"has_toc": true, "confidence": 0.9, "reason": "list-like head"}`)
	h := newHybrid(t, mock)

	result := h.Parse(context.Background(), text)
	if mock.RequestCount() != 1 {
		t.Errorf("expected exactly 1 LLM call, got %d", mock.RequestCount())
	}
	if result.Diagnostics.TocRemoved {
		t.Error("flip without a boundary must not remove anything")
	}
	if !reflect.DeepEqual(result, want) {
		t.Error("flip without a boundary must leave the rule result intact")
	}
	total := 0
	for _, ch := range result.Chapters() {
		total += ch.CharCount()
	}
	if total < 16*120 {
		t.Errorf("chapter content = %d chars, opening prose was discarded", total)
	}
}

func TestZeroCandidatesEscalatesToInference(t *testing.T) {
	// No recognizable headings at all: format identification comes back
	// unusable, so the model's proposed cut points segment the document.
	// The untrusted third suggestion (no confidence) must be discarded.
	text := body(200) + "\n\n" + body(300)

	mock := providers.NewMockClient()
	mock.ResponseQueue = []json.RawMessage{
		json.RawMessage(`{"format_type": "unmarked", "suggested_regex": null, "confidence": 0.9}`),
		json.RawMessage(`{"suggested_chapters": [
			{"start_char": 0, "end_char": 202, "title": "入山", "confidence": 0.9},
			{"start_char": 202, "end_char": 502, "title": "出山", "confidence": 0.85},
			{"start_char": 250, "end_char": 300, "title": "幻影"}
		], "confidence": 0.9}`),
	}
	h := newHybrid(t, mock)

	result := h.Parse(context.Background(), text)
	if mock.RequestCount() != 2 {
		t.Fatalf("expected 2 LLM calls (identify + infer), got %d", mock.RequestCount())
	}
	chapters := result.Chapters()
	if len(chapters) != 2 {
		t.Fatalf("chapter count = %d, want 2", len(chapters))
	}
	if chapters[0].Title != "入山" || chapters[1].Title != "出山" {
		t.Errorf("titles = %q, %q", chapters[0].Title, chapters[1].Title)
	}
	if chapters[0].Source != book.SourceLLM {
		t.Error("inferred chapters must be marked LLM-sourced")
	}
	if got := chapters[0].CharCount() + chapters[1].CharCount(); got != 500 {
		t.Errorf("chapter content = %d chars, want all 500 preserved", got)
	}
	if result.Diagnostics.LLMAssisted != 2 {
		t.Errorf("LLMAssisted = %d, want 2", result.Diagnostics.LLMAssisted)
	}
}

func TestIdentifiedFormatRescan(t *testing.T) {
	// 第N回 is not a built-in convention; a trusted suggested regex lets the
	// rule scanner segment the document instead of inferred cut points.
	text := strings.Join([]string{
		"第1回 风起云涌时",
		body(300),
		"第2回 雪落无声夜",
		body(300),
	}, "\n")

	mock := providers.NewMockClient()
	mock.ResponseJSON = json.RawMessage(`{"format_type": "chinese_numbered", "chapter_pattern": "第N回",
		"suggested_regex": "^第(\\d{1,4})回[ 　]?(.*)$", "confidence": 0.9}`)
	h := newHybrid(t, mock)

	result := h.Parse(context.Background(), text)
	if mock.RequestCount() != 1 {
		t.Fatalf("expected 1 LLM call (identify only), got %d", mock.RequestCount())
	}
	chapters := result.Chapters()
	if len(chapters) != 2 {
		t.Fatalf("chapter count = %d, want 2", len(chapters))
	}
	if chapters[0].NumberToken != "1" || chapters[1].NumberToken != "2" {
		t.Errorf("number tokens = %q, %q", chapters[0].NumberToken, chapters[1].NumberToken)
	}
	if chapters[0].Title != "风起云涌时" {
		t.Errorf("title = %q", chapters[0].Title)
	}
	if chapters[0].Source != book.SourceLLM {
		t.Error("rescanned chapters must be marked LLM-sourced")
	}
	if result.Diagnostics.LLMAssisted != 2 {
		t.Errorf("LLMAssisted = %d, want 2", result.Diagnostics.LLMAssisted)
	}
}

func TestInferenceFailureKeepsFallback(t *testing.T) {
	text := body(300) + "\n\n" + body(200)

	rule := newRuleParser(t)
	want := rule.Parse(text).Result

	mock := providers.NewMockClient()
	mock.ShouldFail = true
	h := newHybrid(t, mock)

	result := h.Parse(context.Background(), text)
	if !reflect.DeepEqual(result, want) {
		t.Error("failed inference must keep the single-chapter fallback")
	}
	if got := len(result.Chapters()); got != 1 {
		t.Fatalf("chapter count = %d, want 1", got)
	}
	if result.Chapters()[0].Source == book.SourceLLM {
		t.Error("fallback chapter must not be marked LLM-sourced")
	}
}
