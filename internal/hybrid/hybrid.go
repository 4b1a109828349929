// Package hybrid reconciles the rule-based structural parser with the LLM
// assistant. The rule pass runs exactly once per document; the assistant is
// consulted only for candidates the rules could not settle, and every
// assistant failure degrades to the rule-only result.
package hybrid

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/chaptermill/chaptermill/internal/assistant"
	"github.com/chaptermill/chaptermill/internal/book"
	"github.com/chaptermill/chaptermill/internal/parser"
	"github.com/chaptermill/chaptermill/internal/prompts/confirm_headings"
	"github.com/chaptermill/chaptermill/internal/prompts/title_batch"
)

// Config carries the escalation thresholds.
type Config struct {
	EnableLLM bool

	// ConfidenceThreshold is the floor below which a heading candidate is
	// escalated for confirmation, and the bar an LLM verdict must clear to
	// override the rules.
	ConfidenceThreshold float64

	// Toc thresholds for the decision table.
	TocDetectionThreshold float64
	NoTocThreshold        float64

	// TocScoreThreshold and TocScanLines mirror the detector settings so
	// the ambiguous band and the escalation sample can be derived here.
	TocScoreThreshold float64
	TocScanLines      int
}

// DefaultConfig returns the stock escalation thresholds.
func DefaultConfig() Config {
	return Config{
		EnableLLM:             false,
		ConfidenceThreshold:   0.5,
		TocDetectionThreshold: 0.7,
		NoTocThreshold:        0.8,
		TocScoreThreshold:     30,
		TocScanLines:          300,
	}
}

// Parser combines the rule parser with the assistant. One instance serves
// one conversion job; it is not meant for concurrent use.
type Parser struct {
	rule   *parser.Parser
	asst   *assistant.Assistant
	cfg    Config
	policy TocPolicy
	logger *slog.Logger
}

// New creates a hybrid Parser. A nil assistant is equivalent to assistance
// disabled.
func New(rule *parser.Parser, asst *assistant.Assistant, cfg Config, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{
		rule: rule,
		asst: asst,
		cfg:  cfg,
		policy: TocPolicy{
			DetectThreshold: cfg.TocDetectionThreshold,
			NoTocThreshold:  cfg.NoTocThreshold,
		},
		logger: logger,
	}
}

// Stats returns the assistant's usage statistics; zero if assistance is off.
func (p *Parser) Stats() assistant.Stats {
	if p.asst == nil {
		return assistant.Stats{}
	}
	return p.asst.Stats()
}

// Parse converts text into a structured result. The rule pass runs exactly
// once; with assistance disabled the rule result is returned unchanged.
func (p *Parser) Parse(ctx context.Context, text string) book.ParseResult {
	out := p.rule.Parse(text)

	if !p.cfg.EnableLLM || p.asst == nil {
		return out.Result
	}

	out = p.reconcileToc(ctx, text, out)

	// Zero candidates means the rules are blind to this document's
	// convention; segmentation itself is escalated.
	if len(out.Candidates) == 0 {
		return p.inferStructure(ctx, out)
	}

	result := p.confirmLowConfidence(ctx, out)
	p.generateTitles(ctx, &result)
	return result
}

// tocAmbiguous reports whether the rule score sits in the band around the
// detection threshold where the verdict is worth a second opinion.
func (p *Parser) tocAmbiguous(v parser.TocVerdict) bool {
	if v.Score == 0 {
		return false
	}
	lo := p.cfg.TocScoreThreshold * 0.5
	hi := p.cfg.TocScoreThreshold * 1.5
	return v.Score >= lo && v.Score <= hi
}

// reconcileToc escalates an ambiguous ToC verdict and, when the reconciled
// decision differs from the rule one, rebuilds the candidate set over the
// corrected text. Assistant failure leaves the rule verdict in force.
func (p *Parser) reconcileToc(ctx context.Context, text string, out *parser.Output) *parser.Output {
	if !p.tocAmbiguous(out.Toc) {
		return out
	}

	head := headLines(text, p.cfg.TocScanLines)
	llm, err := p.asst.DetectToc(ctx, out.Result.Language, head)
	if err != nil {
		p.logger.Warn("toc escalation failed, keeping rule verdict", "error", err)
		return out
	}

	found, row := p.policy.Decide(out.Toc, llm)
	p.logger.Debug("toc verdict reconciled",
		"rule_found", out.Toc.Found, "llm_found", llm.HasToc, "decision", found, "row", row)
	if found == out.Toc.Found {
		return out
	}

	if !found {
		// The removed block was real content: rebuild over the full text.
		return p.rebuild(text, out, parser.TocVerdict{})
	}

	// The rules missed a ToC the model sees. Trust the model's end line when
	// it gives one; otherwise derive the boundary from the scored window
	// start, the way the detector would. The window end itself is never a ToC
	// boundary, and without a sane boundary the rule verdict stands.
	lines := strings.Split(text, "\n")
	start := out.Toc.Start
	end := 0
	if llm.EndLine != nil && *llm.EndLine > start {
		end = *llm.EndLine
	}
	if end == 0 {
		end = p.rule.TocEnd(lines, start)
	}
	if end > len(lines) {
		end = len(lines)
	}
	if end <= start {
		p.logger.Debug("toc flip has no usable boundary, keeping rule verdict")
		return out
	}
	kept := make([]string, 0, len(lines)-(end-start))
	kept = append(kept, lines[:start]...)
	kept = append(kept, lines[end:]...)
	verdict := parser.TocVerdict{Found: true, Start: start, End: end, Confidence: confOf(llm.Confidence)}
	return p.rebuild(strings.Join(kept, "\n"), out, verdict)
}

// rebuild rescans corrected text after a ToC verdict flip. Heading detection
// runs again here because the text it saw the first time was wrong.
func (p *Parser) rebuild(text string, old *parser.Output, toc parser.TocVerdict) *parser.Output {
	lang := old.Result.Language
	candidates := p.rule.Scan(text, lang)
	result := p.rule.Assemble(text, lang, candidates)
	result.Diagnostics.TocRemoved = toc.Found
	if toc.Found {
		result.Diagnostics.TocLines = toc.End - toc.Start
	}
	return &parser.Output{
		Result:     result,
		Candidates: candidates,
		Stripped:   text,
		Toc:        toc,
	}
}

// inferSampleRunes bounds the content sample sent for format identification
// and structure inference.
const inferSampleRunes = 8000

// inferStructure handles documents the rules could not segment at all.
// Format identification runs first: a usable heading regex lets the rule
// scanner rescan the full text, which beats inferred cut points whenever the
// document does follow a convention. Otherwise the model proposes chapter
// boundaries directly. Either failure keeps the single-chapter fallback.
func (p *Parser) inferStructure(ctx context.Context, out *parser.Output) book.ParseResult {
	text := out.Stripped
	if strings.TrimSpace(text) == "" {
		return out.Result
	}
	lang := out.Result.Language
	sample := runePrefix(text, inferSampleRunes)

	if result, ok := p.rescanWithIdentifiedFormat(ctx, text, sample, out); ok {
		return result
	}

	res, err := p.asst.InferStructure(ctx, lang, sample)
	if err != nil {
		p.logger.Warn("structure inference failed, keeping single-chapter fallback", "error", err)
		return out.Result
	}

	type cut struct {
		off   int
		title string
		conf  float64
	}
	var cuts []cut
	seen := make(map[int]bool)
	for _, s := range res.SuggestedChapters {
		conf := confOf(s.Confidence)
		if conf < p.cfg.ConfidenceThreshold {
			continue
		}
		off := runeOffset(sample, s.StartChar)
		if off < 0 || seen[off] {
			continue
		}
		seen[off] = true
		cuts = append(cuts, cut{off: off, title: strings.TrimSpace(s.Title), conf: conf})
	}
	if len(cuts) == 0 {
		return out.Result
	}
	sort.Slice(cuts, func(i, j int) bool { return cuts[i].off < cuts[j].off })

	// Suggested spans serve as boundaries only: each chapter runs from its
	// cut to the next one and the last to the end of the document, so every
	// byte of the manuscript lands in exactly one chapter.
	var chapters []book.Chapter
	if lead := strings.TrimSpace(text[:cuts[0].off]); lead != "" {
		chapters = append(chapters, book.Chapter{
			Title:      parser.PrefaceTitle(lang),
			Body:       lead,
			Confidence: 0.5,
			Source:     book.SourceRule,
		})
	}
	for i, c := range cuts {
		end := len(text)
		if i+1 < len(cuts) {
			end = cuts[i+1].off
		}
		body := strings.TrimSpace(text[c.off:end])
		if body == "" && c.title == "" {
			continue
		}
		chapters = append(chapters, book.Chapter{
			Title:      c.title,
			Body:       body,
			Confidence: c.conf,
			Source:     book.SourceLLM,
		})
	}
	if len(chapters) == 0 {
		return out.Result
	}

	result := book.ParseResult{
		Language: lang,
		Volumes:  []book.Volume{{Implicit: true, Chapters: chapters}},
	}
	result.Diagnostics.TocRemoved = out.Result.Diagnostics.TocRemoved
	result.Diagnostics.TocLines = out.Result.Diagnostics.TocLines
	result.Diagnostics.LLMAssisted = len(cuts)
	total := 0.0
	for i := range chapters {
		total += chapters[i].Confidence
	}
	result.OverallConfidence = total / float64(len(chapters))
	return result
}

// rescanWithIdentifiedFormat asks the model to name the document's heading
// convention and, when it supplies a trusted regex that actually matches,
// rescans with it. This is the other path where heading detection runs
// again: the first pass had no pattern for this convention.
func (p *Parser) rescanWithIdentifiedFormat(ctx context.Context, text, sample string, out *parser.Output) (book.ParseResult, bool) {
	lang := out.Result.Language
	fm, err := p.asst.IdentifyFormat(ctx, lang, sample)
	if err != nil {
		p.logger.Warn("format identification failed", "error", err)
		return book.ParseResult{}, false
	}
	if fm.SuggestedRegex == nil || *fm.SuggestedRegex == "" ||
		confOf(fm.Confidence) < p.cfg.ConfidenceThreshold {
		return book.ParseResult{}, false
	}

	candidates, err := p.rule.ScanWithExtraChapterPattern(text, lang, *fm.SuggestedRegex)
	if err != nil {
		p.logger.Warn("suggested heading pattern rejected", "pattern", *fm.SuggestedRegex, "error", err)
		return book.ParseResult{}, false
	}
	if len(candidates) == 0 {
		return book.ParseResult{}, false
	}
	for i := range candidates {
		candidates[i].Source = book.SourceLLM
	}

	result := p.rule.Assemble(text, lang, candidates)
	result.Diagnostics.TocRemoved = out.Result.Diagnostics.TocRemoved
	result.Diagnostics.TocLines = out.Result.Diagnostics.TocLines
	result.Diagnostics.LLMAssisted = len(candidates)
	return result, true
}

// confirmLowConfidence escalates sub-threshold candidates for confirmation
// and reassembles the hierarchy from the updated candidate set. No rescan
// happens here: assembly reuses the candidates from the single rule pass.
func (p *Parser) confirmLowConfidence(ctx context.Context, out *parser.Output) book.ParseResult {
	var lowIdx []int
	for i, c := range out.Candidates {
		if c.Confidence < p.cfg.ConfidenceThreshold {
			lowIdx = append(lowIdx, i)
		}
	}
	if len(lowIdx) == 0 {
		return out.Result
	}

	lines := strings.Split(out.Stripped, "\n")
	queries := make([]confirm_headings.Candidate, len(lowIdx))
	for qi, ci := range lowIdx {
		cand := out.Candidates[ci]
		queries[qi] = confirm_headings.Candidate{
			Index:  qi + 1,
			Line:   cand.RawText,
			Before: contextLines(lines, cand.LineIndex-2, cand.LineIndex),
			After:  contextLines(lines, cand.LineIndex+1, cand.LineIndex+3),
		}
	}

	decisions, err := p.asst.ConfirmHeadings(ctx, out.Result.Language, queries)
	if err != nil {
		p.logger.Warn("heading confirmation failed, keeping rule candidates", "error", err)
		return out.Result
	}

	drop := make(map[int]bool)
	assisted, rejected := 0, 0
	for _, d := range decisions.Decisions {
		if d.Index < 1 || d.Index > len(lowIdx) {
			p.logger.Warn("confirmation carried unknown index", "index", d.Index)
			continue
		}
		conf := confOf(d.Confidence)
		if conf < p.cfg.ConfidenceThreshold {
			// An untrusted verdict never overrides the rules.
			continue
		}
		ci := lowIdx[d.Index-1]
		if !d.IsChapter {
			drop[ci] = true
			rejected++
			continue
		}
		cand := &out.Candidates[ci]
		cand.Confidence = conf
		cand.Source = book.SourceLLM
		if cand.Title == "" && d.SuggestedTitle != nil {
			cand.Title = strings.TrimSpace(*d.SuggestedTitle)
		}
		assisted++
	}
	if assisted == 0 && rejected == 0 {
		return out.Result
	}

	kept := make([]book.HeadingCandidate, 0, len(out.Candidates))
	for i, c := range out.Candidates {
		if !drop[i] {
			kept = append(kept, c)
		}
	}

	result := p.rule.Assemble(out.Stripped, out.Result.Language, kept)
	result.Diagnostics.RuleMatched = out.Result.Diagnostics.RuleMatched
	result.Diagnostics.TocRemoved = out.Result.Diagnostics.TocRemoved
	result.Diagnostics.TocLines = out.Result.Diagnostics.TocLines
	result.Diagnostics.LLMAssisted = assisted
	result.Diagnostics.LLMRejected = rejected
	return result
}

// generateTitles batches title generation for numbered chapters that carry
// no usable title. Failures keep the lead-sentence fallback titles.
func (p *Parser) generateTitles(ctx context.Context, result *book.ParseResult) {
	var bare []*book.Chapter
	for vi := range result.Volumes {
		for ci := range result.Volumes[vi].Chapters {
			ch := &result.Volumes[vi].Chapters[ci]
			if parser.IsBareChapter(ch) && ch.Body != "" {
				bare = append(bare, ch)
			}
		}
	}
	if len(bare) == 0 {
		return
	}

	entries := make([]title_batch.Entry, len(bare))
	for i, ch := range bare {
		entries[i] = title_batch.Entry{
			Index:       i + 1,
			NumberToken: ch.NumberToken,
			Excerpt:     p.asst.Excerpt(ch.Body),
		}
	}

	titles, err := p.asst.GenerateTitlesBatch(ctx, result.Language, entries)
	if err != nil {
		p.logger.Warn("title generation failed, using lead-sentence titles", "error", err)
		p.fallbackTitles(bare, result.Language)
		return
	}

	for i, ch := range bare {
		t, ok := titles[i+1]
		if !ok || confOf(t.Confidence) == 0 || strings.TrimSpace(t.Title) == "" {
			continue
		}
		ch.Title = strings.TrimSpace(t.Title)
		ch.Source = book.SourceLLM
		result.Diagnostics.LLMAssisted++
	}
	p.fallbackTitles(bare, result.Language)
}

// fallbackTitles fills any still-bare chapters from their opening sentence.
func (p *Parser) fallbackTitles(bare []*book.Chapter, lang book.Language) {
	for _, ch := range bare {
		if parser.IsBareChapter(ch) {
			if lead := parser.ExtractLeadTitle(ch.Body, lang); lead != "" {
				ch.Title = lead
			}
		}
	}
}

func headLines(text string, n int) string {
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}

func contextLines(lines []string, from, to int) string {
	if from < 0 {
		from = 0
	}
	if to > len(lines) {
		to = len(lines)
	}
	if from >= to {
		return ""
	}
	return strings.Join(lines[from:to], "\n")
}

func confOf(c *float64) float64 {
	if c == nil {
		return 0
	}
	return *c
}

// runePrefix returns the first n runes of s.
func runePrefix(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// runeOffset converts a rune offset into s to a byte offset, or -1 when out
// of range.
func runeOffset(s string, runes int) int {
	if runes < 0 {
		return -1
	}
	count := 0
	for i := range s {
		if count == runes {
			return i
		}
		count++
	}
	if count == runes {
		return len(s)
	}
	return -1
}
