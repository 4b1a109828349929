// Package parser implements rule-based structure detection for plain-text
// manuscripts: heading pattern matching, language classification,
// table-of-contents removal, confidence scoring, and post-hoc validation.
package parser

import (
	"log/slog"
	"strings"

	"github.com/chaptermill/chaptermill/internal/book"
)

// Options configures a Parser.
type Options struct {
	Toc      TocConfig
	Patterns LibraryOptions
}

// Parser is the rule-based structural parser. It is stateless across calls:
// parsing the same input twice yields identical results.
type Parser struct {
	lib    *Library
	toc    *TocDetector
	opts   Options
	logger *slog.Logger
}

// New creates a Parser. Custom pattern compilation is the only failure mode.
func New(opts Options, logger *slog.Logger) (*Parser, error) {
	if logger == nil {
		logger = slog.Default()
	}
	lib, err := NewLibrary(opts.Patterns)
	if err != nil {
		return nil, err
	}
	return &Parser{
		lib:    lib,
		toc:    NewTocDetector(lib, opts.Toc),
		opts:   opts,
		logger: logger,
	}, nil
}

// Library exposes the compiled pattern library (used by the ToC detector
// tests and the hybrid layer).
func (p *Parser) Library() *Library { return p.lib }

// TocEnd returns the exclusive end line of a ToC block assumed to start at
// start, using the detector's boundary rules. A result at or below start
// means no boundary exists and nothing should be removed.
func (p *Parser) TocEnd(lines []string, start int) int {
	return p.toc.findEnd(lines, start)
}

// ScanWithExtraChapterPattern rescans text with the library extended by one
// ad-hoc chapter pattern. Used when an external source identifies a heading
// convention the built-in rules missed; the pattern must capture the number
// in group 1 and may capture a title in group 2.
func (p *Parser) ScanWithExtraChapterPattern(text string, lang book.Language, pattern string) ([]book.HeadingCandidate, error) {
	opts := p.opts.Patterns
	opts.CustomChapterPatterns = append(
		append([]string{}, opts.CustomChapterPatterns...), pattern)
	lib, err := NewLibrary(opts)
	if err != nil {
		return nil, err
	}
	tmp := &Parser{lib: lib, toc: p.toc, opts: p.opts, logger: p.logger}
	return tmp.Scan(text, lang), nil
}

// Output is the full result of one rule pass: the assembled hierarchy plus
// the raw candidates and ToC verdict the hybrid layer needs for escalation.
type Output struct {
	Result     book.ParseResult
	Candidates []book.HeadingCandidate
	Stripped   string // text after ToC removal; candidates index into this
	Toc        TocVerdict
}

// Parse runs the complete rule pass: ToC removal, language detection,
// candidate scan, hierarchy assembly.
func (p *Parser) Parse(text string) *Output {
	if strings.TrimSpace(text) == "" {
		return &Output{Result: book.ParseResult{Language: book.LanguageChinese}}
	}

	stripped, toc := p.toc.Remove(text)
	lang := DetectLanguage(stripped)

	candidates := p.Scan(stripped, lang)
	result := p.Assemble(stripped, lang, candidates)
	result.Diagnostics.TocRemoved = toc.Found
	if toc.Found {
		result.Diagnostics.TocLines = toc.End - toc.Start
		p.logger.Debug("removed table of contents",
			"start_line", toc.Start, "end_line", toc.End, "score", toc.Score)
	}

	return &Output{
		Result:     result,
		Candidates: candidates,
		Stripped:   stripped,
		Toc:        toc,
	}
}

// Scan walks the text line by line and returns every heading candidate with
// its pre-assembly confidence (base + title/number adjustments + the
// consistency bonus for recurring conventions).
func (p *Parser) Scan(text string, lang book.Language) []book.HeadingCandidate {
	lines := strings.Split(text, "\n")

	var candidates []book.HeadingCandidate
	var patterns []string
	offset := 0
	for i, line := range lines {
		lineLen := len(line) + 1 // +1 for the newline
		matches := p.lib.MatchLine(lang, line)
		for _, m := range matches {
			candidates = append(candidates, book.HeadingCandidate{
				RawText:     strings.TrimSpace(line),
				LineIndex:   i,
				StartOffset: offset,
				EndOffset:   offset + len(line),
				Level:       m.Rule.Level,
				NumberToken: m.NumberToken,
				Title:       m.Title,
				Confidence:  estimateConfidence(m),
				Source:      book.SourceRule,
				Pattern:     m.Rule.Name,
			})
			patterns = append(patterns, m.Rule.Name)
		}
		offset += lineLen
	}

	counts := consistencyCounts(patterns)
	for i := range candidates {
		candidates[i].Confidence = applyConsistency(candidates[i].Confidence, counts[candidates[i].Pattern])
	}
	return candidates
}

// Assemble builds the volume/chapter/section hierarchy from a candidate
// list. Text between one heading and the next becomes that heading's body.
// Candidates must be ordered by line index; compound headings share a line.
// A document with zero candidates yields one implicit volume and chapter
// wrapping the entire text, with confidence 0.
func (p *Parser) Assemble(text string, lang book.Language, candidates []book.HeadingCandidate) book.ParseResult {
	lines := strings.Split(text, "\n")

	result := book.ParseResult{Language: lang}
	result.Diagnostics.RuleMatched = len(candidates)

	if len(candidates) == 0 {
		body := strings.TrimSpace(text)
		if body == "" {
			return result
		}
		result.Volumes = []book.Volume{{
			Implicit: true,
			Chapters: []book.Chapter{{
				Title:  fallbackTitle(lang),
				Body:   body,
				Source: book.SourceRule,
			}},
		}}
		result.OverallConfidence = 0
		return result
	}

	b := newBuilder(lang)

	// Leading text before the first heading becomes a preface chapter so no
	// content is lost.
	if lead := joinLines(lines[:candidates[0].LineIndex]); strings.TrimSpace(lead) != "" {
		b.openChapter(book.Chapter{Title: PrefaceTitle(lang), Body: "", Confidence: 0.5, Source: book.SourceRule})
		b.appendBody(lead)
	}

	for ci := 0; ci < len(candidates); ci++ {
		cand := candidates[ci]

		// Body spans to the next candidate on a later line (a compound
		// heading's second candidate shares the line and owns the body).
		bodyStart := cand.LineIndex + 1
		bodyEnd := len(lines)
		for cj := ci + 1; cj < len(candidates); cj++ {
			if candidates[cj].LineIndex > cand.LineIndex {
				bodyEnd = candidates[cj].LineIndex
				break
			}
		}
		ownsBody := ci+1 >= len(candidates) || candidates[ci+1].LineIndex > cand.LineIndex

		switch cand.Level {
		case book.LevelVolume:
			b.openVolume(book.Volume{NumberToken: cand.NumberToken, Title: cand.Title})
			if ownsBody {
				// Text directly under a volume heading belongs to its first
				// chapter; hold it until one opens.
				b.holdVolumeLead(joinLines(lines[bodyStart:bodyEnd]))
			}
		case book.LevelChapter:
			b.openChapter(book.Chapter{
				NumberToken: cand.NumberToken,
				Title:       cand.Title,
				Confidence:  cand.Confidence,
				Source:      cand.Source,
			})
			if ownsBody {
				b.appendBody(joinLines(lines[bodyStart:bodyEnd]))
			}
		case book.LevelSection:
			b.openSection(book.Section{Title: sectionTitle(cand)})
			if ownsBody {
				b.appendBody(joinLines(lines[bodyStart:bodyEnd]))
			}
		}
	}

	result.Volumes = b.finish()
	result.OverallConfidence = overallConfidence(result.Volumes)

	// Content-size adjustment needs assembled bodies, so it runs last.
	for vi := range result.Volumes {
		for cj := range result.Volumes[vi].Chapters {
			ch := &result.Volumes[vi].Chapters[cj]
			ch.Confidence = adjustForContent(ch.Confidence, ch.CharCount())
		}
	}
	return result
}

func sectionTitle(cand book.HeadingCandidate) string {
	if cand.Title != "" {
		return cand.Title
	}
	return cand.RawText
}

func fallbackTitle(lang book.Language) string {
	if lang == book.LanguageEnglish {
		return "Full Text"
	}
	return "全文"
}

// PrefaceTitle names the synthetic chapter that holds text appearing before
// the first detected heading.
func PrefaceTitle(lang book.Language) string {
	if lang == book.LanguageEnglish {
		return "Preface"
	}
	return "前言"
}

func joinLines(lines []string) string {
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func overallConfidence(volumes []book.Volume) float64 {
	total := 0.0
	n := 0
	for vi := range volumes {
		for ci := range volumes[vi].Chapters {
			total += volumes[vi].Chapters[ci].Confidence
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

// builder accumulates the hierarchy during assembly.
type builder struct {
	lang       book.Language
	volumes    []book.Volume
	curVolume  *book.Volume
	curChapter *book.Chapter
	curSection *book.Section
	volumeLead string
}

func newBuilder(lang book.Language) *builder {
	return &builder{lang: lang}
}

func (b *builder) openVolume(v book.Volume) {
	b.closeVolume()
	b.curVolume = &v
	b.curChapter = nil
	b.curSection = nil
	b.volumeLead = ""
}

func (b *builder) openChapter(c book.Chapter) {
	if b.curVolume == nil {
		b.curVolume = &book.Volume{Implicit: true}
	}
	b.closeChapter()
	b.curChapter = &c
	b.curSection = nil
	if b.volumeLead != "" {
		b.curChapter.Body = b.volumeLead
		b.volumeLead = ""
	}
}

func (b *builder) openSection(s book.Section) {
	if b.curChapter == nil {
		b.openChapter(book.Chapter{Title: PrefaceTitle(b.lang), Confidence: 0.5, Source: book.SourceRule})
	}
	b.closeSection()
	b.curSection = &s
}

func (b *builder) appendBody(text string) {
	if text == "" {
		return
	}
	switch {
	case b.curSection != nil:
		b.curSection.Body = appendPara(b.curSection.Body, text)
	case b.curChapter != nil:
		b.curChapter.Body = appendPara(b.curChapter.Body, text)
	default:
		b.volumeLead = appendPara(b.volumeLead, text)
	}
}

func (b *builder) holdVolumeLead(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	b.volumeLead = appendPara(b.volumeLead, text)
}

func (b *builder) closeSection() {
	if b.curSection != nil {
		b.curChapter.Sections = append(b.curChapter.Sections, *b.curSection)
		b.curSection = nil
	}
}

func (b *builder) closeChapter() {
	b.closeSection()
	if b.curChapter != nil {
		b.curVolume.Chapters = append(b.curVolume.Chapters, *b.curChapter)
		b.curChapter = nil
	}
}

func (b *builder) closeVolume() {
	b.closeChapter()
	if b.curVolume != nil {
		// A volume with held lead text but no chapters keeps the text as a
		// single untitled chapter rather than dropping it.
		if b.volumeLead != "" && len(b.curVolume.Chapters) == 0 {
			b.curVolume.Chapters = []book.Chapter{{
				Title:  PrefaceTitle(b.lang),
				Body:   b.volumeLead,
				Source: book.SourceRule,
			}}
			b.volumeLead = ""
		}
		b.volumes = append(b.volumes, *b.curVolume)
		b.curVolume = nil
	}
}

func (b *builder) finish() []book.Volume {
	b.closeVolume()
	return b.volumes
}

func appendPara(existing, more string) string {
	if existing == "" {
		return more
	}
	return existing + "\n\n" + more
}
