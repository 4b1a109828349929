package parser

import (
	"regexp"
	"strings"
)

// TocWeights holds the per-factor weights of the composite ToC score. The
// exact blend is corpus-sensitive, so every weight is tunable configuration
// rather than a constant.
type TocWeights struct {
	Density     float64 `mapstructure:"density" yaml:"density"`           // heading density per 1000 chars
	Count       float64 `mapstructure:"count" yaml:"count"`               // per heading-like line, once >= MinHeadingCount
	Consecutive float64 `mapstructure:"consecutive" yaml:"consecutive"`   // flat bonus for a run >= MinConsecutive
	ShortLine   float64 `mapstructure:"short_line" yaml:"short_line"`     // flat bonus when short-line ratio >= 60%
	PageNumber  float64 `mapstructure:"page_number" yaml:"page_number"`   // flat bonus for ToC-style page numbers
	Position    float64 `mapstructure:"position" yaml:"position"`         // per line of headroom above line 50
}

// DefaultTocWeights returns the weights validated against the reference
// corpus.
func DefaultTocWeights() TocWeights {
	return TocWeights{
		Density:     0.5,
		Count:       2.0,
		Consecutive: 10.0,
		ShortLine:   20.0,
		PageNumber:  15.0,
		Position:    0.2,
	}
}

// TocConfig controls ToC detection.
type TocConfig struct {
	ScoreThreshold float64 // composite score above which a block is a ToC
	MaxScanLines   int     // scan bound from document start
	Weights        TocWeights
}

const (
	tocWindowLines    = 20
	tocWindowStep     = 3
	tocMinHeadings    = 5
	tocMinConsecutive = 3
	tocShortLineMax   = 40  // runes; ToC entries are short
	tocShortRatioMin  = 0.6
	tocBodyLineMin    = 100 // runes; a paragraph this long ends the ToC
)

// TocVerdict is the outcome of a ToC scan. Start and End are line indices,
// End exclusive. Score is the raw composite value; Confidence maps it into
// [0,1] for comparison against the assistant's verdict.
type TocVerdict struct {
	Found      bool
	Start      int
	End        int
	Score      float64
	Confidence float64
}

// TocDetector scans the head of a document for a table-of-contents block.
type TocDetector struct {
	lib *Library
	cfg TocConfig
}

// NewTocDetector creates a detector. Zero-value config fields fall back to
// defaults.
func NewTocDetector(lib *Library, cfg TocConfig) *TocDetector {
	if cfg.ScoreThreshold == 0 {
		cfg.ScoreThreshold = 30
	}
	if cfg.MaxScanLines == 0 {
		cfg.MaxScanLines = 300
	}
	if cfg.Weights == (TocWeights{}) {
		cfg.Weights = DefaultTocWeights()
	}
	return &TocDetector{lib: lib, cfg: cfg}
}

var tocKeywordRe = regexp.MustCompile(`^[ \t　]*(目\s*录|目\s*次|contents|table of contents)[ \t　]*$`)

// Detect scans lines from document start and returns a verdict. Two methods
// are tried in order: an explicit ToC keyword line, then windowed composite
// scoring.
func (d *TocDetector) Detect(lines []string) TocVerdict {
	limit := min(len(lines), d.cfg.MaxScanLines)

	// Method 1: explicit keyword.
	for i := 0; i < limit; i++ {
		if tocKeywordRe.MatchString(strings.ToLower(lines[i])) {
			end := d.findEnd(lines, i+1)
			if end > i+1 {
				return TocVerdict{Found: true, Start: i, End: end, Score: 100, Confidence: 0.95}
			}
		}
	}

	// Method 2: windowed composite scoring.
	best := TocVerdict{}
	for start := 0; start+tocMinConsecutive < limit; start += tocWindowStep {
		end := min(start+tocWindowLines, limit)
		score := d.scoreWindow(lines[start:end], start)
		if score > best.Score {
			best = TocVerdict{Start: start, End: end, Score: score}
		}
	}

	best.Confidence = clamp01(best.Score / 100)
	if best.Score >= d.cfg.ScoreThreshold {
		best.Found = true
		best.End = d.findEnd(lines, best.Start)
		if best.End <= best.Start {
			best.Found = false
		}
	}
	return best
}

// scoreWindow computes the six-factor composite score for one window.
func (d *TocDetector) scoreWindow(window []string, startLine int) float64 {
	w := d.cfg.Weights

	var (
		headings    int
		nonEmpty    int
		shortLines  int
		totalChars  int
		pageNumbers bool
		run, maxRun int
	)
	for _, line := range window {
		trimmed := strings.TrimSpace(line)
		totalChars += runeLen(line)
		if trimmed == "" {
			run = 0
			continue
		}
		nonEmpty++
		if runeLen(trimmed) <= tocShortLineMax {
			shortLines++
		}
		if HasPageNumber(trimmed) {
			pageNumbers = true
		}
		if d.lib.HeadingLike(trimmed) {
			headings++
			run++
			if run > maxRun {
				maxRun = run
			}
		} else {
			run = 0
		}
	}

	// Fewer than three heading-like lines is never a ToC; without this
	// floor the short-line and position factors alone can cross the
	// threshold on ordinary prose.
	if headings < tocMinConsecutive || nonEmpty == 0 {
		return 0
	}

	score := 0.0
	if totalChars > 0 {
		score += float64(headings) / float64(totalChars) * 1000 * w.Density
	}
	if headings >= tocMinHeadings {
		score += float64(headings) * w.Count
	}
	if maxRun >= tocMinConsecutive {
		score += w.Consecutive
	}
	if float64(shortLines)/float64(nonEmpty) >= tocShortRatioMin {
		score += w.ShortLine
	}
	if pageNumbers {
		score += w.PageNumber
	}
	if startLine < 50 {
		score += float64(50-startLine) * w.Position
	}
	return score
}

// findEnd walks forward from start and returns the exclusive end line of the
// ToC block: the first long paragraph that is not heading-like, or a blank
// line followed by long body content, capped at MaxScanLines.
func (d *TocDetector) findEnd(lines []string, start int) int {
	limit := min(len(lines), start+d.cfg.MaxScanLines)
	for i := start; i < limit; i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			// Blank line followed by long content ends the block.
			if next := nextNonEmpty(lines, i+1, limit); next >= 0 &&
				runeLen(strings.TrimSpace(lines[next])) >= tocBodyLineMin &&
				!d.lib.HeadingLike(lines[next]) {
				return i
			}
			continue
		}
		if runeLen(trimmed) >= tocBodyLineMin && !d.lib.HeadingLike(trimmed) {
			return i
		}
		// A heading directly followed by a long paragraph is a real chapter
		// start, not a ToC entry: the block ends before it.
		if d.lib.HeadingLike(trimmed) {
			if next := nextNonEmpty(lines, i+1, limit); next >= 0 &&
				runeLen(strings.TrimSpace(lines[next])) >= tocBodyLineMin &&
				!d.lib.HeadingLike(lines[next]) {
				return i
			}
		}
	}
	return limit
}

func nextNonEmpty(lines []string, from, limit int) int {
	for i := from; i < limit; i++ {
		if strings.TrimSpace(lines[i]) != "" {
			return i
		}
	}
	return -1
}

// Remove excises a detected ToC block from the text. The returned verdict
// reports what was removed (or not).
func (d *TocDetector) Remove(text string) (string, TocVerdict) {
	lines := strings.Split(text, "\n")
	verdict := d.Detect(lines)
	if !verdict.Found {
		return text, verdict
	}
	kept := make([]string, 0, len(lines)-(verdict.End-verdict.Start))
	kept = append(kept, lines[:verdict.Start]...)
	kept = append(kept, lines[verdict.End:]...)
	return strings.Join(kept, "\n"), verdict
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
