// Package book provides the structural types shared across the parsing
// pipeline. This package has no dependencies on other chaptermill packages
// to avoid import cycles.
package book

// Level is the structural depth of a heading.
type Level string

const (
	LevelVolume  Level = "volume"
	LevelChapter Level = "chapter"
	LevelSection Level = "section"
)

// Source indicates where a structural decision came from.
type Source string

const (
	// SourceRule indicates the unit was produced by pattern matching.
	SourceRule Source = "rule"
	// SourceLLM indicates the unit was confirmed, retitled, or proposed by
	// the language-model assistant.
	SourceLLM Source = "llm"
)

// HeadingCandidate is a span of text provisionally identified as a
// volume/chapter/section boundary. Candidates are produced by the pattern
// library, possibly revised during hybrid parsing, and frozen once the
// validator finalizes the hierarchy.
type HeadingCandidate struct {
	RawText     string  `json:"raw_text"`
	LineIndex   int     `json:"line_index"`
	StartOffset int     `json:"start_offset"`
	EndOffset   int     `json:"end_offset"`
	Level       Level   `json:"level"`
	NumberToken string  `json:"number_token,omitempty"` // canonical arabic form, "" if absent
	Title       string  `json:"title,omitempty"`
	Confidence  float64 `json:"confidence"`
	Source      Source  `json:"source"`
	Pattern     string  `json:"pattern,omitempty"` // name of the matching rule
}

// Section is the leaf content unit, owned exclusively by its chapter.
type Section struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// CharCount returns the body length in runes.
func (s *Section) CharCount() int {
	return runeLen(s.Body)
}

// Chapter is an ordered unit within a volume. Sections may be empty, in
// which case Body holds the chapter's direct text. Numbering is positional;
// gaps in number tokens are preserved, never renumbered.
type Chapter struct {
	NumberToken string    `json:"number_token,omitempty"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Sections    []Section `json:"sections,omitempty"`
	Confidence  float64   `json:"confidence"`
	Source      Source    `json:"source"`
}

// CharCount returns the total rune count of the chapter body plus all
// section bodies.
func (c *Chapter) CharCount() int {
	n := runeLen(c.Body)
	for i := range c.Sections {
		n += c.Sections[i].CharCount()
	}
	return n
}

// Volume is the top-level unit. A document with no volume markers yields
// exactly one implicit volume wrapping all chapters.
type Volume struct {
	NumberToken string    `json:"number_token,omitempty"`
	Title       string    `json:"title"`
	Chapters    []Chapter `json:"chapters"`
	Implicit    bool      `json:"implicit,omitempty"`
}

// CharCount returns the total rune count across all chapters.
func (v *Volume) CharCount() int {
	n := 0
	for i := range v.Chapters {
		n += v.Chapters[i].CharCount()
	}
	return n
}

// Language is the dominant script of a document span.
type Language string

const (
	LanguageChinese Language = "chinese"
	LanguageEnglish Language = "english"
	LanguageMixed   Language = "mixed"
)

// Diagnostics counts how the final structure was arrived at. Exposed for
// observability only; never consulted by control flow.
type Diagnostics struct {
	RuleMatched  int `json:"rule_matched"`
	LLMAssisted  int `json:"llm_assisted"`
	LLMRejected  int `json:"llm_rejected"`
	MergedUnits  int `json:"merged_units"`
	DroppedLines int `json:"dropped_lines"`
	TocRemoved   bool `json:"toc_removed"`
	TocLines     int  `json:"toc_lines,omitempty"`
}

// ValidationReport summarizes the validator/merger pass. An integrity
// violation is a warning flag, not an error: partial structural success is
// preferable to total failure.
type ValidationReport struct {
	ChapterCounts      []int   `json:"chapter_counts"`
	TotalBefore        int     `json:"total_before"`
	TotalAfter         int     `json:"total_after"`
	MergedChapters     int     `json:"merged_chapters"`
	MergedDuplicates   int     `json:"merged_duplicates"`
	RemovedArtifacts   int     `json:"removed_artifacts"`
	IntegrityViolation bool    `json:"integrity_violation"`
	Deviation          float64 `json:"deviation"`
}

// ParseResult is the terminal output of the core pipeline. Ownership
// transfers to the rendering collaborator.
type ParseResult struct {
	Volumes           []Volume         `json:"volumes"`
	Language          Language         `json:"language"`
	OverallConfidence float64          `json:"overall_confidence"`
	Diagnostics       Diagnostics      `json:"diagnostics"`
	Report            ValidationReport `json:"report,omitempty"`
}

// Chapters returns all chapters across volumes in document order.
func (r *ParseResult) Chapters() []*Chapter {
	var out []*Chapter
	for vi := range r.Volumes {
		for ci := range r.Volumes[vi].Chapters {
			out = append(out, &r.Volumes[vi].Chapters[ci])
		}
	}
	return out
}

// CharCount returns the total rune count across all volumes.
func (r *ParseResult) CharCount() int {
	n := 0
	for i := range r.Volumes {
		n += r.Volumes[i].CharCount()
	}
	return n
}

func runeLen(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}
