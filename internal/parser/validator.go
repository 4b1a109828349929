package parser

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/chaptermill/chaptermill/internal/book"
)

// MergeDirection is the preferred neighbor for absorbing a short chapter.
type MergeDirection string

const (
	MergeForward  MergeDirection = "forward"
	MergeBackward MergeDirection = "backward"
)

// ValidateOptions controls the validator/merger pass.
type ValidateOptions struct {
	MinChapterLength int // runes; shorter chapters are merged into a sibling
	MinSectionLength int // runes; shorter sections fold into the chapter body
	Direction        MergeDirection
	Tolerance        float64 // relative char-count deviation before flagging
}

// pageArtifactRe matches lines that are nothing but a page marker: bare
// numbers, "- 12 -", "第12页", "Page 12".
var pageArtifactRe = regexp.MustCompile(`^[ \t　]*(?:-[ \t]*)?(?:第?[ \t]*\d{1,4}[ \t]*页?|[Pp]age[ \t]+\d{1,4})(?:[ \t]*-)?[ \t　]*$`)

// Validate post-processes an assembled hierarchy in place: removes page
// artifacts, merges duplicate adjacent chapters, enforces the minimum
// chapter length, and reports character-count integrity. A count deviation
// beyond tolerance is surfaced as a report flag, never an error.
func Validate(result *book.ParseResult, opts ValidateOptions, logger *slog.Logger) book.ValidationReport {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Tolerance == 0 {
		opts.Tolerance = 0.005
	}
	if opts.Direction == "" {
		opts.Direction = MergeForward
	}

	report := book.ValidationReport{TotalBefore: result.CharCount()}

	for vi := range result.Volumes {
		v := &result.Volumes[vi]
		report.RemovedArtifacts += stripArtifacts(v)
		report.MergedDuplicates += mergeDuplicates(v)
		if opts.MinSectionLength > 0 {
			foldThinSections(v, opts.MinSectionLength)
		}
		if opts.MinChapterLength > 0 {
			report.MergedChapters += mergeShort(v, opts.MinChapterLength, opts.Direction, result.Language)
		}
	}

	for _, ch := range result.Chapters() {
		report.ChapterCounts = append(report.ChapterCounts, ch.CharCount())
	}
	report.TotalAfter = result.CharCount()

	if report.TotalBefore > 0 {
		diff := report.TotalAfter - report.TotalBefore
		if diff < 0 {
			diff = -diff
		}
		report.Deviation = float64(diff) / float64(report.TotalBefore)
		if report.Deviation > opts.Tolerance {
			report.IntegrityViolation = true
			logger.Warn("character count deviation beyond tolerance",
				"before", report.TotalBefore,
				"after", report.TotalAfter,
				"deviation", report.Deviation)
		}
	}

	result.Diagnostics.MergedUnits = report.MergedChapters + report.MergedDuplicates
	result.Report = report
	return report
}

// stripArtifacts removes page-marker lines from chapter and section bodies.
func stripArtifacts(v *book.Volume) int {
	removed := 0
	clean := func(body string) string {
		if !strings.Contains(body, "\n") && !pageArtifactRe.MatchString(body) {
			return body
		}
		lines := strings.Split(body, "\n")
		kept := lines[:0]
		for _, line := range lines {
			if pageArtifactRe.MatchString(line) {
				removed++
				continue
			}
			kept = append(kept, line)
		}
		return strings.Join(kept, "\n")
	}
	for ci := range v.Chapters {
		ch := &v.Chapters[ci]
		ch.Body = clean(ch.Body)
		for si := range ch.Sections {
			ch.Sections[si].Body = clean(ch.Sections[si].Body)
		}
	}
	return removed
}

// mergeDuplicates concatenates adjacent chapters carrying the same number
// token. Duplicates are merged, never dropped: both bodies survive with a
// paragraph break between them.
func mergeDuplicates(v *book.Volume) int {
	merged := 0
	out := v.Chapters[:0]
	for _, ch := range v.Chapters {
		if len(out) > 0 {
			prev := &out[len(out)-1]
			if ch.NumberToken != "" && ch.NumberToken == prev.NumberToken {
				prev.Body = joinBodies(prev.Body, ch.Body)
				prev.Sections = append(prev.Sections, ch.Sections...)
				if prev.Title == "" {
					prev.Title = ch.Title
				}
				if ch.Confidence > prev.Confidence {
					prev.Confidence = ch.Confidence
				}
				merged++
				continue
			}
		}
		out = append(out, ch)
	}
	v.Chapters = out
	return merged
}

// foldThinSections dissolves sections below the minimum into their chapter's
// direct body, keeping the section title as a line so no text disappears.
func foldThinSections(v *book.Volume, minLen int) {
	for ci := range v.Chapters {
		ch := &v.Chapters[ci]
		if len(ch.Sections) == 0 {
			continue
		}
		kept := ch.Sections[:0]
		for _, s := range ch.Sections {
			if s.CharCount() >= minLen || len(ch.Sections) == 1 {
				kept = append(kept, s)
				continue
			}
			text := s.Body
			if s.Title != "" {
				text = s.Title + "\n\n" + s.Body
			}
			ch.Body = joinBodies(ch.Body, text)
		}
		if len(kept) == 0 {
			ch.Sections = nil
		} else {
			ch.Sections = kept
		}
	}
}

// mergeShort absorbs chapters below the minimum length into a sibling.
// Preferred direction is configurable; a short chapter at the boundary uses
// the other direction, and a sole child is never dropped regardless of
// length. The absorbed chapter's heading is preserved inside the survivor's
// body so the text stream stays intact.
func mergeShort(v *book.Volume, minLen int, dir MergeDirection, lang book.Language) int {
	merged := 0
	for {
		if len(v.Chapters) <= 1 {
			return merged
		}
		idx := -1
		for i := range v.Chapters {
			if v.Chapters[i].CharCount() < minLen {
				idx = i
				break
			}
		}
		if idx < 0 {
			return merged
		}

		short := v.Chapters[idx]
		absorbed := HeadingDisplay(&short, lang)
		text := short.Body
		if absorbed != "" {
			text = joinBodies(absorbed, short.Body)
		}

		forward := dir == MergeForward
		if forward && idx == len(v.Chapters)-1 {
			forward = false
		}
		if !forward && idx == 0 {
			forward = true
		}

		if forward {
			next := &v.Chapters[idx+1]
			next.Body = joinBodies(text, next.Body)
			if len(short.Sections) > 0 {
				next.Sections = append(append([]book.Section{}, short.Sections...), next.Sections...)
			}
		} else {
			prev := &v.Chapters[idx-1]
			prev.Body = joinBodies(prev.Body, text)
			prev.Sections = append(prev.Sections, short.Sections...)
		}
		v.Chapters = append(v.Chapters[:idx], v.Chapters[idx+1:]...)
		merged++
	}
}

func joinBodies(a, b string) string {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "\n\n" + b
	}
}
