package parser

import (
	"fmt"
	"strings"

	"github.com/chaptermill/chaptermill/internal/book"
)

// IsBareChapter reports whether a chapter is numbered but has no meaningful
// title. These are the candidates for title generation.
func IsBareChapter(c *book.Chapter) bool {
	if c.NumberToken == "" {
		return false
	}
	t := strings.TrimSpace(c.Title)
	if t == "" {
		return true
	}
	// A "title" that is just the number again, in any notation.
	return ParseNumberToken(t) == c.NumberToken
}

// sentence boundaries used when sampling an opening line for a title.
var sentenceCut = []string{"。", "！", "？", "…", ". ", "! ", "? ", "\n"}

// ExtractLeadTitle derives a fallback title from a chapter's opening text:
// the first clause of the first non-empty line, capped to a display length.
// Used when the assistant is disabled or its call failed.
func ExtractLeadTitle(body string, lang book.Language) string {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cut := len(line)
		for _, sep := range sentenceCut {
			if i := strings.Index(line, sep); i >= 0 && i < cut {
				cut = i
			}
		}
		lead := strings.TrimSpace(line[:cut])
		lead = strings.Trim(lead, "“”\"'「」『』（）()")
		max := 15
		if lang == book.LanguageEnglish {
			max = 40
		}
		if runeLen(lead) > max {
			lead = truncateRunes(lead, max)
		}
		if lead == "" {
			return ""
		}
		return lead
	}
	return ""
}

// HeadingDisplay renders the canonical heading for a chapter, used when a
// merged unit's heading text must be preserved in body content and when the
// renderer needs a display string.
func HeadingDisplay(c *book.Chapter, lang book.Language) string {
	switch {
	case c.NumberToken == "":
		return c.Title
	case lang == book.LanguageEnglish:
		if c.Title == "" {
			return fmt.Sprintf("Chapter %s", c.NumberToken)
		}
		return fmt.Sprintf("Chapter %s: %s", c.NumberToken, c.Title)
	default:
		if c.Title == "" {
			return fmt.Sprintf("第%s章", c.NumberToken)
		}
		return fmt.Sprintf("第%s章 %s", c.NumberToken, c.Title)
	}
}

func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
