package parser

import (
	"unicode"

	"github.com/chaptermill/chaptermill/internal/book"
)

// languageSampleRunes bounds the prefix examined for classification. Long
// documents are uniform enough that a prefix sample is representative.
const languageSampleRunes = 4000

// DetectLanguage classifies a span as chinese, english, or mixed from
// character-class ratios over a sampled prefix. Purely deterministic.
func DetectLanguage(text string) book.Language {
	var cjk, latin int
	seen := 0
	for _, r := range text {
		seen++
		if seen > languageSampleRunes {
			break
		}
		switch {
		case unicode.Is(unicode.Han, r):
			cjk++
		case unicode.IsLetter(r) && r < 0x250:
			latin++
		}
	}

	total := cjk + latin
	if total == 0 {
		// Whitespace/digits only; Chinese conventions are the safer default
		// for the pattern subset since they are the more specific markers.
		return book.LanguageChinese
	}

	cjkRatio := float64(cjk) / float64(total)
	switch {
	case cjkRatio >= 0.7:
		return book.LanguageChinese
	case cjkRatio <= 0.1:
		return book.LanguageEnglish
	default:
		return book.LanguageMixed
	}
}
