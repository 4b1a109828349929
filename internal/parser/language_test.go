package parser

import (
	"strings"
	"testing"

	"github.com/chaptermill/chaptermill/internal/book"
)

func TestDetectLanguage(t *testing.T) {
	cases := []struct {
		name string
		text string
		want book.Language
	}{
		{"chinese", strings.Repeat("这是一段中文叙述。", 20), book.LanguageChinese},
		{"english", strings.Repeat("This is an English paragraph. ", 20), book.LanguageEnglish},
		{"mixed", strings.Repeat("他说hello然后转身离开again。", 20), book.LanguageMixed},
		{"empty", "", book.LanguageChinese},
		{"digits_only", "123 456\n789", book.LanguageChinese},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectLanguage(tc.text); got != tc.want {
				t.Errorf("DetectLanguage = %q, want %q", got, tc.want)
			}
		})
	}
}
