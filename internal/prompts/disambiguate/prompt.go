// Package disambiguate builds the prompt and schema for resolving
// conflicting interpretations of one span: a genuine heading versus a
// cross-reference or other body text.
package disambiguate

import (
	"fmt"
	"strings"

	"github.com/chaptermill/chaptermill/internal/book"
)

const SystemPrompt = `You are a professional document structure analysis assistant. You resolve ambiguous readings of a text span and always return results in JSON format exactly matching the requested schema.`

// Interpretation is one candidate reading of the span.
type Interpretation struct {
	Index       int
	Level       book.Level
	NumberToken string
	Title       string
}

// BuildUserPrompt renders the disambiguation request.
func BuildUserPrompt(lang book.Language, span, context string, options []Interpretation) string {
	var sb strings.Builder
	if lang == book.LanguageEnglish {
		sb.WriteString("The span below matched more than one structural interpretation. Pick the correct one.\n\n")
	} else {
		sb.WriteString("以下文本片段匹配了多种结构解释，请选出正确的一种。\n\n")
	}

	fmt.Fprintf(&sb, "<span>%s</span>\n<context>%s</context>\n\n", span, context)

	for _, o := range options {
		fmt.Fprintf(&sb, "[%d] level=%s number=%q title=%q\n", o.Index, o.Level, o.NumberToken, o.Title)
	}
	if lang == book.LanguageEnglish {
		fmt.Fprintf(&sb, "[%d] none of the above: the span is ordinary body text\n\n", len(options)+1)
		sb.WriteString(`Return JSON:
{"choice": <index, or the last index for body text>, "confidence": 0.0-1.0, "reason": "..."}`)
	} else {
		fmt.Fprintf(&sb, "[%d] 以上皆非：该片段是普通正文\n\n", len(options)+1)
		sb.WriteString(`返回 JSON：
{"choice": <所选序号，普通正文则选最后一个序号>, "confidence": 0.0-1.0, "reason": "..."}`)
	}
	return sb.String()
}
