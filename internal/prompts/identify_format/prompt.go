// Package identify_format builds the prompt and schema for classifying the
// numbering convention a document uses. The answer aids pattern selection
// for subsequent documents in a batch run.
package identify_format

import (
	"fmt"
	"strings"

	"github.com/chaptermill/chaptermill/internal/book"
)

const SystemPrompt = `You are a professional document structure analysis assistant. You identify the chapter numbering convention of a manuscript and always return results in JSON format exactly matching the requested schema.`

// BuildUserPrompt renders the format identification request over a content
// sample.
func BuildUserPrompt(lang book.Language, sample string) string {
	var sb strings.Builder
	if lang == book.LanguageEnglish {
		sb.WriteString("Identify the chapter heading convention used in this manuscript sample: ")
		sb.WriteString("how chapters are marked, what numbering notation is used, and a regular ")
		sb.WriteString("expression (Go syntax) that would match the headings.\n\n")
	} else {
		sb.WriteString("请识别该文本样本使用的章节标题格式：章节如何标记、使用何种编号方式，")
		sb.WriteString("并给出能匹配这些标题的正则表达式（Go 语法）。\n\n")
	}

	fmt.Fprintf(&sb, "<sample>\n%s\n</sample>\n\n", sample)

	sb.WriteString(`Return JSON:
{"format_type": "...", "chapter_pattern": "human-readable description", "sample_headings": ["..."], "suggested_regex": "...", "confidence": 0.0-1.0}`)
	return sb.String()
}
