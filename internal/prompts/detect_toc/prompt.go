// Package detect_toc builds the prompt and schema for the assistant's
// table-of-contents verdict, used when the rule-based score lands in the
// ambiguous middle band.
package detect_toc

import (
	"fmt"
	"strings"

	"github.com/chaptermill/chaptermill/internal/book"
)

const SystemPrompt = `You are a professional document structure analysis assistant. You decide whether the opening block of a manuscript is a table of contents and always return results in JSON format exactly matching the requested schema.`

// BuildUserPrompt renders the ToC decision request over the document head.
func BuildUserPrompt(lang book.Language, head string) string {
	var sb strings.Builder
	if lang == book.LanguageEnglish {
		sb.WriteString("Below is the opening of a plain-text manuscript. Decide whether it begins with a ")
		sb.WriteString("table of contents (a dense list of chapter titles, possibly with page numbers) that ")
		sb.WriteString("should be removed before structural parsing.\n\n")
	} else {
		sb.WriteString("以下是一部文本的开头部分。请判断它是否以目录开始")
		sb.WriteString("（即密集罗列的章节标题，可能带页码），该目录在结构解析前应当被移除。\n\n")
	}

	fmt.Fprintf(&sb, "<document_head>\n%s\n</document_head>\n\n", head)

	if lang == book.LanguageEnglish {
		sb.WriteString(`Return JSON:
{"has_toc": true/false, "confidence": 0.0-1.0, "reason": "...", "end_line": <0-based line index where the ToC ends, or null>}`)
	} else {
		sb.WriteString(`返回 JSON：
{"has_toc": true/false, "confidence": 0.0-1.0, "reason": "...", "end_line": <目录结束处的行号（从0开始），没有则为 null>}`)
	}
	return sb.String()
}
