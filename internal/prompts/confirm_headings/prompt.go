// Package confirm_headings builds the prompt and schema for confirming
// whether low-confidence heading candidates are genuine chapter boundaries.
package confirm_headings

import (
	"fmt"
	"strings"

	"github.com/chaptermill/chaptermill/internal/book"
)

// SystemPrompt frames the assistant's role. Shared by all operations in
// this family; responses must be structured JSON.
const SystemPrompt = `You are a professional document structure analysis assistant. You analyze plain-text manuscripts, identify chapter and section boundaries, and always return results in JSON format exactly matching the requested schema.`

// Candidate is one heading candidate plus surrounding context sent for
// confirmation. Index is 1-based and must be echoed back in the response.
type Candidate struct {
	Index   int
	Line    string
	Before  string // text immediately preceding the line
	After   string // text immediately following the line
}

// BuildUserPrompt renders the confirmation request. The prompt language
// follows the document language.
func BuildUserPrompt(lang book.Language, candidates []Candidate) string {
	var sb strings.Builder
	if lang == book.LanguageEnglish {
		sb.WriteString("The following lines were tentatively detected as chapter headings in a manuscript, ")
		sb.WriteString("but with low confidence. For each one, decide whether it is a genuine chapter heading ")
		sb.WriteString("or ordinary body text (for example, a sentence that merely mentions a chapter).\n\n")
	} else {
		sb.WriteString("以下是从文本中初步识别出的疑似章节标题，但置信度较低。")
		sb.WriteString("请逐一判断每行是否为真正的章节标题，还是普通正文（例如仅仅提到某一章的句子）。\n\n")
	}

	for _, c := range candidates {
		fmt.Fprintf(&sb, "[%d]\n", c.Index)
		if c.Before != "" {
			fmt.Fprintf(&sb, "...%s\n", c.Before)
		}
		fmt.Fprintf(&sb, ">>> %s\n", c.Line)
		if c.After != "" {
			fmt.Fprintf(&sb, "%s...\n", c.After)
		}
		sb.WriteString("\n")
	}

	if lang == book.LanguageEnglish {
		sb.WriteString(`Return JSON:
{"decisions": [{"index": <input index>, "is_chapter": true/false, "confidence": 0.0-1.0, "reason": "...", "suggested_title": "optional corrected title"}]}

Echo each input index exactly. Include every candidate.`)
	} else {
		sb.WriteString(`返回 JSON：
{"decisions": [{"index": <输入序号>, "is_chapter": true/false, "confidence": 0.0-1.0, "reason": "...", "suggested_title": "可选的修正标题"}]}

必须原样返回每个输入序号，且不得遗漏任何候选。`)
	}
	return sb.String()
}
