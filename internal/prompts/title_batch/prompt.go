// Package title_batch builds the prompt and schema for batch title
// generation over numbered-but-untitled chapters. Batching exists because
// per-chapter invocation does not scale; responses correlate back to inputs
// by an explicit index field, never by position.
package title_batch

import (
	"fmt"
	"strings"

	"github.com/chaptermill/chaptermill/internal/book"
)

const SystemPrompt = `You are a professional document structure analysis assistant. You write short, evocative chapter titles from opening content and always return results in JSON format exactly matching the requested schema.`

// MaxBatchSize caps chapters per call. Larger documents make multiple
// calls.
const MaxBatchSize = 50

// Entry is one chapter needing a title. Index is 1-based within the batch
// and must be echoed back.
type Entry struct {
	Index       int
	NumberToken string
	Excerpt     string // leading content, already truncated by the caller
}

// BuildUserPrompt renders the batch title request.
func BuildUserPrompt(lang book.Language, entries []Entry) string {
	var sb strings.Builder
	if lang == book.LanguageEnglish {
		sb.WriteString("Generate a short title (at most 10 words) for each numbered chapter below, ")
		sb.WriteString("based on its opening content.\n\n")
	} else {
		sb.WriteString("请根据每个章节的开头内容，为下列编号章节各生成一个简短的标题（不超过15个字）。\n\n")
	}

	for _, e := range entries {
		if lang == book.LanguageEnglish {
			fmt.Fprintf(&sb, "[%d] Chapter %s:\n%s\n\n", e.Index, e.NumberToken, e.Excerpt)
		} else {
			fmt.Fprintf(&sb, "[%d] 第%s章：\n%s\n\n", e.Index, e.NumberToken, e.Excerpt)
		}
	}

	if lang == book.LanguageEnglish {
		sb.WriteString(`Return JSON:
{"titles": [{"index": <input index>, "title": "...", "confidence": 0.0-1.0}]}

Echo each input index exactly; order does not matter but indices do.`)
	} else {
		sb.WriteString(`返回 JSON：
{"titles": [{"index": <输入序号>, "title": "...", "confidence": 0.0-1.0}]}

必须原样返回每个输入序号；顺序不限，但序号必须正确对应。`)
	}
	return sb.String()
}
