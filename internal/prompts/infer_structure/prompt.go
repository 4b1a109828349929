// Package infer_structure builds the prompt and schema for proposing a
// chapter structure directly from content, used on documents where the
// rule-based signal is too weak to segment.
package infer_structure

import (
	"fmt"
	"strings"

	"github.com/chaptermill/chaptermill/internal/book"
)

const SystemPrompt = `You are a professional document structure analysis assistant. You propose chapter boundaries for unmarked manuscripts and always return results in JSON format exactly matching the requested schema.`

// BuildUserPrompt renders the structure inference request over a content
// sample. Offsets in the response are character offsets into the sample.
func BuildUserPrompt(lang book.Language, sample string) string {
	var sb strings.Builder
	if lang == book.LanguageEnglish {
		sb.WriteString("The manuscript sample below has no recognizable chapter markers. Propose a chapter ")
		sb.WriteString("segmentation: where each chapter should start and end (character offsets into the ")
		sb.WriteString("sample), with a short title for each.\n\n")
	} else {
		sb.WriteString("以下文本样本没有可识别的章节标记。请提出一个章节划分方案：")
		sb.WriteString("每章的起止位置（样本内的字符偏移量），以及每章的简短标题。\n\n")
	}

	fmt.Fprintf(&sb, "<sample>\n%s\n</sample>\n\n", sample)

	sb.WriteString(`Return JSON:
{"suggested_chapters": [{"start_char": N, "end_char": N, "title": "...", "reason": "...", "confidence": 0.0-1.0}], "confidence": 0.0-1.0}`)
	return sb.String()
}
