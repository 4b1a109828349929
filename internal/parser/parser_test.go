package parser

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/chaptermill/chaptermill/internal/book"
)

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	p, err := New(Options{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func chineseNovel() string {
	var sb strings.Builder
	for i := 1; i <= 3; i++ {
		fmt.Fprintf(&sb, "第%d章 风起\n\n", i)
		sb.WriteString(strings.Repeat("他望着远方的山峦，心里久久不能平静。", 30))
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func TestParseChineseChapters(t *testing.T) {
	p := newTestParser(t)
	out := p.Parse(chineseNovel())

	if len(out.Result.Volumes) != 1 {
		t.Fatalf("expected 1 implicit volume, got %d", len(out.Result.Volumes))
	}
	vol := out.Result.Volumes[0]
	if !vol.Implicit {
		t.Errorf("volume should be implicit")
	}
	if len(vol.Chapters) != 3 {
		t.Fatalf("expected 3 chapters, got %d", len(vol.Chapters))
	}
	for i, ch := range vol.Chapters {
		if want := fmt.Sprintf("%d", i+1); ch.NumberToken != want {
			t.Errorf("chapter %d number = %q, want %q", i, ch.NumberToken, want)
		}
		if ch.Title != "风起" {
			t.Errorf("chapter %d title = %q", i, ch.Title)
		}
		if ch.Body == "" {
			t.Errorf("chapter %d has empty body", i)
		}
	}
}

func TestParseIdempotent(t *testing.T) {
	p := newTestParser(t)
	text := chineseNovel()
	first := p.Parse(text)
	second := p.Parse(text)
	if !reflect.DeepEqual(first.Result, second.Result) {
		t.Errorf("re-parsing the same input produced a different result")
	}
	if !reflect.DeepEqual(first.Candidates, second.Candidates) {
		t.Errorf("re-parsing the same input produced different candidates")
	}
}

func TestConfidenceBounds(t *testing.T) {
	p := newTestParser(t)
	inputs := []string{
		chineseNovel(),
		"Chapter 1: The Beginning\n\nIt was a dark and stormy night.\n\nChapter 2\n\nMorning came.",
		"第一章，他说的对\n正文",
		"no structure at all, just prose",
	}
	for _, text := range inputs {
		out := p.Parse(text)
		for _, c := range out.Candidates {
			if c.Confidence < 0 || c.Confidence > 1 {
				t.Errorf("candidate %q confidence %v out of bounds", c.RawText, c.Confidence)
			}
		}
		if oc := out.Result.OverallConfidence; oc < 0 || oc > 1 {
			t.Errorf("overall confidence %v out of bounds", oc)
		}
	}
}

func TestNoMatchFallback(t *testing.T) {
	p := newTestParser(t)
	text := "这是一段没有任何章节标记的文字。\n它只有普通的叙述内容。\n"
	out := p.Parse(text)

	if len(out.Result.Volumes) != 1 {
		t.Fatalf("expected 1 volume, got %d", len(out.Result.Volumes))
	}
	if got := len(out.Result.Volumes[0].Chapters); got != 1 {
		t.Fatalf("expected 1 chapter, got %d", got)
	}
	if out.Result.OverallConfidence != 0 {
		t.Errorf("fallback confidence = %v, want 0", out.Result.OverallConfidence)
	}
	if !strings.Contains(out.Result.Volumes[0].Chapters[0].Body, "普通的叙述内容") {
		t.Errorf("fallback chapter lost body text")
	}
}

func TestEmptyInput(t *testing.T) {
	p := newTestParser(t)
	for _, text := range []string{"", "   \n\t\n"} {
		out := p.Parse(text)
		if len(out.Result.Volumes) != 0 {
			t.Errorf("empty input produced %d volumes", len(out.Result.Volumes))
		}
		if out.Result.OverallConfidence != 0 {
			t.Errorf("empty input confidence = %v", out.Result.OverallConfidence)
		}
	}
}

func TestVolumeHierarchy(t *testing.T) {
	p := newTestParser(t)
	text := "第一卷 少年游\n\n第一章 出门\n\n" + strings.Repeat("少年背起行囊。", 50) +
		"\n\n第二卷 江湖行\n\n第一章 初遇\n\n" + strings.Repeat("江湖之上风波恶。", 50)
	out := p.Parse(text)

	if len(out.Result.Volumes) != 2 {
		t.Fatalf("expected 2 volumes, got %d", len(out.Result.Volumes))
	}
	if out.Result.Volumes[0].Title != "少年游" || out.Result.Volumes[1].Title != "江湖行" {
		t.Errorf("volume titles = %q, %q", out.Result.Volumes[0].Title, out.Result.Volumes[1].Title)
	}
	for vi, v := range out.Result.Volumes {
		if len(v.Chapters) != 1 {
			t.Errorf("volume %d has %d chapters, want 1", vi, len(v.Chapters))
		}
	}
}

func TestSectionNesting(t *testing.T) {
	p := newTestParser(t)
	text := "第一章 开端\n\n引言段落。\n\n第一节 清晨\n\n" + strings.Repeat("晨光微亮。", 30) +
		"\n\n第二节 黄昏\n\n" + strings.Repeat("暮色四合。", 30)
	out := p.Parse(text)

	chapters := out.Result.Chapters()
	if len(chapters) != 1 {
		t.Fatalf("expected 1 chapter, got %d", len(chapters))
	}
	ch := chapters[0]
	if !strings.Contains(ch.Body, "引言段落") {
		t.Errorf("chapter preface text missing, body = %q", ch.Body)
	}
	if len(ch.Sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(ch.Sections))
	}
	if ch.Sections[0].Title != "清晨" || ch.Sections[1].Title != "黄昏" {
		t.Errorf("section titles = %q, %q", ch.Sections[0].Title, ch.Sections[1].Title)
	}
}

func TestSpecialUnits(t *testing.T) {
	p := newTestParser(t)
	text := "楔子\n\n" + strings.Repeat("很久以前。", 40) + "\n\n第一章 正篇\n\n" +
		strings.Repeat("故事开始了。", 40) + "\n\n尾声\n\n" + strings.Repeat("故事结束了。", 40)
	out := p.Parse(text)

	chapters := out.Result.Chapters()
	if len(chapters) != 3 {
		t.Fatalf("expected 3 chapters, got %d", len(chapters))
	}
	if chapters[0].Title != "楔子" || chapters[2].Title != "尾声" {
		t.Errorf("special unit titles = %q, %q", chapters[0].Title, chapters[2].Title)
	}
}

func TestInlineReferenceNotAHeading(t *testing.T) {
	p := newTestParser(t)
	// These lines mention chapters without opening one.
	lines := []string{
		"他在第三章中提到过这件事。",
		"如第五章所述，一切早有伏笔。",
		"见第二章。",
	}
	for _, line := range lines {
		if ms := p.Library().MatchLine(book.LanguageChinese, line); ms != nil {
			t.Errorf("line %q matched as heading %v", line, ms[0].Rule.Name)
		}
	}
}

func TestCompoundHeading(t *testing.T) {
	p := newTestParser(t)
	ms := p.Library().MatchLine(book.LanguageChinese, "第一卷 第三章 夜雨")
	if len(ms) != 2 {
		t.Fatalf("compound heading produced %d matches, want 2", len(ms))
	}
	if ms[0].Rule.Level != book.LevelVolume || ms[0].NumberToken != "1" {
		t.Errorf("first match = %+v", ms[0])
	}
	if ms[1].Rule.Level != book.LevelChapter || ms[1].NumberToken != "3" || ms[1].Title != "夜雨" {
		t.Errorf("second match = %+v", ms[1])
	}
}

func TestEnglishChapters(t *testing.T) {
	p := newTestParser(t)
	text := "Chapter One: The Road\n\n" + strings.Repeat("The road goes ever on. ", 40) +
		"\n\nChapter 2\n\n" + strings.Repeat("Night fell over the hills. ", 40)
	out := p.Parse(text)

	chapters := out.Result.Chapters()
	if len(chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(chapters))
	}
	if chapters[0].NumberToken != "1" || chapters[0].Title != "The Road" {
		t.Errorf("chapter 1 = %q %q", chapters[0].NumberToken, chapters[0].Title)
	}
	if chapters[1].NumberToken != "2" {
		t.Errorf("chapter 2 number = %q", chapters[1].NumberToken)
	}
	if out.Result.Language != book.LanguageEnglish {
		t.Errorf("language = %q", out.Result.Language)
	}
}

func TestContentPreservation(t *testing.T) {
	p := newTestParser(t)
	text := chineseNovel()
	out := p.Parse(text)

	// Heading lines become metadata; everything else must survive as body.
	bodyRunes := out.Result.CharCount()
	inputRunes := runeLen(text)
	// Allow for the three heading lines plus whitespace normalization.
	if bodyRunes < inputRunes-60 || bodyRunes > inputRunes {
		t.Errorf("body runes %d too far from input runes %d", bodyRunes, inputRunes)
	}
}

func TestConsistencyBonus(t *testing.T) {
	p := newTestParser(t)
	single := p.Scan("第一章 孤例\n\n正文。", book.LanguageChinese)
	many := p.Scan(chineseNovel(), book.LanguageChinese)
	if len(single) != 1 || len(many) != 3 {
		t.Fatalf("unexpected candidate counts: %d, %d", len(single), len(many))
	}
	if many[0].Confidence <= single[0].Confidence {
		t.Errorf("recurring pattern confidence %v not above singleton %v",
			many[0].Confidence, single[0].Confidence)
	}
}
