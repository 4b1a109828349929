package parser

import (
	"fmt"
	"strings"
	"testing"
)

func tocFixture() string {
	var sb strings.Builder
	sb.WriteString("目录\n")
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&sb, "第%d章 标题\n", i)
	}
	sb.WriteString("\n第一章 真实标题\n")
	sb.WriteString(strings.Repeat("正文内容在这里继续展开，人物与情节都在推进之中，绝不是目录式的短行。", 5))
	sb.WriteString("\n")
	return sb.String()
}

func TestTocRemoval(t *testing.T) {
	p := newTestParser(t)
	out := p.Parse(tocFixture())

	if !out.Toc.Found {
		t.Fatalf("ToC block not detected, score %v", out.Toc.Score)
	}
	chapters := out.Result.Chapters()
	if len(chapters) != 1 {
		t.Fatalf("expected 1 surviving chapter, got %d", len(chapters))
	}
	if chapters[0].Title != "真实标题" {
		t.Errorf("surviving chapter title = %q", chapters[0].Title)
	}
	if chapters[0].NumberToken != "1" {
		t.Errorf("surviving chapter number = %q", chapters[0].NumberToken)
	}
}

func TestTocScoreAboveThreshold(t *testing.T) {
	p := newTestParser(t)
	d := NewTocDetector(p.Library(), TocConfig{})

	lines := strings.Split(tocFixture(), "\n")
	verdict := d.Detect(lines)
	if !verdict.Found {
		t.Fatalf("dense heading run not classified as ToC, score %v", verdict.Score)
	}
	if verdict.Start != 0 {
		t.Errorf("ToC start = %d, want 0", verdict.Start)
	}
}

func TestNoTocInPlainBody(t *testing.T) {
	p := newTestParser(t)
	d := NewTocDetector(p.Library(), TocConfig{})

	text := "第一章 开端\n\n" + strings.Repeat("这是一个足够长的正文段落，讲述着一个完整的故事，没有任何目录式的罗列。\n\n", 10)
	verdict := d.Detect(strings.Split(text, "\n"))
	if verdict.Found {
		t.Errorf("plain body misclassified as ToC, score %v", verdict.Score)
	}
}

func TestTocEndAtLongParagraph(t *testing.T) {
	p := newTestParser(t)
	d := NewTocDetector(p.Library(), TocConfig{})

	var sb strings.Builder
	for i := 1; i <= 8; i++ {
		fmt.Fprintf(&sb, "第%d章 短行\n", i)
	}
	long := strings.Repeat("这一段正文很长，足以超过目录行的长度判定阈值，说明目录到此结束。", 4)
	sb.WriteString(long + "\n")

	lines := strings.Split(sb.String(), "\n")
	verdict := d.Detect(lines)
	if !verdict.Found {
		t.Fatalf("ToC not detected, score %v", verdict.Score)
	}
	// The final heading opens the real body (it is directly followed by a
	// long paragraph), so the block ends just before it.
	if verdict.End != 7 {
		t.Errorf("ToC end = %d, want 7", verdict.End)
	}
}

func TestTocScanBound(t *testing.T) {
	p := newTestParser(t)
	d := NewTocDetector(p.Library(), TocConfig{MaxScanLines: 5})

	// Heading run starts beyond the scan bound; must not be classified.
	var sb strings.Builder
	sb.WriteString(strings.Repeat("普通正文行。\n", 10))
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&sb, "第%d章 标题\n", i)
	}
	verdict := d.Detect(strings.Split(sb.String(), "\n"))
	if verdict.Found {
		t.Errorf("ToC found outside scan bound at line %d", verdict.Start)
	}
}

func TestHasPageNumber(t *testing.T) {
	cases := []struct {
		line string
		want bool
	}{
		{"第一章 风起........12", true},
		{"Chapter 1   ·······   3", true},
		{"第一章 风起", false},
		{"他数到12", false},
	}
	for _, tc := range cases {
		if got := HasPageNumber(tc.line); got != tc.want {
			t.Errorf("HasPageNumber(%q) = %v, want %v", tc.line, got, tc.want)
		}
	}
}
