package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/chaptermill/chaptermill/internal/book"
)

// A Rule recognizes one heading convention. Matching is line-anchored: a
// heading must start its own line, never appear mid-paragraph.
type Rule struct {
	Name  string
	Level book.Level
	// Base is the pattern-specificity confidence before contextual
	// adjustments. Fully numbered conventions score higher than bare
	// keyword markers.
	Base float64

	re         *regexp.Regexp
	numGroup   int
	titleGroup int
	keyword    bool // keyword-only marker (楔子, Prologue): number group unused
}

// Match is one rule hit on a line. A compound heading (第一卷 第二章 …)
// produces two matches, volume first.
type Match struct {
	Rule        *Rule
	NumberToken string // canonical arabic form, "" for keyword markers
	RawNumber   string // number text as written
	Title       string
}

const (
	cnDigits = `一二三四五六七八九十百千万零两壹贰叁肆伍陆柒捌玖拾佰仟萬`
	// Separator between the marker and an optional title: space, fullwidth
	// space, or colon.
	cnSep   = `[ \t　:：]?`
	enWords = `one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve|thirteen|fourteen|fifteen|sixteen|seventeen|eighteen|nineteen|twenty`
	roman   = `[IVXLCDMivxlcdm]+`
)

// Library holds the compiled recognizer rules plus user-supplied custom and
// ignore patterns.
type Library struct {
	chinese []Rule
	english []Rule
	ignore  []*regexp.Regexp

	compoundCN *regexp.Regexp
	compoundEN *regexp.Regexp
}

// LibraryOptions supplies user-defined pattern extensions. Custom patterns
// must capture the number in group 1 and may capture a title in group 2.
type LibraryOptions struct {
	CustomChapterPatterns []string
	CustomVolumePatterns  []string
	CustomSectionPatterns []string
	IgnorePatterns        []string
}

// NewLibrary compiles the built-in rule set plus any custom patterns.
func NewLibrary(opts LibraryOptions) (*Library, error) {
	lib := &Library{
		chinese: []Rule{
			{
				Name:  "cn_chapter",
				Level: book.LevelChapter,
				Base:  0.6,
				re:         regexp.MustCompile(`^[ \t　]*第([` + cnDigits + `]+|\d{1,4})章` + cnSep + `(.*)$`),
				numGroup:   1,
				titleGroup: 2,
			},
			{
				Name:  "cn_volume",
				Level: book.LevelVolume,
				Base:  0.65,
				re:         regexp.MustCompile(`^[ \t　]*第([` + cnDigits + `]+|\d{1,3})[卷部篇]` + cnSep + `(.*)$`),
				numGroup:   1,
				titleGroup: 2,
			},
			{
				Name:  "cn_section",
				Level: book.LevelSection,
				Base:  0.55,
				re:         regexp.MustCompile(`^[ \t　]*第([` + cnDigits + `]+|\d{1,3})节` + cnSep + `(.*)$`),
				numGroup:   1,
				titleGroup: 2,
			},
			{
				Name:    "cn_special",
				Level:   book.LevelChapter,
				Base:    0.55,
				re:      regexp.MustCompile(`^[ \t　]*(楔子|序章|序言|引子|尾声|终章|后记|番外篇|番外|外传|特别篇|插话)` + cnSep + `(.*)$`),
				numGroup:   1,
				titleGroup: 2,
				keyword:    true,
			},
		},
		english: []Rule{
			{
				Name:  "en_chapter",
				Level: book.LevelChapter,
				Base:  0.6,
				re:         regexp.MustCompile(`(?i)^[ \t]*(?:chapter|chap\.?|ch\.)[ \t]+(\d{1,4}|` + roman + `|` + enWords + `)\b[ \t.:：-]*(.*)$`),
				numGroup:   1,
				titleGroup: 2,
			},
			{
				Name:  "en_volume",
				Level: book.LevelVolume,
				Base:  0.65,
				re:         regexp.MustCompile(`(?i)^[ \t]*(?:part|book|volume|vol\.?)[ \t]+(\d{1,3}|` + roman + `|` + enWords + `)\b[ \t.:：-]*(.*)$`),
				numGroup:   1,
				titleGroup: 2,
			},
			{
				Name:  "en_section",
				Level: book.LevelSection,
				Base:  0.55,
				re:         regexp.MustCompile(`(?i)^[ \t]*section[ \t]+(\d{1,3})\b[ \t.:：-]*(.*)$`),
				numGroup:   1,
				titleGroup: 2,
			},
			{
				Name:  "en_numbered_section",
				Level: book.LevelSection,
				Base:  0.45,
				re:         regexp.MustCompile(`^[ \t]*(\d{1,3}\.\d{1,3})[ \t.:]*([^\d].*)?$`),
				numGroup:   1,
				titleGroup: 2,
			},
			{
				Name:    "en_special",
				Level:   book.LevelChapter,
				Base:    0.5,
				re:      regexp.MustCompile(`(?i)^[ \t]*(prologue|epilogue|preface|foreword|afterword|introduction|interlude)\b[ \t.:：-]*(.*)$`),
				numGroup:   1,
				titleGroup: 2,
				keyword:    true,
			},
		},
		compoundCN: regexp.MustCompile(`^[ \t　]*第([` + cnDigits + `]+|\d{1,3})卷[ \t　]+第([` + cnDigits + `]+|\d{1,4})章` + cnSep + `(.*)$`),
		compoundEN: regexp.MustCompile(`(?i)^[ \t]*(?:volume|book)[ \t]+(\d{1,3}|` + roman + `)[ \t]+chapter[ \t]+(\d{1,4}|` + roman + `)\b[ \t.:：-]*(.*)$`),
	}

	custom := []struct {
		patterns []string
		level    book.Level
		name     string
	}{
		{opts.CustomChapterPatterns, book.LevelChapter, "custom_chapter"},
		{opts.CustomVolumePatterns, book.LevelVolume, "custom_volume"},
		{opts.CustomSectionPatterns, book.LevelSection, "custom_section"},
	}
	for _, group := range custom {
		for i, p := range group.patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("invalid %s pattern %q: %w", group.level, p, err)
			}
			rule := Rule{
				Name:       fmt.Sprintf("%s_%d", group.name, i),
				Level:      group.level,
				Base:       0.7, // user says this convention exists in the document
				re:         re,
				numGroup:   1,
				titleGroup: 2,
			}
			// Custom patterns apply regardless of detected language.
			lib.chinese = append(lib.chinese, rule)
			lib.english = append(lib.english, rule)
		}
	}

	for _, p := range opts.IgnorePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", p, err)
		}
		lib.ignore = append(lib.ignore, re)
	}

	return lib, nil
}

// Ignored reports whether a line matches a user ignore pattern.
func (l *Library) Ignored(line string) bool {
	for _, re := range l.ignore {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// rulesFor selects the pattern subset for a language. Mixed documents get
// both sets, Chinese rules first.
func (l *Library) rulesFor(lang book.Language) []Rule {
	switch lang {
	case book.LanguageChinese:
		return l.chinese
	case book.LanguageEnglish:
		return l.english
	default:
		out := make([]Rule, 0, len(l.chinese)+len(l.english))
		out = append(out, l.chinese...)
		out = append(out, l.english...)
		return out
	}
}

// maxTitleLen rejects runaway matches where a whole paragraph would be
// captured as a heading title.
const maxTitleLen = 50

// MatchLine applies the pattern subset for lang to a single line. Compound
// headings return two matches, the volume first. Returns nil when nothing
// matches or the match fails heading sanity checks.
func (l *Library) MatchLine(lang book.Language, line string) []Match {
	if strings.TrimSpace(line) == "" || l.Ignored(line) {
		return nil
	}

	if ms := l.matchCompound(lang, line); ms != nil {
		return ms
	}

	rules := l.rulesFor(lang)
	for i := range rules {
		rule := &rules[i]
		groups := rule.re.FindStringSubmatch(line)
		if groups == nil {
			continue
		}
		m := Match{Rule: rule}
		raw := groups[rule.numGroup]
		if rule.keyword {
			m.Title = cleanTitle(groups[rule.titleGroup])
			// The keyword itself names the unit when no explicit title follows.
			if m.Title == "" {
				m.Title = strings.TrimSpace(raw)
			}
		} else {
			m.RawNumber = raw
			m.NumberToken = ParseNumberToken(raw)
			if m.NumberToken == "" && rule.Name != "en_numbered_section" {
				continue
			}
			if rule.Name == "en_numbered_section" {
				m.NumberToken = raw
			}
			m.Title = cleanTitle(groups[rule.titleGroup])
		}
		if runeLen(m.Title) > maxTitleLen {
			continue
		}
		return []Match{m}
	}
	return nil
}

func (l *Library) matchCompound(lang book.Language, line string) []Match {
	type compound struct {
		re      *regexp.Regexp
		volRule *Rule
		chRule  *Rule
	}
	var candidates []compound
	if lang != book.LanguageEnglish {
		candidates = append(candidates, compound{l.compoundCN, l.rule("cn_volume"), l.rule("cn_chapter")})
	}
	if lang != book.LanguageChinese {
		candidates = append(candidates, compound{l.compoundEN, l.rule("en_volume"), l.rule("en_chapter")})
	}

	for _, c := range candidates {
		groups := c.re.FindStringSubmatch(line)
		if groups == nil {
			continue
		}
		volTok := ParseNumberToken(groups[1])
		chTok := ParseNumberToken(groups[2])
		if volTok == "" || chTok == "" {
			continue
		}
		title := cleanTitle(groups[3])
		if runeLen(title) > maxTitleLen {
			continue
		}
		return []Match{
			{Rule: c.volRule, NumberToken: volTok, RawNumber: groups[1]},
			{Rule: c.chRule, NumberToken: chTok, RawNumber: groups[2], Title: title},
		}
	}
	return nil
}

func (l *Library) rule(name string) *Rule {
	for i := range l.chinese {
		if l.chinese[i].Name == name {
			return &l.chinese[i]
		}
	}
	for i := range l.english {
		if l.english[i].Name == name {
			return &l.english[i]
		}
	}
	return nil
}

// cleanTitle strips leading separator punctuation and surrounding space from
// a captured title.
func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, ":：-—.　 \t")
	return strings.TrimSpace(s)
}

// HeadingLike reports whether a line looks like a heading in any supported
// convention. Used by the table-of-contents detector, which needs a loose
// test rather than a confirmed candidate.
func (l *Library) HeadingLike(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	// ToC entries often carry trailing dot leaders and page numbers; strip
	// them before matching.
	stripped := pageNumberSuffix.ReplaceAllString(trimmed, "")
	if stripped == "" {
		stripped = trimmed
	}
	for _, lang := range []book.Language{book.LanguageChinese, book.LanguageEnglish} {
		if l.MatchLine(lang, stripped) != nil {
			return true
		}
	}
	return false
}

// pageNumberSuffix matches dot leaders or whitespace followed by a trailing
// page number, the usual shape of a printed ToC entry.
var pageNumberSuffix = regexp.MustCompile(`(?:[.…·]{2,}|[ \t　]{2,})[ \t　]*\d{1,4}[ \t　]*$`)

// HasPageNumber reports whether a line ends with a ToC-style page number.
func HasPageNumber(line string) bool {
	return pageNumberSuffix.MatchString(strings.TrimRight(line, " \t\r"))
}

func runeLen(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}
