package parser

import (
	"regexp"
	"strings"
)

// Confidence adjustments layered on top of a rule's base score. The final
// value is always clamped to [0,1].
const (
	numberBonus      = 0.10 // parseable number token present
	titleBonus       = 0.15 // title of reasonable length (5-30 runes)
	shortTitlePenalty = 0.05 // title present but under 5 runes
	contentBonus     = 0.15 // body between 500 and 50000 runes
	thinContentPenalty = 0.20 // body under 100 runes
	inlineRefPenalty = 0.30 // heading text reads like a cross-reference
	consistencyBonus = 0.10 // pattern recurs across the document
	consistencyMin   = 3    // occurrences before the bonus applies
)

// inlineRefRe flags text that references a chapter rather than opening one:
// "在第三章中", "如第五章所述", "见第二章".
var inlineRefRe = regexp.MustCompile(`[在如见到自从正前后于从至]第.{0,5}[章卷节回]`)

// estimateConfidence scores a single match before context is known.
func estimateConfidence(m Match) float64 {
	conf := m.Rule.Base

	if m.NumberToken != "" {
		conf += numberBonus
	}

	titleLen := runeLen(m.Title)
	switch {
	case titleLen >= 5 && titleLen <= 30:
		conf += titleBonus
	case titleLen > 0 && titleLen < 5 && !m.Rule.keyword:
		conf -= shortTitlePenalty
	}

	if looksLikeReference(m) {
		conf -= inlineRefPenalty
	}

	return clamp01(conf)
}

// looksLikeReference detects titles that continue a sentence instead of
// naming a unit: leading/trailing list punctuation, or cross-reference
// phrasing inside the captured text.
func looksLikeReference(m Match) bool {
	t := m.Title
	if t == "" {
		return false
	}
	if strings.HasPrefix(t, "，") || strings.HasPrefix(t, ",") ||
		strings.HasPrefix(t, "、") || strings.HasPrefix(t, "；") {
		return true
	}
	if strings.HasSuffix(t, "，") || strings.HasSuffix(t, ",") {
		return true
	}
	return inlineRefRe.MatchString(t)
}

// adjustForContent folds the unit's body size into its confidence. A heading
// followed by almost no text is usually a false positive; a heading with a
// chapter-sized body behind it usually is not.
func adjustForContent(conf float64, charCount int) float64 {
	switch {
	case charCount >= 500 && charCount <= 50000:
		conf += contentBonus
	case charCount < 100:
		conf -= thinContentPenalty
	}
	return clamp01(conf)
}

// consistencyCounts tallies pattern occurrences so that a run of
// similarly-formatted headings raises confidence for all of them.
func consistencyCounts(patterns []string) map[string]int {
	counts := make(map[string]int, 4)
	for _, p := range patterns {
		counts[p]++
	}
	return counts
}

func applyConsistency(conf float64, count int) float64 {
	if count >= consistencyMin {
		conf += consistencyBonus
	}
	return clamp01(conf)
}
