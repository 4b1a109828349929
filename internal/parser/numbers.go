package parser

import (
	"strconv"
	"strings"
)

// Chinese numeral digits, including the formal (banker's) variants that show
// up in older typesetting.
var chineseDigits = map[rune]int{
	'零': 0, '一': 1, '二': 2, '三': 3, '四': 4,
	'五': 5, '六': 6, '七': 7, '八': 8, '九': 9,
	'两': 2,
	'壹': 1, '贰': 2, '叁': 3, '肆': 4, '伍': 5,
	'陆': 6, '柒': 7, '捌': 8, '玖': 9,
}

var chineseUnits = map[rune]int{
	'十': 10, '拾': 10,
	'百': 100, '佰': 100,
	'千': 1000, '仟': 1000,
	'万': 10000, '萬': 10000,
}

var wordNumbers = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14,
	"fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18,
	"nineteen": 19, "twenty": 20,
}

var romanValues = map[byte]int{
	'I': 1, 'V': 5, 'X': 10, 'L': 50, 'C': 100, 'D': 500, 'M': 1000,
}

// ParseNumberToken converts a heading number in any supported notation
// (arabic, Chinese numerals, roman numerals, English number words) to its
// canonical arabic string form. Returns "" when the token is not a number.
func ParseNumberToken(tok string) string {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return ""
	}
	if _, err := strconv.Atoi(tok); err == nil {
		return strings.TrimLeft(tok, "0")
	}
	if n, ok := parseChineseNumber(tok); ok {
		return strconv.Itoa(n)
	}
	if n, ok := wordNumbers[strings.ToLower(tok)]; ok {
		return strconv.Itoa(n)
	}
	if n, ok := parseRomanNumber(tok); ok {
		return strconv.Itoa(n)
	}
	return ""
}

// parseChineseNumber handles positional Chinese numerals up to 万-scale,
// e.g. 十二 = 12, 一百零三 = 103, 两千 = 2000.
func parseChineseNumber(s string) (int, bool) {
	total := 0
	current := 0
	seen := false
	for _, r := range s {
		if d, ok := chineseDigits[r]; ok {
			current = current*10 + d
			seen = true
			continue
		}
		if u, ok := chineseUnits[r]; ok {
			seen = true
			if current == 0 {
				// Leading unit, as in 十二 (= 1*10 + 2).
				current = 1
			}
			if u == 10000 {
				total = (total + current) * u
			} else {
				total += current * u
			}
			current = 0
			continue
		}
		return 0, false
	}
	if !seen {
		return 0, false
	}
	return total + current, true
}

func parseRomanNumber(s string) (int, bool) {
	s = strings.ToUpper(s)
	total := 0
	prev := 0
	for i := len(s) - 1; i >= 0; i-- {
		v, ok := romanValues[s[i]]
		if !ok {
			return 0, false
		}
		if v < prev {
			total -= v
		} else {
			total += v
			prev = v
		}
	}
	if total <= 0 {
		return 0, false
	}
	return total, true
}
