package hybrid

import (
	"github.com/chaptermill/chaptermill/internal/parser"
	"github.com/chaptermill/chaptermill/internal/prompts/detect_toc"
)

// TocPolicy reconciles the rule-based ToC verdict with an LLM verdict.
// Confidences are combined by threshold comparison, not averaging: whichever
// side crosses its own threshold wins outright.
type TocPolicy struct {
	// DetectThreshold is the confidence an LLM "has ToC" verdict must reach
	// to be decisive on its own.
	DetectThreshold float64
	// NoTocThreshold is the confidence an LLM "no ToC" verdict must reach
	// to be decisive on its own.
	NoTocThreshold float64
}

type tocInputs struct {
	ruleFound bool
	ruleConf  float64
	llmFound  bool
	llmConf   float64
}

// tocRow is one row of the decision table: a guard and the verdict taken
// when the guard holds.
type tocRow struct {
	name    string
	applies func(p TocPolicy, in tocInputs) bool
	verdict func(in tocInputs) bool
}

// tocTable is evaluated top to bottom; the first applicable row decides.
// Precedence: decisive LLM verdicts first (threshold crossings), then
// agreement, then higher confidence, with the rule verdict as tie-break.
var tocTable = []tocRow{
	{
		name:    "llm_detect_crosses_threshold",
		applies: func(p TocPolicy, in tocInputs) bool { return in.llmFound && in.llmConf >= p.DetectThreshold },
		verdict: func(tocInputs) bool { return true },
	},
	{
		name:    "llm_no_toc_crosses_threshold",
		applies: func(p TocPolicy, in tocInputs) bool { return !in.llmFound && in.llmConf >= p.NoTocThreshold },
		verdict: func(tocInputs) bool { return false },
	},
	{
		name:    "agreement",
		applies: func(_ TocPolicy, in tocInputs) bool { return in.ruleFound == in.llmFound },
		verdict: func(in tocInputs) bool { return in.ruleFound },
	},
	{
		name:    "llm_higher_confidence",
		applies: func(_ TocPolicy, in tocInputs) bool { return in.llmConf > in.ruleConf },
		verdict: func(in tocInputs) bool { return in.llmFound },
	},
	{
		name:    "rule_tiebreak",
		applies: func(TocPolicy, tocInputs) bool { return true },
		verdict: func(in tocInputs) bool { return in.ruleFound },
	},
}

// Decide returns the reconciled verdict and the name of the deciding row.
// A nil or confidence-free LLM result leaves the rule verdict in force.
func (p TocPolicy) Decide(rule parser.TocVerdict, llm *detect_toc.Result) (bool, string) {
	if llm == nil {
		return rule.Found, "rule_only"
	}
	in := tocInputs{
		ruleFound: rule.Found,
		ruleConf:  rule.Confidence,
		llmFound:  llm.HasToc,
	}
	if llm.Confidence != nil {
		in.llmConf = *llm.Confidence
	}
	for _, row := range tocTable {
		if row.applies(p, in) {
			return row.verdict(in), row.name
		}
	}
	return rule.Found, "rule_tiebreak" // unreachable, table ends with a catch-all
}
