package classify

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/zen-systems/switchboard/pkg/adapter"
)

const (
	// SimpleMaxRunes is the exclusive upper bound for the simple bucket.
	SimpleMaxRunes = 100
	// ComplexMinRunes is the exclusive lower bound for the complex bucket.
	ComplexMinRunes = 1000
)

var (
	// A bare hyphen between digits is a date, range or phone number; minus
	// only counts with spaces on both sides.
	arithmeticPattern = regexp.MustCompile(`\d+\s*[+*/^%=×÷]\s*\d+|\d+\s+-\s+\d+`)
	datePattern       = regexp.MustCompile(`\b\d{1,4}[-/.]\d{1,2}[-/.]\d{1,4}\b`)
)

// Heuristic classifies by keyword and pattern matching. It is safe for
// concurrent use once built.
type Heuristic struct {
	keywords Keywords
}

// HeuristicOption configures a Heuristic.
type HeuristicOption func(*Heuristic)

// WithKeywords replaces keyword categories. Empty categories keep the defaults.
func WithKeywords(k Keywords) HeuristicOption {
	return func(h *Heuristic) {
		h.keywords = k.merge(DefaultKeywords())
	}
}

// NewHeuristic creates a heuristic classifier with the built-in keyword lists.
func NewHeuristic(opts ...HeuristicOption) *Heuristic {
	h := &Heuristic{keywords: DefaultKeywords()}
	for _, opt := range opts {
		opt(h)
	}
	h.keywords = lowerAll(h.keywords)
	return h
}

// Classify inspects the latest user message. A matching rule short-circuits
// every other heuristic.
func (h *Heuristic) Classify(messages []adapter.Message, rules []Rule) Signals {
	text, ok := LatestUserMessage(messages)
	if !ok || strings.TrimSpace(text) == "" {
		return Signals{Empty: true}
	}
	lower := strings.ToLower(text)

	for _, rule := range rules {
		pattern := strings.ToLower(rule.Pattern)
		if pattern == "" || rule.Backend == "" {
			continue
		}
		if strings.Contains(lower, pattern) {
			return Signals{
				Override:        rule.Backend,
				OverridePattern: rule.Pattern,
				Reasons:         []string{"rule: " + rule.Pattern},
			}
		}
	}

	var s Signals
	if containsNonLatin(text) {
		s.NonLatin = true
		s.Reasons = append(s.Reasons, "script: non-latin")
	}

	var hit string
	if hit = firstMatch(lower, h.keywords.Code); hit != "" {
		s.Code = true
	} else if strings.Contains(lower, "```") {
		hit = "```"
		s.Code = true
	}
	if s.Code {
		s.Reasons = append(s.Reasons, "code: "+hit)
	}

	if hit = firstMatch(lower, h.keywords.Creative); hit != "" {
		s.Creative = true
		s.Reasons = append(s.Reasons, "creative: "+hit)
	}

	if hit = firstMatch(lower, h.keywords.Math); hit != "" {
		s.Math = true
	} else if m := arithmeticPattern.FindString(datePattern.ReplaceAllString(lower, " ")); m != "" {
		hit = m
		s.Math = true
	}
	if s.Math {
		s.Reasons = append(s.Reasons, "math: "+hit)
	}

	if hit = firstMatch(lower, h.keywords.Translation); hit != "" {
		s.Translation = true
		s.Reasons = append(s.Reasons, "translation: "+hit)
	}

	runes := utf8.RuneCountInString(text)
	complexHit := firstMatch(lower, h.keywords.Complex)
	switch {
	case runes > ComplexMinRunes:
		s.Length = LengthComplex
		s.Reasons = append(s.Reasons, "length: complex")
	case complexHit != "":
		s.Length = LengthComplex
		s.Reasons = append(s.Reasons, "complex: "+complexHit)
	case runes < SimpleMaxRunes && !s.Code && !s.Creative && !s.Math && !s.Translation:
		s.Length = LengthSimple
		s.Reasons = append(s.Reasons, "length: simple")
	}

	return s
}

func firstMatch(lower string, triggers []string) string {
	for _, trigger := range triggers {
		if containsTrigger(lower, trigger) {
			return trigger
		}
	}
	return ""
}

func lowerAll(k Keywords) Keywords {
	return Keywords{
		Code:        lowerList(k.Code),
		Creative:    lowerList(k.Creative),
		Math:        lowerList(k.Math),
		Translation: lowerList(k.Translation),
		Complex:     lowerList(k.Complex),
	}
}

func lowerList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
