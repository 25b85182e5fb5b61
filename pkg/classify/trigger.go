package classify

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// containsTrigger reports whether prompt contains trigger as a word or phrase.
// Both must already be lower case. Triggers outside ASCII match as plain
// substrings since scripts like Han have no word separators.
func containsTrigger(prompt, trigger string) bool {
	if trigger == "" {
		return false
	}
	if !isASCII(trigger) {
		return strings.Contains(prompt, trigger)
	}

	for offset := 0; offset < len(prompt); {
		idx := strings.Index(prompt[offset:], trigger)
		if idx == -1 {
			return false
		}
		start := offset + idx
		end := start + len(trigger)

		if boundaryBefore(prompt, start, trigger) && boundaryAfter(prompt, end, trigger) {
			return true
		}
		offset = start + 1
	}
	return false
}

// Edges made of punctuation (c++, c#) need no boundary on that side.
func boundaryBefore(prompt string, start int, trigger string) bool {
	if start == 0 || !isWordChar(trigger[0]) {
		return true
	}
	return !isWordChar(prompt[start-1])
}

func boundaryAfter(prompt string, end int, trigger string) bool {
	if end >= len(prompt) || !isWordChar(trigger[len(trigger)-1]) {
		return true
	}
	return !isWordChar(prompt[end])
}

func isWordChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_'
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

var nonLatinScripts = []*unicode.RangeTable{
	unicode.Han,
	unicode.Hiragana,
	unicode.Katakana,
	unicode.Hangul,
	unicode.Cyrillic,
	unicode.Arabic,
	unicode.Hebrew,
	unicode.Thai,
	unicode.Devanagari,
	unicode.Greek,
}

func containsNonLatin(s string) bool {
	for _, r := range s {
		if r < utf8.RuneSelf {
			continue
		}
		if unicode.IsOneOf(nonLatinScripts, r) {
			return true
		}
	}
	return false
}
