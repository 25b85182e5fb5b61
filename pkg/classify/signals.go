// Package classify derives content signals from a conversation.
package classify

import (
	"fmt"

	"github.com/zen-systems/switchboard/pkg/adapter"
	"github.com/zen-systems/switchboard/pkg/catalog"
)

// Length buckets a message by size.
type Length int

const (
	LengthNormal Length = iota
	LengthSimple
	LengthComplex
)

func (l Length) String() string {
	switch l {
	case LengthSimple:
		return "simple"
	case LengthComplex:
		return "complex"
	default:
		return "normal"
	}
}

// MarshalText renders the bucket name.
func (l Length) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText parses a bucket name.
func (l *Length) UnmarshalText(text []byte) error {
	switch string(text) {
	case "normal", "":
		*l = LengthNormal
	case "simple":
		*l = LengthSimple
	case "complex":
		*l = LengthComplex
	default:
		return fmt.Errorf("unknown length %q", text)
	}
	return nil
}

// Rule maps a case-insensitive substring to a backend id.
type Rule struct {
	Pattern string `json:"pattern" yaml:"pattern"`
	Backend string `json:"backend" yaml:"backend"`
}

// Signals is the classification of one conversation.
type Signals struct {
	Empty       bool   `json:"empty,omitempty"`
	NonLatin    bool   `json:"non_latin,omitempty"`
	Code        bool   `json:"code,omitempty"`
	Creative    bool   `json:"creative,omitempty"`
	Math        bool   `json:"math,omitempty"`
	Translation bool   `json:"translation,omitempty"`
	Length      Length `json:"length"`

	Override        string `json:"override,omitempty"`
	OverridePattern string `json:"override_pattern,omitempty"`

	// Reasons lists the matched keywords, for logs and dry runs.
	Reasons []string `json:"reasons,omitempty"`
}

// Tags returns the catalog strength tags these signals ask for.
func (s Signals) Tags() []string {
	var tags []string
	if s.Code {
		tags = append(tags, catalog.TagCode)
	}
	if s.Creative {
		tags = append(tags, catalog.TagCreative)
	}
	if s.Math {
		tags = append(tags, catalog.TagMath)
	}
	if s.Translation {
		tags = append(tags, catalog.TagTranslation)
	}
	if s.NonLatin {
		tags = append(tags, catalog.TagNonLatin)
	}
	switch s.Length {
	case LengthSimple:
		tags = append(tags, catalog.TagSimple)
	case LengthComplex:
		tags = append(tags, catalog.TagComplex)
	}
	return tags
}

// Classifier maps a conversation and override rules to signals.
type Classifier interface {
	Classify(messages []adapter.Message, rules []Rule) Signals
}

// LatestUserMessage returns the most recent user turn.
func LatestUserMessage(messages []adapter.Message) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == adapter.RoleUser {
			return messages[i].Content, true
		}
	}
	return "", false
}
