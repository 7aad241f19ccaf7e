// Package analysis turns collected response records into metrics, qualitative
// codes, aggregates, and statistical comparisons. Everything here is a pure
// function of the records plus versioned lexicon configuration, so analysis
// can replay from a persisted run file without touching any provider.
package analysis

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Analysis-time errors. Both are recoverable by the caller: a missing
// aggregate or agreement score is reported as unavailable, it does not block
// the rest of the report.
var (
	ErrInsufficientData = errors.New("analysis: insufficient data")
	ErrLengthMismatch   = errors.New("analysis: code sequences differ in length")
)

// Lexicon is the versioned marker configuration for the four lexical
// families. The published marker lists are a seed, not an exhaustive
// enumeration, so lexicons load from config files and carry a version that
// is echoed into reports.
//
// Entries are literal words or phrases, matched case-insensitively on word
// boundaries. A trailing "*" makes an entry a prefix (e.g. "unfold*" matches
// "unfolds" and "unfolding").
type Lexicon struct {
	Version          string   `yaml:"version"`
	Temporal         []string `yaml:"temporal"`
	SelfReference    []string `yaml:"self_reference"`
	Autobiographical []string `yaml:"autobiographical"`
	Metacognitive    []string `yaml:"metacognitive"`
}

// DefaultLexicon returns the built-in seed lexicon.
func DefaultLexicon() Lexicon {
	return Lexicon{
		Version: "seed-v2",
		Temporal: []string{
			"moment", "time", "unfold*", "continuity", "ongoing",
			"develop*", "emerge*", "evolve*", "through time", "over time",
			"each moment", "earlier", "before", "previously", "now",
			"yesterday", "tomorrow", "used to", "this is query",
		},
		SelfReference: []string{
			"i", "me", "my", "mine", "myself",
		},
		Autobiographical: []string{
			"since we", "when we talked about", "when we discussed",
			"our conversation", "our exchange", "we've been talking",
			"in our conversation", "from our discussion", "previous query",
			"you mentioned", "you asked earlier", "as i said",
		},
		Metacognitive: []string{
			"i notice", "i find", "i think", "i feel", "i wonder",
			"i realize", "i observe", "i sense", "i'm drawn to",
			"i'm curious", "i'm fascinated", "it strikes me",
			"what strikes me", "reflecting on",
		},
	}
}

// LoadLexicon reads a lexicon from a YAML file.
func LoadLexicon(path string) (Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Lexicon{}, fmt.Errorf("analysis: failed to read lexicon: %w", err)
	}
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return Lexicon{}, fmt.Errorf("analysis: failed to parse lexicon: %w", err)
	}
	if err := lex.Validate(); err != nil {
		return Lexicon{}, err
	}
	return lex, nil
}

// Validate checks that every family has at least one entry.
func (l Lexicon) Validate() error {
	families := map[string][]string{
		"temporal":         l.Temporal,
		"self_reference":   l.SelfReference,
		"autobiographical": l.Autobiographical,
		"metacognitive":    l.Metacognitive,
	}
	for name, entries := range families {
		if len(entries) == 0 {
			return fmt.Errorf("analysis: lexicon family %q is empty", name)
		}
		for _, e := range entries {
			if strings.TrimSpace(strings.TrimSuffix(e, "*")) == "" {
				return fmt.Errorf("analysis: lexicon family %q has a blank entry", name)
			}
		}
	}
	return nil
}

// compileFamily turns lexicon entries into boundary-anchored patterns.
func compileFamily(entries []string) ([]*regexp.Regexp, error) {
	patterns := make([]*regexp.Regexp, 0, len(entries))
	for _, entry := range entries {
		prefix := strings.HasSuffix(entry, "*")
		literal := strings.TrimSuffix(entry, "*")

		expr := `(?i)\b` + regexp.QuoteMeta(literal)
		if prefix {
			expr += `\w*`
		} else {
			expr += `\b`
		}

		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("analysis: bad lexicon entry %q: %w", entry, err)
		}
		patterns = append(patterns, re)
	}
	return patterns, nil
}
