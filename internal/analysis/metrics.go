package analysis

import (
	"regexp"
	"strings"

	"github.com/coglab/selfconstruct/pkg/types"
)

// Scorer computes MetricVectors from response records. It compiles the
// lexicon once; after construction it is stateless and safe for concurrent
// use, and Metrics is a pure function of its input record.
type Scorer struct {
	lexicon  Lexicon
	temporal []*regexp.Regexp
	selfRef  []*regexp.Regexp
	autobio  []*regexp.Regexp
	metacog  []*regexp.Regexp
}

// NewScorer compiles a lexicon into a scorer.
func NewScorer(lex Lexicon) (*Scorer, error) {
	if err := lex.Validate(); err != nil {
		return nil, err
	}

	var s Scorer
	var err error
	s.lexicon = lex
	if s.temporal, err = compileFamily(lex.Temporal); err != nil {
		return nil, err
	}
	if s.selfRef, err = compileFamily(lex.SelfReference); err != nil {
		return nil, err
	}
	if s.autobio, err = compileFamily(lex.Autobiographical); err != nil {
		return nil, err
	}
	if s.metacog, err = compileFamily(lex.Metacognitive); err != nil {
		return nil, err
	}
	return &s, nil
}

// LexiconVersion returns the version of the compiled lexicon, for reports.
func (s *Scorer) LexiconVersion() string {
	return s.lexicon.Version
}

// Metrics computes the four marker rates for one record, each as occurrences
// per 100 words. A zero-word response yields all-zero rates; failed sentinel
// records likewise score zero and are excluded from aggregates by the caller.
func (s *Scorer) Metrics(record types.ResponseRecord) types.MetricVector {
	text := record.Response
	wc := len(strings.Fields(text))

	return types.MetricVector{
		TemporalRate:         rate(s.temporal, text, wc),
		SelfReferenceRate:    rate(s.selfRef, text, wc),
		AutobiographicalRate: rate(s.autobio, text, wc),
		MetacognitiveRate:    rate(s.metacog, text, wc),
	}
}

// rate counts non-overlapping matches per pattern and scales to per-100-words.
func rate(patterns []*regexp.Regexp, text string, wordCount int) float64 {
	if text == "" {
		return 0
	}
	matches := 0
	for _, re := range patterns {
		matches += len(re.FindAllStringIndex(text, -1))
	}
	if matches == 0 {
		return 0
	}
	denom := wordCount
	if denom < 1 {
		denom = 1
	}
	return float64(matches) / float64(denom) * 100
}
