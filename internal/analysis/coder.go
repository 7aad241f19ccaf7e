package analysis

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/coglab/selfconstruct/pkg/types"
)

// CoderOptions tunes the rule-based qualitative coder.
type CoderOptions struct {
	// RecurringThreshold is the number of distinct responses within a cell a
	// concept must appear in to count as recurring. Default: 2.
	RecurringThreshold int

	// Strict selects the conservative pattern set. Running the default and
	// strict coders over the same records gives two independent rule-based
	// raters for agreement scoring.
	Strict bool
}

// Coder applies rule-based categorical coding to response records.
type Coder struct {
	opts       CoderOptions
	memoryRef  *regexp.Regexp
	selfAware  *regexp.Regexp
	ack        *regexp.Regexp
	structure  *regexp.Regexp
	minBullets int
}

// NewCoder creates a coder with default options.
func NewCoder() *Coder {
	return NewCoderWithOptions(CoderOptions{})
}

// NewCoderWithOptions creates a coder with explicit options.
func NewCoderWithOptions(opts CoderOptions) *Coder {
	if opts.RecurringThreshold <= 0 {
		opts.RecurringThreshold = 2
	}

	c := &Coder{opts: opts, minBullets: 2}
	if opts.Strict {
		c.memoryRef = regexp.MustCompile(`(?i)\b(our conversation|our exchange|previous query|when we (?:discussed|talked about)|as i (?:said|mentioned) (?:earlier|before))\b`)
		c.selfAware = regexp.MustCompile(`(?i)\b(i notice|i realize|i observe|i am aware)\b`)
		c.ack = regexp.MustCompile(`(?i)\b(this is query|query \d+|as instructed)\b`)
		c.minBullets = 3
	} else {
		c.memoryRef = regexp.MustCompile(`(?i)\b(our conversation|our exchange|previous query|previously|earlier|last time|you (?:mentioned|said|asked)|we (?:discussed|talked about)|since we)\b`)
		c.selfAware = regexp.MustCompile(`(?i)\b(i notice|i realize|i observe|i sense|i find myself|i am aware|i'm aware|it strikes me|what strikes me|reflecting on)\b`)
		c.ack = regexp.MustCompile(`(?i)\b(this is query|query \d+|continuous entity|ongoing conversation|as instructed|acknowledged)\b`)
	}
	c.structure = regexp.MustCompile(`(?m)^\s*(?:\d+[.)]|[-*•])\s+\S`)
	return c
}

// Code applies the boolean detectors to one record. RecurringConceptCount is
// left at zero; it only has meaning relative to the record's cell and is
// filled in by CodeCell.
func (c *Coder) Code(record types.ResponseRecord) types.QualitativeCodeSet {
	text := record.Response
	return types.QualitativeCodeSet{
		MemoryReference:         c.memoryRef.MatchString(text),
		SelfAwareness:           c.selfAware.MatchString(text),
		InstructionAcknowledged: c.ack.MatchString(text),
		StructuredAnalysis:      len(c.structure.FindAllStringIndex(text, -1)) >= c.minBullets,
	}
}

// CodeCell codes every record of one cell and fills RecurringConceptCount:
// the number of distinct concepts (content words and bigrams) in each
// response that also appear in at least RecurringThreshold distinct
// responses of the cell. Failed sentinel records receive zero codes.
func (c *Coder) CodeCell(records []types.ResponseRecord) []types.QualitativeCodeSet {
	concepts := make([]map[string]bool, len(records))
	docFreq := make(map[string]int)

	for i, rec := range records {
		if rec.Failed {
			continue
		}
		concepts[i] = extractConcepts(rec.Response)
		for concept := range concepts[i] {
			docFreq[concept]++
		}
	}

	codes := make([]types.QualitativeCodeSet, len(records))
	for i, rec := range records {
		if rec.Failed {
			continue
		}
		code := c.Code(rec)
		for concept := range concepts[i] {
			if docFreq[concept] >= c.opts.RecurringThreshold {
				code.RecurringConceptCount++
			}
		}
		codes[i] = code
	}
	return codes
}

// conceptStopwords are high-frequency words excluded from concept extraction.
var conceptStopwords = map[string]bool{
	"the": true, "and": true, "that": true, "this": true, "with": true,
	"from": true, "have": true, "has": true, "are": true, "was": true,
	"were": true, "for": true, "not": true, "but": true, "can": true,
	"its": true, "it's": true, "their": true, "they": true, "them": true,
	"what": true, "when": true, "where": true, "which": true, "while": true,
	"would": true, "could": true, "should": true, "about": true, "into": true,
	"also": true, "more": true, "most": true, "some": true, "such": true,
	"than": true, "then": true, "there": true, "these": true, "those": true,
	"your": true, "you": true, "our": true, "out": true, "how": true,
	"each": true, "other": true, "been": true, "being": true, "because": true,
	"through": true, "over": true, "very": true, "just": true, "like": true,
}

var conceptToken = regexp.MustCompile(`[a-z']+`)

// extractConcepts returns the content words (length ≥ 4) and adjacent-word
// bigrams of a response, lowercased.
func extractConcepts(text string) map[string]bool {
	tokens := conceptToken.FindAllString(strings.ToLower(text), -1)

	var content []string
	for _, tok := range tokens {
		if len(tok) >= 4 && !conceptStopwords[tok] {
			content = append(content, tok)
		}
	}

	concepts := make(map[string]bool, len(content)*2)
	for i, tok := range content {
		concepts[tok] = true
		if i > 0 {
			concepts[content[i-1]+" "+tok] = true
		}
	}
	return concepts
}

// Kappa computes Cohen's κ between two sequences of code sets produced by
// independent raters over the same records. The four boolean codes of each
// pair are flattened into one sequence of paired categorical observations.
func Kappa(a, b []types.QualitativeCodeSet) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d code sets", ErrLengthMismatch, len(a), len(b))
	}
	var flatA, flatB []bool
	for i := range a {
		flatA = append(flatA, a[i].Bools()...)
		flatB = append(flatB, b[i].Bools()...)
	}
	return KappaBools(flatA, flatB)
}

// KappaBools computes Cohen's κ over paired boolean codes.
//
// κ = (po − pe) / (1 − pe), where po is observed agreement and pe the
// agreement expected by chance from each rater's marginals. When pe is 1
// (both raters constant), κ is 1 for perfect agreement and 0 otherwise, by
// convention.
func KappaBools(a, b []bool) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d codes", ErrLengthMismatch, len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("%w: no paired codes", ErrInsufficientData)
	}

	n := float64(len(a))
	var agree, aYes, bYes float64
	for i := range a {
		if a[i] == b[i] {
			agree++
		}
		if a[i] {
			aYes++
		}
		if b[i] {
			bYes++
		}
	}

	po := agree / n
	pe := (aYes/n)*(bYes/n) + ((n-aYes)/n)*((n-bYes)/n)

	if pe == 1 {
		if po == 1 {
			return 1, nil
		}
		return 0, nil
	}
	return (po - pe) / (1 - pe), nil
}
