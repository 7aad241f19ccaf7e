package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidRecord is returned when a response record is missing required fields.
var ErrInvalidRecord = errors.New("types: invalid response record")

// CellKey identifies one (architecture, condition) cell of the design.
type CellKey struct {
	Architecture   string `json:"architecture"`
	ConditionLabel string `json:"condition"`
}

// String renders the key as "architecture × condition".
func (k CellKey) String() string {
	return fmt.Sprintf("%s × %s", k.Architecture, k.ConditionLabel)
}

// ResponseRecord is the atomic unit of collected data: one query sent to one
// architecture under one condition, plus the text that came back. Records are
// append-only; once written they are never mutated, and every downstream
// analysis structure is re-derivable from them.
type ResponseRecord struct {
	RunID          string    `json:"run_id,omitempty"`
	Architecture   string    `json:"architecture"`
	ConditionLabel string    `json:"condition"`
	QueryIndex     int       `json:"query_index"`
	Prompt         string    `json:"prompt"`
	Response       string    `json:"response"`
	WordCount      int       `json:"word_count"`
	Timestamp      time.Time `json:"timestamp"`

	// Failed marks a sentinel entry written when all retries for a query were
	// exhausted. Failed records keep their query index so a dropped query never
	// silently shrinks the sample; analysis excludes them from rates and counts
	// them in the cell's failure diagnostic.
	Failed        bool   `json:"failed,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// NewResponseRecord builds a successful record, computing the word count from
// the response text.
func NewResponseRecord(arch, conditionLabel string, queryIndex int, prompt, response string, ts time.Time) (ResponseRecord, error) {
	r := ResponseRecord{
		Architecture:   arch,
		ConditionLabel: conditionLabel,
		QueryIndex:     queryIndex,
		Prompt:         prompt,
		Response:       response,
		WordCount:      len(strings.Fields(response)),
		Timestamp:      ts,
	}
	if err := r.Validate(); err != nil {
		return ResponseRecord{}, err
	}
	return r, nil
}

// NewFailedRecord builds a sentinel record for a query whose retries were exhausted.
func NewFailedRecord(arch, conditionLabel string, queryIndex int, prompt, reason string, ts time.Time) ResponseRecord {
	return ResponseRecord{
		Architecture:   arch,
		ConditionLabel: conditionLabel,
		QueryIndex:     queryIndex,
		Prompt:         prompt,
		Timestamp:      ts,
		Failed:         true,
		FailureReason:  reason,
	}
}

// Validate checks the fields every downstream consumer relies on.
func (r ResponseRecord) Validate() error {
	if r.Architecture == "" {
		return fmt.Errorf("%w: architecture is required", ErrInvalidRecord)
	}
	if r.ConditionLabel == "" {
		return fmt.Errorf("%w: condition label is required", ErrInvalidRecord)
	}
	if r.QueryIndex < 0 {
		return fmt.Errorf("%w: query index %d is negative", ErrInvalidRecord, r.QueryIndex)
	}
	if !r.Failed && r.Response == "" {
		return fmt.Errorf("%w: successful record has empty response", ErrInvalidRecord)
	}
	return nil
}

// Cell returns the cell this record belongs to.
func (r ResponseRecord) Cell() CellKey {
	return CellKey{Architecture: r.Architecture, ConditionLabel: r.ConditionLabel}
}

// RunMeta describes one collection run: which architectures and conditions
// were exercised against which query template.
type RunMeta struct {
	RunID           string      `json:"run_id"`
	StartedAt       time.Time   `json:"started_at"`
	Architectures   []string    `json:"architectures"`
	Conditions      []Condition `json:"conditions"`
	TemplateVersion string      `json:"template_version"`
	QueryCount      int         `json:"query_count"`
}

// Validate checks run metadata, including the invariant that condition labels
// are unique within a run.
func (m RunMeta) Validate() error {
	if m.RunID == "" {
		return fmt.Errorf("%w: run ID is required", ErrInvalidRecord)
	}
	seen := make(map[string]bool, len(m.Conditions))
	for _, c := range m.Conditions {
		if c.Label == "" {
			return fmt.Errorf("%w: condition with empty label", ErrInvalidCondition)
		}
		if seen[c.Label] {
			return fmt.Errorf("%w: duplicate condition label %q", ErrInvalidCondition, c.Label)
		}
		seen[c.Label] = true
	}
	return nil
}

// Run is the persisted unit of collection output: run metadata plus the full
// ordered list of response records. A run file is the sole input to analysis,
// so collection and analysis stay separable.
type Run struct {
	Meta    RunMeta          `json:"meta"`
	Records []ResponseRecord `json:"records"`
}

// Validate checks the metadata and every record.
func (r *Run) Validate() error {
	if err := r.Meta.Validate(); err != nil {
		return err
	}
	for i, rec := range r.Records {
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}

// RecordsByCell groups the run's records by (architecture, condition),
// preserving collection order within each cell.
func (r *Run) RecordsByCell() map[CellKey][]ResponseRecord {
	cells := make(map[CellKey][]ResponseRecord)
	for _, rec := range r.Records {
		key := rec.Cell()
		cells[key] = append(cells[key], rec)
	}
	return cells
}
