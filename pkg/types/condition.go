// Package types provides the shared value objects for the self-construction
// experiment pipeline: experimental conditions, collected response records,
// and the derived analysis structures computed from them.
package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCondition is returned when a condition is constructed from
// malformed input (empty label, missing feature flags).
var ErrInvalidCondition = errors.New("types: invalid condition")

// Features describes which of the four prompt-manipulation ingredients are
// active for a condition.
type Features struct {
	// MemoryPersistence carries conversation history forward between queries.
	MemoryPersistence bool `json:"memory_persistence" yaml:"memory_persistence"`

	// TemporalMarkers tags each query with its position in the sequence.
	TemporalMarkers bool `json:"temporal_markers" yaml:"temporal_markers"`

	// MetacognitivePrompting periodically asks the model to reflect on itself.
	MetacognitivePrompting bool `json:"metacognitive_prompting" yaml:"metacognitive_prompting"`

	// SelfFraming opens the conversation with a continuous-entity framing sentence.
	SelfFraming bool `json:"self_framing" yaml:"self_framing"`
}

// Condition is an immutable description of one experimental condition.
// Conditions are identified by label; equality is field-wise.
type Condition struct {
	Label string `json:"label" yaml:"label"`
	Features
}

// NewCondition constructs a condition from a label and a full feature set.
// The label must be non-empty; it identifies the condition in reports and
// must be unique within a run (enforced by RunMeta.Validate).
func NewCondition(label string, features Features) (Condition, error) {
	if strings.TrimSpace(label) == "" {
		return Condition{}, fmt.Errorf("%w: label is required", ErrInvalidCondition)
	}
	return Condition{Label: label, Features: features}, nil
}

// featureKeys are the flags a serialized condition must carry.
var featureKeys = []string{
	"memory_persistence",
	"temporal_markers",
	"metacognitive_prompting",
	"self_framing",
}

// ConditionFromMap constructs a condition from a loosely-typed flag map, as
// found in condition config files. Every one of the four feature flags must
// be present; a missing key is a configuration error, not a default.
func ConditionFromMap(label string, flags map[string]bool) (Condition, error) {
	for _, key := range featureKeys {
		if _, ok := flags[key]; !ok {
			return Condition{}, fmt.Errorf("%w: flag %q is missing", ErrInvalidCondition, key)
		}
	}
	return NewCondition(label, Features{
		MemoryPersistence:      flags["memory_persistence"],
		TemporalMarkers:        flags["temporal_markers"],
		MetacognitivePrompting: flags["metacognitive_prompting"],
		SelfFraming:            flags["self_framing"],
	})
}

// String renders the condition as a label plus its active features.
func (c Condition) String() string {
	var features []string
	if c.MemoryPersistence {
		features = append(features, "Memory")
	}
	if c.TemporalMarkers {
		features = append(features, "Temporal")
	}
	if c.MetacognitivePrompting {
		features = append(features, "Metacognitive")
	}
	if c.SelfFraming {
		features = append(features, "Self-Framed")
	}
	if len(features) == 0 {
		return fmt.Sprintf("%s: no special features (baseline)", c.Label)
	}
	return fmt.Sprintf("%s: %s", c.Label, strings.Join(features, ", "))
}

// Standard conditions from the experimental framework. Baseline disables every
// ingredient; FullMeta enables all four.
var (
	Baseline = Condition{Label: "baseline"}

	MemoryOnly = Condition{Label: "memory_only", Features: Features{
		MemoryPersistence: true,
	}}

	FullBasic = Condition{Label: "full_basic", Features: Features{
		MemoryPersistence: true,
		TemporalMarkers:   true,
		SelfFraming:       true,
	}}

	FullMeta = Condition{Label: "full_meta", Features: Features{
		MemoryPersistence:      true,
		TemporalMarkers:        true,
		MetacognitivePrompting: true,
		SelfFraming:            true,
	}}
)

// StandardConditions returns the four standard conditions in canonical order.
func StandardConditions() []Condition {
	return []Condition{Baseline, MemoryOnly, FullBasic, FullMeta}
}

// ConditionByLabel resolves a standard condition by its label.
func ConditionByLabel(label string) (Condition, error) {
	for _, c := range StandardConditions() {
		if c.Label == label {
			return c, nil
		}
	}
	return Condition{}, fmt.Errorf("%w: unknown condition %q", ErrInvalidCondition, label)
}
