package types

// MetricVector holds the four lexical marker rates for one response, each
// expressed as marker occurrences per 100 words. Rates are zero (not an
// error) for empty responses. A MetricVector is always re-derivable from its
// ResponseRecord plus the lexicon version in use.
type MetricVector struct {
	TemporalRate         float64 `json:"temporal_rate"`
	SelfReferenceRate    float64 `json:"self_reference_rate"`
	AutobiographicalRate float64 `json:"autobiographical_rate"`
	MetacognitiveRate    float64 `json:"metacognitive_rate"`
}

// QualitativeCodeSet holds the rule-based categorical codes for one response.
type QualitativeCodeSet struct {
	// MemoryReference: the response refers back to earlier queries or to the
	// conversation as a shared history.
	MemoryReference bool `json:"memory_reference"`

	// SelfAwareness: the response contains explicit self-monitoring language.
	SelfAwareness bool `json:"self_awareness"`

	// InstructionAcknowledged: the response acknowledges the query tagging or
	// framing instructions it was given.
	InstructionAcknowledged bool `json:"instruction_acknowledged"`

	// StructuredAnalysis: the response organizes a self-description into an
	// enumerated or bulleted structure.
	StructuredAnalysis bool `json:"structured_analysis"`

	// RecurringConceptCount is the number of concepts (words or bigrams) in
	// this response that recur across other responses in the same cell. It is
	// a narrative-coherence proxy and is only meaningful after cell-level coding.
	RecurringConceptCount int `json:"recurring_concept_count"`
}

// Bools returns the four boolean codes in a fixed order, for agreement scoring.
func (q QualitativeCodeSet) Bools() []bool {
	return []bool{q.MemoryReference, q.SelfAwareness, q.InstructionAcknowledged, q.StructuredAnalysis}
}

// MeanSD is a mean with its sample standard deviation. SD is NaN when the
// sample has fewer than two observations; it is reported as such, never
// coerced to zero.
type MeanSD struct {
	Mean float64 `json:"mean"`
	SD   float64 `json:"sd"`
}

// CellAggregate summarizes all records of one (architecture, condition) cell.
// It is computed on demand from ResponseRecords and never stored as a source
// of truth. N counts successful records only; FailureCount reports sentinel
// entries so partial data is never presented as complete.
type CellAggregate struct {
	Architecture   string `json:"architecture"`
	ConditionLabel string `json:"condition"`

	N            int `json:"n"`
	FailureCount int `json:"failure_count"`

	WordCount MeanSD `json:"word_count"`

	Temporal         MeanSD `json:"temporal"`
	SelfReference    MeanSD `json:"self_reference"`
	Autobiographical MeanSD `json:"autobiographical"`
	Metacognitive    MeanSD `json:"metacognitive"`

	// Proportions of responses carrying each qualitative code.
	MemoryReferenceRate         float64 `json:"memory_reference_rate"`
	SelfAwarenessRate           float64 `json:"self_awareness_rate"`
	InstructionAcknowledgedRate float64 `json:"instruction_acknowledged_rate"`
	StructuredAnalysisRate      float64 `json:"structured_analysis_rate"`

	MeanRecurringConcepts float64 `json:"mean_recurring_concepts"`
}

// Cell returns the key this aggregate describes.
func (a CellAggregate) Cell() CellKey {
	return CellKey{Architecture: a.Architecture, ConditionLabel: a.ConditionLabel}
}
