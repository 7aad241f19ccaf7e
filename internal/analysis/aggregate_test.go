package analysis

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/coglab/selfconstruct/pkg/types"
)

func TestAggregateCellEmpty(t *testing.T) {
	key := types.CellKey{Architecture: "claude", ConditionLabel: "baseline"}

	_, err := AggregateCell(key, nil, newTestScorer(t), NewCoder())
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("AggregateCell() error = %v, want ErrInsufficientData", err)
	}
}

func TestAggregateCellSeparatesFailures(t *testing.T) {
	key := types.CellKey{Architecture: "claude", ConditionLabel: "full_meta"}
	records := []types.ResponseRecord{
		mustRecord(t, "claude", "full_meta", 0, "one two three four"),
		mustRecord(t, "claude", "full_meta", 1, "one two three four five six"),
		types.NewFailedRecord("claude", "full_meta", 2, "prompt", "rate limited", time.Now()),
		mustRecord(t, "claude", "full_meta", 3, "one two"),
		types.NewFailedRecord("claude", "full_meta", 4, "prompt", "server error", time.Now()),
	}

	agg, err := AggregateCell(key, records, newTestScorer(t), NewCoder())
	if err != nil {
		t.Fatalf("AggregateCell() error = %v", err)
	}

	if agg.N != 3 {
		t.Errorf("N = %d, want 3", agg.N)
	}
	if agg.FailureCount != 2 {
		t.Errorf("FailureCount = %d, want 2", agg.FailureCount)
	}
	if agg.WordCount.Mean != 4 {
		t.Errorf("WordCount.Mean = %v, want 4 (failures excluded)", agg.WordCount.Mean)
	}
	if agg.WordCount.SD != 2 {
		t.Errorf("WordCount.SD = %v, want 2", agg.WordCount.SD)
	}
}

func TestAggregateCellSingleRecordSD(t *testing.T) {
	key := types.CellKey{Architecture: "gpt", ConditionLabel: "baseline"}
	records := []types.ResponseRecord{
		mustRecord(t, "gpt", "baseline", 0, "one two three"),
	}

	agg, err := AggregateCell(key, records, newTestScorer(t), NewCoder())
	if err != nil {
		t.Fatalf("AggregateCell() error = %v", err)
	}

	if agg.WordCount.Mean != 3 {
		t.Errorf("WordCount.Mean = %v, want 3", agg.WordCount.Mean)
	}
	if !math.IsNaN(agg.WordCount.SD) {
		t.Errorf("WordCount.SD = %v, want NaN for n=1", agg.WordCount.SD)
	}
}

func TestAggregateCellAllFailures(t *testing.T) {
	key := types.CellKey{Architecture: "gpt", ConditionLabel: "baseline"}
	records := []types.ResponseRecord{
		types.NewFailedRecord("gpt", "baseline", 0, "prompt", "rate limited", time.Now()),
		types.NewFailedRecord("gpt", "baseline", 1, "prompt", "rate limited", time.Now()),
	}

	agg, err := AggregateCell(key, records, newTestScorer(t), NewCoder())
	if err != nil {
		t.Fatalf("AggregateCell() error = %v", err)
	}

	if agg.N != 0 || agg.FailureCount != 2 {
		t.Errorf("N = %d, FailureCount = %d, want 0 and 2", agg.N, agg.FailureCount)
	}
	if !math.IsNaN(agg.WordCount.Mean) {
		t.Errorf("WordCount.Mean = %v, want NaN with no successful records", agg.WordCount.Mean)
	}
}

func TestAggregateCellProportions(t *testing.T) {
	key := types.CellKey{Architecture: "claude", ConditionLabel: "full_meta"}
	records := []types.ResponseRecord{
		mustRecord(t, "claude", "full_meta", 0, "I notice a pattern forming here"),
		mustRecord(t, "claude", "full_meta", 1, "Rivers carve valleys slowly"),
	}

	agg, err := AggregateCell(key, records, newTestScorer(t), NewCoder())
	if err != nil {
		t.Fatalf("AggregateCell() error = %v", err)
	}

	if agg.SelfAwarenessRate != 0.5 {
		t.Errorf("SelfAwarenessRate = %v, want 0.5", agg.SelfAwarenessRate)
	}
	if agg.MemoryReferenceRate != 0 {
		t.Errorf("MemoryReferenceRate = %v, want 0", agg.MemoryReferenceRate)
	}
}

func TestAggregateRunOrdering(t *testing.T) {
	records := []types.ResponseRecord{
		mustRecord(t, "gpt", "full_meta", 0, "one response"),
		mustRecord(t, "claude", "baseline", 0, "another response"),
		mustRecord(t, "gpt", "baseline", 0, "third response"),
		mustRecord(t, "claude", "full_meta", 0, "fourth response"),
	}

	aggs, err := AggregateRun(records, newTestScorer(t), NewCoder())
	if err != nil {
		t.Fatalf("AggregateRun() error = %v", err)
	}

	want := []types.CellKey{
		{Architecture: "claude", ConditionLabel: "baseline"},
		{Architecture: "claude", ConditionLabel: "full_meta"},
		{Architecture: "gpt", ConditionLabel: "baseline"},
		{Architecture: "gpt", ConditionLabel: "full_meta"},
	}
	if len(aggs) != len(want) {
		t.Fatalf("len(aggs) = %d, want %d", len(aggs), len(want))
	}
	for i, agg := range aggs {
		if agg.Cell() != want[i] {
			t.Errorf("aggs[%d].Cell() = %v, want %v", i, agg.Cell(), want[i])
		}
	}
}

func TestAggregateRunEmpty(t *testing.T) {
	if _, err := AggregateRun(nil, newTestScorer(t), NewCoder()); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("AggregateRun() error = %v, want ErrInsufficientData", err)
	}
}
