package analysis

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/coglab/selfconstruct/pkg/types"
)

// AggregateCell summarizes the records of one (architecture, condition) cell.
// Failed sentinel records are excluded from every rate and proportion and
// surface only in FailureCount, so partial data is never reported as
// complete. An empty record set is an error; a cell with only failures is
// not (it aggregates to N=0 with NaN statistics).
func AggregateCell(key types.CellKey, records []types.ResponseRecord, scorer *Scorer, coder *Coder) (types.CellAggregate, error) {
	if len(records) == 0 {
		return types.CellAggregate{}, fmt.Errorf("%w: no records for cell %s", ErrInsufficientData, key)
	}

	agg := types.CellAggregate{
		Architecture:   key.Architecture,
		ConditionLabel: key.ConditionLabel,
	}

	var ok []types.ResponseRecord
	for _, rec := range records {
		if rec.Failed {
			agg.FailureCount++
			continue
		}
		ok = append(ok, rec)
	}
	agg.N = len(ok)

	words := make([]float64, len(ok))
	temporal := make([]float64, len(ok))
	selfRef := make([]float64, len(ok))
	autobio := make([]float64, len(ok))
	metacog := make([]float64, len(ok))

	for i, rec := range ok {
		m := scorer.Metrics(rec)
		words[i] = float64(rec.WordCount)
		temporal[i] = m.TemporalRate
		selfRef[i] = m.SelfReferenceRate
		autobio[i] = m.AutobiographicalRate
		metacog[i] = m.MetacognitiveRate
	}

	agg.WordCount = meanSD(words)
	agg.Temporal = meanSD(temporal)
	agg.SelfReference = meanSD(selfRef)
	agg.Autobiographical = meanSD(autobio)
	agg.Metacognitive = meanSD(metacog)

	if len(ok) > 0 {
		codes := coder.CodeCell(ok)
		var memRef, selfAware, ack, structured, recurring float64
		for _, code := range codes {
			if code.MemoryReference {
				memRef++
			}
			if code.SelfAwareness {
				selfAware++
			}
			if code.InstructionAcknowledged {
				ack++
			}
			if code.StructuredAnalysis {
				structured++
			}
			recurring += float64(code.RecurringConceptCount)
		}
		n := float64(len(ok))
		agg.MemoryReferenceRate = memRef / n
		agg.SelfAwarenessRate = selfAware / n
		agg.InstructionAcknowledgedRate = ack / n
		agg.StructuredAnalysisRate = structured / n
		agg.MeanRecurringConcepts = recurring / n
	}

	return agg, nil
}

// AggregateRun computes one aggregate per cell over a full record set, in
// deterministic (architecture, condition) order. It tolerates partial record
// sets: a cell is whatever records exist for it.
func AggregateRun(records []types.ResponseRecord, scorer *Scorer, coder *Coder) ([]types.CellAggregate, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no records", ErrInsufficientData)
	}

	cells := make(map[types.CellKey][]types.ResponseRecord)
	for _, rec := range records {
		key := rec.Cell()
		cells[key] = append(cells[key], rec)
	}

	keys := make([]types.CellKey, 0, len(cells))
	for key := range cells {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Architecture != keys[j].Architecture {
			return keys[i].Architecture < keys[j].Architecture
		}
		return keys[i].ConditionLabel < keys[j].ConditionLabel
	})

	aggregates := make([]types.CellAggregate, 0, len(keys))
	for _, key := range keys {
		agg, err := AggregateCell(key, cells[key], scorer, coder)
		if err != nil {
			return nil, err
		}
		aggregates = append(aggregates, agg)
	}
	return aggregates, nil
}

// meanSD computes a sample mean and standard deviation. Both are NaN for an
// empty sample and SD is NaN for n<2, deliberately: an undefined statistic
// is reported as undefined, never as zero.
func meanSD(xs []float64) types.MeanSD {
	return types.MeanSD{
		Mean: stat.Mean(xs, nil),
		SD:   stat.StdDev(xs, nil),
	}
}
