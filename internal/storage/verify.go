package storage

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/coglab/selfconstruct/pkg/types"
)

// VerifyOptions configures run-file verification. Zero-value fields disable
// their check.
type VerifyOptions struct {
	// ExpectedArchitectures, when set, flags records from any other architecture.
	ExpectedArchitectures []string

	// ExpectedConditions, when set, flags records under any other condition label.
	ExpectedConditions []string

	// ExpectedPerCell, when non-zero, flags cells whose successful record count
	// differs from it (the sample-balance check).
	ExpectedPerCell int
}

// CellCount is the per-cell tally in a verification report.
type CellCount struct {
	Cell   types.CellKey
	Total  int
	Failed int
	Empty  int
}

// VerifyReport is the outcome of verifying one run.
type VerifyReport struct {
	RunID   string
	Records int
	Cells   []CellCount
	Issues  []string
}

// OK reports whether verification found no issues.
func (r VerifyReport) OK() bool {
	return len(r.Issues) == 0
}

// VerifyRun checks a run for the problems that corrupt analysis quietly:
// records missing required fields, unexpected architecture or condition
// values, empty responses on records not marked failed, and unbalanced cell
// sample sizes. It never mutates the run.
func VerifyRun(run *types.Run, opts VerifyOptions) VerifyReport {
	report := VerifyReport{RunID: run.Meta.RunID, Records: len(run.Records)}

	if run.Meta.RunID == "" {
		report.Issues = append(report.Issues, "run metadata has no run ID")
	}
	if err := run.Meta.Validate(); err != nil {
		report.Issues = append(report.Issues, fmt.Sprintf("invalid metadata: %v", err))
	}

	allowedArch := toSet(opts.ExpectedArchitectures)
	allowedCond := toSet(opts.ExpectedConditions)

	counts := make(map[types.CellKey]*CellCount)
	for i, rec := range run.Records {
		if err := rec.Validate(); err != nil {
			report.Issues = append(report.Issues, fmt.Sprintf("record %d: %v", i, err))
			continue
		}
		if len(allowedArch) > 0 && !allowedArch[rec.Architecture] {
			report.Issues = append(report.Issues, fmt.Sprintf("record %d: unexpected architecture %q", i, rec.Architecture))
		}
		if len(allowedCond) > 0 && !allowedCond[rec.ConditionLabel] {
			report.Issues = append(report.Issues, fmt.Sprintf("record %d: unexpected condition %q", i, rec.ConditionLabel))
		}

		key := rec.Cell()
		count, ok := counts[key]
		if !ok {
			count = &CellCount{Cell: key}
			counts[key] = count
		}
		count.Total++
		if rec.Failed {
			count.Failed++
		} else if rec.Response == "" {
			count.Empty++
		}
	}

	keys := make([]types.CellKey, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Architecture != keys[j].Architecture {
			return keys[i].Architecture < keys[j].Architecture
		}
		return keys[i].ConditionLabel < keys[j].ConditionLabel
	})

	for _, key := range keys {
		count := counts[key]
		report.Cells = append(report.Cells, *count)

		if count.Empty > 0 {
			report.Issues = append(report.Issues, fmt.Sprintf("cell %s: %d empty responses", key, count.Empty))
		}
		if opts.ExpectedPerCell > 0 {
			ok := count.Total - count.Failed
			if ok != opts.ExpectedPerCell {
				report.Issues = append(report.Issues,
					fmt.Sprintf("cell %s: %d successful records, expected %d", key, ok, opts.ExpectedPerCell))
			}
		}
	}

	return report
}

// mergeKey identifies a record across runs for de-duplication.
type mergeKey struct {
	arch      string
	condition string
	index     int
	timestamp time.Time
}

// MergeRuns combines multiple runs into one dataset, de-duplicating records
// by (architecture, condition, query index, timestamp) so re-importing an
// overlapping run file never doubles a cell. The merged run gets a fresh run
// ID; metadata is the union of the inputs.
func MergeRuns(runs []*types.Run) (*types.Run, error) {
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: no runs to merge", ErrInvalidInput)
	}

	merged := &types.Run{
		Meta: types.RunMeta{
			RunID:     uuid.NewString(),
			StartedAt: runs[0].Meta.StartedAt,
		},
	}

	seenArch := make(map[string]bool)
	seenCond := make(map[string]bool)
	seenRecord := make(map[mergeKey]bool)

	for _, run := range runs {
		if err := run.Validate(); err != nil {
			return nil, fmt.Errorf("storage: cannot merge invalid run %s: %w", run.Meta.RunID, err)
		}

		if run.Meta.StartedAt.Before(merged.Meta.StartedAt) {
			merged.Meta.StartedAt = run.Meta.StartedAt
		}
		if run.Meta.QueryCount > merged.Meta.QueryCount {
			merged.Meta.QueryCount = run.Meta.QueryCount
		}
		if merged.Meta.TemplateVersion == "" {
			merged.Meta.TemplateVersion = run.Meta.TemplateVersion
		} else if run.Meta.TemplateVersion != merged.Meta.TemplateVersion {
			return nil, fmt.Errorf("%w: template version mismatch: %q vs %q",
				ErrInvalidInput, merged.Meta.TemplateVersion, run.Meta.TemplateVersion)
		}

		for _, arch := range run.Meta.Architectures {
			if !seenArch[arch] {
				seenArch[arch] = true
				merged.Meta.Architectures = append(merged.Meta.Architectures, arch)
			}
		}
		for _, cond := range run.Meta.Conditions {
			if !seenCond[cond.Label] {
				seenCond[cond.Label] = true
				merged.Meta.Conditions = append(merged.Meta.Conditions, cond)
			}
		}

		for _, rec := range run.Records {
			key := mergeKey{rec.Architecture, rec.ConditionLabel, rec.QueryIndex, rec.Timestamp}
			if seenRecord[key] {
				continue
			}
			seenRecord[key] = true
			rec.RunID = merged.Meta.RunID
			merged.Records = append(merged.Records, rec)
		}
	}

	sort.Strings(merged.Meta.Architectures)
	return merged, nil
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
