package experiment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/coglab/selfconstruct/internal/llm"
	"github.com/coglab/selfconstruct/pkg/types"
)

// Runner executes the full design: every condition against every architecture,
// sequentially. Cells are independent (each gets a fresh conversation), so
// order between cells does not matter; within a cell, order is a hard
// constraint and is owned by the collector.
type Runner struct {
	generators []llm.Generator
	opts       CollectorOptions
	now        func() time.Time
}

// NewRunner creates a runner over the given generators.
func NewRunner(generators []llm.Generator, opts CollectorOptions) *Runner {
	return &Runner{generators: generators, opts: opts, now: time.Now}
}

// Run collects all cells and assembles the persisted run value. On abort or
// cancellation it returns the partially-filled run together with the error:
// already-collected records remain valid for partial analysis.
func (r *Runner) Run(ctx context.Context, conditions []types.Condition, template QueryTemplate) (*types.Run, error) {
	run := &types.Run{
		Meta: types.RunMeta{
			RunID:           uuid.NewString(),
			StartedAt:       r.now(),
			Conditions:      conditions,
			TemplateVersion: template.Version,
			QueryCount:      template.Len(),
		},
	}
	for _, gen := range r.generators {
		run.Meta.Architectures = append(run.Meta.Architectures, gen.Name())
	}
	if err := run.Meta.Validate(); err != nil {
		return nil, err
	}

	for _, gen := range r.generators {
		collector := NewCollector(gen, r.opts)
		for _, cond := range conditions {
			records, err := collector.RunCell(ctx, cond, template)
			for i := range records {
				records[i].RunID = run.Meta.RunID
			}
			run.Records = append(run.Records, records...)
			if err != nil {
				return run, err
			}
		}
	}
	return run, nil
}
