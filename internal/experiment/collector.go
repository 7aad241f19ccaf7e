package experiment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/time/rate"

	"github.com/coglab/selfconstruct/internal/llm"
	"github.com/coglab/selfconstruct/internal/memory"
	"github.com/coglab/selfconstruct/pkg/types"
)

// ErrRunAborted wraps failures that invalidate the rest of a run, such as
// authentication errors that every subsequent call would repeat.
var ErrRunAborted = errors.New("experiment: run aborted")

// CollectorOptions configures a Collector. The zero value gives the default
// retry policy, no pacing, and unbounded conversation memory.
type CollectorOptions struct {
	// Retry is the policy applied to each model call.
	Retry llm.RetryPolicy

	// QueriesPerSecond paces model calls across the run. Zero disables pacing.
	QueriesPerSecond float64

	// MemoryWindow caps how many prior exchanges are rendered into context
	// for memory-persistence conditions. Zero means unbounded.
	MemoryWindow int
}

// Collector drives the ordered query sequence for cells against one
// model-calling collaborator. The generator and policy are injected so tests
// substitute deterministic fakes for the network.
type Collector struct {
	gen     llm.Generator
	retry   llm.RetryPolicy
	limiter *rate.Limiter
	window  int
	now     func() time.Time
}

// NewCollector creates a collector for one architecture.
func NewCollector(gen llm.Generator, opts CollectorOptions) *Collector {
	retry := opts.Retry
	if retry.MaxAttempts == 0 {
		retry = llm.DefaultRetryPolicy()
	}

	var limiter *rate.Limiter
	if opts.QueriesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.QueriesPerSecond), 1)
	}

	return &Collector{
		gen:     gen,
		retry:   retry,
		limiter: limiter,
		window:  opts.MemoryWindow,
		now:     time.Now,
	}
}

// RunCell executes the full query sequence for one (architecture, condition)
// cell and returns its response records in order.
//
// Queries run strictly in sequence: later prompts depend on the memory
// accumulated by earlier ones. A query whose retries are exhausted is
// recorded as a sentinel failure entry and the cell continues; only
// authentication failures and context cancellation stop the loop, and in both
// cases the records collected so far are returned alongside the error so
// partial data stays usable.
func (c *Collector) RunCell(ctx context.Context, cond types.Condition, template QueryTemplate) ([]types.ResponseRecord, error) {
	arch := c.gen.Name()
	log.Printf("collector: %s × %s: starting %d queries", arch, cond.Label, template.Len())

	conv := memory.NewConversation(c.window)
	records := make([]types.ResponseRecord, 0, template.Len())
	succeeded, failed := 0, 0

	for i := 0; i < template.Len(); i++ {
		prompt, err := ComposePrompt(cond, template, i, conv)
		if err != nil {
			// Composer failures indicate a caller bug, not a flaky provider.
			return records, err
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return records, err
			}
		}

		response, err := c.retry.Do(ctx, func() (string, error) {
			return c.gen.Generate(ctx, prompt)
		})
		if err != nil {
			if errors.Is(err, llm.ErrAuthentication) {
				return records, fmt.Errorf("%w: %s query %d: %w", ErrRunAborted, arch, i+1, err)
			}
			if ctx.Err() != nil {
				return records, ctx.Err()
			}

			log.Printf("collector: %s × %s: query %d/%d failed: %v", arch, cond.Label, i+1, template.Len(), err)
			records = append(records, types.NewFailedRecord(arch, cond.Label, i, prompt, err.Error(), c.now()))
			failed++
			continue
		}

		record, err := types.NewResponseRecord(arch, cond.Label, i, prompt, response, c.now())
		if err != nil {
			// The provider returned something the record model rejects
			// (e.g. empty text). Treat it like any other per-query failure.
			log.Printf("collector: %s × %s: query %d/%d rejected: %v", arch, cond.Label, i+1, template.Len(), err)
			records = append(records, types.NewFailedRecord(arch, cond.Label, i, prompt, err.Error(), c.now()))
			failed++
			continue
		}

		records = append(records, record)
		succeeded++

		if cond.MemoryPersistence {
			conv = conv.Append(i, prompt, response)
		}
	}

	log.Printf("collector: %s × %s: done, %d succeeded, %d failed", arch, cond.Label, succeeded, failed)
	return records, nil
}
