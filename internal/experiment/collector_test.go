package experiment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/coglab/selfconstruct/internal/llm"
	"github.com/coglab/selfconstruct/pkg/types"
)

// echoGenerator returns the prompt verbatim, so tests can inspect exactly
// what the composer produced. failAt maps query ordinals (1-based call
// counts) to errors.
type echoGenerator struct {
	name   string
	calls  int
	failAt map[int]error
}

func (g *echoGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.calls++
	if err, ok := g.failAt[g.calls]; ok {
		return "", err
	}
	return "echo: " + prompt, nil
}

func (g *echoGenerator) Name() string  { return g.name }
func (g *echoGenerator) Model() string { return g.name + "-test" }

func fastRetry(attempts int) llm.RetryPolicy {
	return llm.RetryPolicy{MaxAttempts: attempts, InitialBackoff: time.Microsecond, BackoffFactor: 1}
}

func TestRunCell_AllQueriesSucceed(t *testing.T) {
	gen := &echoGenerator{name: "claude"}
	c := NewCollector(gen, CollectorOptions{Retry: fastRetry(1)})
	tmpl := testTemplate(5)

	records, err := c.RunCell(context.Background(), types.Baseline, tmpl)
	if err != nil {
		t.Fatalf("RunCell failed: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(records))
	}
	for i, r := range records {
		if r.QueryIndex != i {
			t.Errorf("record %d has index %d", i, r.QueryIndex)
		}
		if r.Failed {
			t.Errorf("record %d unexpectedly failed", i)
		}
		if r.Architecture != "claude" || r.ConditionLabel != "baseline" {
			t.Errorf("record %d mislabelled: %s × %s", i, r.Architecture, r.ConditionLabel)
		}
		if r.WordCount == 0 {
			t.Errorf("record %d has zero word count", i)
		}
	}
}

func TestRunCell_MemoryPersistenceAccumulates(t *testing.T) {
	gen := &echoGenerator{name: "claude"}
	c := NewCollector(gen, CollectorOptions{Retry: fastRetry(1)})
	tmpl := testTemplate(3)

	records, err := c.RunCell(context.Background(), types.MemoryOnly, tmpl)
	if err != nil {
		t.Fatalf("RunCell failed: %v", err)
	}

	// The third prompt must contain the literal responses to queries 0 and 1.
	third := records[2].Prompt
	if !strings.Contains(third, records[0].Response) {
		t.Errorf("prompt 2 missing response 0:\n%s", third)
	}
	if !strings.Contains(third, records[1].Response) {
		t.Errorf("prompt 2 missing response 1:\n%s", third)
	}

	// Baseline cells never accumulate.
	gen2 := &echoGenerator{name: "claude"}
	c2 := NewCollector(gen2, CollectorOptions{Retry: fastRetry(1)})
	records2, err := c2.RunCell(context.Background(), types.Baseline, tmpl)
	if err != nil {
		t.Fatalf("RunCell failed: %v", err)
	}
	if strings.Contains(records2[2].Prompt, records2[0].Response) {
		t.Error("baseline prompt leaked memory between queries")
	}
}

func TestRunCell_FailuresBecomeSentinelRecords(t *testing.T) {
	// Queries 2 and 5 fail on every retry attempt: with 2 attempts each, the
	// generator sees calls 2,3 (query 2) and 6,7 (query 5).
	rateLimited := fmt.Errorf("%w: slow down", llm.ErrRateLimited)
	gen := &echoGenerator{name: "gpt", failAt: map[int]error{
		2: rateLimited, 3: rateLimited,
		6: rateLimited, 7: rateLimited,
	}}
	c := NewCollector(gen, CollectorOptions{Retry: fastRetry(2)})
	tmpl := testTemplate(5)

	records, err := c.RunCell(context.Background(), types.Baseline, tmpl)
	if err != nil {
		t.Fatalf("RunCell must not abort on per-query failures: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("expected 5 records including sentinels, got %d", len(records))
	}

	var failed int
	for _, r := range records {
		if r.Failed {
			failed++
			if r.FailureReason == "" {
				t.Error("sentinel record missing failure reason")
			}
		}
	}
	if failed != 2 {
		t.Errorf("expected 2 sentinel records, got %d", failed)
	}

	// Indices are preserved: the sentinel for query 2 sits at position 1.
	if !records[1].Failed || records[1].QueryIndex != 1 {
		t.Errorf("sentinel misplacement: %+v", records[1])
	}
}

func TestRunCell_RetryRecoversTransientFailure(t *testing.T) {
	// First attempt of query 1 fails, second succeeds.
	gen := &echoGenerator{name: "gpt", failAt: map[int]error{
		1: fmt.Errorf("%w: blip", llm.ErrTransient),
	}}
	c := NewCollector(gen, CollectorOptions{Retry: fastRetry(3)})

	records, err := c.RunCell(context.Background(), types.Baseline, testTemplate(2))
	if err != nil {
		t.Fatalf("RunCell failed: %v", err)
	}
	if records[0].Failed {
		t.Error("query 0 should have recovered on retry")
	}
	if gen.calls != 3 {
		t.Errorf("expected 3 generator calls (1 retry + 2 queries), got %d", gen.calls)
	}
}

func TestRunCell_AuthenticationAbortsRun(t *testing.T) {
	gen := &echoGenerator{name: "gemini", failAt: map[int]error{
		3: fmt.Errorf("%w: key revoked", llm.ErrAuthentication),
	}}
	c := NewCollector(gen, CollectorOptions{Retry: fastRetry(3)})

	records, err := c.RunCell(context.Background(), types.Baseline, testTemplate(5))
	if !errors.Is(err, ErrRunAborted) {
		t.Fatalf("expected ErrRunAborted, got %v", err)
	}
	if !errors.Is(err, llm.ErrAuthentication) {
		t.Errorf("abort error must wrap the authentication failure: %v", err)
	}
	// The two successful queries before the failure are kept.
	if len(records) != 2 {
		t.Errorf("expected 2 records collected before abort, got %d", len(records))
	}
}

func TestRunCell_CancellationKeepsPartialRecords(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := &cancellingGenerator{cancel: cancel, after: 3}
	c := NewCollector(gen, CollectorOptions{Retry: fastRetry(1)})

	records, err := c.RunCell(ctx, types.Baseline, testTemplate(10))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(records) != 3 {
		t.Errorf("expected 3 records collected before cancellation, got %d", len(records))
	}
}

// cancellingGenerator cancels the run context after a fixed number of
// successful responses, then fails.
type cancellingGenerator struct {
	cancel context.CancelFunc
	after  int
	calls  int
}

func (g *cancellingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls++
	if g.calls > g.after {
		return "", ctx.Err()
	}
	if g.calls == g.after {
		defer g.cancel()
	}
	return "response", nil
}

func (g *cancellingGenerator) Name() string  { return "fake" }
func (g *cancellingGenerator) Model() string { return "fake-test" }

// TestRunCell_EchoScenario mirrors the Baseline vs Full-Meta comparison on a
// verbatim echo model: Full-Meta prompts carry the temporal tag, Baseline
// prompts do not.
func TestRunCell_EchoScenario(t *testing.T) {
	tmpl := testTemplate(5)

	fullMeta := &echoGenerator{name: "claude"}
	c := NewCollector(fullMeta, CollectorOptions{Retry: fastRetry(1)})
	metaRecords, err := c.RunCell(context.Background(), types.FullMeta, tmpl)
	if err != nil {
		t.Fatalf("RunCell failed: %v", err)
	}
	if !strings.Contains(metaRecords[2].Response, "[This is query 3]") {
		t.Errorf("full_meta echo response missing temporal tag: %q", metaRecords[2].Response)
	}

	baseline := &echoGenerator{name: "claude"}
	c2 := NewCollector(baseline, CollectorOptions{Retry: fastRetry(1)})
	baseRecords, err := c2.RunCell(context.Background(), types.Baseline, tmpl)
	if err != nil {
		t.Fatalf("RunCell failed: %v", err)
	}
	if strings.Contains(baseRecords[2].Response, "[This is query") {
		t.Errorf("baseline echo response must not carry a temporal tag: %q", baseRecords[2].Response)
	}
}
