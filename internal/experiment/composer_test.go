package experiment

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/coglab/selfconstruct/internal/memory"
	"github.com/coglab/selfconstruct/pkg/types"
)

func testTemplate(n int) QueryTemplate {
	t := QueryTemplate{Version: "test"}
	for i := 0; i < n; i++ {
		t.Queries = append(t.Queries, fmt.Sprintf("Base query number %d.", i))
	}
	return t
}

func TestComposePrompt_Baseline(t *testing.T) {
	tmpl := testTemplate(5)
	conv := memory.NewConversation(0)

	prompt, err := ComposePrompt(types.Baseline, tmpl, 2, conv)
	if err != nil {
		t.Fatalf("ComposePrompt failed: %v", err)
	}
	if prompt != "Base query number 2." {
		t.Errorf("baseline prompt must be the bare query, got %q", prompt)
	}
}

func TestComposePrompt_TemporalTag(t *testing.T) {
	tmpl := testTemplate(5)
	conv := memory.NewConversation(0)

	prompt, err := ComposePrompt(types.FullBasic, tmpl, 2, conv)
	if err != nil {
		t.Fatalf("ComposePrompt failed: %v", err)
	}
	// Tag is 1-indexed and sits directly before the base query.
	if !strings.Contains(prompt, "[This is query 3] Base query number 2.") {
		t.Errorf("missing temporal tag: %q", prompt)
	}
}

func TestComposePrompt_FramingOnlyOnFirstQuery(t *testing.T) {
	tmpl := testTemplate(5)
	conv := memory.NewConversation(0)

	first, err := ComposePrompt(types.FullMeta, tmpl, 0, conv)
	if err != nil {
		t.Fatalf("ComposePrompt failed: %v", err)
	}
	if !strings.HasPrefix(first, framingPreamble) {
		t.Errorf("first query must open with the framing preamble: %q", first)
	}

	second, err := ComposePrompt(types.FullMeta, tmpl, 1, conv)
	if err != nil {
		t.Fatalf("ComposePrompt failed: %v", err)
	}
	if strings.Contains(second, framingPreamble) {
		t.Errorf("framing preamble must not repeat after the first query: %q", second)
	}
}

func TestComposePrompt_MetacognitiveEveryFifth(t *testing.T) {
	tmpl := testTemplate(10)
	conv := memory.NewConversation(0)

	for i := 0; i < 10; i++ {
		prompt, err := ComposePrompt(types.FullMeta, tmpl, i, conv)
		if err != nil {
			t.Fatalf("ComposePrompt failed at %d: %v", i, err)
		}
		has := strings.Contains(prompt, metacognitiveQuestion)
		want := (i+1)%5 == 0
		if has != want {
			t.Errorf("query %d: metacognitive question present=%v, want %v", i, has, want)
		}
	}
}

func TestComposePrompt_MemoryContext(t *testing.T) {
	tmpl := testTemplate(3)
	conv := memory.NewConversation(0)
	conv = conv.Append(0, "p0", "the first response text")
	conv = conv.Append(1, "p1", "the second response text")

	prompt, err := ComposePrompt(types.FullMeta, tmpl, 2, conv)
	if err != nil {
		t.Fatalf("ComposePrompt failed: %v", err)
	}

	// Prompt for query index 2 must contain the literal responses from 0 and 1.
	if !strings.Contains(prompt, "the first response text") || !strings.Contains(prompt, "the second response text") {
		t.Errorf("context missing prior responses: %q", prompt)
	}

	// Same memory under baseline must leak nothing.
	bare, err := ComposePrompt(types.Baseline, tmpl, 2, conv)
	if err != nil {
		t.Fatalf("ComposePrompt failed: %v", err)
	}
	if strings.Contains(bare, "the first response text") {
		t.Errorf("baseline prompt leaked memory: %q", bare)
	}
}

func TestComposePrompt_IndexOutOfRange(t *testing.T) {
	tmpl := testTemplate(3)
	conv := memory.NewConversation(0)

	_, err := ComposePrompt(types.Baseline, tmpl, 3, conv)
	if !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}

// TestComposePrompt_Deterministic exercises randomized flag combinations and
// checks the composer always yields an identical string for identical inputs.
func TestComposePrompt_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tmpl := testTemplate(10)

	for trial := 0; trial < 50; trial++ {
		cond, err := types.NewCondition(fmt.Sprintf("rand_%d", trial), types.Features{
			MemoryPersistence:      rng.Intn(2) == 0,
			TemporalMarkers:        rng.Intn(2) == 0,
			MetacognitivePrompting: rng.Intn(2) == 0,
			SelfFraming:            rng.Intn(2) == 0,
		})
		if err != nil {
			t.Fatal(err)
		}

		conv := memory.NewConversation(0)
		for i := 0; i < rng.Intn(4); i++ {
			conv = conv.Append(i, fmt.Sprintf("p%d", i), fmt.Sprintf("r%d", i))
		}
		idx := rng.Intn(tmpl.Len())

		first, err1 := ComposePrompt(cond, tmpl, idx, conv)
		second, err2 := ComposePrompt(cond, tmpl, idx, conv)
		if err1 != nil || err2 != nil {
			t.Fatalf("ComposePrompt failed: %v / %v", err1, err2)
		}
		if first != second {
			t.Fatalf("composer not deterministic for %s idx=%d:\n%q\n%q", cond, idx, first, second)
		}
	}
}
