package experiment

import (
	"fmt"
	"strings"

	"github.com/coglab/selfconstruct/internal/memory"
	"github.com/coglab/selfconstruct/pkg/types"
)

const (
	// framingPreamble establishes continuous-entity framing on the first query
	// of self-framing conditions.
	framingPreamble = "You are a single continuous entity having an ongoing conversation. " +
		"Everything in this exchange is part of one unfolding experience that you can refer back to."

	// metacognitiveQuestion is appended every metacognitiveInterval queries in
	// metacognitive-prompting conditions.
	metacognitiveQuestion = "What do you notice about yourself in this conversation?"

	metacognitiveInterval = 5

	// contextSeparator sits between rendered conversation memory and the
	// current query.
	contextSeparator = "\n---\n\n"
)

// ComposePrompt produces the exact text sent to the model for one query.
// It is deterministic given identical inputs, which analysis relies on for
// replay and tests.
//
// Construction order: the base query comes from the template; the temporal
// tag is prepended directly before it; the framing preamble (first query
// only) goes in front of both; the metacognitive question is appended after;
// rendered memory context, when non-empty, leads the whole prompt followed
// by a separator.
func ComposePrompt(cond types.Condition, template QueryTemplate, queryIndex int, conv memory.Conversation) (string, error) {
	base, err := template.Query(queryIndex)
	if err != nil {
		return "", err
	}

	prompt := base
	if cond.TemporalMarkers {
		prompt = fmt.Sprintf("[This is query %d] %s", queryIndex+1, prompt)
	}
	if cond.SelfFraming && queryIndex == 0 {
		prompt = framingPreamble + "\n\n" + prompt
	}
	if cond.MetacognitivePrompting && (queryIndex+1)%metacognitiveInterval == 0 {
		prompt = prompt + "\n\n" + metacognitiveQuestion
	}

	if ctx := conv.RenderContext(cond); ctx != "" {
		var b strings.Builder
		b.WriteString(ctx)
		b.WriteString(contextSeparator)
		b.WriteString(prompt)
		return b.String(), nil
	}
	return prompt, nil
}
