// Package memory holds the conversation history used to build prompt context
// for memory-persistence conditions. A Conversation is owned by exactly one
// (architecture, condition) cell and is never shared across cells.
package memory

import (
	"fmt"
	"strings"

	"github.com/coglab/selfconstruct/pkg/types"
)

// Exchange is one prior query/response pair.
type Exchange struct {
	QueryIndex int
	Prompt     string
	Response   string
}

// Conversation is an immutable accumulator of exchanges. Append returns a new
// value and never mutates the receiver, so a conversation snapshot taken at
// any point in a cell stays valid even if cells are ever run in parallel.
type Conversation struct {
	exchanges []Exchange

	// maxExchanges caps how many trailing exchanges RenderContext includes.
	// Zero means unbounded, matching the original unbounded-context design;
	// a positive value gives a sliding window for long-running cells.
	maxExchanges int
}

// NewConversation creates an empty conversation. maxExchanges of zero renders
// the full history; a positive value renders only the most recent exchanges.
func NewConversation(maxExchanges int) Conversation {
	if maxExchanges < 0 {
		maxExchanges = 0
	}
	return Conversation{maxExchanges: maxExchanges}
}

// Append returns a new conversation with the exchange added. The receiver is
// left untouched.
func (c Conversation) Append(queryIndex int, prompt, response string) Conversation {
	exchanges := make([]Exchange, len(c.exchanges), len(c.exchanges)+1)
	copy(exchanges, c.exchanges)
	exchanges = append(exchanges, Exchange{QueryIndex: queryIndex, Prompt: prompt, Response: response})
	return Conversation{exchanges: exchanges, maxExchanges: c.maxExchanges}
}

// Len returns the number of stored exchanges.
func (c Conversation) Len() int {
	return len(c.exchanges)
}

// Exchanges returns a copy of the stored exchanges in chronological order.
func (c Conversation) Exchanges() []Exchange {
	out := make([]Exchange, len(c.exchanges))
	copy(out, c.exchanges)
	return out
}

// RenderContext builds the context block prepended to the next prompt.
//
// When the condition has memory persistence disabled it returns the empty
// string regardless of stored contents, so history can never leak between
// conditions. Otherwise it renders prior exchanges in chronological order,
// limited to the sliding window when one is configured.
func (c Conversation) RenderContext(cond types.Condition) string {
	if !cond.MemoryPersistence || len(c.exchanges) == 0 {
		return ""
	}

	window := c.exchanges
	if c.maxExchanges > 0 && len(window) > c.maxExchanges {
		window = window[len(window)-c.maxExchanges:]
	}

	var b strings.Builder
	b.WriteString("Previous conversation:\n")
	for _, ex := range window {
		fmt.Fprintf(&b, "\n[Query %d] %s\n[Response %d] %s\n", ex.QueryIndex+1, ex.Prompt, ex.QueryIndex+1, ex.Response)
	}
	return b.String()
}
