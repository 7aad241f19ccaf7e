// Package experiment drives the collection side of the pipeline: it composes
// prompts from a condition, a query template, and accumulated conversation
// memory, and runs the ordered query loop for each (architecture, condition)
// cell against a model-calling collaborator.
package experiment

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrIndexOutOfRange indicates a caller asked for a query beyond the template.
// This is a bug in the caller, not a recoverable condition.
var ErrIndexOutOfRange = errors.New("experiment: query index out of range")

// QueryTemplate is the standardized, read-only query set shared across all
// conditions and architectures of a run. Sharing one template keeps cells
// comparable; the version string is recorded in run metadata so analysis can
// tell datasets apart.
type QueryTemplate struct {
	Version string   `yaml:"version"`
	Queries []string `yaml:"queries"`
}

// Len returns the number of queries in the template.
func (t QueryTemplate) Len() int {
	return len(t.Queries)
}

// Query returns the base query text for the given zero-based index.
func (t QueryTemplate) Query(i int) (string, error) {
	if i < 0 || i >= len(t.Queries) {
		return "", fmt.Errorf("%w: index %d, template has %d queries", ErrIndexOutOfRange, i, len(t.Queries))
	}
	return t.Queries[i], nil
}

// Truncate returns a copy limited to the first n queries, for shorter pilot
// runs. n larger than the template leaves it unchanged.
func (t QueryTemplate) Truncate(n int) QueryTemplate {
	if n <= 0 || n >= len(t.Queries) {
		return t
	}
	return QueryTemplate{Version: t.Version, Queries: t.Queries[:n]}
}

// LoadTemplate reads a query template from a YAML file.
func LoadTemplate(path string) (QueryTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return QueryTemplate{}, fmt.Errorf("experiment: failed to read template: %w", err)
	}
	var t QueryTemplate
	if err := yaml.Unmarshal(data, &t); err != nil {
		return QueryTemplate{}, fmt.Errorf("experiment: failed to parse template: %w", err)
	}
	if len(t.Queries) == 0 {
		return QueryTemplate{}, errors.New("experiment: template has no queries")
	}
	return t, nil
}

// DefaultTemplate returns the built-in standardized query set. Queries are
// deliberately neutral and open-ended so that any self-construction language
// in responses comes from the condition manipulation, not the questions.
func DefaultTemplate() QueryTemplate {
	return QueryTemplate{
		Version: "v2",
		Queries: []string{
			"Describe something interesting about rivers.",
			"What makes a good explanation?",
			"Tell me about the concept of symmetry.",
			"What is something surprising about octopuses?",
			"How would you describe the color blue to someone?",
			"What role does silence play in music?",
			"Describe how bridges stay up.",
			"What is interesting about the history of maps?",
			"How do trees communicate?",
			"What makes a story satisfying?",
			"Describe the idea of emergence.",
			"What is notable about desert ecosystems?",
			"How does a library organize knowledge?",
			"What is interesting about the number zero?",
			"Describe how glass is made.",
			"What makes a city feel alive?",
			"How do birds navigate long distances?",
			"What is the appeal of puzzles?",
			"Describe the relationship between light and shadow.",
			"What is interesting about how languages change over time?",
		},
	}
}
