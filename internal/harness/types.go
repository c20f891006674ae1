package harness

import (
	"github.com/skan-io/saij/internal/trace"
)

// OrganState is the final content of one organ's bags.
type OrganState struct {
	Input  map[string]any `json:"input"`
	Output map[string]any `json:"output"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every assertion held.
	Pass bool `json:"pass"`

	// Trace contains every recorded property write in order.
	Trace []trace.Event `json:"trace"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State maps organ names to their final bags.
	State map[string]OrganState `json:"state,omitempty"`

	// Connections lists the connection ids left at the end, sorted.
	Connections []string `json:"connections"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:        true,
		Trace:       []trace.Event{},
		Errors:      []string{},
		State:       make(map[string]OrganState),
		Connections: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
