package harness

import (
	"fmt"

	"github.com/hearthview/tabletop/internal/fact"
)

// TraceEvent records one flow step: the event as scripted, the size of
// the batch the compiler produced, and the facts the commit changed.
type TraceEvent struct {
	Event   string   `json:"event"`
	Args    []any    `json:"args,omitempty"`
	Edits   int      `json:"edits"`
	Changes []string `json:"changes,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	// True if every expect clause and assertion holds.
	Pass bool `json:"pass"`

	// Trace contains one entry per flow step, in order.
	// Used for edit_count assertions and golden comparison.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for scenario execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}

// AddEvent appends one flow step to the trace. The scripted args are kept
// verbatim so the trace reads like the scenario; committed changes render
// in canonical form.
func (r *Result) AddEvent(event string, args []any, edits int, changes []fact.Change) {
	lines := make([]string, len(changes))
	for i, ch := range changes {
		lines[i] = formatChange(ch)
	}
	r.Trace = append(r.Trace, TraceEvent{
		Event:   event,
		Args:    args,
		Edits:   edits,
		Changes: lines,
	})
}

// formatChange renders one committed fact as "+ entity attr value" or
// "- entity attr value", with the value in canonical JSON so golden
// traces stay byte-stable.
func formatChange(ch fact.Change) string {
	sign := "-"
	if ch.Added {
		sign = "+"
	}
	data, err := fact.MarshalCanonical(ch.Value)
	if err != nil {
		data = []byte(fmt.Sprintf("%v", ch.Value))
	}
	return fmt.Sprintf("%s %s %s %s", sign, ch.Entity, ch.Attr, data)
}
