package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/hearthview/tabletop/internal/fact"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	Scenario string       `json:"scenario"`
	Trace    []TraceEvent `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical
// JSON serialization. fact.MarshalCanonical only handles fact values,
// primitives, and map/slice composites, not arbitrary structs.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"event": event.Event,
			"edits": event.Edits,
		}
		if len(event.Args) > 0 {
			eventMap["args"] = event.Args
		}
		if len(event.Changes) > 0 {
			changes := make([]any, len(event.Changes))
			for j, ch := range event.Changes {
				changes[j] = ch
			}
			eventMap["changes"] = changes
		}
		traceList[i] = eventMap
	}

	return map[string]any{
		"scenario": s.Scenario,
		"trace":    traceList,
	}
}

// Canonical serializes the snapshot as canonical JSON, the byte format
// golden files store.
func (s *TraceSnapshot) Canonical() ([]byte, error) {
	return fact.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden
// file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Golden files are the source of truth for expected trace behavior: same
// board, same flow, same committed facts, byte for byte.
//
// Returns an error if scenario execution fails; a trace mismatch fails the
// test via goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}

	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the given result's trace against a golden file.
// Useful when a scenario has already run and only the comparison remains.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		Scenario: scenarioName,
		Trace:    result.Trace,
	}

	traceJSON, err := snapshot.Canonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
