package harness

import (
	"fmt"
	"strings"

	"github.com/hearthview/tabletop/internal/compile"
	"github.com/hearthview/tabletop/internal/fact"
	"github.com/hearthview/tabletop/internal/store"
	"github.com/hearthview/tabletop/internal/testutil"
)

// Run executes a test scenario and returns the result.
//
// Each scenario runs on a fresh store with a sequential key generator for
// isolation and reproducible entity keys.
//
// Execution flow:
//  1. Create a fresh store and commit the genesis batch
//  2. Load the CUE board and commit its setup batch
//  3. Compile and commit each flow step, recording the trace
//  4. Validate expect clauses and assertions
//  5. Return result with pass/fail, trace, and errors
//
// A returned error means the scenario could not run (unreadable board,
// rejected commit); assertion failures land in the result instead.
func Run(scenario *Scenario) (*Result, error) {
	st := store.New(fact.DefaultSchema(), testutil.NewSequentialKeys("key"))

	role := scenario.Role
	if role == "" {
		role = "host"
	}
	if _, err := st.Commit(compile.Genesis(role)); err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}

	board, err := LoadBoard(scenario.Board)
	if err != nil {
		return nil, fmt.Errorf("load board: %w", err)
	}
	edits, ids, err := board.Edits(st.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("board setup: %w", err)
	}
	report, err := st.Commit(edits)
	if err != nil {
		return nil, fmt.Errorf("board setup: %w", err)
	}

	// Bind board names to the keys the commit issued.
	names := make(map[string]fact.Key, len(ids))
	for name, id := range ids {
		switch v := id.(type) {
		case fact.Key:
			names[name] = v
		case fact.Placeholder:
			names[name] = report.Keys[v]
		}
	}

	result := NewResult()
	for i, step := range scenario.Flow {
		args, err := resolveArgs(step.Args, names)
		if err != nil {
			return nil, fmt.Errorf("flow[%d] %s: %w", i, step.Event, err)
		}

		batch := compile.Compile(st.Snapshot(), step.Event, args...)
		rep, err := st.Commit(batch)
		if err != nil {
			return nil, fmt.Errorf("flow[%d] %s: commit: %w", i, step.Event, err)
		}

		result.AddEvent(step.Event, step.Args, len(batch), rep.Changes)

		if step.Expect != nil && step.Expect.Edits != len(batch) {
			result.AddError(fmt.Sprintf(
				"flow[%d] %s: expected %d edits, compiled %d",
				i, step.Event, step.Expect.Edits, len(batch)))
		}
	}

	actx := &AssertionContext{Snap: st.Snapshot(), Names: names}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// RunFile loads a scenario from path and runs it.
func RunFile(path string) (*Result, error) {
	scenario, err := LoadScenario(path)
	if err != nil {
		return nil, err
	}
	return Run(scenario)
}

// resolveArgs maps scripted arguments onto compiler arguments: "$name"
// strings become the named board entity's key, nested lists resolve
// element-wise, and everything else passes through untouched.
func resolveArgs(args []any, names map[string]fact.Key) ([]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make([]any, len(args))
	for i, a := range args {
		v, err := resolveArg(a, names)
		if err != nil {
			return nil, fmt.Errorf("args[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func resolveArg(a any, names map[string]fact.Key) (any, error) {
	switch v := a.(type) {
	case string:
		return resolveName(v, names)
	case []any:
		return resolveArgs(v, names)
	}
	return a, nil
}

// resolveName turns a "$name" board reference into its entity key; any
// other string passes through.
func resolveName(s string, names map[string]fact.Key) (string, error) {
	if !strings.HasPrefix(s, "$") {
		return s, nil
	}
	key, ok := names[s[1:]]
	if !ok {
		return "", fmt.Errorf("unknown board name %q", s)
	}
	return string(key), nil
}
