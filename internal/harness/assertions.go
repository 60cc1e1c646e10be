package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hearthview/tabletop/internal/fact"
	"github.com/hearthview/tabletop/internal/initiative"
	"github.com/hearthview/tabletop/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)

	// Expected vs Actual (most important info)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	// Full trace for context
	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %v (%d edits)\n", i+1, event.Event, event.Args, event.Edits)
	}

	return buf.String()
}

// AssertionContext provides the final state for evaluating assertions.
type AssertionContext struct {
	// Snap is the snapshot after the last flow step.
	Snap *store.Snapshot

	// Names maps board entity names to their committed keys.
	Names map[string]fact.Key
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertFinalState:
			err = assertFinalState(result.Trace, assertion, actx)
		case AssertEditCount:
			err = assertEditCount(result.Trace, assertion)
		case AssertTurnOrder:
			err = assertTurnOrder(result.Trace, assertion, actx)
		default:
			err = fmt.Errorf("assertions[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

// assertFinalState checks one entity attribute in the final snapshot.
// For cardinality-many attributes the value check is membership; Absent
// asserts the attribute holds nothing at all.
func assertFinalState(trace []TraceEvent, a Assertion, actx *AssertionContext) error {
	key, err := resolveTarget(a, actx)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("entity for %s", targetDesc(a)),
			Actual:   err.Error(),
			Trace:    trace,
		}
	}
	attr := fact.Attr(a.Attr)

	if a.Absent {
		if actx.Snap.HasAttr(key, attr) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s holds no %s", key, attr),
				Actual:   fmt.Sprintf("%s = %s", attr, describeValues(actx.Snap.Values(key, attr))),
				Trace:    trace,
			}
		}
		return nil
	}

	want, err := expectedValue(actx.Snap.Schema(), attr, a.Value, actx.Names)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("comparable value for %s", attr),
			Actual:   err.Error(),
			Trace:    trace,
		}
	}

	if !actx.Snap.Has(key, attr, want) {
		actual := "entity does not exist"
		if actx.Snap.Exists(key) {
			actual = fmt.Sprintf("%s = %s", attr, describeValues(actx.Snap.Values(key, attr)))
		}
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s %s = %s", key, attr, describeValue(want)),
			Actual:   actual,
			Trace:    trace,
		}
	}

	return nil
}

// assertEditCount checks how many edits the flow compiled, either for one
// event tag or across every step.
func assertEditCount(trace []TraceEvent, a Assertion) error {
	total := 0
	for _, event := range trace {
		if a.Event == "" || event.Event == a.Event {
			total += event.Edits
		}
	}

	if total != a.Count {
		scope := "the flow"
		if a.Event != "" {
			scope = a.Event
		}
		return &AssertionError{
			Type:     AssertEditCount,
			Expected: fmt.Sprintf("%d edits compiled for %s", a.Count, scope),
			Actual:   fmt.Sprintf("%d edits", total),
			Trace:    trace,
		}
	}

	return nil
}

// assertTurnOrder checks the scene's canonical initiative order against
// the expected sequence, first entrant first.
func assertTurnOrder(trace []TraceEvent, a Assertion, actx *AssertionContext) error {
	scene, err := turnOrderScene(a, actx)
	if err != nil {
		return &AssertionError{
			Type:     AssertTurnOrder,
			Expected: "a scene with an initiative list",
			Actual:   err.Error(),
			Trace:    trace,
		}
	}

	members := actx.Snap.Refs(scene, fact.AttrSceneInitiative)
	entrants := make([]initiative.Entrant, 0, len(members))
	for _, m := range members {
		roll, rolled := actx.Snap.Float(m, fact.AttrTokenRoll)
		entrants = append(entrants, initiative.Entrant{
			Key:    string(m),
			Roll:   roll,
			Rolled: rolled,
		})
	}
	got := initiative.Order(entrants)

	want := make([]string, len(a.Order))
	for i, name := range a.Order {
		key, err := resolveName(name, actx.Names)
		if err != nil {
			return &AssertionError{
				Type:     AssertTurnOrder,
				Expected: fmt.Sprintf("resolvable order entry %q", name),
				Actual:   err.Error(),
				Trace:    trace,
			}
		}
		want[i] = key
	}

	if !slices.Equal(got, want) {
		return &AssertionError{
			Type:     AssertTurnOrder,
			Expected: strings.Join(want, " > "),
			Actual:   strings.Join(got, " > "),
			Trace:    trace,
		}
	}

	return nil
}

// resolveTarget finds the entity a final_state assertion points at.
func resolveTarget(a Assertion, actx *AssertionContext) (fact.Key, error) {
	if a.Ident != "" {
		key, ok := actx.Snap.Ident(a.Ident)
		if !ok {
			return "", fmt.Errorf("no entity with ident %q", a.Ident)
		}
		return key, nil
	}
	s, err := resolveName(a.Entity, actx.Names)
	if err != nil {
		return "", err
	}
	return fact.Key(s), nil
}

func targetDesc(a Assertion) string {
	if a.Ident != "" {
		return "ident " + a.Ident
	}
	return a.Entity
}

// turnOrderScene picks the scene under test: the named one, or the scene
// the window's camera currently looks at.
func turnOrderScene(a Assertion, actx *AssertionContext) (fact.Key, error) {
	if a.Scene != "" {
		s, err := resolveName(a.Scene, actx.Names)
		if err != nil {
			return "", err
		}
		return fact.Key(s), nil
	}
	local, ok := actx.Snap.Ident(fact.IdentLocal)
	if !ok {
		return "", fmt.Errorf("no local entity")
	}
	cam, ok := actx.Snap.Ref(local, fact.AttrLocalCamera)
	if !ok {
		return "", fmt.Errorf("local has no camera")
	}
	scene, ok := actx.Snap.Ref(cam, fact.AttrCameraScene)
	if !ok {
		return "", fmt.Errorf("camera looks at no scene")
	}
	return scene, nil
}

// expectedValue converts a YAML-parsed expected value to the fact value
// the store would hold. Strings become refs for ref attributes (after
// "$name" resolution), numbers follow the engine's canonical numeric
// form, and lists of numbers become vectors.
func expectedValue(schema fact.Schema, attr fact.Attr, v any, names map[string]fact.Key) (fact.Value, error) {
	spec, _ := schema.Spec(attr)

	switch val := v.(type) {
	case string:
		s, err := resolveName(val, names)
		if err != nil {
			return nil, err
		}
		if spec.Ref {
			return fact.RefTo(fact.Key(s)), nil
		}
		return fact.String(s), nil
	case bool:
		return fact.Bool(val), nil
	case int:
		return fact.Num(float64(val)), nil
	case int64:
		return fact.Num(float64(val)), nil
	case float64:
		return fact.Num(val), nil
	case []any:
		vec := make(fact.Vec, len(val))
		for i, elem := range val {
			switch n := elem.(type) {
			case int:
				vec[i] = float64(n)
			case int64:
				vec[i] = float64(n)
			case float64:
				vec[i] = n
			default:
				return nil, fmt.Errorf("value[%d]: expected a number, got %T", i, elem)
			}
		}
		return vec, nil
	}
	return nil, fmt.Errorf("unsupported expected value type %T", v)
}

// describeValue renders one fact value for assertion messages.
func describeValue(v fact.Value) string {
	data, err := fact.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// describeValues renders an attribute's held values for assertion
// messages. Empty slots read as "(none)".
func describeValues(vs []fact.Value) string {
	if len(vs) == 0 {
		return "(none)"
	}
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = describeValue(v)
	}
	return strings.Join(parts, ", ")
}
