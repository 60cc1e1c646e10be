package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// Scenarios validate compiler behavior by loading a board, executing a
// flow of events, and asserting on the resulting trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Board is the path to a CUE board spec, resolved relative to the
	// scenario file when not absolute.
	Board string `yaml:"board"`

	// Role is the window role the genesis batch is built for.
	// Defaults to "host"; most events are role-agnostic but masking and
	// grid editing compile to nothing for a view window.
	Role string `yaml:"role,omitempty"`

	// Flow contains the main test flow - events with optional expected
	// batch sizes.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	// Supported types: final_state, edit_count, turn_order
	Assertions []Assertion `yaml:"assertions"`
}

// FlowStep represents a step in the main test flow.
// Each step compiles one event and commits the resulting batch.
type FlowStep struct {
	// Event is the event tag to compile (e.g. "token/create").
	Event string `yaml:"event"`

	// Args contains the event arguments, positional. A string of the
	// form "$name" resolves to the key of the board entity of that name.
	Args []any `yaml:"args,omitempty"`

	// Expect specifies the expected compilation result.
	// If nil, no validation is performed on the batch size.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected compilation outcome of one step.
type ExpectClause struct {
	// Edits is the expected size of the compiled batch. Zero asserts the
	// event compiled to nothing.
	Edits int `yaml:"edits"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "final_state": Check an entity's attribute in the final snapshot
	// - "edit_count": Check how many edits the flow compiled
	// - "turn_order": Check the scene's canonical initiative order
	Type string `yaml:"type"`

	// Entity is the target entity, as a key or "$name" board reference
	// (used by final_state).
	Entity string `yaml:"entity,omitempty"`

	// Ident selects the target entity by its db/ident value instead
	// (used by final_state). Exactly one of Entity and Ident is set.
	Ident string `yaml:"ident,omitempty"`

	// Attr is the attribute under test (used by final_state).
	Attr string `yaml:"attr,omitempty"`

	// Value is the expected attribute value (used by final_state).
	// For cardinality-many attributes the check is membership.
	Value any `yaml:"value,omitempty"`

	// Absent asserts the attribute holds no value at all, instead of
	// comparing against Value (used by final_state).
	Absent bool `yaml:"absent,omitempty"`

	// Event restricts the count to steps with this event tag; empty
	// counts the whole flow (used by edit_count).
	Event string `yaml:"event,omitempty"`

	// Count is the expected number of edits (used by edit_count).
	Count int `yaml:"count,omitempty"`

	// Scene is the scene whose initiative order is checked; empty uses
	// the window's current scene (used by turn_order).
	Scene string `yaml:"scene,omitempty"`

	// Order is the expected turn order, first entrant first
	// (used by turn_order).
	Order []string `yaml:"order,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalState = "final_state"
	AssertEditCount  = "edit_count"
	AssertTurnOrder  = "turn_order"
)

// LoadScenario reads and parses a scenario YAML file. The board path is
// resolved relative to the scenario file's directory. Returns an error if
// the file doesn't exist, is malformed, contains unknown fields (typos),
// or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like
	// "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve the board path relative to the scenario file BEFORE
	// validation, so the existence check sees the real location.
	if scenario.Board != "" && !filepath.IsAbs(scenario.Board) {
		scenario.Board = filepath.Join(filepath.Dir(path), scenario.Board)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Board == "" {
		return fmt.Errorf("board is required")
	}
	if _, err := os.Stat(s.Board); os.IsNotExist(err) {
		return fmt.Errorf("board file not found: %s", s.Board)
	}

	switch s.Role {
	case "", "host", "view":
	default:
		return fmt.Errorf("role must be \"host\" or \"view\", got %q", s.Role)
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	// Validate flow steps
	for i, step := range s.Flow {
		if step.Event == "" {
			return fmt.Errorf("flow[%d]: event is required", i)
		}
		if step.Expect != nil && step.Expect.Edits < 0 {
			return fmt.Errorf("flow[%d].expect: edits must be non-negative", i)
		}
	}

	// Validate assertions
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFinalState:
		if a.Attr == "" {
			return fmt.Errorf("assertions[%d]: attr is required for final_state", index)
		}
		if (a.Entity == "") == (a.Ident == "") {
			return fmt.Errorf("assertions[%d]: exactly one of entity and ident is required for final_state", index)
		}
		if a.Absent && a.Value != nil {
			return fmt.Errorf("assertions[%d]: absent and value are mutually exclusive", index)
		}
		if !a.Absent && a.Value == nil {
			return fmt.Errorf("assertions[%d]: value (or absent: true) is required for final_state", index)
		}
	case AssertEditCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for edit_count", index)
		}
	case AssertTurnOrder:
		if len(a.Order) == 0 {
			return fmt.Errorf("assertions[%d]: order list is required for turn_order", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
