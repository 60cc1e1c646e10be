// Package harness provides conformance testing for the session engine.
//
// The harness loads a CUE board spec, commits it into a fresh store, drives
// the event compiler through a scripted flow, and validates the resulting
// trace and final state as executable contract tests.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	board: ../boards/clearing.cue
//	flow:
//	  - event: token/create
//	    args: [70, 140]
//	    expect:
//	      edits: 5
//	assertions:
//	  - type: final_state
//	    entity: "$hero"
//	    attr: token/label
//	    value: "Hero"
//	  - type: edit_count
//	    event: token/create
//	    count: 5
//	  - type: turn_order
//	    order: ["$troll", "$archer"]
//
// The board path is resolved relative to the scenario file. Flow arguments
// are positional, matching the event compiler's calling convention. A
// string argument of the form "$name" resolves to the entity key the board
// token or scene of that name received at setup.
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - final_state: Verifies an entity holds (or lacks) an attribute value
//   - edit_count: Verifies the number of edits compiled across the flow
//   - turn_order: Verifies the scene's canonical initiative order
//
// # Deterministic Testing
//
// Every scenario runs on a fresh in-memory store with a sequential key
// generator, so entity keys ("key-1", "key-2", ...) and traces are
// byte-identical across runs. The trace of each flow step records the
// event, its arguments, the size of the compiled batch, and the committed
// facts in canonical form, which feeds golden file comparison.
//
// # Usage
//
// Load and run a scenario:
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/token-basics.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
