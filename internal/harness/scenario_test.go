package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeBoard creates a minimal CUE board file under dir/boards.
func writeBoard(t *testing.T, dir string) string {
	t.Helper()
	boardsDir := filepath.Join(dir, "boards")
	require.NoError(t, os.MkdirAll(boardsDir, 0755))

	content := `board: {
	name: "camp"
	scenes: camp: tokens: scout: {
		point: [0, 0]
	}
}
`
	path := filepath.Join(boardsDir, "camp.cue")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// writeScenario writes a scenario file next to the boards dir.
func writeScenario(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	writeBoard(t, dir)

	content := `
name: test-scenario
description: "Scenario for loader validation"
board: boards/camp.cue
flow:
  - event: token/create
    args: [10, 20]
    expect:
      edits: 5
  - event: initiative/next
assertions:
  - type: edit_count
    count: 7
`
	path := writeScenario(t, dir, content)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test-scenario", scenario.Name)
	assert.Equal(t, "Scenario for loader validation", scenario.Description)
	assert.Equal(t, filepath.Join(dir, "boards", "camp.cue"), scenario.Board)
	require.Len(t, scenario.Flow, 2)
	assert.Equal(t, "token/create", scenario.Flow[0].Event)
	assert.Equal(t, []any{10, 20}, scenario.Flow[0].Args)
	require.NotNil(t, scenario.Flow[0].Expect)
	assert.Equal(t, 5, scenario.Flow[0].Expect.Edits)
	assert.Nil(t, scenario.Flow[1].Expect)
	require.Len(t, scenario.Assertions, 1)
	assert.Equal(t, AssertEditCount, scenario.Assertions[0].Type)
	assert.Equal(t, 7, scenario.Assertions[0].Count)
}

func TestLoadScenario_AbsoluteBoardPath(t *testing.T) {
	dir := t.TempDir()
	board := writeBoard(t, dir)

	content := `
name: abs-board
description: "Absolute board paths stay untouched"
board: ` + board + `
flow:
  - event: initiative/next
assertions:
  - type: edit_count
    count: 0
`
	scenario, err := LoadScenario(writeScenario(t, dir, content))
	require.NoError(t, err)
	assert.Equal(t, board, scenario.Board)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_MissingName(t *testing.T) {
	dir := t.TempDir()
	writeBoard(t, dir)

	content := `
description: "No name"
board: boards/camp.cue
flow:
  - event: initiative/next
assertions:
  - type: edit_count
    count: 0
`
	_, err := LoadScenario(writeScenario(t, dir, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
}

func TestLoadScenario_MissingDescription(t *testing.T) {
	dir := t.TempDir()
	writeBoard(t, dir)

	content := `
name: test
board: boards/camp.cue
flow:
  - event: initiative/next
assertions:
  - type: edit_count
    count: 0
`
	_, err := LoadScenario(writeScenario(t, dir, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "description is required")
}

func TestLoadScenario_MissingBoard(t *testing.T) {
	dir := t.TempDir()

	content := `
name: test
description: "No board"
flow:
  - event: initiative/next
assertions:
  - type: edit_count
    count: 0
`
	_, err := LoadScenario(writeScenario(t, dir, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "board is required")
}

func TestLoadScenario_BoardNotFound(t *testing.T) {
	dir := t.TempDir()

	content := `
name: test
description: "Board file missing"
board: boards/nowhere.cue
flow:
  - event: initiative/next
assertions:
  - type: edit_count
    count: 0
`
	_, err := LoadScenario(writeScenario(t, dir, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "board file not found")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	dir := t.TempDir()
	writeBoard(t, dir)

	// "assertion" instead of "assertions": strict decoding catches the typo.
	content := `
name: test
description: "Typo in a field name"
board: boards/camp.cue
flow:
  - event: initiative/next
assertion:
  - type: edit_count
    count: 0
`
	_, err := LoadScenario(writeScenario(t, dir, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_BadRole(t *testing.T) {
	dir := t.TempDir()
	writeBoard(t, dir)

	content := `
name: test
description: "Unknown role"
board: boards/camp.cue
role: spectator
flow:
  - event: initiative/next
assertions:
  - type: edit_count
    count: 0
`
	_, err := LoadScenario(writeScenario(t, dir, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "role must be")
}

func TestLoadScenario_EmptyFlow(t *testing.T) {
	dir := t.TempDir()
	writeBoard(t, dir)

	content := `
name: test
description: "No flow"
board: boards/camp.cue
assertions:
  - type: edit_count
    count: 0
`
	_, err := LoadScenario(writeScenario(t, dir, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flow list is required")
}

func TestLoadScenario_EmptyAssertions(t *testing.T) {
	dir := t.TempDir()
	writeBoard(t, dir)

	content := `
name: test
description: "No assertions"
board: boards/camp.cue
flow:
  - event: initiative/next
`
	_, err := LoadScenario(writeScenario(t, dir, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assertions list is required")
}

func TestLoadScenario_FlowMissingEvent(t *testing.T) {
	dir := t.TempDir()
	writeBoard(t, dir)

	content := `
name: test
description: "Step without an event"
board: boards/camp.cue
flow:
  - args: [1, 2]
assertions:
  - type: edit_count
    count: 0
`
	_, err := LoadScenario(writeScenario(t, dir, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flow[0]: event is required")
}

func TestLoadScenario_InvalidAssertions(t *testing.T) {
	cases := []struct {
		name      string
		assertion string
		wantErr   string
	}{
		{
			name:      "missing type",
			assertion: "  - entity: \"$scout\"",
			wantErr:   "type is required",
		},
		{
			name:      "unknown type",
			assertion: "  - type: trace_contains",
			wantErr:   `unknown assertion type "trace_contains"`,
		},
		{
			name: "final_state missing attr",
			assertion: `  - type: final_state
    entity: "$scout"
    value: 1`,
			wantErr: "attr is required",
		},
		{
			name: "final_state entity and ident",
			assertion: `  - type: final_state
    entity: "$scout"
    ident: root
    attr: token/label
    value: x`,
			wantErr: "exactly one of entity and ident",
		},
		{
			name: "final_state neither entity nor ident",
			assertion: `  - type: final_state
    attr: token/label
    value: x`,
			wantErr: "exactly one of entity and ident",
		},
		{
			name: "final_state absent with value",
			assertion: `  - type: final_state
    entity: "$scout"
    attr: token/label
    absent: true
    value: x`,
			wantErr: "mutually exclusive",
		},
		{
			name: "final_state without value",
			assertion: `  - type: final_state
    entity: "$scout"
    attr: token/label`,
			wantErr: "value (or absent: true) is required",
		},
		{
			name: "edit_count negative",
			assertion: `  - type: edit_count
    count: -1`,
			wantErr: "count must be non-negative",
		},
		{
			name:      "turn_order empty order",
			assertion: "  - type: turn_order",
			wantErr:   "order list is required",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeBoard(t, dir)

			content := `
name: test
description: "Assertion validation"
board: boards/camp.cue
flow:
  - event: initiative/next
assertions:
` + tc.assertion + "\n"
			_, err := LoadScenario(writeScenario(t, dir, content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
