package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthview/tabletop/internal/fact"
)

func TestTrace_Text(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "board.db")
	seedDatabase(t, db)

	output, err := runCommand(t, "trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, output, "Release: "+fact.Release)
	assert.Contains(t, output, "=== Facts ===")
	assert.Contains(t, output, "db/ident")
	assert.Contains(t, output, `"root"`)
	assert.Contains(t, output, "scene/grid-size")
	assert.Contains(t, output, "70")
}

func TestTrace_JSONFormat(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "board.db")
	seedDatabase(t, db)

	output, err := runCommand(t, "--format", "json", "trace", "--db", db)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)

	payload, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, fact.Release, payload["release"])
	facts, ok := payload["facts"].([]any)
	require.True(t, ok)
	assert.NotEmpty(t, facts)
}

func TestTrace_NamedRelease(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "board.db")
	seedDatabase(t, db)

	output, err := runCommand(t, "trace", "--db", db, "--release", fact.Release)
	require.NoError(t, err)
	assert.Contains(t, output, "Release: "+fact.Release)
}

func TestTrace_MissingRelease(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "board.db")
	seedDatabase(t, db)

	output, err := runCommand(t, "trace", "--db", db, "--release", "9.9.9")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, output, "not stored")
}

func TestTrace_MissingDatabase(t *testing.T) {
	dir := t.TempDir()

	_, err := runCommand(t, "trace", "--db", filepath.Join(dir, "nope.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "database not found")
}

func TestBuildTraceResult(t *testing.T) {
	facts := []fact.Fact{
		{Entity: "b", Attr: "token/weight", Value: fact.Int(3)},
		{Entity: "a", Attr: "token/label", Value: fact.String("left")},
		{Entity: "b", Attr: "token/label", Value: fact.String("right")},
	}

	result, err := buildTraceResult("0.9.0", facts)
	require.NoError(t, err)
	assert.Equal(t, "0.9.0", result.Release)
	assert.Equal(t, 2, result.Entities)
	require.Len(t, result.Facts, 3)

	// Sorted by entity, then attr.
	assert.Equal(t, TraceFact{Entity: "a", Attr: "token/label", Value: `"left"`}, result.Facts[0])
	assert.Equal(t, TraceFact{Entity: "b", Attr: "token/label", Value: `"right"`}, result.Facts[1])
	assert.Equal(t, TraceFact{Entity: "b", Attr: "token/weight", Value: "3"}, result.Facts[2])
}
