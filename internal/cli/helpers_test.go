package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hearthview/tabletop/internal/compile"
	"github.com/hearthview/tabletop/internal/fact"
	"github.com/hearthview/tabletop/internal/gateway"
	"github.com/hearthview/tabletop/internal/store"
	"github.com/hearthview/tabletop/internal/testutil"
)

// runCommand executes the root command with args and captures its output.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// openRawGateway opens a database without loading or saving, leaving the
// schema in place but no release rows.
func openRawGateway(path string) (*gateway.Gateway, error) {
	return gateway.Open(path)
}

// seedDatabase creates a database holding one saved release of a fresh
// host board.
func seedDatabase(t *testing.T, path string) {
	t.Helper()
	g, err := gateway.Open(path, gateway.WithSeed(func() []fact.Edit {
		return compile.Genesis("host")
	}))
	require.NoError(t, err)

	st := store.New(fact.DefaultSchema(), testutil.NewSequentialKeys("key"))
	require.NoError(t, g.Load(context.Background(), st))
	g.Subscribe(st)
	require.NoError(t, g.SaveNow())
	require.NoError(t, g.Close())
}
