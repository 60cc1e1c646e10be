package gateway

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthview/tabletop/internal/compile"
	"github.com/hearthview/tabletop/internal/fact"
	"github.com/hearthview/tabletop/internal/store"
	"github.com/hearthview/tabletop/internal/testutil"
)

func hostSeed() []fact.Edit {
	return compile.Genesis("host")
}

func newBoardStore(t *testing.T) *store.Store {
	t.Helper()
	return store.New(fact.DefaultSchema(), testutil.NewSequentialKeys("key"))
}

func openGateway(t *testing.T, path string, opts ...Option) *Gateway {
	t.Helper()
	g, err := Open(path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })
	return g
}

// dispatch compiles one event against the current snapshot and commits it.
func dispatch(t *testing.T, st *store.Store, tag string, args ...any) store.TxReport {
	t.Helper()
	edits := compile.Compile(st.Snapshot(), tag, args...)
	require.NotEmpty(t, edits, "event %s should compile to edits", tag)
	report, err := st.Commit(edits)
	require.NoError(t, err)
	return report
}

func mintedKey(t *testing.T, report store.TxReport) fact.Key {
	t.Helper()
	require.Len(t, report.Keys, 1)
	for _, k := range report.Keys {
		return k
	}
	return ""
}

func releaseCount(t *testing.T, g *Gateway) int {
	t.Helper()
	var n int
	require.NoError(t, g.db.QueryRow(`SELECT COUNT(*) FROM releases`).Scan(&n))
	return n
}

func TestLoad_SeedsFreshWhenEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.db")
	g := openGateway(t, path, WithSeed(hostSeed))

	st := newBoardStore(t)
	require.NoError(t, g.Load(context.Background(), st))

	snap := st.Snapshot()
	root, ok := snap.Ident(fact.IdentRoot)
	require.True(t, ok, "fresh board should have a root")
	assert.Len(t, snap.Refs(root, fact.AttrRootScenes), 1)

	local, ok := snap.Ident(fact.IdentLocal)
	require.True(t, ok)
	status, _ := snap.String(local, fact.AttrLocalStatus)
	assert.Equal(t, "ready", status)
}

func TestLoad_RoundtripsDurableImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.db")
	g := openGateway(t, path, WithSeed(hostSeed))

	st := newBoardStore(t)
	require.NoError(t, g.Load(context.Background(), st))

	report := dispatch(t, st, "token/create", 10.0, 20.0, "")
	tok := mintedKey(t, report)
	dispatch(t, st, "token/change-label", tok, "Goblin")

	g.Subscribe(st)
	require.NoError(t, g.SaveNow())
	require.NoError(t, g.Close())

	g2 := openGateway(t, path)
	st2 := newBoardStore(t)
	require.NoError(t, g2.Load(context.Background(), st2))

	want, err := fact.EncodeFacts(st.Snapshot().DurableFacts())
	require.NoError(t, err)
	got, err := fact.EncodeFacts(st2.Snapshot().DurableFacts())
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got), "reloaded durable image should match the saved one")

	label, _ := st2.Snapshot().String(tok, fact.AttrTokenLabel)
	assert.Equal(t, "Goblin", label)

	// Ready is re-asserted on load, never read from the image.
	local, ok := st2.Snapshot().Ident(fact.IdentLocal)
	require.True(t, ok)
	status, _ := st2.Snapshot().String(local, fact.AttrLocalStatus)
	assert.Equal(t, "ready", status)
}

func TestSubscribe_CoalescesBurstIntoOneImage(t *testing.T) {
	clock := testutil.NewManualClock(time.UnixMilli(1_700_000_000_000))
	path := filepath.Join(t.TempDir(), "board.db")
	g := openGateway(t, path,
		WithSeed(hostSeed),
		WithDebounce(20*time.Millisecond),
		WithNow(clock.Now),
	)

	st := newBoardStore(t)
	require.NoError(t, g.Load(context.Background(), st))
	g.Subscribe(st)

	report := dispatch(t, st, "token/create", 1.0, 1.0, "")
	tok := mintedKey(t, report)
	dispatch(t, st, "token/translate", tok, 5.0, 5.0)
	dispatch(t, st, "token/translate", tok, 9.0, 9.0)

	// The burst settles into one row holding the final position.
	require.Eventually(t, func() bool {
		var data []byte
		err := g.db.QueryRow(
			`SELECT data FROM releases WHERE release = ?`, fact.Release,
		).Scan(&data)
		if err != nil {
			return false
		}
		facts, err := fact.DecodeFacts(st.Schema(), data)
		if err != nil {
			return false
		}
		probe := store.New(fact.DefaultSchema(), testutil.NewSequentialKeys("probe"))
		probe.Reset(facts)
		point, ok := probe.Snapshot().Vec(tok, fact.AttrTokenPoint)
		return ok && len(point) == 2 && point[0] == 15 && point[1] == 15
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, releaseCount(t, g))

	var updatedAt int64
	require.NoError(t, g.db.QueryRow(
		`SELECT updated_at FROM releases WHERE release = ?`, fact.Release,
	).Scan(&updatedAt))
	assert.Equal(t, -clock.Now().UnixMilli(), updatedAt)
}

func TestSubscribe_WaitsForDebounceWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.db")
	g := openGateway(t, path, WithSeed(hostSeed), WithDebounce(150*time.Millisecond))

	st := newBoardStore(t)
	require.NoError(t, g.Load(context.Background(), st))
	g.Subscribe(st)

	dispatch(t, st, "token/create", 1.0, 1.0, "")

	assert.Zero(t, releaseCount(t, g), "write should wait out the debounce window")

	require.Eventually(t, func() bool {
		var n int
		if err := g.db.QueryRow(`SELECT COUNT(*) FROM releases`).Scan(&n); err != nil {
			return false
		}
		return n == 1
	}, time.Second, 10*time.Millisecond)
}

func TestSubscribe_IgnoresEphemeralCommits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.db")
	g := openGateway(t, path, WithSeed(hostSeed), WithDebounce(15*time.Millisecond))

	st := newBoardStore(t)
	require.NoError(t, g.Load(context.Background(), st))
	g.Subscribe(st)

	// Status and window bounds are ephemeral; neither should arm the
	// writer.
	dispatch(t, st, "local/change-status", "connecting")
	dispatch(t, st, "bounds/change", "host", []float64{0, 0, 800, 600})

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, releaseCount(t, g))
}

func TestClose_FlushesPendingSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.db")
	// A window this long only ever flushes through Close.
	g := openGateway(t, path, WithSeed(hostSeed), WithDebounce(10*time.Second))

	st := newBoardStore(t)
	require.NoError(t, g.Load(context.Background(), st))
	g.Subscribe(st)

	report := dispatch(t, st, "token/create", 3.0, 4.0, "")
	tok := mintedKey(t, report)

	require.NoError(t, g.Close())

	g2 := openGateway(t, path)
	st2 := newBoardStore(t)
	require.NoError(t, g2.Load(context.Background(), st2))

	point, ok := st2.Snapshot().Vec(tok, fact.AttrTokenPoint)
	require.True(t, ok, "pending snapshot should flush on close")
	assert.Equal(t, fact.Vec{3, 4}, point)
}

func TestLoad_FallsBackToNewestRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.db")
	clock := testutil.NewManualClock(time.UnixMilli(1_700_000_000_000))

	// An older install saved its image under another release key.
	old := openGateway(t, path,
		WithRelease("0.0.9"),
		WithSeed(hostSeed),
		WithNow(clock.Now),
	)
	st := newBoardStore(t)
	require.NoError(t, old.Load(context.Background(), st))
	report := dispatch(t, st, "token/create", 7.0, 8.0, "")
	tok := mintedKey(t, report)
	old.Subscribe(st)
	require.NoError(t, old.SaveNow())
	require.NoError(t, old.Close())

	// The current release has no row of its own yet.
	g := openGateway(t, path, WithSeed(hostSeed))
	st2 := newBoardStore(t)
	require.NoError(t, g.Load(context.Background(), st2))

	point, ok := st2.Snapshot().Vec(tok, fact.AttrTokenPoint)
	require.True(t, ok, "load should fall back to the newest stored release")
	assert.Equal(t, fact.Vec{7, 8}, point)
}

func TestLoad_CorruptImageSeedsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.db")
	g := openGateway(t, path, WithSeed(hostSeed))

	_, err := g.db.Exec(
		`INSERT INTO releases (release, updated_at, data) VALUES (?, ?, ?)`,
		fact.Release, -1, []byte("{corrupt"),
	)
	require.NoError(t, err)

	st := newBoardStore(t)
	require.NoError(t, g.Load(context.Background(), st))

	// The unreadable image is ignored; the board still comes up.
	root, ok := st.Snapshot().Ident(fact.IdentRoot)
	require.True(t, ok)
	assert.Len(t, st.Snapshot().Refs(root, fact.AttrRootScenes), 1)
}
