package compile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthview/tabletop/internal/fact"
)

func TestSessionLifecycle(t *testing.T) {
	st := newTestStore(t, "host")
	local := ident(t, st, fact.IdentLocal)
	scene := currentScene(t, st)

	commit(t, st, "session/request")
	session := ident(t, st, fact.IdentSession)
	host, _ := st.Snapshot().Ref(session, fact.AttrSessionHost)
	assert.Equal(t, local, host)
	status, _ := st.Snapshot().String(session, fact.AttrSessionStatus)
	assert.Equal(t, "connecting", status)

	commit(t, st, "session/join", "conn-1")
	conn1, ok := st.Snapshot().Lookup(fact.AttrIdent, "conn-1")
	require.True(t, ok)
	typ, _ := st.Snapshot().String(conn1, fact.AttrLocalType)
	assert.Equal(t, "conn", typ)
	color, _ := st.Snapshot().String(conn1, fact.AttrLocalColor)
	assert.Equal(t, Palette[1], color)
	connCam, ok := st.Snapshot().Ref(conn1, fact.AttrLocalCamera)
	require.True(t, ok)
	at, _ := st.Snapshot().Ref(connCam, fact.AttrCameraScene)
	assert.Equal(t, scene, at, "joiners start on the host's scene")

	commit(t, st, "session/join", "conn-2")
	conn2, _ := st.Snapshot().Lookup(fact.AttrIdent, "conn-2")
	color, _ = st.Snapshot().String(conn2, fact.AttrLocalColor)
	assert.Equal(t, Palette[2], color)
	assert.Equal(t, []fact.Key{conn1, conn2}, st.Snapshot().Refs(session, fact.AttrSessionConns))

	commit(t, st, "session/disconnect", "conn-1")
	snap := st.Snapshot()
	assert.False(t, snap.Exists(conn1))
	assert.False(t, snap.Exists(connCam), "a participant's cameras leave with it")
	assert.Equal(t, []fact.Key{conn2}, snap.Refs(session, fact.AttrSessionConns))

	requireNoEdits(t, st, "session/disconnect", "conn-1")
}

func TestSessionRejoinUpserts(t *testing.T) {
	st := newTestStore(t, "host")
	commit(t, st, "session/request")

	commit(t, st, "session/join", "conn-1")
	first, _ := st.Snapshot().Lookup(fact.AttrIdent, "conn-1")
	commit(t, st, "session/join", "conn-1")
	second, _ := st.Snapshot().Lookup(fact.AttrIdent, "conn-1")

	assert.Equal(t, first, second)
	session := ident(t, st, fact.IdentSession)
	assert.Len(t, st.Snapshot().Refs(session, fact.AttrSessionConns), 1)
}

func TestSessionJoinRequiresSession(t *testing.T) {
	st := newTestStore(t, "host")
	requireNoEdits(t, st, "session/join", "conn-1")
}

func TestToggleShareCursors(t *testing.T) {
	st := newTestStore(t, "host")
	commit(t, st, "session/request")
	session := ident(t, st, fact.IdentSession)

	// Cursor sharing defaults on, so the first toggle turns it off.
	commit(t, st, "session/toggle-share-cursors")
	on, _ := st.Snapshot().Bool(session, fact.AttrSessionShareCursors)
	assert.False(t, on)

	commit(t, st, "session/toggle-share-cursors")
	on, _ = st.Snapshot().Bool(session, fact.AttrSessionShareCursors)
	assert.True(t, on)

	commit(t, st, "session/toggle-share-cursors", false)
	on, _ = st.Snapshot().Bool(session, fact.AttrSessionShareCursors)
	assert.False(t, on)
}

func TestShareFlow(t *testing.T) {
	st := newTestStore(t, "host")
	local := ident(t, st, fact.IdentLocal)

	requireNoEdits(t, st, "share/switch", "sharing is off")

	commit(t, st, "share/initiate")
	sharing, _ := st.Snapshot().Bool(local, fact.AttrLocalSharing)
	assert.True(t, sharing)

	commit(t, st, "share/switch")
	paused, _ := st.Snapshot().Bool(local, fact.AttrLocalPaused)
	assert.True(t, paused)

	commit(t, st, "share/switch", false)
	paused, _ = st.Snapshot().Bool(local, fact.AttrLocalPaused)
	assert.False(t, paused)

	commit(t, st, "share/initiate")
	snap := st.Snapshot()
	_, ok := snap.Bool(local, fact.AttrLocalSharing)
	assert.False(t, ok, "closing the share clears the flag")
	_, ok = snap.Bool(local, fact.AttrLocalPaused)
	assert.False(t, ok, "closing the share clears any pause")

	requireNoEdits(t, st, "share/initiate", false)
}

func TestBoundsChange(t *testing.T) {
	st := newTestStore(t, "host")
	local := ident(t, st, fact.IdentLocal)

	commit(t, st, "bounds/change", "host", []float64{0, 0, 800, 600})
	snap := st.Snapshot()
	hostRect, _ := snap.Vec(local, fact.AttrBoundsHost)
	assert.Equal(t, fact.Vec{0, 0, 800, 600}, hostRect)
	self, _ := snap.Vec(local, fact.AttrBoundsSelf)
	assert.Equal(t, fact.Vec{0, 0, 800, 600}, self, "matching role also records self")

	commit(t, st, "bounds/change", "view", []float64{10, 10, 400, 300})
	snap = st.Snapshot()
	viewRect, _ := snap.Vec(local, fact.AttrBoundsView)
	assert.Equal(t, fact.Vec{10, 10, 400, 300}, viewRect)
	self, _ = snap.Vec(local, fact.AttrBoundsSelf)
	assert.Equal(t, fact.Vec{0, 0, 800, 600}, self, "foreign role leaves self alone")

	requireNoEdits(t, st, "bounds/change", "popup", []float64{0, 0, 1, 1})
	requireNoEdits(t, st, "bounds/change", "host", []float64{0, 0, 1})
}

func TestLocalModifier(t *testing.T) {
	st := newTestStore(t, "host")
	local := ident(t, st, fact.IdentLocal)

	commit(t, st, "local/modifier", "shift")
	mod, _ := st.Snapshot().String(local, fact.AttrLocalModifier)
	assert.Equal(t, "shift", mod)

	commit(t, st, "local/modifier-release")
	_, ok := st.Snapshot().String(local, fact.AttrLocalModifier)
	assert.False(t, ok)

	requireNoEdits(t, st, "local/modifier-release")
}

func TestLocalColorAndStatus(t *testing.T) {
	st := newTestStore(t, "host")
	local := ident(t, st, fact.IdentLocal)

	commit(t, st, "local/change-color", Palette[1])
	color, _ := st.Snapshot().String(local, fact.AttrLocalColor)
	assert.Equal(t, Palette[1], color)
	requireNoEdits(t, st, "local/change-color", "")

	commit(t, st, "local/change-status", "disconnected")
	status, _ := st.Snapshot().String(local, fact.AttrLocalStatus)
	assert.Equal(t, "disconnected", status)
	requireNoEdits(t, st, "local/change-status", "on-fire")
}
