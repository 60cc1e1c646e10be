package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthview/tabletop/internal/compile"
	"github.com/hearthview/tabletop/internal/fact"
	"github.com/hearthview/tabletop/internal/store"
	"github.com/hearthview/tabletop/internal/testutil"
)

// fakeGuest records forwarded envelopes instead of rendering them.
type fakeGuest struct {
	mu   sync.Mutex
	sent []Envelope
	dead bool
}

func newFakeGuest() *fakeGuest {
	return &fakeGuest{}
}

func (g *fakeGuest) Send(data []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.dead {
		return ErrClosed
	}
	env, err := decodeEnvelope(data)
	if err != nil {
		return err
	}
	g.sent = append(g.sent, env)
	return nil
}

func (g *fakeGuest) Alive() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.dead
}

func (g *fakeGuest) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dead = true
	return nil
}

func (g *fakeGuest) envelopes() []Envelope {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Envelope(nil), g.sent...)
}

func openerFor(g Guest) Opener {
	return func(context.Context) (Guest, error) { return g, nil }
}

func hostStore(t *testing.T) *store.Store {
	t.Helper()
	st := store.New(fact.DefaultSchema(), testutil.NewSequentialKeys("host"))
	_, err := st.Commit(compile.Genesis("host"))
	require.NoError(t, err)
	return st
}

// dispatch compiles one event against the current snapshot and commits it.
func dispatch(t *testing.T, st *store.Store, tag string, args ...any) {
	t.Helper()
	edits := compile.Compile(st.Snapshot(), tag, args...)
	require.NotEmpty(t, edits, "event %s should compile to edits", tag)
	_, err := st.Commit(edits)
	require.NoError(t, err)
}

func waitEnvelopes(t *testing.T, g *fakeGuest, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(g.envelopes()) >= n
	}, time.Second, 2*time.Millisecond)
}

func TestBridge_ShareBootstrapsThenForwards(t *testing.T) {
	st := hostStore(t)
	guest := newFakeGuest()
	b := New(st, openerFor(guest))
	defer b.Close()

	require.NoError(t, b.Share(context.Background()))
	assert.Equal(t, StateBridged, b.State())

	// First on the wire is always the full image.
	waitEnvelopes(t, guest, 1)
	first := guest.envelopes()[0]
	require.Equal(t, EventBootstrap, first.Event)

	facts, err := fact.DecodeFacts(st.Schema(), first.Payload)
	require.NoError(t, err)
	assert.NotEmpty(t, facts)

	// Commits after bridging ship as change lists, in commit order.
	dispatch(t, st, "token/create", 10.0, 20.0, "")
	dispatch(t, st, "scene/change-grid-size", 100.0)

	waitEnvelopes(t, guest, 3)
	envs := guest.envelopes()
	assert.Equal(t, EventTx, envs[1].Event)
	assert.Equal(t, EventTx, envs[2].Event)

	changes, err := fact.DecodeChanges(st.Schema(), envs[1].Payload)
	require.NoError(t, err)
	assert.NotEmpty(t, changes)
}

func TestBridge_ShareWhileBridgedFails(t *testing.T) {
	st := hostStore(t)
	b := New(st, openerFor(newFakeGuest()))
	defer b.Close()

	require.NoError(t, b.Share(context.Background()))

	err := b.Share(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bridged")
}

func TestBridge_OpenFailureReturnsToIdle(t *testing.T) {
	st := hostStore(t)

	calls := 0
	guest := newFakeGuest()
	b := New(st, func(context.Context) (Guest, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("window refused to open")
		}
		return guest, nil
	})
	defer b.Close()

	err := b.Share(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateIdle, b.State())

	// The failed attempt must not wedge the bridge.
	require.NoError(t, b.Share(context.Background()))
	assert.Equal(t, StateBridged, b.State())
}

func TestBridge_PauseSilencesResumeReseeds(t *testing.T) {
	st := hostStore(t)
	dispatch(t, st, "share/initiate", true)

	guest := newFakeGuest()
	b := New(st, openerFor(guest))
	defer b.Close()

	require.NoError(t, b.Share(context.Background()))
	waitEnvelopes(t, guest, 1)

	dispatch(t, st, "share/switch")               // pause
	dispatch(t, st, "token/create", 5.0, 5.0, "") // lands while paused
	dispatch(t, st, "share/switch")               // resume

	// Nothing shipped for the paused commits; the resume is a fresh
	// image, not a replay.
	waitEnvelopes(t, guest, 2)
	envs := guest.envelopes()
	require.Equal(t, EventBootstrap, envs[1].Event)

	want, err := fact.EncodeFacts(st.Snapshot().Facts())
	require.NoError(t, err)
	assert.Equal(t, string(want), string(envs[1].Payload))

	// Forwarding picks back up after the reseed.
	dispatch(t, st, "token/create", 9.0, 9.0, "")
	waitEnvelopes(t, guest, 3)
	assert.Equal(t, EventTx, guest.envelopes()[2].Event)
}

func TestBridge_GuestDeathFallsIdleAndRetractsFlags(t *testing.T) {
	st := hostStore(t)
	dispatch(t, st, "share/initiate", true)

	guest := newFakeGuest()
	b := New(st, openerFor(guest), WithPollInterval(5*time.Millisecond))
	defer b.Close()

	require.NoError(t, b.Share(context.Background()))
	waitEnvelopes(t, guest, 1)

	// The guest window dies without warning.
	guest.Close()

	require.Eventually(t, func() bool {
		return b.State() == StateIdle
	}, time.Second, 2*time.Millisecond)

	local, ok := st.Snapshot().Ident(fact.IdentLocal)
	require.True(t, ok)
	require.Eventually(t, func() bool {
		_, set := st.Snapshot().Bool(local, fact.AttrLocalSharing)
		return !set
	}, time.Second, 2*time.Millisecond)
}

func TestBridge_CloseKeepsShareFlags(t *testing.T) {
	st := hostStore(t)
	dispatch(t, st, "share/initiate", true)

	guest := newFakeGuest()
	b := New(st, openerFor(guest))

	require.NoError(t, b.Share(context.Background()))
	waitEnvelopes(t, guest, 1)

	// Close is the toggle-off path; the event layer retracts the flags
	// itself, so the bridge must not touch them.
	b.Close()
	b.Close()
	assert.Equal(t, StateIdle, b.State())

	local, ok := st.Snapshot().Ident(fact.IdentLocal)
	require.True(t, ok)
	sharing, _ := st.Snapshot().Bool(local, fact.AttrLocalSharing)
	assert.True(t, sharing)
}

func TestListen_PipeEndToEnd(t *testing.T) {
	host := hostStore(t)
	pipe := NewPipe()
	b := New(host, openerFor(pipe))

	require.NoError(t, b.Share(context.Background()))

	guestStore := store.New(fact.DefaultSchema(), testutil.NewSequentialKeys("guest"))
	listenDone := make(chan error, 1)
	go func() {
		listenDone <- Listen(context.Background(), pipe, guestStore)
	}()

	dispatch(t, host, "token/create", 10.0, 20.0, "")
	dispatch(t, host, "token/create", 30.0, 40.0, "")
	dispatch(t, host, "scene/change-grid-size", 100.0)

	want, err := fact.EncodeFacts(host.Snapshot().Facts())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		got, err := fact.EncodeFacts(guestStore.Snapshot().Facts())
		return err == nil && string(got) == string(want)
	}, time.Second, 5*time.Millisecond, "guest store should converge to the host image")

	// One bootstrap plus one apply per commit: nothing doubled, nothing
	// dropped.
	assert.Equal(t, int64(4), guestStore.Version())

	b.Close()
	select {
	case err := <-listenDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("listener did not stop when the host closed the transport")
	}
}

func TestListen_ContextCancelStops(t *testing.T) {
	pipe := NewPipe()
	guestStore := store.New(fact.DefaultSchema(), testutil.NewSequentialKeys("guest"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Listen(ctx, pipe, guestStore)
	}()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("listener did not stop on context cancel")
	}
}

func TestListen_SkipsUndecodableEnvelopes(t *testing.T) {
	pipe := NewPipe()
	guestStore := store.New(fact.DefaultSchema(), testutil.NewSequentialKeys("guest"))

	done := make(chan error, 1)
	go func() {
		done <- Listen(context.Background(), pipe, guestStore)
	}()

	require.NoError(t, pipe.Send([]byte("not an envelope")))

	host := hostStore(t)
	env, err := bootstrapEnvelope(host.Snapshot())
	require.NoError(t, err)
	data, err := env.encode()
	require.NoError(t, err)
	require.NoError(t, pipe.Send(data))

	// The garbage is skipped; the bootstrap that follows still lands.
	require.Eventually(t, func() bool {
		return guestStore.Version() > 0
	}, time.Second, 5*time.Millisecond)

	want, err := fact.EncodeFacts(host.Snapshot().Facts())
	require.NoError(t, err)
	got, err := fact.EncodeFacts(guestStore.Snapshot().Facts())
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))

	pipe.Close()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("listener did not stop on pipe close")
	}
}
