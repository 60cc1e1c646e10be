package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hearthview/tabletop/internal/fact"
	"github.com/hearthview/tabletop/internal/store"
)

// DefaultPollInterval is how often the bridge checks that the guest
// window is still there.
const DefaultPollInterval = 200 * time.Millisecond

// State is the host-side sharing state.
type State int

const (
	// StateIdle means no guest window exists and commits are not shipped.
	StateIdle State = iota
	// StateAwaitingGuest means the guest window is being opened; commits
	// that land now are not shipped and will be covered by the bootstrap.
	StateAwaitingGuest
	// StateBridged means every commit is serialized and forwarded.
	StateBridged
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingGuest:
		return "awaiting-guest"
	case StateBridged:
		return "bridged"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Guest is the host's handle on the opened guest window.
//
// Send delivers one framed envelope. Alive reports whether the window is
// still reachable; once it returns false it must never flip back to true.
type Guest interface {
	Send(data []byte) error
	Alive() bool
	Close() error
}

// Opener opens the guest window. Called once per Share, on the caller's
// goroutine; it may block on dialing or window creation.
type Opener func(ctx context.Context) (Guest, error)

// Option configures a Bridge.
type Option func(*Bridge)

// WithPollInterval overrides how often guest liveness is checked.
func WithPollInterval(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.poll = d
		}
	}
}

// Bridge replicates one store to at most one guest window at a time.
//
// The zero value is not usable; construct with New. A Bridge can be
// shared and closed repeatedly over its lifetime.
type Bridge struct {
	st   *store.Store
	open Opener
	poll time.Duration

	mu     sync.Mutex
	state  State
	guest  Guest
	queue  *envelopeQueue
	unsub  store.UnsubscribeFunc
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns an idle bridge over st that opens guest windows with open.
func New(st *store.Store, open Opener, opts ...Option) *Bridge {
	b := &Bridge{
		st:   st,
		open: open,
		poll: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// State reports the current sharing state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Share opens a guest window and starts forwarding commits to it. ctx
// bounds only the opening; once bridged, the bridge outlives ctx and
// runs until Close or until the guest window dies.
//
// Share fails if the bridge is not idle.
//
// CRITICAL: the store notifies subscribers under its own lock, so the
// bridge must never call into the store while holding b.mu. Store calls
// here (OnCommit, Snapshot) all happen between locked sections.
func (b *Bridge) Share(ctx context.Context) error {
	b.mu.Lock()
	if b.state != StateIdle {
		state := b.state
		b.mu.Unlock()
		return fmt.Errorf("share: bridge is %s", state)
	}
	b.state = StateAwaitingGuest
	b.mu.Unlock()

	guest, err := b.open(ctx)
	if err != nil {
		b.mu.Lock()
		b.state = StateIdle
		b.mu.Unlock()
		return fmt.Errorf("open guest window: %w", err)
	}

	queue := newEnvelopeQueue()
	runCtx, cancel := context.WithCancel(context.Background())

	b.mu.Lock()
	b.guest = guest
	b.queue = queue
	b.cancel = cancel
	b.state = StateBridged
	b.mu.Unlock()

	// Subscribe, then snapshot. A commit that lands in between shows up
	// in the bootstrap image and may also be replayed as a tx next to
	// it; both orders converge because re-adding a present fact and
	// re-retracting an absent one are no-ops on the guest.
	unsub := b.st.OnCommit(b.onCommit)
	env, err := bootstrapEnvelope(b.st.Snapshot())
	if err != nil {
		unsub()
		b.teardown()
		return err
	}
	queue.Enqueue(env)

	b.mu.Lock()
	b.unsub = unsub
	b.mu.Unlock()

	b.wg.Add(2)
	go b.forward(runCtx)
	go b.watch(runCtx)

	slog.Info("bridge established", "poll", b.poll)
	return nil
}

// Close tears the bridge down and waits for its goroutines to stop.
// Safe to call in any state, any number of times. Close never touches
// the share flags; callers that toggle sharing off retract them through
// the usual event path.
func (b *Bridge) Close() {
	b.teardown()
	b.wg.Wait()
}

// onCommit runs inside the store's notification path. It never blocks:
// encode, enqueue, return.
func (b *Bridge) onCommit(report store.TxReport) {
	pausedBefore := pausedIn(report.Before)
	pausedAfter := pausedIn(report.After)

	b.mu.Lock()
	queue := b.queue
	bridged := b.state == StateBridged
	b.mu.Unlock()
	if !bridged || queue == nil {
		return
	}

	switch {
	case pausedAfter:
		// Paused shares go quiet. The guest keeps rendering the last
		// forwarded state.
		return
	case pausedBefore && !pausedAfter:
		// The guest missed everything committed during the pause, so a
		// tx would gap it. Re-seed with a fresh image instead.
		env, err := bootstrapEnvelope(report.After)
		if err != nil {
			slog.Error("resume bootstrap encode failed", "error", err)
			return
		}
		queue.Enqueue(env)
	default:
		env, err := txEnvelope(report.Changes)
		if err != nil {
			slog.Error("change encode failed, commit not forwarded", "version", report.Version, "error", err)
			return
		}
		queue.Enqueue(env)
	}
}

// forward drains the queue to the guest in order.
func (b *Bridge) forward(ctx context.Context) {
	defer b.wg.Done()

	b.mu.Lock()
	queue, guest := b.queue, b.guest
	b.mu.Unlock()
	if queue == nil || guest == nil {
		// Teardown won the race to b.mu before this goroutine started;
		// there is nothing left to drain.
		return
	}

	for {
		env, ok := queue.TryDequeue()
		if ok {
			data, err := env.encode()
			if err != nil {
				slog.Error("envelope encode failed, dropped", "event", env.Event, "error", err)
				continue
			}
			if err := guest.Send(data); err != nil {
				// The guest is gone or going; the liveness poll owns the
				// teardown and the share-flag retraction.
				slog.Warn("forward to guest failed", "event", env.Event, "error", err)
				return
			}
			continue
		}
		if queue.Closed() {
			return
		}

		// A receive here means "look again": the signal carries no
		// ownership of an item, so the loop re-polls rather than assuming
		// one is waiting.
		select {
		case <-ctx.Done():
			return
		case <-queue.Wait():
		}
	}
}

// watch polls guest liveness and falls the bridge back to idle when the
// guest window disappears. Unlike Close, a guest-initiated fall also
// retracts the share flags so the host store stops claiming an active
// share.
func (b *Bridge) watch(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.mu.Lock()
			guest := b.guest
			b.mu.Unlock()
			if guest == nil {
				return
			}
			if guest.Alive() {
				continue
			}
			slog.Info("guest window closed, falling back to idle")
			b.teardown()
			b.retractShareFlags()
			return
		}
	}
}

// teardown returns the bridge to idle: unsubscribe, close the queue and
// the guest, stop the goroutines. Idempotent.
func (b *Bridge) teardown() {
	b.mu.Lock()
	if b.state == StateIdle {
		b.mu.Unlock()
		return
	}
	unsub, queue, guest, cancel := b.unsub, b.queue, b.guest, b.cancel
	b.unsub, b.queue, b.guest, b.cancel = nil, nil, nil, nil
	b.state = StateIdle
	b.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if queue != nil {
		queue.Close()
	}
	if cancel != nil {
		cancel()
	}
	if guest != nil {
		if err := guest.Close(); err != nil {
			slog.Debug("guest close", "error", err)
		}
	}
}

// retractShareFlags drops local/sharing? and local/paused? after a
// guest-side death. Runs on the poll goroutine, never inside a commit
// notification.
func (b *Bridge) retractShareFlags() {
	snap := b.st.Snapshot()
	local, ok := snap.Ident(fact.IdentLocal)
	if !ok {
		return
	}
	if sharing, _ := snap.Bool(local, fact.AttrLocalSharing); !sharing {
		return
	}
	_, err := b.st.Commit([]fact.Edit{
		fact.RetractAttr(local, fact.AttrLocalSharing),
		fact.RetractAttr(local, fact.AttrLocalPaused),
	})
	if err != nil {
		slog.Warn("share flag retraction failed", "error", err)
	}
}

func pausedIn(snap *store.Snapshot) bool {
	if snap == nil {
		return false
	}
	local, ok := snap.Ident(fact.IdentLocal)
	if !ok {
		return false
	}
	paused, _ := snap.Bool(local, fact.AttrLocalPaused)
	return paused
}
