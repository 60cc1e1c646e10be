package bridge

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hearthview/tabletop/internal/fact"
	"github.com/hearthview/tabletop/internal/store"
)

// Receiver is the guest's end of the transport. Receive blocks until the
// next framed envelope arrives or the transport closes.
type Receiver interface {
	Receive() ([]byte, error)
	Close() error
}

// Listen applies envelopes from ch to st until ctx is cancelled or the
// transport closes. A bootstrap resets the whole store; a tx re-applies
// the host's change list verbatim. The guest never validates or compiles;
// whatever the host committed is taken as truth.
//
// Envelopes it cannot decode are logged and skipped rather than killing
// the session, since every later bootstrap heals the store anyway.
//
// Returns nil when the host closed the transport, ctx.Err() when ctx
// ended the session.
func Listen(ctx context.Context, ch Receiver, st *store.Store) error {
	// Receive has no context of its own; closing the transport is the
	// only way to unblock it.
	stop := context.AfterFunc(ctx, func() {
		if err := ch.Close(); err != nil {
			slog.Debug("transport close", "error", err)
		}
	})
	defer stop()

	for {
		data, err := ch.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, ErrClosed) {
				return nil
			}
			return err
		}

		env, err := decodeEnvelope(data)
		if err != nil {
			slog.Warn("skipping undecodable envelope", "error", err)
			continue
		}

		switch env.Event {
		case EventBootstrap:
			facts, err := fact.DecodeFacts(st.Schema(), env.Payload)
			if err != nil {
				slog.Warn("skipping undecodable bootstrap", "error", err)
				continue
			}
			report := st.Reset(facts)
			slog.Debug("bootstrap applied", "facts", len(facts), "version", report.Version)
		case EventTx:
			changes, err := fact.DecodeChanges(st.Schema(), env.Payload)
			if err != nil {
				slog.Warn("skipping undecodable tx", "error", err)
				continue
			}
			report := st.Apply(changes)
			slog.Debug("tx applied", "changes", len(changes), "version", report.Version)
		default:
			slog.Warn("skipping envelope with unknown event", "event", env.Event)
		}
	}
}
