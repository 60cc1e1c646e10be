package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hearthview/tabletop/internal/fact"
	"github.com/hearthview/tabletop/internal/store"
)

// Load fills st from the stored image. It prefers the row written by the
// running release and falls back to the newest row from any release, so
// upgraded installs pick up the previous version's board. A missing or
// unreadable image seeds a fresh board instead; the store always comes
// out initialized and flagged ready.
//
// Call before Subscribe so the load itself is not written back.
func (g *Gateway) Load(ctx context.Context, st *store.Store) error {
	data, release, err := g.readImage(ctx)
	if err != nil {
		return err
	}
	if data == nil {
		slog.Info("no stored image, seeding fresh board", "release", g.release)
		return g.seedFresh(st)
	}

	facts, err := fact.DecodeFacts(st.Schema(), data)
	if err != nil {
		slog.Warn("stored image is unreadable, seeding fresh board", "release", release, "error", err)
		return g.seedFresh(st)
	}

	st.Reset(facts)
	g.markReady(st)
	slog.Info("image loaded", "release", release, "facts", len(facts))
	return nil
}

// readImage returns the image blob and the release it came from, or a nil
// blob when the database holds no image at all.
func (g *Gateway) readImage(ctx context.Context) ([]byte, string, error) {
	var data []byte
	err := g.db.QueryRowContext(ctx,
		`SELECT data FROM releases WHERE release = ?`, g.release).Scan(&data)
	if err == nil {
		return data, g.release, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, "", fmt.Errorf("read release %q: %w", g.release, err)
	}

	var release string
	err = g.db.QueryRowContext(ctx,
		`SELECT release, data FROM releases ORDER BY updated_at ASC, release ASC LIMIT 1`).
		Scan(&release, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("read newest release: %w", err)
	}
	return data, release, nil
}

func (g *Gateway) seedFresh(st *store.Store) error {
	if g.seed != nil {
		if _, err := st.Commit(g.seed()); err != nil {
			return fmt.Errorf("seed fresh board: %w", err)
		}
	}
	g.markReady(st)
	return nil
}

// markReady asserts local/status ready so the window knows the board is
// usable. Status is ephemeral and never round-trips through the image.
func (g *Gateway) markReady(st *store.Store) {
	snap := st.Snapshot()
	local, ok := snap.Ident(fact.IdentLocal)
	if !ok {
		return
	}
	_, err := st.Commit([]fact.Edit{
		fact.Assert(local, fact.AttrLocalStatus, fact.String("ready")),
	})
	if err != nil {
		slog.Warn("ready status not recorded", "error", err)
	}
}

// Subscribe starts the debounced snapshot writer: the first durable
// commit arms a timer, further commits inside the window coalesce, and
// the flush writes whatever snapshot is current when the timer fires.
// Commits that only touch ephemeral attributes never arm the writer.
func (g *Gateway) Subscribe(st *store.Store) {
	schema := st.Schema()

	g.mu.Lock()
	g.st = st
	g.schema = schema
	g.mu.Unlock()

	unsub := st.OnCommit(g.onCommit)

	g.mu.Lock()
	g.unsub = unsub
	g.mu.Unlock()
}

// onCommit runs inside the store's notification path; it only inspects
// the report and arms the timer.
func (g *Gateway) onCommit(report store.TxReport) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed || !durableIn(g.schema, report) {
		return
	}
	g.pending = true
	if g.timer == nil {
		g.timer = time.AfterFunc(g.debounce, g.flush)
	}
}

func durableIn(schema fact.Schema, report store.TxReport) bool {
	for _, ch := range report.Changes {
		if !schema[ch.Attr].Ephemeral {
			return true
		}
	}
	return false
}

// flush runs on the debounce timer's goroutine.
func (g *Gateway) flush() {
	g.mu.Lock()
	g.timer = nil
	pending := g.pending
	g.pending = false
	st := g.st
	closed := g.closed
	g.mu.Unlock()

	if closed || !pending || st == nil {
		return
	}
	if err := g.save(st.Snapshot()); err != nil {
		slog.Error("snapshot save failed", "error", err)
	}
}

// SaveNow writes the current snapshot immediately, cancelling any armed
// debounce. No-op before Subscribe.
func (g *Gateway) SaveNow() error {
	g.mu.Lock()
	st := g.st
	g.pending = false
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.mu.Unlock()

	if st == nil {
		return nil
	}
	return g.save(st.Snapshot())
}

// save writes the snapshot's durable facts under the configured release.
func (g *Gateway) save(snap *store.Snapshot) error {
	data, err := fact.EncodeFacts(snap.DurableFacts())
	if err != nil {
		return fmt.Errorf("encode image: %w", err)
	}
	_, err = g.db.Exec(`
		INSERT INTO releases (release, updated_at, data)
		VALUES (?, ?, ?)
		ON CONFLICT(release) DO UPDATE SET
			updated_at = excluded.updated_at,
			data = excluded.data
	`, g.release, -g.now().UnixMilli(), data)
	if err != nil {
		return fmt.Errorf("write release %q: %w", g.release, err)
	}
	return nil
}
