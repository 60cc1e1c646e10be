package gateway

import (
	"database/sql"
	_ "embed"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hearthview/tabletop/internal/fact"
	"github.com/hearthview/tabletop/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on releases.updated_at for newest-first lookups
const currentSchemaVersion = 1

// DefaultDebounce is the snapshot writer's coalescing window.
const DefaultDebounce = 200 * time.Millisecond

// Gateway owns one SQLite database holding board images and assets.
// Uses WAL mode for concurrent read access.
type Gateway struct {
	db       *sql.DB
	release  string
	debounce time.Duration
	now      func() time.Time
	seed     func() []fact.Edit

	mu      sync.Mutex
	st      *store.Store
	schema  fact.Schema
	unsub   store.UnsubscribeFunc
	timer   *time.Timer
	pending bool
	closed  bool
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithRelease overrides the release key images are written under. The
// default is the application release.
func WithRelease(release string) Option {
	return func(g *Gateway) {
		if release != "" {
			g.release = release
		}
	}
}

// WithDebounce overrides the snapshot writer's coalescing window.
func WithDebounce(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.debounce = d
		}
	}
}

// WithNow overrides the clock stamping updated_at. Tests pin it.
func WithNow(now func() time.Time) Option {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

// WithSeed sets the edit batch committed when no stored image exists or
// the stored image is unreadable.
func WithSeed(seed func() []fact.Edit) Option {
	return func(g *Gateway) {
		g.seed = seed
	}
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Gateway, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1) // Single writer to avoid SQLITE_BUSY errors
	db.SetMaxIdleConns(1) // Keep one connection ready

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	g := &Gateway{
		db:       db,
		release:  fact.Release,
		debounce: DefaultDebounce,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Close flushes any pending snapshot, unsubscribes from the store, and
// closes the database. Safe to call more than once.
func (g *Gateway) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	unsub := g.unsub
	st := g.st
	pending := g.pending
	g.pending = false
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if pending && st != nil {
		if err := g.save(st.Snapshot()); err != nil {
			return fmt.Errorf("final flush: %w", err)
		}
	}
	return g.db.Close()
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
		version = 1
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the updated_at index for databases created before the
// newest-first fallback existed. New databases get it here too; CREATE
// INDEX IF NOT EXISTS is a no-op when it is already present.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_releases_updated
		ON releases(updated_at)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (g *Gateway) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := g.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
