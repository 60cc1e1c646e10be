package store

import (
	"sync"
	"sync/atomic"

	"github.com/hearthview/tabletop/internal/fact"
)

// TxReport describes one committed generation change. It is handed to
// every OnCommit subscriber and returned to the committing caller.
type TxReport struct {
	// Version is the generation number After carries.
	Version int64

	// Before and After are the generations around the commit. For a
	// no-op commit both point at the same generation.
	Before *Snapshot
	After  *Snapshot

	// Changes lists every fact added or removed, in application order.
	// An empty list means nothing changed and no subscriber ran.
	Changes []fact.Change

	// Keys maps the batch's placeholders to the entity keys they
	// resolved to, including upserts onto existing entities.
	Keys map[fact.Placeholder]fact.Key
}

// UnsubscribeFunc removes a commit subscription. Safe to call more than
// once.
type UnsubscribeFunc func()

type subscriber struct {
	id int
	fn func(TxReport)
}

// Store holds the current snapshot generation and serializes writes.
//
// Thread-safety: Snapshot and Version are lock-free reads. Commit, Apply,
// and Reset are serialized and run subscribers synchronously before
// returning, so every subscriber observes every commit exactly once, in
// commit order.
type Store struct {
	schema fact.Schema
	keys   fact.KeyGenerator
	snap   atomic.Pointer[Snapshot]

	mu     sync.Mutex
	nextID int
	subs   []subscriber
}

// New creates an empty store. Fresh entity keys come from keys.
func New(schema fact.Schema, keys fact.KeyGenerator) *Store {
	s := &Store{schema: schema, keys: keys}
	s.snap.Store(emptySnapshot(schema))
	return s
}

// Snapshot returns the current generation.
func (s *Store) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Version returns the current generation number.
func (s *Store) Version() int64 {
	return s.snap.Load().version
}

// Schema returns the attribute registry the store was built with.
func (s *Store) Schema() fact.Schema {
	return s.schema
}

// OnCommit registers fn to run synchronously after every effective
// commit, in subscription order. The returned function removes the
// subscription.
//
// CRITICAL: fn must not call Commit, Apply, or Reset.
func (s *Store) OnCommit(fn func(TxReport)) UnsubscribeFunc {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.subs = append(s.subs, subscriber{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// Commit applies an edit batch atomically and publishes the next
// generation. Placeholder entities resolve to fresh keys, or to existing
// entities when the batch asserts a unique-identity value that is already
// indexed.
//
// A batch whose edits all turn out to be no-ops does not advance the
// version and does not notify subscribers. On error nothing is published.
func (s *Store) Commit(edits []fact.Edit) (TxReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.snap.Load()
	tx := newTxn(before.clone())

	keys, err := resolvePlaceholders(before, s.keys, edits)
	if err != nil {
		return TxReport{}, err
	}

	var changes []fact.Change
	for _, edit := range edits {
		ch, err := tx.apply(keys, edit)
		if err != nil {
			return TxReport{}, err
		}
		changes = append(changes, ch...)
	}
	next := tx.snap

	if len(changes) == 0 {
		return TxReport{Version: before.version, Before: before, After: before, Keys: keys}, nil
	}

	next.version = before.version + 1
	report := TxReport{
		Version: next.version,
		Before:  before,
		After:   next,
		Changes: changes,
		Keys:    keys,
	}
	s.publish(report)
	return report, nil
}

// Apply commits an already-expanded change list verbatim. This is the
// replication path: the receiving store trusts the sender's expansion
// and performs no placeholder resolution or cascade of its own.
func (s *Store) Apply(changes []fact.Change) TxReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.snap.Load()
	tx := newTxn(before.clone())

	applied := make([]fact.Change, 0, len(changes))
	for _, ch := range changes {
		if ch.Added {
			if tx.add(ch.Fact.Entity, ch.Fact.Attr, ch.Fact.Value) {
				applied = append(applied, ch)
			}
		} else {
			if tx.remove(ch.Fact.Entity, ch.Fact.Attr, ch.Fact.Value) {
				applied = append(applied, ch)
			}
		}
	}
	next := tx.snap

	if len(applied) == 0 {
		return TxReport{Version: before.version, Before: before, After: before}
	}

	next.version = before.version + 1
	report := TxReport{
		Version: next.version,
		Before:  before,
		After:   next,
		Changes: applied,
	}
	s.publish(report)
	return report
}

// Reset replaces the whole store contents with the given facts. Used for
// replication bootstrap and for loading a persisted image. The report's
// change list retracts every prior fact and asserts every new one.
func (s *Store) Reset(facts []fact.Fact) TxReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.snap.Load()
	tx := newTxn(emptySnapshot(s.schema))

	changes := make([]fact.Change, 0, len(facts)+16)
	for _, f := range before.Facts() {
		changes = append(changes, fact.Change{Fact: f, Added: false})
	}
	for _, f := range facts {
		if tx.add(f.Entity, f.Attr, f.Value) {
			changes = append(changes, fact.Change{Fact: f, Added: true})
		}
	}
	next := tx.snap

	next.version = before.version + 1
	report := TxReport{
		Version: next.version,
		Before:  before,
		After:   next,
		Changes: changes,
	}
	s.publish(report)
	return report
}

// publish swaps in the next generation and fans the report out.
// Caller holds mu.
func (s *Store) publish(report TxReport) {
	s.snap.Store(report.After)
	for _, sub := range s.subs {
		sub.fn(report)
	}
}
