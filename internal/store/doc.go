// Package store provides the in-memory fact store that holds all board
// state as entity-attribute-value triples.
//
// The store is the single source of truth for a window. User actions are
// compiled into edit batches and committed here; replication and
// persistence observe commits through OnCommit subscriptions.
//
// # State Model
//
//   - State lives in immutable Snapshot generations. A commit builds the
//     next generation by copying only the touched entities, so readers
//     holding an older Snapshot are never invalidated.
//   - Cardinality-one attributes hold a single value; re-asserting emits
//     a retraction of the old value followed by the new assertion.
//   - Cardinality-many attributes hold an ordered, duplicate-free value
//     list in first-assertion order.
//   - Negative placeholder ids are resolved to fresh keys at commit time,
//     or to existing keys when the batch asserts a unique-identity value
//     that is already present (upsert).
//   - Retracting an entity retracts its component trees, its own facts,
//     and every reference pointing at it, in one batch.
//
// # Thread-safety model
//
//   - Snapshot(), Version(): safe from any goroutine, lock-free.
//   - Commit(), Apply(), Reset(): serialized by an internal mutex.
//   - OnCommit subscribers run synchronously inside the committing call,
//     in subscription order. CRITICAL: subscribers must not call Commit,
//     Apply, or Reset from inside the callback.
package store
