// Package gateway provides SQLite-backed durable storage for board images
// and image-library assets.
//
// The gateway persists two tables:
//   - Releases: one full board image per application release, written by a
//     debounced snapshot writer subscribed to the host store
//   - Assets: image bytes keyed by checksum, referenced from the fact set
//     by image/checksum values
//
// # Critical Patterns
//
// Version-keyed images
//   - Each application release writes its own row, never another's
//   - updated_at is a negated unix-millisecond timestamp, so ascending
//     order is newest-first and the minimum is the freshest image
//   - Loading prefers the running release's row and falls back to the
//     newest row from any release
//
// Ephemeral facts never persist
//   - The writer snapshots DurableFacts only; session wiring, share
//     flags, window bounds and connection status all rebuild at runtime
//
// Import is all-or-nothing
//   - The document is validated before the first write
//   - Both tables are replaced wholesale inside one transaction
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package gateway
