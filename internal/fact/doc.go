// Package fact provides the foundational types for the tabletop engine:
// entity keys, attribute schema, values, facts, and edits.
//
// This package contains type definitions and pure codecs only. All other
// internal packages import fact; fact imports nothing internal. This ensures
// fact remains the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Entities are addressed by stable keys (UUIDv7 in production) or by
//     batch-local negative placeholders that never survive a commit
//   - Values are a sealed set: string, int64, float64, bool, numeric vector,
//     and entity reference
//   - Floats are permitted (the board domain is geometric) but every producer
//     rounds before asserting, keeping canonical encoding deterministic
//   - Wire and storage encoding is canonical JSON (RFC 8785 key ordering,
//     NFC-normalized strings, no HTML escaping)
package fact
