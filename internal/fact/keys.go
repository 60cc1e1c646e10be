package fact

import "github.com/google/uuid"

// KeyGenerator mints stable entity keys. Implemented by UUIDv7Generator
// (production) and testutil.SequentialKeys (deterministic tests).
type KeyGenerator interface {
	NewKey() Key
}

// UUIDv7Generator generates time-sortable UUIDv7 keys.
//
// UUIDv7 embeds a timestamp in the most significant bits, so keys sort by
// creation time. Ascending-key tie-breaks in turn order therefore follow
// creation order, which is what players expect.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// NewKey returns a new hyphenated UUIDv7 string.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) NewKey() Key {
	return Key(uuid.Must(uuid.NewV7()).String())
}
