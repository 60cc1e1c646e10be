// Package testutil provides deterministic stand-ins for the store's key
// generator and the gateway's clock, so scenarios and golden snapshots
// are byte-identical across runs.
package testutil

import (
	"fmt"
	"sync"

	"github.com/hearthview/tabletop/internal/fact"
)

// SequentialKeys issues "det-1", "det-2", ... in allocation order.
//
// With time-sortable production keys replaced by sequential ones, every
// ordering rule that falls back to ascending key comparison follows
// allocation order, which keeps golden traces stable.
//
// Thread-safety: all methods are safe for concurrent use.
type SequentialKeys struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialKeys creates a generator with the given prefix.
// An empty prefix defaults to "det".
func NewSequentialKeys(prefix string) *SequentialKeys {
	if prefix == "" {
		prefix = "det"
	}
	return &SequentialKeys{prefix: prefix}
}

// NewKey returns the next key in sequence.
//
// Implements fact.KeyGenerator.
func (g *SequentialKeys) NewKey() fact.Key {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fact.Key(fmt.Sprintf("%s-%d", g.prefix, g.n))
}

// Count returns how many keys have been issued.
func (g *SequentialKeys) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

// Reset restarts the sequence. The next NewKey returns "<prefix>-1".
func (g *SequentialKeys) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
