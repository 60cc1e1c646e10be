package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hearthview/tabletop/internal/fact"
)

func TestSequentialKeys(t *testing.T) {
	g := NewSequentialKeys("")
	assert.Equal(t, fact.Key("det-1"), g.NewKey())
	assert.Equal(t, fact.Key("det-2"), g.NewKey())
	assert.Equal(t, 2, g.Count())

	g.Reset()
	assert.Equal(t, fact.Key("det-1"), g.NewKey())
}

func TestSequentialKeysPrefix(t *testing.T) {
	g := NewSequentialKeys("cam")
	assert.Equal(t, fact.Key("cam-1"), g.NewKey())
}

func TestManualClock(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewManualClock(start)
	assert.Equal(t, start, c.Now())

	c.Advance(250 * time.Millisecond)
	assert.Equal(t, start.Add(250*time.Millisecond), c.Now())
	assert.Equal(t, c.Now(), c.Now())
}
