package initiative

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b Entrant
		want int
	}{
		{
			name: "higher roll first",
			a:    Entrant{Key: "b", Roll: 18, Rolled: true},
			b:    Entrant{Key: "a", Roll: 12, Rolled: true},
			want: -1,
		},
		{
			name: "lower roll last",
			a:    Entrant{Key: "a", Roll: 3, Rolled: true},
			b:    Entrant{Key: "b", Roll: 11, Rolled: true},
			want: 1,
		},
		{
			name: "tie breaks on key ascending",
			a:    Entrant{Key: "a", Roll: 10, Rolled: true},
			b:    Entrant{Key: "b", Roll: 10, Rolled: true},
			want: -1,
		},
		{
			name: "unrolled sorts after rolled",
			a:    Entrant{Key: "a"},
			b:    Entrant{Key: "z", Roll: 1, Rolled: true},
			want: 1,
		},
		{
			name: "rolled sorts before unrolled",
			a:    Entrant{Key: "z", Roll: 1, Rolled: true},
			b:    Entrant{Key: "a"},
			want: -1,
		},
		{
			name: "both unrolled key ascending",
			a:    Entrant{Key: "m"},
			b:    Entrant{Key: "n"},
			want: -1,
		},
		{
			name: "same entrant",
			a:    Entrant{Key: "a", Roll: 10, Rolled: true},
			b:    Entrant{Key: "a", Roll: 10, Rolled: true},
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.a, tt.b))
		})
	}
}

func TestOrder(t *testing.T) {
	got := Order([]Entrant{
		{Key: "bandit", Roll: 12, Rolled: true},
		{Key: "wolf"},
		{Key: "archer", Roll: 18, Rolled: true},
		{Key: "cleric", Roll: 12, Rolled: true},
		{Key: "rat"},
	})
	assert.Equal(t, []string{"archer", "bandit", "cleric", "rat", "wolf"}, got)
}

func TestOrderDoesNotMutateInput(t *testing.T) {
	in := []Entrant{
		{Key: "b", Roll: 1, Rolled: true},
		{Key: "a", Roll: 2, Rolled: true},
	}
	Order(in)
	assert.Equal(t, "b", in[0].Key)
}

func TestFollowing(t *testing.T) {
	list := []string{"a", "b", "c"}

	next, ok := Following(list, "a")
	require.True(t, ok)
	assert.Equal(t, "b", next)

	next, ok = Following(list, "b")
	require.True(t, ok)
	assert.Equal(t, "c", next)

	_, ok = Following(list, "c")
	assert.False(t, ok)

	_, ok = Following(list, "missing")
	assert.False(t, ok)

	_, ok = Following(nil, "a")
	assert.False(t, ok)

	// Only the first occurrence counts.
	next, ok = Following([]string{"a", "b", "a", "c"}, "a")
	require.True(t, ok)
	assert.Equal(t, "b", next)
}

func TestAdvance(t *testing.T) {
	order := []string{"a", "b", "c"}

	next, wrapped := Advance(order, "a")
	assert.Equal(t, "b", next)
	assert.False(t, wrapped)

	next, wrapped = Advance(order, "c")
	assert.Equal(t, "a", next)
	assert.True(t, wrapped)

	// A removed turn holder wraps like an exhausted round.
	next, wrapped = Advance(order, "gone")
	assert.Equal(t, "a", next)
	assert.True(t, wrapped)

	next, wrapped = Advance(nil, "a")
	assert.Equal(t, "", next)
	assert.False(t, wrapped)
}

func TestSuffixes(t *testing.T) {
	t.Run("ambiguous group gets numbered", func(t *testing.T) {
		got := Suffixes([]Member{
			{Key: "t1", Label: "Goblin", Checksum: "abc"},
			{Key: "t2", Label: "Goblin", Checksum: "abc"},
			{Key: "t3", Label: "Goblin", Checksum: "abc"},
		})
		assert.Equal(t, map[string]int{"t1": 1, "t2": 2, "t3": 3}, got)
	})

	t.Run("existing suffixes are kept and counted past", func(t *testing.T) {
		got := Suffixes([]Member{
			{Key: "t1", Label: "Goblin", Checksum: "abc", Suffix: 2},
			{Key: "t2", Label: "Goblin", Checksum: "abc"},
			{Key: "t3", Label: "Goblin", Checksum: "abc"},
		})
		assert.Equal(t, map[string]int{"t2": 3, "t3": 4}, got)
	})

	t.Run("idempotent once assigned", func(t *testing.T) {
		got := Suffixes([]Member{
			{Key: "t1", Label: "Goblin", Checksum: "abc", Suffix: 1},
			{Key: "t2", Label: "Goblin", Checksum: "abc", Suffix: 2},
		})
		assert.Empty(t, got)
	})

	t.Run("singletons untouched", func(t *testing.T) {
		got := Suffixes([]Member{
			{Key: "t1", Label: "Goblin", Checksum: "abc"},
			{Key: "t2", Label: "Ogre", Checksum: "abc"},
		})
		assert.Empty(t, got)
	})

	t.Run("same label different art stays apart", func(t *testing.T) {
		got := Suffixes([]Member{
			{Key: "t1", Label: "Goblin", Checksum: "abc"},
			{Key: "t2", Label: "Goblin", Checksum: "xyz"},
		})
		assert.Empty(t, got)
	})

	t.Run("players neither join nor count", func(t *testing.T) {
		got := Suffixes([]Member{
			{Key: "t1", Label: "Goblin", Checksum: "abc", Player: true},
			{Key: "t2", Label: "Goblin", Checksum: "abc"},
		})
		assert.Empty(t, got)
	})

	t.Run("groups number independently", func(t *testing.T) {
		got := Suffixes([]Member{
			{Key: "g1", Label: "Goblin", Checksum: "abc"},
			{Key: "o1", Label: "Ogre", Checksum: "def", Suffix: 5},
			{Key: "g2", Label: "Goblin", Checksum: "abc"},
			{Key: "o2", Label: "Ogre", Checksum: "def"},
		})
		assert.Equal(t, map[string]int{"g1": 1, "g2": 2, "o2": 6}, got)
	})
}
