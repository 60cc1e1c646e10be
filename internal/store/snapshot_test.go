package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthview/tabletop/internal/fact"
)

func TestSnapshotGetters(t *testing.T) {
	s := newTestStore()
	cam, scene, tok := fact.Key("c1"), fact.Key("s1"), fact.Key("t1")

	_, err := s.Commit([]fact.Edit{
		fact.Assert(cam, fact.AttrCameraScene, fact.RefTo(scene)),
		fact.Assert(cam, fact.AttrCameraScale, fact.Int(1)),
		fact.Assert(cam, fact.AttrCameraPoint, fact.Point(-14, 6)),
		fact.Assert(scene, fact.AttrSceneDarkMode, fact.Bool(true)),
		fact.Assert(scene, fact.AttrSceneGridSize, fact.Int(70)),
		fact.Assert(tok, fact.AttrTokenLabel, fact.String("Goblin")),
	})
	require.NoError(t, err)
	snap := s.Snapshot()

	t.Run("string", func(t *testing.T) {
		v, ok := snap.String(tok, fact.AttrTokenLabel)
		require.True(t, ok)
		assert.Equal(t, "Goblin", v)

		_, ok = snap.String(tok, fact.AttrTokenSize)
		assert.False(t, ok)

		// Wrong kind reports absent rather than coercing.
		_, ok = snap.String(cam, fact.AttrCameraScale)
		assert.False(t, ok)
	})

	t.Run("int", func(t *testing.T) {
		v, ok := snap.Int(scene, fact.AttrSceneGridSize)
		require.True(t, ok)
		assert.Equal(t, int64(70), v)
	})

	t.Run("float widens int", func(t *testing.T) {
		v, ok := snap.Float(cam, fact.AttrCameraScale)
		require.True(t, ok)
		assert.Equal(t, 1.0, v)
	})

	t.Run("bool", func(t *testing.T) {
		v, ok := snap.Bool(scene, fact.AttrSceneDarkMode)
		require.True(t, ok)
		assert.True(t, v)

		_, ok = snap.Bool(scene, fact.AttrSceneShowGrid)
		assert.False(t, ok)
	})

	t.Run("vec", func(t *testing.T) {
		v, ok := snap.Vec(cam, fact.AttrCameraPoint)
		require.True(t, ok)
		assert.Equal(t, fact.Vec{-14, 6}, v)
	})

	t.Run("ref", func(t *testing.T) {
		v, ok := snap.Ref(cam, fact.AttrCameraScene)
		require.True(t, ok)
		assert.Equal(t, scene, v)

		_, ok = snap.Ref(cam, fact.AttrCameraPoint)
		assert.False(t, ok)
	})

	t.Run("has", func(t *testing.T) {
		assert.True(t, snap.Has(tok, fact.AttrTokenLabel, fact.String("Goblin")))
		assert.False(t, snap.Has(tok, fact.AttrTokenLabel, fact.String("Ogre")))
		assert.True(t, snap.HasAttr(cam, fact.AttrCameraPoint))
		assert.False(t, snap.HasAttr(cam, fact.AttrCameraDrawMode))
		assert.True(t, snap.Exists(tok))
		assert.False(t, snap.Exists(fact.Key("ghost")))
	})

	t.Run("keys sorted", func(t *testing.T) {
		assert.Equal(t, []fact.Key{cam, scene, tok}, snap.Keys())
	})
}

func TestEmptySnapshot(t *testing.T) {
	snap := newTestStore().Snapshot()
	assert.Equal(t, int64(0), snap.Version())
	assert.Empty(t, snap.Keys())
	assert.Empty(t, snap.Facts())
	_, ok := snap.Ident(fact.IdentRoot)
	assert.False(t, ok)
}
