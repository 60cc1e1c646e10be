package fact

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArenaIssuesNegativeDescending(t *testing.T) {
	var a Arena
	assert.Equal(t, Placeholder(-1), a.Next())
	assert.Equal(t, Placeholder(-2), a.Next())
	assert.Equal(t, Placeholder(-3), a.Next())
}

func TestEditConstructors(t *testing.T) {
	e := Assert(Key("k1"), AttrTokenLabel, String("Goblin"))
	assert.Equal(t, OpAssert, e.Op)
	assert.Equal(t, Key("k1"), e.Entity)
	assert.Equal(t, AttrTokenLabel, e.Attr)

	e = Retract(Key("k1"), AttrTokenFlags, String("hidden"))
	assert.Equal(t, OpRetract, e.Op)

	e = RetractAttr(Key("k1"), AttrCameraSelected)
	assert.Equal(t, OpRetractAttr, e.Op)
	assert.Nil(t, e.Value)

	e = RetractEntity(Placeholder(-1))
	assert.Equal(t, OpRetractEntity, e.Op)
	assert.Equal(t, Placeholder(-1), e.Entity)
	assert.Empty(t, e.Attr)
}

func TestOpString(t *testing.T) {
	assert.Equal(t, "assert", OpAssert.String())
	assert.Equal(t, "retract", OpRetract.String())
	assert.Equal(t, "retract-attr", OpRetractAttr.String())
	assert.Equal(t, "retract-entity", OpRetractEntity.String())
}

func TestValueEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"equal strings", String("a"), String("a"), true},
		{"different strings", String("a"), String("b"), false},
		{"equal ints", Int(3), Int(3), true},
		{"int vs float", Int(3), Float(3), false},
		{"equal vecs", Point(1, 2), Point(1, 2), true},
		{"different vec lengths", Vec{1}, Vec{1, 2}, false},
		{"different vec content", Point(1, 2), Point(1, 3), false},
		{"equal refs", RefTo(Key("x")), RefTo(Key("x")), true},
		{"ref to different keys", RefTo(Key("x")), RefTo(Key("y")), false},
		{"ref key vs placeholder", RefTo(Key("x")), RefTo(Placeholder(-1)), false},
		{"bool", Bool(true), Bool(true), true},
		{"string vs ref", String("x"), RefTo(Key("x")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

func TestAttrNamespace(t *testing.T) {
	assert.Equal(t, "camera", AttrCameraScene.Namespace())
	assert.Equal(t, "session", AttrSessionConns.Namespace())
	assert.Equal(t, "db", AttrIdent.Namespace())
}

func TestDefaultSchemaDeclarations(t *testing.T) {
	s := DefaultSchema()

	ident, ok := s.Spec(AttrIdent)
	assert.True(t, ok)
	assert.True(t, ident.Unique)

	tokens, ok := s.Spec(AttrSceneTokens)
	assert.True(t, ok)
	assert.Equal(t, CardinalityMany, tokens.Cardinality)
	assert.True(t, tokens.Ref)
	assert.True(t, tokens.Component)

	initiative, ok := s.Spec(AttrSceneInitiative)
	assert.True(t, ok)
	assert.True(t, initiative.Ref)
	assert.False(t, initiative.Component, "initiative membership must not own tokens")

	session, ok := s.Spec(AttrSessionConns)
	assert.True(t, ok)
	assert.True(t, session.Ephemeral, "session wiring never persists")

	_, ok = s.Spec(Attr("bogus/attr"))
	assert.False(t, ok)
}

func TestUUIDv7GeneratorShape(t *testing.T) {
	gen := UUIDv7Generator{}
	a := gen.NewKey()
	b := gen.NewKey()

	assert.Len(t, string(a), 36)
	assert.NotEqual(t, a, b)
	// UUIDv7 sorts by creation time
	assert.Less(t, string(a), string(b))
}

func TestAssetChecksumDomainSeparation(t *testing.T) {
	data := []byte("pixels")

	sum := AssetChecksum(data)
	assert.Len(t, sum, 64)
	assert.Equal(t, sum, AssetChecksum(data), "checksum must be deterministic")
	assert.NotEqual(t, sum, SnapshotChecksum(data), "domains must not collide")
}

func TestHashWithDomainNullSeparator(t *testing.T) {
	// "foo" + 0x00 + "bar" must differ from "foob" + 0x00 + "ar"
	h1 := hashWithDomain("foo", []byte("bar"))
	h2 := hashWithDomain("foob", []byte("ar"))
	assert.NotEqual(t, h1, h2)
}

func TestFiniteValues(t *testing.T) {
	assert.True(t, Finite(Float(1.5)))
	assert.True(t, Finite(Point(3, 4)))
	assert.True(t, Finite(String("x")))
	assert.False(t, Finite(Vec{1, math.NaN()}))
	assert.False(t, Finite(Float(math.Inf(-1))))
}
