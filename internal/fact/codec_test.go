package fact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeFactsCanonicalForm(t *testing.T) {
	facts := []Fact{
		{Entity: "s1", Attr: AttrSceneGridSize, Value: Int(70)},
		{Entity: "c1", Attr: AttrCameraScene, Value: RefTo(Key("s1"))},
		{Entity: "c1", Attr: AttrCameraPoint, Value: Point(10, 20)},
		{Entity: "c1", Attr: AttrCameraScale, Value: Float(0.78)},
		{Entity: "t1", Attr: AttrTokenFlags, Value: String("hidden")},
	}

	data, err := EncodeFacts(facts)
	require.NoError(t, err)

	expected := `[["s1","scene/grid-size",70],` +
		`["c1","camera/scene","s1"],` +
		`["c1","camera/point",[10,20]],` +
		`["c1","camera/scale",0.78],` +
		`["t1","token/flags","hidden"]]`
	assert.Equal(t, expected, string(data))
}

func TestDecodeFactsRoundTrip(t *testing.T) {
	schema := DefaultSchema()
	facts := []Fact{
		{Entity: "root-1", Attr: AttrIdent, Value: String(IdentRoot)},
		{Entity: "root-1", Attr: AttrRootScenes, Value: RefTo(Key("s1"))},
		{Entity: "s1", Attr: AttrSceneRound, Value: Int(3)},
		{Entity: "s1", Attr: AttrSceneMasked, Value: Bool(true)},
		{Entity: "c1", Attr: AttrCameraScale, Value: Float(1.25)},
		{Entity: "m1", Attr: AttrMaskPoints, Value: Vec{0, 0, 10, 0, 10, 10}},
	}

	data, err := EncodeFacts(facts)
	require.NoError(t, err)

	decoded, err := DecodeFacts(schema, data)
	require.NoError(t, err)
	require.Len(t, decoded, len(facts))

	for i := range facts {
		assert.Equal(t, facts[i].Entity, decoded[i].Entity, "fact %d entity", i)
		assert.Equal(t, facts[i].Attr, decoded[i].Attr, "fact %d attr", i)
		assert.True(t, Equal(facts[i].Value, decoded[i].Value), "fact %d value: %v vs %v", i, facts[i].Value, decoded[i].Value)
	}
}

func TestDecodeFactsRefTyping(t *testing.T) {
	schema := DefaultSchema()

	// camera/scene is a ref attribute, token/image a plain checksum string;
	// both are JSON strings, so typing comes from the schema
	data := []byte(`[["c1","camera/scene","s1"],["t1","token/image","s1"]]`)

	decoded, err := DecodeFacts(schema, data)
	require.NoError(t, err)
	require.Len(t, decoded, 2)

	ref, ok := decoded[0].Value.(Ref)
	require.True(t, ok, "camera/scene must decode as Ref")
	assert.Equal(t, Key("s1"), ref.To)

	_, ok = decoded[1].Value.(String)
	assert.True(t, ok, "token/image must decode as String")
}

func TestDecodeFactsIntegralNumbersDecodeAsInt(t *testing.T) {
	schema := DefaultSchema()

	// Scale 2 encodes as "2"; readers that expect fractions accept Int
	data := []byte(`[["c1","camera/scale",2]]`)

	decoded, err := DecodeFacts(schema, data)
	require.NoError(t, err)
	require.Len(t, decoded, 1)

	_, ok := decoded[0].Value.(Int)
	assert.True(t, ok)
}

func TestDecodeFactsUnknownAttribute(t *testing.T) {
	schema := DefaultSchema()
	data := []byte(`[["e1","bogus/attr",1]]`)

	_, err := DecodeFacts(schema, data)
	assert.ErrorContains(t, err, "unknown attribute")
}

func TestDecodeFactsRejectsNull(t *testing.T) {
	schema := DefaultSchema()
	data := []byte(`[["e1","token/label",null]]`)

	_, err := DecodeFacts(schema, data)
	assert.Error(t, err)
}

func TestEncodeFactsRejectsPlaceholder(t *testing.T) {
	facts := []Fact{
		{Entity: "r1", Attr: AttrRootScenes, Value: RefTo(Placeholder(-1))},
	}

	_, err := EncodeFacts(facts)
	assert.Error(t, err, "placeholders must never be encoded")
}

func TestChangesRoundTrip(t *testing.T) {
	schema := DefaultSchema()
	changes := []Change{
		{Fact: Fact{Entity: "c1", Attr: AttrCameraScale, Value: Float(1)}, Added: false},
		{Fact: Fact{Entity: "c1", Attr: AttrCameraScale, Value: Float(0.78)}, Added: true},
		{Fact: Fact{Entity: "s1", Attr: AttrSceneTurn, Value: RefTo(Key("t1"))}, Added: true},
	}

	data, err := EncodeChanges(changes)
	require.NoError(t, err)
	assert.Equal(t,
		`[["c1","camera/scale",1,false],["c1","camera/scale",0.78,true],["s1","scene/turn","t1",true]]`,
		string(data))

	decoded, err := DecodeChanges(schema, data)
	require.NoError(t, err)
	require.Len(t, decoded, 3)

	assert.False(t, decoded[0].Added)
	assert.True(t, decoded[1].Added)
	ref, ok := decoded[2].Fact.Value.(Ref)
	require.True(t, ok)
	assert.Equal(t, Key("t1"), ref.To)
}

func TestDecodeChangesShapeErrors(t *testing.T) {
	schema := DefaultSchema()

	_, err := DecodeChanges(schema, []byte(`[["e1","token/label","x"]]`))
	assert.Error(t, err, "three-element rows are facts, not changes")

	_, err = DecodeFacts(schema, []byte(`[["e1","token/label","x",true]]`))
	assert.Error(t, err, "four-element rows are changes, not facts")
}
