package fact

import "strings"

// Attr names an attribute: a "namespace/name" string such as "camera/scene".
// Boolean attributes end in "?" by convention.
type Attr string

// Namespace returns the part before the first "/".
func (a Attr) Namespace() string {
	if i := strings.IndexByte(string(a), '/'); i >= 0 {
		return string(a)[:i]
	}
	return string(a)
}

// Cardinality is the number of values an attribute holds per entity.
type Cardinality uint8

const (
	// CardinalityOne attributes hold a single value; asserting replaces.
	CardinalityOne Cardinality = iota
	// CardinalityMany attributes hold a set of values in assertion order.
	CardinalityMany
)

// AttrSpec declares how the store treats an attribute.
type AttrSpec struct {
	Cardinality Cardinality
	// Ref marks values as entity references.
	Ref bool
	// Component marks a ref attribute whose targets are owned by the
	// holding entity: retracting the entity retracts them too.
	Component bool
	// Unique marks an identity attribute: asserting a value already held
	// by another entity resolves to that entity instead (upsert).
	Unique bool
	// Ephemeral excludes the attribute from persisted snapshots. Session
	// wiring, liveness, and window geometry die with the window.
	Ephemeral bool
}

// Schema maps attributes to their declarations. The store rejects edits
// naming attributes absent from its schema.
type Schema map[Attr]AttrSpec

// Spec returns the declaration for an attribute and whether it exists.
func (s Schema) Spec(a Attr) (AttrSpec, bool) {
	spec, ok := s[a]
	return spec, ok
}

// Well-known idents. The db/ident attribute pins singleton entities to
// stable names, so handlers can find them without carrying keys around.
const (
	IdentRoot    = "root"
	IdentLocal   = "local"
	IdentSession = "session"
)

// Attribute registry. Grouped by entity namespace.
const (
	AttrIdent Attr = "db/ident"

	AttrLocalType      Attr = "local/type"   // host | view | conn
	AttrLocalStatus    Attr = "local/status" // ready | connecting | disconnected
	AttrLocalColor     Attr = "local/color"
	AttrLocalCamera    Attr = "local/camera"  // current camera
	AttrLocalCameras   Attr = "local/cameras" // one per visited scene
	AttrLocalClipboard Attr = "local/clipboard"
	AttrLocalModifier  Attr = "local/modifier"
	AttrLocalSharing   Attr = "local/sharing?"
	AttrLocalPaused    Attr = "local/paused?"

	AttrBoundsSelf Attr = "bounds/self"
	AttrBoundsHost Attr = "bounds/host"
	AttrBoundsView Attr = "bounds/view"

	AttrSessionHost         Attr = "session/host"
	AttrSessionConns        Attr = "session/conns"
	AttrSessionShareCursors Attr = "session/share-cursors?"
	AttrSessionStatus       Attr = "session/status"

	AttrRootScenes      Attr = "root/scenes"
	AttrRootTokenImages Attr = "root/token-images"
	AttrRootSceneImages Attr = "root/scene-images"
	AttrRootRelease     Attr = "root/release"

	AttrSceneImage      Attr = "scene/image"
	AttrSceneGridSize   Attr = "scene/grid-size"
	AttrSceneGridOrigin Attr = "scene/grid-origin"
	AttrSceneShowGrid   Attr = "scene/show-grid?"
	AttrSceneDarkMode   Attr = "scene/dark-mode?"
	AttrSceneLighting   Attr = "scene/lighting" // revealed | dimmed | hidden
	AttrSceneTokens     Attr = "scene/tokens"
	AttrSceneShapes     Attr = "scene/shapes"
	AttrSceneMasks      Attr = "scene/masks"
	AttrSceneInitiative Attr = "scene/initiative"
	AttrSceneTurn       Attr = "scene/turn"
	AttrSceneRound      Attr = "scene/round"
	AttrSceneMasked     Attr = "scene/masked?"

	AttrCameraScene    Attr = "camera/scene"
	AttrCameraPoint    Attr = "camera/point"
	AttrCameraScale    Attr = "camera/scale"
	AttrCameraDrawMode Attr = "camera/draw-mode"
	AttrCameraSelected Attr = "camera/selected"

	AttrTokenPoint  Attr = "token/point"
	AttrTokenLabel  Attr = "token/label"
	AttrTokenFlags  Attr = "token/flags" // hidden | player | flat | dead
	AttrTokenLight  Attr = "token/light"
	AttrTokenSize   Attr = "token/size"
	AttrTokenAura   Attr = "token/aura-radius"
	AttrTokenImage  Attr = "token/image" // image checksum, not a ref
	AttrTokenRoll   Attr = "initiative/roll"
	AttrTokenSuffix Attr = "initiative/suffix"
	AttrTokenHealth Attr = "initiative/health"

	AttrShapeKind    Attr = "shape/kind" // circle | rect | cone | line | poly
	AttrShapePoint   Attr = "shape/point"
	AttrShapePoints  Attr = "shape/points"
	AttrShapeColor   Attr = "shape/color"
	AttrShapeOpacity Attr = "shape/opacity"

	AttrMaskEnabled Attr = "mask/enabled?"
	AttrMaskPoints  Attr = "mask/points"

	AttrImageChecksum Attr = "image/checksum"
	AttrImageName     Attr = "image/name"
	AttrImageSize     Attr = "image/size"
	AttrImageWidth    Attr = "image/width"
	AttrImageHeight   Attr = "image/height"
)

// DefaultSchema declares every attribute of the session model.
func DefaultSchema() Schema {
	return Schema{
		AttrIdent: {Unique: true},

		AttrLocalType:      {},
		AttrLocalStatus:    {Ephemeral: true},
		AttrLocalColor:     {},
		AttrLocalCamera:    {Ref: true},
		AttrLocalCameras:   {Cardinality: CardinalityMany, Ref: true, Component: true},
		AttrLocalClipboard: {},
		AttrLocalModifier:  {Ephemeral: true},
		AttrLocalSharing:   {Ephemeral: true},
		AttrLocalPaused:    {Ephemeral: true},

		AttrBoundsSelf: {Ephemeral: true},
		AttrBoundsHost: {Ephemeral: true},
		AttrBoundsView: {Ephemeral: true},

		AttrSessionHost:         {Ref: true, Ephemeral: true},
		AttrSessionConns:        {Cardinality: CardinalityMany, Ref: true, Ephemeral: true},
		AttrSessionShareCursors: {Ephemeral: true},
		AttrSessionStatus:       {Ephemeral: true},

		AttrRootScenes:      {Cardinality: CardinalityMany, Ref: true, Component: true},
		AttrRootTokenImages: {Cardinality: CardinalityMany, Ref: true, Component: true},
		AttrRootSceneImages: {Cardinality: CardinalityMany, Ref: true, Component: true},
		AttrRootRelease:     {},

		AttrSceneImage:      {Ref: true},
		AttrSceneGridSize:   {},
		AttrSceneGridOrigin: {},
		AttrSceneShowGrid:   {},
		AttrSceneDarkMode:   {},
		AttrSceneLighting:   {},
		AttrSceneTokens:     {Cardinality: CardinalityMany, Ref: true, Component: true},
		AttrSceneShapes:     {Cardinality: CardinalityMany, Ref: true, Component: true},
		AttrSceneMasks:      {Cardinality: CardinalityMany, Ref: true, Component: true},
		AttrSceneInitiative: {Cardinality: CardinalityMany, Ref: true},
		AttrSceneTurn:       {Ref: true},
		AttrSceneRound:      {},
		AttrSceneMasked:     {},

		AttrCameraScene:    {Ref: true},
		AttrCameraPoint:    {},
		AttrCameraScale:    {},
		AttrCameraDrawMode: {},
		AttrCameraSelected: {Cardinality: CardinalityMany, Ref: true},

		AttrTokenPoint:  {},
		AttrTokenLabel:  {},
		AttrTokenFlags:  {Cardinality: CardinalityMany},
		AttrTokenLight:  {},
		AttrTokenSize:   {},
		AttrTokenAura:   {},
		AttrTokenImage:  {},
		AttrTokenRoll:   {},
		AttrTokenSuffix: {},
		AttrTokenHealth: {},

		AttrShapeKind:    {},
		AttrShapePoint:   {},
		AttrShapePoints:  {},
		AttrShapeColor:   {},
		AttrShapeOpacity: {},

		AttrMaskEnabled: {},
		AttrMaskPoints:  {},

		AttrImageChecksum: {Unique: true},
		AttrImageName:     {},
		AttrImageSize:     {},
		AttrImageWidth:    {},
		AttrImageHeight:   {},
	}
}
