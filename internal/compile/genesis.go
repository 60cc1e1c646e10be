package compile

import "github.com/hearthview/tabletop/internal/fact"

// Scene defaults applied by Genesis, scenes/create, and scene removal's
// replacement scenes.
const (
	DefaultGridSize = 70
	DefaultLighting = "revealed"
)

// Palette lists the Local colors in assignment order. Genesis takes the
// first; users cycle through the rest with local/change-color.
var Palette = []string{
	"#f44336", "#2196f3", "#8bc34a", "#ff9800",
	"#9c27b0", "#009688", "#ffeb3b", "#795548",
}

// Genesis returns the batch that shapes an empty store for a window of
// the given role: the root aggregate, one default scene, a camera on it,
// and the window's Local. Meant for an empty store; the scene and camera
// are fresh entities on every call.
func Genesis(role string) []fact.Edit {
	var arena fact.Arena
	root := arena.Next()
	scene := arena.Next()
	camera := arena.Next()
	local := arena.Next()

	edits := []fact.Edit{
		fact.Assert(root, fact.AttrIdent, fact.String(fact.IdentRoot)),
		fact.Assert(root, fact.AttrRootRelease, fact.String(fact.Release)),
		fact.Assert(root, fact.AttrRootScenes, fact.RefTo(scene)),
		fact.Assert(local, fact.AttrIdent, fact.String(fact.IdentLocal)),
		fact.Assert(local, fact.AttrLocalType, fact.String(role)),
		fact.Assert(local, fact.AttrLocalColor, fact.String(Palette[0])),
		fact.Assert(local, fact.AttrLocalCamera, fact.RefTo(camera)),
		fact.Assert(local, fact.AttrLocalCameras, fact.RefTo(camera)),
	}
	edits = append(edits, newSceneEdits(scene)...)
	edits = append(edits, newCameraEdits(camera, scene)...)
	return edits
}

// newSceneEdits fills in a fresh scene's defaults.
func newSceneEdits(scene fact.EntityID) []fact.Edit {
	return []fact.Edit{
		fact.Assert(scene, fact.AttrSceneGridSize, fact.Int(DefaultGridSize)),
		fact.Assert(scene, fact.AttrSceneShowGrid, fact.Bool(true)),
		fact.Assert(scene, fact.AttrSceneLighting, fact.String(DefaultLighting)),
	}
}

// newCameraEdits fills in a fresh camera at the default viewpoint.
func newCameraEdits(camera, scene fact.EntityID) []fact.Edit {
	return []fact.Edit{
		fact.Assert(camera, fact.AttrCameraScene, fact.RefTo(scene)),
		fact.Assert(camera, fact.AttrCameraPoint, fact.Point(0, 0)),
		fact.Assert(camera, fact.AttrCameraScale, fact.Int(1)),
	}
}
