package compile

import (
	"github.com/hearthview/tabletop/internal/fact"
	"github.com/hearthview/tabletop/internal/geom"
)

func init() {
	Register("scenes/create", scenesCreate)
	Register("scenes/change", scenesChange)
	Register("scenes/remove", scenesRemove)
	Register("scene/change-grid-size", sceneChangeGridSize)
	Register("scene/change-grid-origin", sceneChangeGridOrigin)
	Register("scene/toggle-grid", sceneToggleGrid)
	Register("scene/change-lighting", sceneChangeLighting)
	Register("scene/toggle-dark-mode", sceneToggleDarkMode)
	Register("scene/change-image", sceneChangeImage)
}

// lightingLevels are the accepted scene/lighting values.
var lightingLevels = map[string]bool{
	"revealed": true,
	"dimmed":   true,
	"hidden":   true,
}

func scenesCreate(c *Ctx) []fact.Edit {
	local, ok := c.Local()
	if !ok {
		return nil
	}
	root, ok := c.Root()
	if !ok {
		return nil
	}

	scene := c.Placeholder()
	cam := c.Placeholder()
	edits := []fact.Edit{fact.Assert(root, fact.AttrRootScenes, fact.RefTo(scene))}
	edits = append(edits, newSceneEdits(scene)...)
	edits = append(edits, newCameraEdits(cam, scene)...)
	edits = append(edits,
		fact.Assert(local, fact.AttrLocalCamera, fact.RefTo(cam)),
		fact.Assert(local, fact.AttrLocalCameras, fact.RefTo(cam)),
	)
	return edits
}

func scenesChange(c *Ctx) []fact.Edit {
	scene, ok := c.Key(0)
	if !ok {
		return nil
	}
	local, ok := c.Local()
	if !ok {
		return nil
	}
	root, ok := c.Root()
	if !ok {
		return nil
	}
	if !keySet(c.Snap.Refs(root, fact.AttrRootScenes))[scene] {
		return nil
	}
	return switchTo(c, local, scene)
}

// switchTo points the participant's current camera at scene, reusing the
// camera it already has there so pan and zoom survive a round trip.
func switchTo(c *Ctx, participant fact.Key, scene fact.Key) []fact.Edit {
	for _, cam := range c.Snap.Refs(participant, fact.AttrLocalCameras) {
		if at, ok := c.Snap.Ref(cam, fact.AttrCameraScene); ok && at == scene {
			return []fact.Edit{fact.Assert(participant, fact.AttrLocalCamera, fact.RefTo(cam))}
		}
	}
	cam := c.Placeholder()
	edits := newCameraEdits(cam, scene)
	return append(edits,
		fact.Assert(participant, fact.AttrLocalCamera, fact.RefTo(cam)),
		fact.Assert(participant, fact.AttrLocalCameras, fact.RefTo(cam)),
	)
}

// scenesRemove retracts a scene, everything it owns, and every camera that
// looked at it, then reseats displaced participants:
//
//   - Last scene removed: a fresh default scene replaces it, and the local
//     window plus every connection gets a fresh default camera on it.
//   - The acting window was viewing it: its first surviving camera's scene
//     is promoted and becomes the target; without one the first remaining
//     scene is. Displaced connections remap to the target through their
//     existing camera there, or a new default one.
//   - Otherwise only participants whose camera pointed at the removed
//     scene are remapped; everyone else is untouched.
func scenesRemove(c *Ctx) []fact.Edit {
	removed, ok := c.Key(0)
	if !ok {
		return nil
	}
	local, ok := c.Local()
	if !ok {
		return nil
	}
	root, ok := c.Root()
	if !ok {
		return nil
	}

	scenes := c.Snap.Refs(root, fact.AttrRootScenes)
	if !keySet(scenes)[removed] {
		return nil
	}
	var remaining []fact.Key
	for _, s := range scenes {
		if s != removed {
			remaining = append(remaining, s)
		}
	}

	participants := []fact.Key{local}
	if session, ok := c.Session(); ok {
		participants = append(participants, c.Snap.Refs(session, fact.AttrSessionConns)...)
	}

	var edits []fact.Edit
	for _, cam := range c.Snap.Holders(fact.AttrCameraScene, removed) {
		edits = append(edits, fact.RetractEntity(cam))
	}
	edits = append(edits, fact.RetractEntity(removed))

	if len(remaining) == 0 {
		fresh := c.Placeholder()
		edits = append(edits, fact.Assert(root, fact.AttrRootScenes, fact.RefTo(fresh)))
		edits = append(edits, newSceneEdits(fresh)...)
		for _, p := range participants {
			cam := c.Placeholder()
			edits = append(edits, newCameraEdits(cam, fresh)...)
			edits = append(edits,
				fact.Assert(p, fact.AttrLocalCamera, fact.RefTo(cam)),
				fact.Assert(p, fact.AttrLocalCameras, fact.RefTo(cam)),
			)
		}
		return edits
	}

	target := remaining[0]
	displaced := func(p fact.Key) bool {
		cam, ok := c.Snap.Ref(p, fact.AttrLocalCamera)
		if !ok {
			return true
		}
		at, ok := c.Snap.Ref(cam, fact.AttrCameraScene)
		return !ok || at == removed
	}

	if displaced(local) {
		promoted := false
		for _, cam := range c.Snap.Refs(local, fact.AttrLocalCameras) {
			at, ok := c.Snap.Ref(cam, fact.AttrCameraScene)
			if ok && at != removed {
				target = at
				edits = append(edits, fact.Assert(local, fact.AttrLocalCamera, fact.RefTo(cam)))
				promoted = true
				break
			}
		}
		if !promoted {
			edits = append(edits, switchTo(c, local, target)...)
		}
	} else if at, ok := c.Scene(); ok {
		target = at
	}

	for _, p := range participants[1:] {
		if displaced(p) {
			edits = append(edits, switchTo(c, p, target)...)
		}
	}
	return edits
}

func sceneChangeGridSize(c *Ctx) []fact.Edit {
	n, ok := c.Float(0)
	if !ok || n < 1 {
		return nil
	}
	scene, ok := c.Scene()
	if !ok {
		return nil
	}
	return []fact.Edit{fact.Assert(scene, fact.AttrSceneGridSize, fact.Int(int64(geom.Round(n))))}
}

func sceneChangeGridOrigin(c *Ctx) []fact.Edit {
	x, okx := c.Float(0)
	y, oky := c.Float(1)
	if !okx || !oky {
		return nil
	}
	scene, ok := c.Scene()
	if !ok {
		return nil
	}
	return []fact.Edit{fact.Assert(scene, fact.AttrSceneGridOrigin, fact.Point(geom.Round(x), geom.Round(y)))}
}

func sceneToggleGrid(c *Ctx) []fact.Edit {
	scene, ok := c.Scene()
	if !ok {
		return nil
	}
	on := true
	if b, ok := c.Snap.Bool(scene, fact.AttrSceneShowGrid); ok {
		on = b
	}
	return []fact.Edit{fact.Assert(scene, fact.AttrSceneShowGrid, fact.Bool(!on))}
}

func sceneChangeLighting(c *Ctx) []fact.Edit {
	level, ok := c.Str(0)
	if !ok || !lightingLevels[level] {
		return nil
	}
	scene, ok := c.Scene()
	if !ok {
		return nil
	}
	return []fact.Edit{fact.Assert(scene, fact.AttrSceneLighting, fact.String(level))}
}

func sceneToggleDarkMode(c *Ctx) []fact.Edit {
	scene, ok := c.Scene()
	if !ok {
		return nil
	}
	on := false
	if b, ok := c.Snap.Bool(scene, fact.AttrSceneDarkMode); ok {
		on = b
	}
	return []fact.Edit{fact.Assert(scene, fact.AttrSceneDarkMode, fact.Bool(!on))}
}

// sceneChangeImage points the scene at a library image by checksum. An
// empty checksum clears the image; a checksum missing from the scene-image
// library compiles to nothing.
func sceneChangeImage(c *Ctx) []fact.Edit {
	checksum, ok := c.Str(0)
	if !ok {
		return nil
	}
	scene, ok := c.Scene()
	if !ok {
		return nil
	}
	if checksum == "" {
		return []fact.Edit{fact.RetractAttr(scene, fact.AttrSceneImage)}
	}
	img, found := c.Snap.Lookup(fact.AttrImageChecksum, checksum)
	if !found {
		return nil
	}
	root, ok := c.Root()
	if !ok || !keySet(c.Snap.Refs(root, fact.AttrRootSceneImages))[img] {
		return nil
	}
	return []fact.Edit{fact.Assert(scene, fact.AttrSceneImage, fact.RefTo(img))}
}
