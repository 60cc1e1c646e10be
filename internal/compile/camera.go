package compile

import (
	"github.com/hearthview/tabletop/internal/fact"
	"github.com/hearthview/tabletop/internal/geom"
)

func init() {
	Register("camera/change-mode", cameraChangeMode)
	Register("camera/translate", cameraTranslate)
	Register("camera/zoom-change", cameraZoomChange)
	Register("camera/zoom-delta", cameraZoomDelta)
	Register("camera/zoom-in", cameraZoomIn)
	Register("camera/zoom-out", cameraZoomOut)
}

// hostOnlyModes are draw modes that mutate shared scene state; only the
// host's window may enter them.
var hostOnlyModes = map[string]bool{
	"mask":        true,
	"mask-toggle": true,
	"mask-remove": true,
	"grid":        true,
}

func cameraChangeMode(c *Ctx) []fact.Edit {
	mode, ok := c.Str(0)
	if !ok {
		return nil
	}
	cam, ok := c.Camera()
	if !ok {
		return nil
	}
	if hostOnlyModes[mode] && !c.IsHost() {
		return nil
	}
	return []fact.Edit{fact.Assert(cam, fact.AttrCameraDrawMode, fact.String(mode))}
}

// cameraState reads the camera's pan and scale with boot defaults.
func (c *Ctx) cameraState(cam fact.Key) (px, py, scale float64) {
	scale = 1
	if s, ok := c.Snap.Float(cam, fact.AttrCameraScale); ok {
		scale = s
	}
	if p, ok := c.Snap.Vec(cam, fact.AttrCameraPoint); ok && len(p) == 2 {
		px, py = p[0], p[1]
	}
	return px, py, scale
}

func cameraTranslate(c *Ctx) []fact.Edit {
	dx, ok := c.Float(0)
	if !ok {
		return nil
	}
	dy, ok := c.Float(1)
	if !ok {
		return nil
	}
	cam, ok := c.Camera()
	if !ok {
		return nil
	}
	px, py, scale := c.cameraState(cam)
	next := fact.Point(geom.Round(px+dx/scale), geom.Round(py+dy/scale))
	return []fact.Edit{fact.Assert(cam, fact.AttrCameraPoint, next)}
}

func cameraZoomChange(c *Ctx) []fact.Edit {
	next, ok := c.Float(0)
	if !ok {
		return nil
	}
	cam, ok := c.Camera()
	if !ok {
		return nil
	}
	next = geom.Clamp(geom.Round2(next), geom.MinScale, geom.MaxScale)

	cx, okx := c.Float(1)
	cy, oky := c.Float(2)
	if !okx || !oky {
		cx, cy = c.ViewportCenter()
	}

	px, py, prev := c.cameraState(cam)
	x, y := geom.AnchorPan(px, py, cx, cy, prev, next)
	return []fact.Edit{
		fact.Assert(cam, fact.AttrCameraScale, fact.Num(next)),
		fact.Assert(cam, fact.AttrCameraPoint, fact.Point(x, y)),
	}
}

func cameraZoomDelta(c *Ctx) []fact.Edit {
	delta, ok := c.Float(0)
	if !ok {
		return nil
	}
	cam, ok := c.Camera()
	if !ok {
		return nil
	}
	_, _, prev := c.cameraState(cam)
	next := geom.ScaleFromWheel(prev, delta)

	cx, okx := c.Float(1)
	cy, oky := c.Float(2)
	if !okx || !oky {
		cx, cy = c.ViewportCenter()
	}
	return c.Delegate("camera/zoom-change", next, cx, cy)
}

func cameraZoomIn(c *Ctx) []fact.Edit {
	return c.steppedZoom(geom.StepUp)
}

func cameraZoomOut(c *Ctx) []fact.Edit {
	return c.steppedZoom(geom.StepDown)
}

func (c *Ctx) steppedZoom(step func(float64) (float64, bool)) []fact.Edit {
	cam, ok := c.Camera()
	if !ok {
		return nil
	}
	_, _, prev := c.cameraState(cam)
	next, ok := step(prev)
	if !ok {
		return nil
	}
	return c.Delegate("camera/zoom-change", next)
}
