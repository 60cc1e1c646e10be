package compile

import (
	"github.com/hearthview/tabletop/internal/fact"
	"github.com/hearthview/tabletop/internal/geom"
)

func init() {
	Register("shape/create", shapeCreate)
	Register("shape/translate", shapeTranslate)
	Register("shape/remove", shapeRemove)
	Register("mask/create", maskCreate)
	Register("mask/toggle", maskToggle)
	Register("mask/remove", maskRemove)
	Register("mask/fill", maskFill)
	Register("mask/clear", maskClear)
}

// Shape defaults. Drawn shapes start translucent red; users restyle later.
const (
	DefaultShapeColor   = "#f44336"
	DefaultShapeOpacity = 0.25
)

// shapeKinds are the accepted shape/kind values.
var shapeKinds = map[string]bool{
	"circle": true,
	"rect":   true,
	"cone":   true,
	"line":   true,
	"poly":   true,
}

// roundPairs rounds a flat coordinate list, dropping an odd trailing
// value.
func roundPairs(vs []float64) []float64 {
	n := len(vs) / 2 * 2
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = geom.Round(vs[i])
	}
	return out
}

// shapeCreate stores a shape as an anchor point plus offsets, so moving
// the shape never rewrites its geometry.
func shapeCreate(c *Ctx) []fact.Edit {
	kind, ok := c.Str(0)
	if !ok || !shapeKinds[kind] {
		return nil
	}
	vs := roundPairs(c.Floats(1))
	if len(vs) < 2 {
		return nil
	}
	scene, ok := c.Scene()
	if !ok {
		return nil
	}

	ax, ay := vs[0], vs[1]
	offsets := make(fact.Vec, 0, len(vs)-2)
	for i := 2; i < len(vs); i += 2 {
		offsets = append(offsets, vs[i]-ax, vs[i+1]-ay)
	}

	shape := c.Placeholder()
	edits := []fact.Edit{
		fact.Assert(shape, fact.AttrShapeKind, fact.String(kind)),
		fact.Assert(shape, fact.AttrShapePoint, fact.Point(ax, ay)),
		fact.Assert(shape, fact.AttrShapeColor, fact.String(DefaultShapeColor)),
		fact.Assert(shape, fact.AttrShapeOpacity, fact.Num(DefaultShapeOpacity)),
	}
	if len(offsets) > 0 {
		edits = append(edits, fact.Assert(shape, fact.AttrShapePoints, offsets))
	}
	return append(edits, fact.Assert(scene, fact.AttrSceneShapes, fact.RefTo(shape)))
}

func shapeTranslate(c *Ctx) []fact.Edit {
	shape, ok := c.Key(0)
	if !ok {
		return nil
	}
	dx, okx := c.Float(1)
	dy, oky := c.Float(2)
	if !okx || !oky {
		return nil
	}
	p, ok := c.Snap.Vec(shape, fact.AttrShapePoint)
	if !ok || len(p) != 2 {
		return nil
	}
	next := fact.Point(geom.Round(p[0]+dx), geom.Round(p[1]+dy))
	return []fact.Edit{fact.Assert(shape, fact.AttrShapePoint, next)}
}

func shapeRemove(c *Ctx) []fact.Edit {
	var edits []fact.Edit
	for _, shape := range c.Keys(0) {
		if c.Snap.Exists(shape) {
			edits = append(edits, fact.RetractEntity(shape))
		}
	}
	return edits
}

func maskCreate(c *Ctx) []fact.Edit {
	enabled, ok := c.Bool(0)
	if !ok {
		return nil
	}
	vs := roundPairs(c.Floats(1))
	if len(vs) < 6 {
		return nil
	}
	scene, ok := c.Scene()
	if !ok {
		return nil
	}

	mask := c.Placeholder()
	return []fact.Edit{
		fact.Assert(mask, fact.AttrMaskEnabled, fact.Bool(enabled)),
		fact.Assert(mask, fact.AttrMaskPoints, fact.Vec(vs)),
		fact.Assert(scene, fact.AttrSceneMasks, fact.RefTo(mask)),
	}
}

func maskToggle(c *Ctx) []fact.Edit {
	mask, ok := c.Key(0)
	if !ok || !c.Snap.Exists(mask) {
		return nil
	}
	on, ok := c.Bool(1)
	if !ok {
		cur, _ := c.Snap.Bool(mask, fact.AttrMaskEnabled)
		on = !cur
	}
	return []fact.Edit{fact.Assert(mask, fact.AttrMaskEnabled, fact.Bool(on))}
}

func maskRemove(c *Ctx) []fact.Edit {
	var edits []fact.Edit
	for _, mask := range c.Keys(0) {
		if c.Snap.Exists(mask) {
			edits = append(edits, fact.RetractEntity(mask))
		}
	}
	return edits
}

func maskFill(c *Ctx) []fact.Edit {
	scene, ok := c.Scene()
	if !ok {
		return nil
	}
	return []fact.Edit{fact.Assert(scene, fact.AttrSceneMasked, fact.Bool(true))}
}

// maskClear reveals the whole scene: the fill flag drops and every mask
// polygon is retracted.
func maskClear(c *Ctx) []fact.Edit {
	scene, ok := c.Scene()
	if !ok {
		return nil
	}
	edits := []fact.Edit{fact.Assert(scene, fact.AttrSceneMasked, fact.Bool(false))}
	for _, mask := range c.Snap.Refs(scene, fact.AttrSceneMasks) {
		edits = append(edits, fact.RetractEntity(mask))
	}
	return edits
}
