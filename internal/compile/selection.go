package compile

import (
	"encoding/json"
	"log/slog"

	"github.com/hearthview/tabletop/internal/fact"
	"github.com/hearthview/tabletop/internal/geom"
)

func init() {
	Register("element/select", elementSelect)
	Register("selection/from-rect", selectionFromRect)
	Register("selection/clear", selectionClear)
	Register("selection/remove", selectionRemove)
	Register("clipboard/copy", clipboardCopy)
	Register("clipboard/paste", clipboardPaste)
}

func elementSelect(c *Ctx) []fact.Edit {
	key, ok := c.Key(0)
	if !ok || !c.Snap.Exists(key) {
		return nil
	}
	cam, ok := c.Camera()
	if !ok {
		return nil
	}
	if !c.BoolDefault(1, false) {
		return []fact.Edit{
			fact.RetractAttr(cam, fact.AttrCameraSelected),
			fact.Assert(cam, fact.AttrCameraSelected, fact.RefTo(key)),
		}
	}
	for _, cur := range c.Snap.Refs(cam, fact.AttrCameraSelected) {
		if cur == key {
			return []fact.Edit{fact.Retract(cam, fact.AttrCameraSelected, fact.RefTo(key))}
		}
	}
	return []fact.Edit{fact.Assert(cam, fact.AttrCameraSelected, fact.RefTo(key))}
}

// selectionFromRect replaces the selection with the tokens of the active
// scene whose point falls inside the marquee. The rect arrives as the raw
// drag vector [ax ay bx by] in scene coordinates and may be drawn in any
// direction. Hidden tokens are only selectable by the host.
func selectionFromRect(c *Ctx) []fact.Edit {
	vs := c.Floats(0)
	if len(vs) != 4 {
		return nil
	}
	rect := geom.NewRect(vs[0], vs[1], vs[2], vs[3])

	cam, ok := c.Camera()
	if !ok {
		return nil
	}
	scene, ok := c.Scene()
	if !ok {
		return nil
	}
	host := c.IsHost()

	edits := []fact.Edit{fact.RetractAttr(cam, fact.AttrCameraSelected)}
	for _, tok := range c.Snap.Refs(scene, fact.AttrSceneTokens) {
		p, ok := c.Snap.Vec(tok, fact.AttrTokenPoint)
		if !ok || len(p) != 2 || !rect.Contains(p[0], p[1]) {
			continue
		}
		if !host && hasFlag(c, tok, "hidden") {
			continue
		}
		edits = append(edits, fact.Assert(cam, fact.AttrCameraSelected, fact.RefTo(tok)))
	}
	return edits
}

func selectionClear(c *Ctx) []fact.Edit {
	cam, ok := c.Camera()
	if !ok || len(c.Snap.Refs(cam, fact.AttrCameraSelected)) == 0 {
		return nil
	}
	return []fact.Edit{fact.RetractAttr(cam, fact.AttrCameraSelected)}
}

// selectionRemove retracts every selected element of the active scene.
// Tokens route through token/remove so the turn marker survives removal
// of its holder; the store's reference cascade clears the selection refs
// themselves.
func selectionRemove(c *Ctx) []fact.Edit {
	cam, ok := c.Camera()
	if !ok {
		return nil
	}
	scene, ok := c.Scene()
	if !ok {
		return nil
	}

	tokens := keySet(c.Snap.Refs(scene, fact.AttrSceneTokens))
	shapes := keySet(c.Snap.Refs(scene, fact.AttrSceneShapes))

	var remTokens, remShapes []fact.Key
	for _, sel := range c.Snap.Refs(cam, fact.AttrCameraSelected) {
		switch {
		case tokens[sel]:
			remTokens = append(remTokens, sel)
		case shapes[sel]:
			remShapes = append(remShapes, sel)
		}
	}

	var edits []fact.Edit
	if len(remTokens) > 0 {
		edits = append(edits, c.Delegate("token/remove", remTokens)...)
	}
	if len(remShapes) > 0 {
		edits = append(edits, c.Delegate("shape/remove", remShapes)...)
	}
	return edits
}

func keySet(keys []fact.Key) map[fact.Key]bool {
	set := make(map[fact.Key]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}

// tokenTemplate is one clipboard entry. Only intrinsic token attributes
// travel; initiative state stays behind.
type tokenTemplate struct {
	Label *string   `json:"label,omitempty"`
	Flags []string  `json:"flags,omitempty"`
	Light *float64  `json:"light,omitempty"`
	Size  *float64  `json:"size,omitempty"`
	Aura  *float64  `json:"aura,omitempty"`
	Image *string   `json:"image,omitempty"`
	Point []float64 `json:"point"`
}

// clipboardCopy snapshots the selected tokens of the active scene into the
// Local's clipboard as canonical JSON. Pass cut=true to retract the
// originals in the same batch.
func clipboardCopy(c *Ctx) []fact.Edit {
	local, ok := c.Local()
	if !ok {
		return nil
	}
	cam, ok := c.Camera()
	if !ok {
		return nil
	}
	scene, ok := c.Scene()
	if !ok {
		return nil
	}

	tokens := keySet(c.Snap.Refs(scene, fact.AttrSceneTokens))
	var picked []fact.Key
	for _, sel := range c.Snap.Refs(cam, fact.AttrCameraSelected) {
		if tokens[sel] {
			picked = append(picked, sel)
		}
	}
	if len(picked) == 0 {
		return nil
	}

	templates := make([]any, 0, len(picked))
	for _, tok := range picked {
		templates = append(templates, templateOf(c, tok))
	}
	data, err := fact.MarshalCanonical(templates)
	if err != nil {
		slog.Error("encode clipboard", "error", err)
		return nil
	}

	edits := []fact.Edit{fact.Assert(local, fact.AttrLocalClipboard, fact.String(data))}
	if c.BoolDefault(0, false) {
		edits = append(edits, c.Delegate("token/remove", picked)...)
	}
	return edits
}

func templateOf(c *Ctx, tok fact.Key) map[string]any {
	m := map[string]any{}
	if s, ok := c.Snap.String(tok, fact.AttrTokenLabel); ok {
		m["label"] = s
	}
	if fs := c.Snap.Strings(tok, fact.AttrTokenFlags); len(fs) > 0 {
		arr := make([]any, len(fs))
		for i, f := range fs {
			arr[i] = f
		}
		m["flags"] = arr
	}
	if f, ok := c.Snap.Float(tok, fact.AttrTokenLight); ok {
		m["light"] = f
	}
	if f, ok := c.Snap.Float(tok, fact.AttrTokenSize); ok {
		m["size"] = f
	}
	if f, ok := c.Snap.Float(tok, fact.AttrTokenAura); ok {
		m["aura"] = f
	}
	if s, ok := c.Snap.String(tok, fact.AttrTokenImage); ok {
		m["image"] = s
	}
	point := []any{0.0, 0.0}
	if p, ok := c.Snap.Vec(tok, fact.AttrTokenPoint); ok && len(p) == 2 {
		point = []any{p[0], p[1]}
	}
	m["point"] = point
	return m
}

// clipboardPaste recreates the clipboard's tokens in the active scene. The
// group keeps its internal offsets but is re-centered on the pasting
// window's viewport center, so a paste lands where the user is looking,
// not where the originals were. Image checksums no longer present in the
// token library fall back to the default placeholder art. Pasted tokens
// replace the selection.
func clipboardPaste(c *Ctx) []fact.Edit {
	local, ok := c.Local()
	if !ok {
		return nil
	}
	cam, ok := c.Camera()
	if !ok {
		return nil
	}
	scene, ok := c.Scene()
	if !ok {
		return nil
	}
	raw, ok := c.Snap.String(local, fact.AttrLocalClipboard)
	if !ok {
		return nil
	}

	var templates []tokenTemplate
	if err := json.Unmarshal([]byte(raw), &templates); err != nil {
		slog.Error("decode clipboard", "error", err)
		return nil
	}
	if len(templates) == 0 {
		return nil
	}

	var flat []float64
	for _, t := range templates {
		if len(t.Point) == 2 {
			flat = append(flat, t.Point[0], t.Point[1])
		}
	}
	var gx, gy float64
	if box, ok := geom.BoundingBox(flat); ok {
		gx, gy = box.Center()
	}

	px, py, scale := c.cameraState(cam)
	vx, vy := c.ViewportCenter()
	tx, ty := px+vx/scale, py+vy/scale

	edits := []fact.Edit{fact.RetractAttr(cam, fact.AttrCameraSelected)}
	for _, t := range templates {
		var ox, oy float64
		if len(t.Point) == 2 {
			ox, oy = t.Point[0]-gx, t.Point[1]-gy
		}
		tok := c.Placeholder()
		edits = append(edits, fact.Assert(tok, fact.AttrTokenPoint,
			fact.Point(geom.Round(tx+ox), geom.Round(ty+oy))))
		if t.Label != nil {
			edits = append(edits, fact.Assert(tok, fact.AttrTokenLabel, fact.String(*t.Label)))
		}
		for _, f := range t.Flags {
			edits = append(edits, fact.Assert(tok, fact.AttrTokenFlags, fact.String(f)))
		}
		if t.Light != nil {
			edits = append(edits, fact.Assert(tok, fact.AttrTokenLight, fact.Num(*t.Light)))
		}
		if t.Size != nil {
			edits = append(edits, fact.Assert(tok, fact.AttrTokenSize, fact.Num(*t.Size)))
		}
		if t.Aura != nil {
			edits = append(edits, fact.Assert(tok, fact.AttrTokenAura, fact.Num(*t.Aura)))
		}
		if t.Image != nil {
			checksum := *t.Image
			if _, found := c.Snap.Lookup(fact.AttrImageChecksum, checksum); !found {
				checksum = fact.DefaultImage
			}
			edits = append(edits, fact.Assert(tok, fact.AttrTokenImage, fact.String(checksum)))
		}
		edits = append(edits,
			fact.Assert(scene, fact.AttrSceneTokens, fact.RefTo(tok)),
			fact.Assert(cam, fact.AttrCameraSelected, fact.RefTo(tok)),
		)
	}
	return edits
}
