package compile

import (
	"github.com/hearthview/tabletop/internal/fact"
	"github.com/hearthview/tabletop/internal/geom"
	"github.com/hearthview/tabletop/internal/initiative"
)

func init() {
	Register("token/create", tokenCreate)
	Register("token/translate", tokenTranslate)
	Register("token/translate-selected", tokenTranslateSelected)
	Register("token/change-flag", tokenChangeFlag)
	Register("token/change-label", tokenChangeLabel)
	Register("token/change-light", tokenChangeLight)
	Register("token/change-size", tokenChangeSize)
	Register("token/change-aura", tokenChangeAura)
	Register("token/remove", tokenRemove)
}

// tokenFlags are the accepted token/flags values.
var tokenFlags = map[string]bool{
	"hidden": true,
	"player": true,
	"flat":   true,
	"dead":   true,
}

func hasFlag(c *Ctx, key fact.Key, flag string) bool {
	for _, f := range c.Snap.Strings(key, fact.AttrTokenFlags) {
		if f == flag {
			return true
		}
	}
	return false
}

func tokenCreate(c *Ctx) []fact.Edit {
	x, okx := c.Float(0)
	y, oky := c.Float(1)
	if !okx || !oky {
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

	checksum, _ := c.Str(2)
	if checksum == "" {
		checksum = fact.DefaultImage
	} else if _, found := c.Snap.Lookup(fact.AttrImageChecksum, checksum); !found {
		checksum = fact.DefaultImage
	}

	tok := c.Placeholder()
	return []fact.Edit{
		fact.Assert(tok, fact.AttrTokenPoint, fact.Point(geom.Round(x), geom.Round(y))),
		fact.Assert(tok, fact.AttrTokenImage, fact.String(checksum)),
		fact.Assert(scene, fact.AttrSceneTokens, fact.RefTo(tok)),
		fact.RetractAttr(cam, fact.AttrCameraSelected),
		fact.Assert(cam, fact.AttrCameraSelected, fact.RefTo(tok)),
	}
}

func moveToken(c *Ctx, tok fact.Key, dx, dy float64) (fact.Edit, bool) {
	p, ok := c.Snap.Vec(tok, fact.AttrTokenPoint)
	if !ok || len(p) != 2 {
		return fact.Edit{}, false
	}
	next := fact.Point(geom.Round(p[0]+dx), geom.Round(p[1]+dy))
	return fact.Assert(tok, fact.AttrTokenPoint, next), true
}

func tokenTranslate(c *Ctx) []fact.Edit {
	tok, ok := c.Key(0)
	if !ok {
		return nil
	}
	dx, okx := c.Float(1)
	dy, oky := c.Float(2)
	if !okx || !oky {
		return nil
	}
	edit, ok := moveToken(c, tok, dx, dy)
	if !ok {
		return nil
	}
	return []fact.Edit{edit}
}

func tokenTranslateSelected(c *Ctx) []fact.Edit {
	dx, okx := c.Float(0)
	dy, oky := c.Float(1)
	if !okx || !oky {
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
	var edits []fact.Edit
	for _, sel := range c.Snap.Refs(cam, fact.AttrCameraSelected) {
		if !tokens[sel] {
			continue
		}
		if edit, ok := moveToken(c, sel, dx, dy); ok {
			edits = append(edits, edit)
		}
	}
	return edits
}

func tokenChangeFlag(c *Ctx) []fact.Edit {
	tok, ok := c.Key(0)
	if !ok || !c.Snap.Exists(tok) {
		return nil
	}
	flag, ok := c.Str(1)
	if !ok || !tokenFlags[flag] {
		return nil
	}
	on, ok := c.Bool(2)
	if !ok {
		on = !hasFlag(c, tok, flag)
	}
	if on {
		return []fact.Edit{fact.Assert(tok, fact.AttrTokenFlags, fact.String(flag))}
	}
	return []fact.Edit{fact.Retract(tok, fact.AttrTokenFlags, fact.String(flag))}
}

func tokenChangeLabel(c *Ctx) []fact.Edit {
	tok, ok := c.Key(0)
	if !ok || !c.Snap.Exists(tok) {
		return nil
	}
	label, ok := c.Str(1)
	if !ok {
		return nil
	}
	return []fact.Edit{fact.Assert(tok, fact.AttrTokenLabel, fact.String(label))}
}

func tokenChangeLight(c *Ctx) []fact.Edit {
	return tokenRadius(c, fact.AttrTokenLight)
}

func tokenChangeSize(c *Ctx) []fact.Edit {
	return tokenRadius(c, fact.AttrTokenSize)
}

func tokenChangeAura(c *Ctx) []fact.Edit {
	return tokenRadius(c, fact.AttrTokenAura)
}

func tokenRadius(c *Ctx, attr fact.Attr) []fact.Edit {
	tok, ok := c.Key(0)
	if !ok || !c.Snap.Exists(tok) {
		return nil
	}
	r, ok := c.Float(1)
	if !ok || r < 0 {
		return nil
	}
	return []fact.Edit{fact.Assert(tok, attr, fact.Num(r))}
}

// tokenRemove retracts tokens. When the current turn holder is among the
// removed, the turn passes to the next surviving entrant in initiative
// order before the retraction, wrapping without advancing the round; with
// no survivors the turn clears. The store's reference cascade drops the
// removed tokens from the initiative list and any selections.
func tokenRemove(c *Ctx) []fact.Edit {
	keys := c.Keys(0)
	if len(keys) == 0 {
		return nil
	}
	scene, ok := c.Scene()
	if !ok {
		return nil
	}
	removed := keySet(keys)

	var edits []fact.Edit
	if cur, ok := c.Snap.Ref(scene, fact.AttrSceneTurn); ok && removed[cur] {
		order := initiative.Order(initiativeEntrants(c, scene))
		if next, found := nextSurvivor(order, string(cur), removed); found {
			edits = append(edits, fact.Assert(scene, fact.AttrSceneTurn, fact.RefTo(fact.Key(next))))
		} else {
			edits = append(edits, fact.RetractAttr(scene, fact.AttrSceneTurn))
		}
	}

	for _, tok := range keys {
		if c.Snap.Exists(tok) {
			edits = append(edits, fact.RetractEntity(tok))
		}
	}
	return edits
}

// nextSurvivor walks the turn order cyclically from cur and returns the
// first entrant not being removed.
func nextSurvivor(order []string, cur string, removed map[fact.Key]bool) (string, bool) {
	start := -1
	for i, k := range order {
		if k == cur {
			start = i
			break
		}
	}
	for i := 1; i <= len(order); i++ {
		k := order[(start+i)%len(order)]
		if !removed[fact.Key(k)] {
			return k, true
		}
	}
	return "", false
}

// initiativeEntrants projects the scene's initiative list for sorting.
func initiativeEntrants(c *Ctx, scene fact.Key) []initiative.Entrant {
	members := c.Snap.Refs(scene, fact.AttrSceneInitiative)
	entrants := make([]initiative.Entrant, 0, len(members))
	for _, m := range members {
		roll, rolled := c.Snap.Float(m, fact.AttrTokenRoll)
		entrants = append(entrants, initiative.Entrant{
			Key:    string(m),
			Roll:   roll,
			Rolled: rolled,
		})
	}
	return entrants
}
