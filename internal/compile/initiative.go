package compile

import (
	"strconv"
	"strings"

	"github.com/hearthview/tabletop/internal/fact"
	"github.com/hearthview/tabletop/internal/geom"
	"github.com/hearthview/tabletop/internal/initiative"
)

func init() {
	Register("initiative/toggle", initiativeToggle)
	Register("initiative/next", initiativeNext)
	Register("initiative/change-roll", initiativeChangeRoll)
	Register("initiative/change-health", initiativeChangeHealth)
	Register("initiative/leave", initiativeLeave)
}

// initiativeToggle adds tokens to or removes them from the scene's
// initiative list. The trailing bool picks the direction. Adding reruns
// label-suffix assignment over the union of existing members and
// additions, which is idempotent for tokens already suffixed. Removing
// drops the per-token bookkeeping and, when the turn holder leaves, hands
// the turn to the next survivor.
func initiativeToggle(c *Ctx) []fact.Edit {
	adding, ok := c.Bool(c.NArgs() - 1)
	if !ok {
		return nil
	}
	keys := c.Keys(0)
	if len(keys) == 0 {
		return nil
	}
	scene, ok := c.Scene()
	if !ok {
		return nil
	}
	if adding {
		return initiativeAdd(c, scene, keys)
	}
	return initiativeRemove(c, scene, keys)
}

func initiativeAdd(c *Ctx, scene fact.Key, keys []fact.Key) []fact.Edit {
	current := c.Snap.Refs(scene, fact.AttrSceneInitiative)
	inList := keySet(current)
	inScene := keySet(c.Snap.Refs(scene, fact.AttrSceneTokens))

	var additions []fact.Key
	for _, k := range keys {
		if inScene[k] && !inList[k] {
			additions = append(additions, k)
			inList[k] = true
		}
	}

	union := append(append([]fact.Key{}, current...), additions...)
	suffixes := initiative.Suffixes(suffixMembers(c, union))

	var edits []fact.Edit
	for _, k := range additions {
		edits = append(edits, fact.Assert(scene, fact.AttrSceneInitiative, fact.RefTo(k)))
	}
	for _, k := range union {
		if n, ok := suffixes[string(k)]; ok {
			edits = append(edits, fact.Assert(k, fact.AttrTokenSuffix, fact.Int(int64(n))))
		}
	}
	return edits
}

func initiativeRemove(c *Ctx, scene fact.Key, keys []fact.Key) []fact.Edit {
	current := c.Snap.Refs(scene, fact.AttrSceneInitiative)
	inList := keySet(current)

	var targets []fact.Key
	removed := map[fact.Key]bool{}
	for _, k := range keys {
		if inList[k] && !removed[k] {
			targets = append(targets, k)
			removed[k] = true
		}
	}
	if len(targets) == 0 {
		return nil
	}

	var edits []fact.Edit
	if len(targets) == len(current) {
		edits = append(edits,
			fact.RetractAttr(scene, fact.AttrSceneTurn),
			fact.RetractAttr(scene, fact.AttrSceneRound),
		)
	} else if cur, ok := c.Snap.Ref(scene, fact.AttrSceneTurn); ok && removed[cur] {
		order := initiative.Order(initiativeEntrants(c, scene))
		if next, found := nextSurvivor(order, string(cur), removed); found {
			edits = append(edits, fact.Assert(scene, fact.AttrSceneTurn, fact.RefTo(fact.Key(next))))
		} else {
			edits = append(edits, fact.RetractAttr(scene, fact.AttrSceneTurn))
		}
	}

	for _, k := range targets {
		edits = append(edits,
			fact.Retract(scene, fact.AttrSceneInitiative, fact.RefTo(k)),
			fact.RetractAttr(k, fact.AttrTokenRoll),
			fact.RetractAttr(k, fact.AttrTokenSuffix),
			fact.RetractAttr(k, fact.AttrTokenHealth),
		)
	}
	return edits
}

// initiativeNext advances the turn. The first call of a combat seeds
// round 1 and hands the turn to the head of the order; every later call
// moves to the entrant strictly after the holder, bumping the round when
// the order wraps.
func initiativeNext(c *Ctx) []fact.Edit {
	scene, ok := c.Scene()
	if !ok {
		return nil
	}
	order := initiative.Order(initiativeEntrants(c, scene))
	if len(order) == 0 {
		return nil
	}

	round, started := c.Snap.Int(scene, fact.AttrSceneRound)
	if !started {
		return []fact.Edit{
			fact.Assert(scene, fact.AttrSceneRound, fact.Int(1)),
			fact.Assert(scene, fact.AttrSceneTurn, fact.RefTo(fact.Key(order[0]))),
		}
	}

	cur, ok := c.Snap.Ref(scene, fact.AttrSceneTurn)
	if !ok {
		return []fact.Edit{fact.Assert(scene, fact.AttrSceneTurn, fact.RefTo(fact.Key(order[0])))}
	}
	next, wrapped := initiative.Advance(order, string(cur))
	if next == "" {
		return nil
	}
	edits := []fact.Edit{fact.Assert(scene, fact.AttrSceneTurn, fact.RefTo(fact.Key(next)))}
	if wrapped {
		edits = append(edits, fact.Assert(scene, fact.AttrSceneRound, fact.Int(round+1)))
	}
	return edits
}

func initiativeChangeRoll(c *Ctx) []fact.Edit {
	tok, ok := c.Key(0)
	if !ok {
		return nil
	}
	scene, ok := c.Scene()
	if !ok || !keySet(c.Snap.Refs(scene, fact.AttrSceneInitiative))[tok] {
		return nil
	}
	v, ok := numericArg(c, 1)
	if !ok {
		return nil
	}
	return []fact.Edit{fact.Assert(tok, fact.AttrTokenRoll, fact.Int(int64(geom.Round(v))))}
}

func initiativeChangeHealth(c *Ctx) []fact.Edit {
	tok, ok := c.Key(0)
	if !ok {
		return nil
	}
	scene, ok := c.Scene()
	if !ok || !keySet(c.Snap.Refs(scene, fact.AttrSceneInitiative))[tok] {
		return nil
	}
	v, ok := numericArg(c, 1)
	if !ok {
		return nil
	}
	op, ok := c.Str(2)
	if !ok {
		op = "set"
	}

	cur, _ := c.Snap.Float(tok, fact.AttrTokenHealth)
	var next float64
	switch op {
	case "set":
		next = v
	case "heal":
		next = cur + v
	case "damage":
		next = cur - v
	default:
		return nil
	}
	if next < 0 {
		next = 0
	}
	return []fact.Edit{fact.Assert(tok, fact.AttrTokenHealth, fact.Int(int64(geom.Round(next))))}
}

// initiativeLeave ends combat: list, turn, and round clear, and every
// member sheds its roll, suffix, and health bookkeeping.
func initiativeLeave(c *Ctx) []fact.Edit {
	scene, ok := c.Scene()
	if !ok {
		return nil
	}
	members := c.Snap.Refs(scene, fact.AttrSceneInitiative)
	_, hasRound := c.Snap.Int(scene, fact.AttrSceneRound)
	if len(members) == 0 && !hasRound {
		return nil
	}

	edits := []fact.Edit{
		fact.RetractAttr(scene, fact.AttrSceneInitiative),
		fact.RetractAttr(scene, fact.AttrSceneTurn),
		fact.RetractAttr(scene, fact.AttrSceneRound),
	}
	for _, m := range members {
		edits = append(edits,
			fact.RetractAttr(m, fact.AttrTokenRoll),
			fact.RetractAttr(m, fact.AttrTokenSuffix),
			fact.RetractAttr(m, fact.AttrTokenHealth),
		)
	}
	return edits
}

// numericArg reads argument i as a number, also accepting numeric text
// the way roll and health inputs arrive from a text field.
func numericArg(c *Ctx, i int) (float64, bool) {
	if f, ok := c.Float(i); ok {
		return f, true
	}
	s, ok := c.Str(i)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// suffixMembers projects initiative members for suffix grouping.
func suffixMembers(c *Ctx, union []fact.Key) []initiative.Member {
	ms := make([]initiative.Member, 0, len(union))
	for _, k := range union {
		label, _ := c.Snap.String(k, fact.AttrTokenLabel)
		image, _ := c.Snap.String(k, fact.AttrTokenImage)
		suffix, _ := c.Snap.Int(k, fact.AttrTokenSuffix)
		ms = append(ms, initiative.Member{
			Key:      string(k),
			Label:    label,
			Checksum: image,
			Player:   hasFlag(c, k, "player"),
			Suffix:   int(suffix),
		})
	}
	return ms
}
