package compile

import (
	"github.com/hearthview/tabletop/internal/fact"
)

func init() {
	Register("session/request", sessionRequest)
	Register("session/join", sessionJoin)
	Register("session/disconnect", sessionDisconnect)
	Register("session/toggle-share-cursors", sessionToggleShareCursors)
	Register("share/initiate", shareInitiate)
	Register("share/switch", shareSwitch)
	Register("bounds/change", boundsChange)
	Register("local/modifier", localModifier)
	Register("local/modifier-release", localModifierRelease)
	Register("local/change-color", localChangeColor)
	Register("local/change-status", localChangeStatus)
}

// localStatuses are the accepted local/status values.
var localStatuses = map[string]bool{
	"ready":        true,
	"connecting":   true,
	"disconnected": true,
}

// sessionRequest shapes the session wrapper. The session ident upserts, so
// a re-request refreshes the wrapper instead of duplicating it.
func sessionRequest(c *Ctx) []fact.Edit {
	local, ok := c.Local()
	if !ok {
		return nil
	}
	session := c.Placeholder()
	return []fact.Edit{
		fact.Assert(session, fact.AttrIdent, fact.String(fact.IdentSession)),
		fact.Assert(session, fact.AttrSessionHost, fact.RefTo(local)),
		fact.Assert(session, fact.AttrSessionStatus, fact.String("connecting")),
	}
}

// sessionJoin registers a remote participant under the given connection
// key. The key doubles as the conn entity's ident, so a rejoin under the
// same key upserts instead of duplicating. The participant starts on the
// host's current scene with a default camera and the next palette color.
func sessionJoin(c *Ctx) []fact.Edit {
	connKey, ok := c.Str(0)
	if !ok || connKey == "" {
		return nil
	}
	session, ok := c.Session()
	if !ok {
		return nil
	}
	scene, ok := c.Scene()
	if !ok {
		return nil
	}

	color := Palette[(1+len(c.Snap.Refs(session, fact.AttrSessionConns)))%len(Palette)]

	conn := c.Placeholder()
	cam := c.Placeholder()
	edits := []fact.Edit{
		fact.Assert(conn, fact.AttrIdent, fact.String(connKey)),
		fact.Assert(conn, fact.AttrLocalType, fact.String("conn")),
		fact.Assert(conn, fact.AttrLocalColor, fact.String(color)),
		fact.Assert(session, fact.AttrSessionConns, fact.RefTo(conn)),
	}
	edits = append(edits, newCameraEdits(cam, scene)...)
	return append(edits,
		fact.Assert(conn, fact.AttrLocalCamera, fact.RefTo(cam)),
		fact.Assert(conn, fact.AttrLocalCameras, fact.RefTo(cam)),
	)
}

// sessionDisconnect removes a participant and everything it owns,
// including its cameras.
func sessionDisconnect(c *Ctx) []fact.Edit {
	connKey, ok := c.Str(0)
	if !ok {
		return nil
	}
	session, ok := c.Session()
	if !ok {
		return nil
	}
	conn, found := c.Snap.Lookup(fact.AttrIdent, connKey)
	if !found || !keySet(c.Snap.Refs(session, fact.AttrSessionConns))[conn] {
		return nil
	}
	return []fact.Edit{
		fact.Retract(session, fact.AttrSessionConns, fact.RefTo(conn)),
		fact.RetractEntity(conn),
	}
}

func sessionToggleShareCursors(c *Ctx) []fact.Edit {
	session, ok := c.Session()
	if !ok {
		return nil
	}
	on, ok := c.Bool(0)
	if !ok {
		cur := true
		if b, ok := c.Snap.Bool(session, fact.AttrSessionShareCursors); ok {
			cur = b
		}
		on = !cur
	}
	return []fact.Edit{fact.Assert(session, fact.AttrSessionShareCursors, fact.Bool(on))}
}

// shareInitiate flips the Local's sharing flag. The bridge reacts to the
// committed flag; turning sharing off also clears any pause.
func shareInitiate(c *Ctx) []fact.Edit {
	local, ok := c.Local()
	if !ok {
		return nil
	}
	cur, _ := c.Snap.Bool(local, fact.AttrLocalSharing)
	next := !cur
	if b, ok := c.Bool(0); ok {
		next = b
	}
	if next == cur {
		return nil
	}
	if next {
		return []fact.Edit{fact.Assert(local, fact.AttrLocalSharing, fact.Bool(true))}
	}
	return []fact.Edit{
		fact.RetractAttr(local, fact.AttrLocalSharing),
		fact.RetractAttr(local, fact.AttrLocalPaused),
	}
}

// shareSwitch pauses or resumes forwarding while a share is live.
func shareSwitch(c *Ctx) []fact.Edit {
	local, ok := c.Local()
	if !ok {
		return nil
	}
	if sharing, _ := c.Snap.Bool(local, fact.AttrLocalSharing); !sharing {
		return nil
	}
	paused, ok := c.Bool(0)
	if !ok {
		cur, _ := c.Snap.Bool(local, fact.AttrLocalPaused)
		paused = !cur
	}
	return []fact.Edit{fact.Assert(local, fact.AttrLocalPaused, fact.Bool(paused))}
}

// boundsChange records a window rect under its role, plus the self record
// when the reporting role is the acting window's own.
func boundsChange(c *Ctx) []fact.Edit {
	role, ok := c.Str(0)
	if !ok {
		return nil
	}
	var attr fact.Attr
	switch role {
	case "host":
		attr = fact.AttrBoundsHost
	case "view":
		attr = fact.AttrBoundsView
	default:
		return nil
	}
	rect := c.Floats(1)
	if len(rect) != 4 {
		return nil
	}
	local, ok := c.Local()
	if !ok {
		return nil
	}

	edits := []fact.Edit{fact.Assert(local, attr, fact.Vec(rect))}
	if t, _ := c.Snap.String(local, fact.AttrLocalType); t == role {
		edits = append(edits, fact.Assert(local, fact.AttrBoundsSelf, fact.Vec(rect)))
	}
	return edits
}

func localModifier(c *Ctx) []fact.Edit {
	mod, ok := c.Str(0)
	if !ok || mod == "" {
		return nil
	}
	local, ok := c.Local()
	if !ok {
		return nil
	}
	return []fact.Edit{fact.Assert(local, fact.AttrLocalModifier, fact.String(mod))}
}

func localModifierRelease(c *Ctx) []fact.Edit {
	local, ok := c.Local()
	if !ok {
		return nil
	}
	if _, held := c.Snap.String(local, fact.AttrLocalModifier); !held {
		return nil
	}
	return []fact.Edit{fact.RetractAttr(local, fact.AttrLocalModifier)}
}

func localChangeColor(c *Ctx) []fact.Edit {
	color, ok := c.Str(0)
	if !ok || color == "" {
		return nil
	}
	local, ok := c.Local()
	if !ok {
		return nil
	}
	return []fact.Edit{fact.Assert(local, fact.AttrLocalColor, fact.String(color))}
}

func localChangeStatus(c *Ctx) []fact.Edit {
	status, ok := c.Str(0)
	if !ok || !localStatuses[status] {
		return nil
	}
	local, ok := c.Local()
	if !ok {
		return nil
	}
	return []fact.Edit{fact.Assert(local, fact.AttrLocalStatus, fact.String(status))}
}
