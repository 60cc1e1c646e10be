// Package compile turns high-level user actions into ordered edit batches
// against the fact store.
//
// Compile is a pure function of (snapshot, event tag, arguments): it never
// mutates the store, only describes the mutation. Handlers dispatch off a
// package-level table keyed by event tag; an unregistered tag compiles to
// an empty batch, never an error.
//
// Error policy: handlers absorb invalid input. Malformed numeric text, an
// empty selection, or a reference to a missing entity yields an empty (or
// safely partial) batch. A handler panic is recovered, logged, and treated
// as an empty batch, so one bad event cannot take the window down. The
// returned batch is committed atomically or not at all.
package compile

import (
	"log/slog"

	"github.com/hearthview/tabletop/internal/fact"
	"github.com/hearthview/tabletop/internal/store"
)

// Handler builds the edit batch for one event tag.
type Handler func(c *Ctx) []fact.Edit

var handlers = map[string]Handler{}

// Register binds an event tag to its handler. Registering an existing tag
// replaces the previous handler; tests use this to stub behavior.
func Register(tag string, h Handler) {
	handlers[tag] = h
}

// Tags returns the number of registered event tags.
func Tags() int {
	return len(handlers)
}

// Compile builds the edit batch for one user action. The batch references
// new entities through placeholders issued by a per-call arena; the store
// resolves them at commit time.
func Compile(snap *store.Snapshot, tag string, args ...any) []fact.Edit {
	var arena fact.Arena
	c := &Ctx{Snap: snap, arena: &arena}
	return c.dispatch(tag, args)
}

// Ctx carries one compilation's inputs: the snapshot under consideration,
// the event arguments, and the shared placeholder arena. Delegated
// compilations reuse the arena so placeholders stay unique across the
// whole returned batch.
type Ctx struct {
	Snap *store.Snapshot
	Tag  string

	args  []any
	arena *fact.Arena
}

func (c *Ctx) dispatch(tag string, args []any) (edits []fact.Edit) {
	h, ok := handlers[tag]
	if !ok {
		slog.Debug("no handler for event", "event", tag)
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked", "event", tag, "panic", r)
			edits = nil
		}
	}()

	sub := &Ctx{Snap: c.Snap, Tag: tag, args: args, arena: c.arena}
	return h(sub)
}

// Delegate compiles another tag against the same snapshot and arena.
// Handlers use it to compose behavior, like wheel zoom delegating to
// absolute zoom.
func (c *Ctx) Delegate(tag string, args ...any) []fact.Edit {
	return c.dispatch(tag, args)
}

// Placeholder issues the next batch-local entity id.
func (c *Ctx) Placeholder() fact.Placeholder {
	return c.arena.Next()
}

// Local returns the window's Local entity.
func (c *Ctx) Local() (fact.Key, bool) {
	return c.Snap.Ident(fact.IdentLocal)
}

// IsHost reports whether the window's Local has type host.
func (c *Ctx) IsHost() bool {
	local, ok := c.Local()
	if !ok {
		return false
	}
	t, _ := c.Snap.String(local, fact.AttrLocalType)
	return t == "host"
}

// Camera returns the Local's current camera.
func (c *Ctx) Camera() (fact.Key, bool) {
	local, ok := c.Local()
	if !ok {
		return "", false
	}
	return c.Snap.Ref(local, fact.AttrLocalCamera)
}

// Scene returns the scene the current camera looks at.
func (c *Ctx) Scene() (fact.Key, bool) {
	cam, ok := c.Camera()
	if !ok {
		return "", false
	}
	return c.Snap.Ref(cam, fact.AttrCameraScene)
}

// Root returns the root aggregate entity.
func (c *Ctx) Root() (fact.Key, bool) {
	return c.Snap.Ident(fact.IdentRoot)
}

// Session returns the session wrapper entity.
func (c *Ctx) Session() (fact.Key, bool) {
	return c.Snap.Ident(fact.IdentSession)
}

// ViewportCenter returns the center of the window's own viewport in
// screen coordinates, from the Local's self bounds. Defaults to the
// origin when no bounds have been reported.
func (c *Ctx) ViewportCenter() (x, y float64) {
	local, ok := c.Local()
	if !ok {
		return 0, 0
	}
	r, ok := c.Snap.Vec(local, fact.AttrBoundsSelf)
	if !ok || len(r) != 4 {
		return 0, 0
	}
	return r[0] + r[2]/2, r[1] + r[3]/2
}

// Argument accessors. Events arrive from UI handlers, scenario files, and
// tests, so numbers may be any Go numeric kind and keys may be plain
// strings. Accessors coerce; ok is false when the argument is missing or
// the wrong kind.

func (c *Ctx) arg(i int) (any, bool) {
	if i < 0 || i >= len(c.args) {
		return nil, false
	}
	return c.args[i], true
}

// NArgs returns the argument count.
func (c *Ctx) NArgs() int {
	return len(c.args)
}

// Str returns argument i as a string.
func (c *Ctx) Str(i int) (string, bool) {
	v, ok := c.arg(i)
	if !ok {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case fact.Key:
		return string(s), true
	}
	return "", false
}

// Float returns argument i as a float64, accepting any integer kind.
func (c *Ctx) Float(i int) (float64, bool) {
	v, ok := c.arg(i)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Int returns argument i as an int64.
func (c *Ctx) Int(i int) (int64, bool) {
	f, ok := c.Float(i)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

// Bool returns argument i as a bool.
func (c *Ctx) Bool(i int) (bool, bool) {
	v, ok := c.arg(i)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// BoolDefault returns argument i as a bool, or def when absent.
func (c *Ctx) BoolDefault(i int, def bool) bool {
	b, ok := c.Bool(i)
	if !ok {
		return def
	}
	return b
}

// Key returns argument i as an entity key.
func (c *Ctx) Key(i int) (fact.Key, bool) {
	s, ok := c.Str(i)
	if !ok || s == "" {
		return "", false
	}
	return fact.Key(s), true
}

// Keys gathers entity keys from argument i onward. A slice argument at i
// is unpacked; otherwise the remaining arguments are taken one key each,
// skipping non-keys (such as a trailing flag).
func (c *Ctx) Keys(i int) []fact.Key {
	if i >= len(c.args) {
		return nil
	}
	switch ks := c.args[i].(type) {
	case []fact.Key:
		return ks
	case []string:
		out := make([]fact.Key, len(ks))
		for j, s := range ks {
			out[j] = fact.Key(s)
		}
		return out
	}
	var out []fact.Key
	for j := i; j < len(c.args); j++ {
		if k, ok := c.Key(j); ok {
			out = append(out, k)
		}
	}
	return out
}

// Floats gathers numbers from argument i onward. A slice argument at i
// ([]float64 or []any of numbers) is unpacked; otherwise each remaining
// argument is one number.
func (c *Ctx) Floats(i int) []float64 {
	if i >= len(c.args) {
		return nil
	}
	switch vs := c.args[i].(type) {
	case []float64:
		return vs
	case []any:
		out := make([]float64, 0, len(vs))
		for _, v := range vs {
			f, ok := toFloat(v)
			if !ok {
				return nil
			}
			out = append(out, f)
		}
		return out
	}
	var out []float64
	for j := i; j < len(c.args); j++ {
		f, ok := c.Float(j)
		if !ok {
			return nil
		}
		out = append(out, f)
	}
	return out
}
