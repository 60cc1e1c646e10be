package store

import (
	"fmt"
	"sort"

	"github.com/hearthview/tabletop/internal/fact"
)

// txn mutates one not-yet-published generation. Entity maps are shared
// with the parent generation until first touched, then cloned once.
type txn struct {
	snap  *Snapshot
	owned map[fact.Key]bool
}

func newTxn(snap *Snapshot) *txn {
	return &txn{snap: snap, owned: make(map[fact.Key]bool)}
}

// ensure returns a mutable entity map for key, cloning the shared one on
// first touch.
func (t *txn) ensure(key fact.Key) entity {
	e, ok := t.snap.ents[key]
	if !ok {
		e = make(entity)
		t.snap.ents[key] = e
		t.owned[key] = true
		return e
	}
	if !t.owned[key] {
		e = e.clone()
		t.snap.ents[key] = e
		t.owned[key] = true
	}
	return e
}

// resolvePlaceholders maps every placeholder in the batch to an entity
// key: an existing entity when the batch asserts a unique-identity value
// that is already indexed (upsert), a fresh key otherwise. Two
// placeholders asserting the same unique value resolve to the same key.
func resolvePlaceholders(before *Snapshot, gen fact.KeyGenerator, edits []fact.Edit) (map[fact.Placeholder]fact.Key, error) {
	var order []fact.Placeholder
	seen := make(map[fact.Placeholder]bool)
	note := func(id fact.EntityID) {
		if p, ok := id.(fact.Placeholder); ok && !seen[p] {
			seen[p] = true
			order = append(order, p)
		}
	}
	for _, e := range edits {
		note(e.Entity)
		if r, ok := e.Value.(fact.Ref); ok {
			note(r.To)
		}
	}
	if len(order) == 0 {
		return nil, nil
	}

	resolved := make(map[fact.Placeholder]fact.Key, len(order))
	alias := make(map[fact.Placeholder]fact.Placeholder)
	claimed := make(map[string]fact.Placeholder)

	for _, e := range edits {
		if e.Op != fact.OpAssert {
			continue
		}
		p, ok := e.Entity.(fact.Placeholder)
		if !ok || !before.schema[e.Attr].Unique {
			continue
		}
		sv, ok := e.Value.(fact.String)
		if !ok {
			continue
		}

		if existing, ok := before.unique[e.Attr][string(sv)]; ok {
			if prior, bound := resolved[p]; bound && prior != existing {
				return nil, fmt.Errorf("placeholder %d: unique values resolve to both %q and %q", p, prior, existing)
			}
			resolved[p] = existing
			continue
		}

		claim := string(e.Attr) + "\x00" + string(sv)
		if q, ok := claimed[claim]; ok && q != p {
			alias[p] = q
			continue
		}
		claimed[claim] = p
	}

	for _, p := range order {
		if _, ok := resolved[p]; ok {
			continue
		}
		if _, ok := alias[p]; ok {
			continue
		}
		resolved[p] = gen.NewKey()
	}
	for p, q := range alias {
		resolved[p] = resolved[q]
	}
	return resolved, nil
}

func resolveEntity(id fact.EntityID, keys map[fact.Placeholder]fact.Key) (fact.Key, error) {
	switch v := id.(type) {
	case fact.Key:
		return v, nil
	case fact.Placeholder:
		k, ok := keys[v]
		if !ok {
			return "", fmt.Errorf("unresolved placeholder %d", v)
		}
		return k, nil
	}
	return "", fmt.Errorf("nil entity id")
}

func resolveValue(v fact.Value, keys map[fact.Placeholder]fact.Key) (fact.Value, error) {
	r, ok := v.(fact.Ref)
	if !ok {
		return v, nil
	}
	k, err := resolveEntity(r.To, keys)
	if err != nil {
		return nil, err
	}
	return fact.Ref{To: k}, nil
}

// apply expands one edit into the changes it causes against the working
// generation. A no-op edit returns an empty list.
func (t *txn) apply(keys map[fact.Placeholder]fact.Key, edit fact.Edit) ([]fact.Change, error) {
	key, err := resolveEntity(edit.Entity, keys)
	if err != nil {
		return nil, err
	}

	switch edit.Op {
	case fact.OpAssert:
		if _, ok := t.snap.schema[edit.Attr]; !ok {
			return nil, fmt.Errorf("assert %s: unknown attribute %q", key, edit.Attr)
		}
		if edit.Value == nil {
			return nil, fmt.Errorf("assert %s %s: nil value", key, edit.Attr)
		}
		v, err := resolveValue(edit.Value, keys)
		if err != nil {
			return nil, err
		}
		return t.assert(key, edit.Attr, v)

	case fact.OpRetract:
		v, err := resolveValue(edit.Value, keys)
		if err != nil {
			return nil, err
		}
		if t.remove(key, edit.Attr, v) {
			return []fact.Change{{Fact: fact.Fact{Entity: key, Attr: edit.Attr, Value: v}, Added: false}}, nil
		}
		return nil, nil

	case fact.OpRetractAttr:
		return t.retractAttr(key, edit.Attr), nil

	case fact.OpRetractEntity:
		return t.retractEntity(key, make(map[fact.Key]bool)), nil
	}
	return nil, fmt.Errorf("unknown edit op %d", edit.Op)
}

func (t *txn) assert(key fact.Key, attr fact.Attr, v fact.Value) ([]fact.Change, error) {
	spec := t.snap.schema[attr]

	if spec.Unique {
		if sv, ok := v.(fact.String); ok {
			if owner, ok := t.snap.unique[attr][string(sv)]; ok && owner != key {
				return nil, fmt.Errorf("unique conflict: %s %q already held by %s", attr, string(sv), owner)
			}
		}
	}

	var changes []fact.Change
	e := t.ensure(key)

	if spec.Cardinality == fact.CardinalityMany {
		for _, cur := range e[attr] {
			if fact.Equal(cur, v) {
				return nil, nil
			}
		}
		e[attr] = append(e[attr], v)
	} else {
		if cur := e[attr]; len(cur) > 0 {
			if fact.Equal(cur[0], v) {
				return nil, nil
			}
			t.dropUnique(key, attr, cur[0])
			changes = append(changes, fact.Change{
				Fact:  fact.Fact{Entity: key, Attr: attr, Value: cur[0]},
				Added: false,
			})
		}
		e[attr] = []fact.Value{v}
	}

	t.putUnique(key, attr, v)
	changes = append(changes, fact.Change{
		Fact:  fact.Fact{Entity: key, Attr: attr, Value: v},
		Added: true,
	})
	return changes, nil
}

// add sets a value the replication way: cardinality-one overwrites
// without emitting the paired retraction, since the sender already did.
func (t *txn) add(key fact.Key, attr fact.Attr, v fact.Value) bool {
	spec := t.snap.schema[attr]
	e := t.ensure(key)

	if spec.Cardinality == fact.CardinalityMany {
		for _, cur := range e[attr] {
			if fact.Equal(cur, v) {
				return false
			}
		}
		e[attr] = append(e[attr], v)
	} else {
		if cur := e[attr]; len(cur) > 0 {
			if fact.Equal(cur[0], v) {
				return false
			}
			t.dropUnique(key, attr, cur[0])
		}
		e[attr] = []fact.Value{v}
	}

	t.putUnique(key, attr, v)
	return true
}

// remove deletes one exact value. Empty attribute slots and empty
// entities are dropped so Exists stays accurate.
func (t *txn) remove(key fact.Key, attr fact.Attr, v fact.Value) bool {
	cur, ok := t.snap.ents[key]
	if !ok {
		return false
	}
	vs := cur[attr]
	for i, have := range vs {
		if !fact.Equal(have, v) {
			continue
		}
		e := t.ensure(key)
		vs = e[attr]
		e[attr] = append(append([]fact.Value{}, vs[:i]...), vs[i+1:]...)
		if len(e[attr]) == 0 {
			delete(e, attr)
		}
		t.dropUnique(key, attr, v)
		if len(e) == 0 {
			delete(t.snap.ents, key)
		}
		return true
	}
	return false
}

func (t *txn) retractAttr(key fact.Key, attr fact.Attr) []fact.Change {
	vs := t.snap.ents[key][attr]
	if len(vs) == 0 {
		return nil
	}
	changes := make([]fact.Change, 0, len(vs))
	for _, v := range append([]fact.Value{}, vs...) {
		if t.remove(key, attr, v) {
			changes = append(changes, fact.Change{
				Fact:  fact.Fact{Entity: key, Attr: attr, Value: v},
				Added: false,
			})
		}
	}
	return changes
}

// retractEntity removes an entity and everything hanging off it: its
// component children recursively, every reference other entities hold to
// it, then its own facts. Iteration is sorted so the change order is
// deterministic.
func (t *txn) retractEntity(key fact.Key, visited map[fact.Key]bool) []fact.Change {
	if visited[key] {
		return nil
	}
	visited[key] = true

	e, ok := t.snap.ents[key]
	if !ok {
		return nil
	}

	var changes []fact.Change

	for _, attr := range sortedAttrs(e) {
		spec := t.snap.schema[attr]
		if !spec.Ref || !spec.Component {
			continue
		}
		for _, child := range append([]fact.Key{}, refTargets(e[attr])...) {
			changes = append(changes, t.retractEntity(child, visited)...)
		}
	}

	changes = append(changes, t.retractReferencesTo(key)...)

	e, ok = t.snap.ents[key]
	if !ok {
		return changes
	}
	for _, attr := range sortedAttrs(e) {
		changes = append(changes, t.retractAttr(key, attr)...)
	}
	return changes
}

// retractReferencesTo removes every reference any entity holds to target.
func (t *txn) retractReferencesTo(target fact.Key) []fact.Change {
	type hit struct {
		holder fact.Key
		attr   fact.Attr
	}
	var hits []hit
	for holder, e := range t.snap.ents {
		for attr, vs := range e {
			if !t.snap.schema[attr].Ref {
				continue
			}
			for _, v := range vs {
				if r, ok := v.(fact.Ref); ok {
					if to, ok := r.To.(fact.Key); ok && to == target {
						hits = append(hits, hit{holder: holder, attr: attr})
						break
					}
				}
			}
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].holder != hits[j].holder {
			return hits[i].holder < hits[j].holder
		}
		return hits[i].attr < hits[j].attr
	})

	var changes []fact.Change
	ref := fact.Ref{To: target}
	for _, h := range hits {
		if t.remove(h.holder, h.attr, ref) {
			changes = append(changes, fact.Change{
				Fact:  fact.Fact{Entity: h.holder, Attr: h.attr, Value: ref},
				Added: false,
			})
		}
	}
	return changes
}

func (t *txn) putUnique(key fact.Key, attr fact.Attr, v fact.Value) {
	if !t.snap.schema[attr].Unique {
		return
	}
	sv, ok := v.(fact.String)
	if !ok {
		return
	}
	idx := t.snap.unique[attr]
	if idx == nil {
		idx = make(map[string]fact.Key)
		t.snap.unique[attr] = idx
	}
	idx[string(sv)] = key
}

func (t *txn) dropUnique(key fact.Key, attr fact.Attr, v fact.Value) {
	if !t.snap.schema[attr].Unique {
		return
	}
	sv, ok := v.(fact.String)
	if !ok {
		return
	}
	if idx := t.snap.unique[attr]; idx != nil && idx[string(sv)] == key {
		delete(idx, string(sv))
	}
}

func sortedAttrs(e entity) []fact.Attr {
	attrs := make([]fact.Attr, 0, len(e))
	for a := range e {
		attrs = append(attrs, a)
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i] < attrs[j] })
	return attrs
}

func refTargets(vs []fact.Value) []fact.Key {
	var out []fact.Key
	for _, v := range vs {
		if r, ok := v.(fact.Ref); ok {
			if k, ok := r.To.(fact.Key); ok {
				out = append(out, k)
			}
		}
	}
	return out
}
