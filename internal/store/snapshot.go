package store

import (
	"sort"

	"github.com/hearthview/tabletop/internal/fact"
)

// entity holds one entity's attribute values. Cardinality-one attributes
// keep a single element; cardinality-many keep first-assertion order.
type entity map[fact.Attr][]fact.Value

func (e entity) clone() entity {
	out := make(entity, len(e))
	for a, vs := range e {
		cp := make([]fact.Value, len(vs))
		copy(cp, vs)
		out[a] = cp
	}
	return out
}

// Snapshot is one immutable generation of store state. Snapshots are safe
// to read from any goroutine and never change after publication; readers
// across a commit boundary simply see different generations.
type Snapshot struct {
	version int64
	schema  fact.Schema
	ents    map[fact.Key]entity

	// unique indexes values of unique-identity attributes to their owning
	// entity. Maintained at commit time, used for upserts and Lookup.
	unique map[fact.Attr]map[string]fact.Key
}

func emptySnapshot(schema fact.Schema) *Snapshot {
	return &Snapshot{
		schema: schema,
		ents:   make(map[fact.Key]entity),
		unique: make(map[fact.Attr]map[string]fact.Key),
	}
}

// clone copies the generation's top-level indexes. Entity maps are shared
// with the parent until touched; the commit path clones per entity.
func (s *Snapshot) clone() *Snapshot {
	next := &Snapshot{
		version: s.version,
		schema:  s.schema,
		ents:    make(map[fact.Key]entity, len(s.ents)),
		unique:  make(map[fact.Attr]map[string]fact.Key, len(s.unique)),
	}
	for k, e := range s.ents {
		next.ents[k] = e
	}
	for a, idx := range s.unique {
		cp := make(map[string]fact.Key, len(idx))
		for v, k := range idx {
			cp[v] = k
		}
		next.unique[a] = cp
	}
	return next
}

// Version returns the commit count that produced this generation.
func (s *Snapshot) Version() int64 {
	return s.version
}

// Schema returns the attribute registry the snapshot was built against.
func (s *Snapshot) Schema() fact.Schema {
	return s.schema
}

// Exists reports whether the entity holds any fact.
func (s *Snapshot) Exists(key fact.Key) bool {
	return len(s.ents[key]) > 0
}

// Keys returns all entity keys in ascending order.
func (s *Snapshot) Keys() []fact.Key {
	keys := make([]fact.Key, 0, len(s.ents))
	for k := range s.ents {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Values returns the raw value list for (key, attr), nil when absent.
// The returned slice is shared; callers must not modify it.
func (s *Snapshot) Values(key fact.Key, attr fact.Attr) []fact.Value {
	return s.ents[key][attr]
}

// Has reports whether (key, attr, value) is currently asserted.
func (s *Snapshot) Has(key fact.Key, attr fact.Attr, value fact.Value) bool {
	for _, v := range s.ents[key][attr] {
		if fact.Equal(v, value) {
			return true
		}
	}
	return false
}

// HasAttr reports whether the entity holds any value for attr.
func (s *Snapshot) HasAttr(key fact.Key, attr fact.Attr) bool {
	return len(s.ents[key][attr]) > 0
}

func (s *Snapshot) one(key fact.Key, attr fact.Attr) (fact.Value, bool) {
	vs := s.ents[key][attr]
	if len(vs) == 0 {
		return nil, false
	}
	return vs[0], true
}

// String returns the string value of a cardinality-one attribute.
func (s *Snapshot) String(key fact.Key, attr fact.Attr) (string, bool) {
	v, ok := s.one(key, attr)
	if !ok {
		return "", false
	}
	sv, ok := v.(fact.String)
	return string(sv), ok
}

// Int returns the integer value of a cardinality-one attribute.
func (s *Snapshot) Int(key fact.Key, attr fact.Attr) (int64, bool) {
	v, ok := s.one(key, attr)
	if !ok {
		return 0, false
	}
	iv, ok := v.(fact.Int)
	return int64(iv), ok
}

// Float returns the numeric value of a cardinality-one attribute,
// widening integers.
func (s *Snapshot) Float(key fact.Key, attr fact.Attr) (float64, bool) {
	v, ok := s.one(key, attr)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case fact.Float:
		return float64(n), true
	case fact.Int:
		return float64(n), true
	}
	return 0, false
}

// Bool returns the boolean value of a cardinality-one attribute.
func (s *Snapshot) Bool(key fact.Key, attr fact.Attr) (bool, bool) {
	v, ok := s.one(key, attr)
	if !ok {
		return false, false
	}
	bv, ok := v.(fact.Bool)
	return bool(bv), ok
}

// Vec returns the vector value of a cardinality-one attribute.
// The returned slice is shared; callers must not modify it.
func (s *Snapshot) Vec(key fact.Key, attr fact.Attr) (fact.Vec, bool) {
	v, ok := s.one(key, attr)
	if !ok {
		return nil, false
	}
	vv, ok := v.(fact.Vec)
	return vv, ok
}

// Ref returns the target of a cardinality-one reference attribute.
func (s *Snapshot) Ref(key fact.Key, attr fact.Attr) (fact.Key, bool) {
	v, ok := s.one(key, attr)
	if !ok {
		return "", false
	}
	rv, ok := v.(fact.Ref)
	if !ok {
		return "", false
	}
	k, ok := rv.To.(fact.Key)
	return k, ok
}

// Refs returns the targets of a cardinality-many reference attribute in
// assertion order.
func (s *Snapshot) Refs(key fact.Key, attr fact.Attr) []fact.Key {
	vs := s.ents[key][attr]
	if len(vs) == 0 {
		return nil
	}
	out := make([]fact.Key, 0, len(vs))
	for _, v := range vs {
		if rv, ok := v.(fact.Ref); ok {
			if k, ok := rv.To.(fact.Key); ok {
				out = append(out, k)
			}
		}
	}
	return out
}

// Strings returns the string values of a cardinality-many attribute in
// assertion order.
func (s *Snapshot) Strings(key fact.Key, attr fact.Attr) []string {
	vs := s.ents[key][attr]
	if len(vs) == 0 {
		return nil
	}
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		if sv, ok := v.(fact.String); ok {
			out = append(out, string(sv))
		}
	}
	return out
}

// Ident returns the entity carrying the given db/ident value.
func (s *Snapshot) Ident(name string) (fact.Key, bool) {
	return s.Lookup(fact.AttrIdent, name)
}

// Lookup resolves a unique-identity attribute value to its entity.
func (s *Snapshot) Lookup(attr fact.Attr, value string) (fact.Key, bool) {
	k, ok := s.unique[attr][value]
	return k, ok
}

// Holders returns, in ascending key order, every entity whose attr holds
// a reference to target. This is the reverse-reference scan used for
// ownership walks, such as finding the scene a token belongs to.
func (s *Snapshot) Holders(attr fact.Attr, target fact.Key) []fact.Key {
	var out []fact.Key
	for k, e := range s.ents {
		for _, v := range e[attr] {
			if rv, ok := v.(fact.Ref); ok {
				if to, ok := rv.To.(fact.Key); ok && to == target {
					out = append(out, k)
					break
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Facts returns every fact in the snapshot, ordered by entity key, then
// attribute, then stored value order.
func (s *Snapshot) Facts() []fact.Fact {
	return s.facts(false)
}

// DurableFacts returns Facts minus attributes marked ephemeral in the
// schema. This is the set persisted and restored across restarts.
func (s *Snapshot) DurableFacts() []fact.Fact {
	return s.facts(true)
}

func (s *Snapshot) facts(skipEphemeral bool) []fact.Fact {
	var out []fact.Fact
	for _, k := range s.Keys() {
		e := s.ents[k]
		attrs := make([]fact.Attr, 0, len(e))
		for a := range e {
			if skipEphemeral && s.schema[a].Ephemeral {
				continue
			}
			attrs = append(attrs, a)
		}
		sort.Slice(attrs, func(i, j int) bool { return attrs[i] < attrs[j] })
		for _, a := range attrs {
			for _, v := range e[a] {
				out = append(out, fact.Fact{Entity: k, Attr: a, Value: v})
			}
		}
	}
	return out
}
