package fact

import "fmt"

// Key is a stable entity key. Production keys are UUIDv7 strings; tests use
// sequential keys. Keys are opaque - nothing may parse structure out of them
// beyond ordering by plain string comparison.
type Key string

// Placeholder is a batch-local entity id: a negative integer issued by an
// Arena. Placeholders are valid only within the edit batch that allocated
// them. The store resolves every placeholder to a fresh Key at commit time;
// a placeholder must never appear in a committed, replicated, or persisted
// fact.
type Placeholder int64

// EntityID addresses an entity in an Edit: either a stable Key or a
// batch-local Placeholder. The interface is sealed - only Key and
// Placeholder implement it.
type EntityID interface {
	entityID()
}

func (Key) entityID()         {}
func (Placeholder) entityID() {}

// Arena issues batch-local placeholders: -1, -2, -3, ...
//
// Each compiled edit batch gets its own arena, so placeholder values are
// only unique within one batch. Not safe for concurrent use; an arena
// belongs to a single compile call.
type Arena struct {
	n int64
}

// Next returns the next placeholder.
func (a *Arena) Next() Placeholder {
	a.n--
	return Placeholder(a.n)
}

// Op is the edit operation kind.
type Op uint8

const (
	// OpAssert adds a value to an attribute. Cardinality-one attributes
	// replace any existing value; cardinality-many attributes accumulate.
	OpAssert Op = iota + 1
	// OpRetract removes one specific value from an attribute.
	OpRetract
	// OpRetractAttr removes every value of an attribute.
	OpRetractAttr
	// OpRetractEntity removes the entity: all of its own facts, all
	// references to it held by other entities, and - recursively - every
	// entity it owns through component attributes.
	OpRetractEntity
)

// String returns the op name for logs and traces.
func (o Op) String() string {
	switch o {
	case OpAssert:
		return "assert"
	case OpRetract:
		return "retract"
	case OpRetractAttr:
		return "retract-attr"
	case OpRetractEntity:
		return "retract-entity"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// Edit is one mutation instruction inside a batch. Batches commit atomically
// and in order.
type Edit struct {
	Op     Op
	Entity EntityID
	Attr   Attr  // empty for OpRetractEntity
	Value  Value // nil for OpRetractAttr and OpRetractEntity
}

// Assert builds an assert edit.
func Assert(e EntityID, a Attr, v Value) Edit {
	return Edit{Op: OpAssert, Entity: e, Attr: a, Value: v}
}

// Retract builds an edit removing one specific value.
func Retract(e EntityID, a Attr, v Value) Edit {
	return Edit{Op: OpRetract, Entity: e, Attr: a, Value: v}
}

// RetractAttr builds an edit removing every value of an attribute.
func RetractAttr(e EntityID, a Attr) Edit {
	return Edit{Op: OpRetractAttr, Entity: e, Attr: a}
}

// RetractEntity builds an edit removing an entity and its component subtree.
func RetractEntity(e EntityID) Edit {
	return Edit{Op: OpRetractEntity, Entity: e}
}

// Fact is one committed (entity, attribute, value) triple. Facts never
// contain placeholders.
type Fact struct {
	Entity Key
	Attr   Attr
	Value  Value
}

// Change is one entry of a commit's change set: a fact that was added or
// retracted. The ordered change stream is what replication ships and what a
// guest store applies verbatim.
type Change struct {
	Fact
	Added bool
}
