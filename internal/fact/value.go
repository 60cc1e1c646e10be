package fact

import (
	"math"
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface over the attribute value kinds.
// Only String, Int, Float, Bool, Vec, and Ref implement it.
//
// Float exists because the board domain is geometric (camera scale, point
// offsets). Producers keep encoding deterministic by rounding: points to
// whole numbers, scale to two decimals. NaN and infinities are rejected at
// the encoding boundary.
type Value interface {
	factValue() // Sealed - only these types implement it
}

// String is a text value: labels, checksums, draw modes, statuses.
type String string

func (String) factValue() {}

// Int is a whole-number value: grid sizes, rounds, rolls, radii.
type Int int64

func (Int) factValue() {}

// Float is a fractional value. Camera scale is the only cardinal user;
// values are rounded to two decimals before asserting.
type Float float64

func (Float) factValue() {}

// Bool is a boolean value, conventionally stored under attributes whose
// name ends in "?".
type Bool bool

func (Bool) factValue() {}

// Vec is a flat numeric vector: a point [x y], a rect [x y w h], or a
// polygon [x1 y1 x2 y2 ...].
type Vec []float64

func (Vec) factValue() {}

// Ref is a reference to another entity. In edits the target may be a
// Placeholder; in committed facts it is always a Key.
type Ref struct {
	To EntityID
}

func (Ref) factValue() {}

// RefTo builds a reference value.
func RefTo(id EntityID) Ref {
	return Ref{To: id}
}

// Point builds a two-element vector.
func Point(x, y float64) Vec {
	return Vec{x, y}
}

// Num builds the canonical numeric value for f: Int when f is a whole
// number, Float otherwise. The wire codec reads integral numbers back as
// Int, so producers must use this to keep values roundtrip-equal.
// The whole-number case is capped where the codec's integral form is,
// so Num and the codec always agree.
func Num(f float64) Value {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return Int(int64(f))
	}
	return Float(f)
}

// Equal reports whether two values are the same kind and content.
// Used for retract-by-value and cardinality-many membership.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Float:
		bv, ok := b.(Float)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Vec:
		bv, ok := b.(Vec)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
		return true
	case Ref:
		bv, ok := b.(Ref)
		return ok && av.To == bv.To
	default:
		return false
	}
}

// Finite reports whether every numeric component of a value is a finite
// number. Non-finite values are rejected by the canonical encoder, so
// producers check here first.
func Finite(v Value) bool {
	switch val := v.(type) {
	case Float:
		return !math.IsNaN(float64(val)) && !math.IsInf(float64(val), 0)
	case Vec:
		for _, f := range val {
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// sortedKeysRFC8785 returns map keys in RFC 8785 canonical order (UTF-16
// code units).
// CRITICAL: Go's sort.Strings orders by UTF-8 bytes, which produces a
// DIFFERENT order for strings outside the ASCII range.
func sortedKeysRFC8785[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings by UTF-16 code units as required by
// RFC 8785. Surrogate handling matters: utf16.Encode splits astral code
// points, so the comparison sees the same units a JavaScript sort would.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := len(a16)
	if len(b16) < n {
		n = len(b16)
	}
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	default:
		return 0
	}
}
