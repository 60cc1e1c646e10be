package fact

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Wire and storage encoding for fact sets.
//
// A fact encodes as the triple [entity, attribute, value]; a change as the
// quad [entity, attribute, value, added]. Sets encode as canonical JSON
// arrays, so equal states produce byte-identical snapshots.
//
// Decoding is schema-driven: JSON carries no type tags, so the attribute
// declaration decides whether a string is a Ref or a String and an array is
// a Vec. Numbers decode as Int when integral, Float otherwise; readers that
// expect fractions accept both.

// EncodeFacts serializes a fact set as a canonical JSON array of triples.
func EncodeFacts(facts []Fact) ([]byte, error) {
	triples := make([]any, len(facts))
	for i, f := range facts {
		v, err := valueToCanonical(f.Value)
		if err != nil {
			return nil, fmt.Errorf("fact %d (%s %s): %w", i, f.Entity, f.Attr, err)
		}
		triples[i] = []any{string(f.Entity), string(f.Attr), v}
	}
	return MarshalCanonical(triples)
}

// DecodeFacts parses a fact set produced by EncodeFacts.
func DecodeFacts(schema Schema, data []byte) ([]Fact, error) {
	rows, err := decodeRows(data)
	if err != nil {
		return nil, err
	}

	facts := make([]Fact, 0, len(rows))
	for i, row := range rows {
		if len(row) != 3 {
			return nil, fmt.Errorf("fact %d: expected [entity, attr, value], got %d elements", i, len(row))
		}
		f, err := decodeFact(schema, row)
		if err != nil {
			return nil, fmt.Errorf("fact %d: %w", i, err)
		}
		facts = append(facts, f)
	}
	return facts, nil
}

// EncodeChanges serializes a change set as a canonical JSON array of quads.
func EncodeChanges(changes []Change) ([]byte, error) {
	quads := make([]any, len(changes))
	for i, c := range changes {
		v, err := valueToCanonical(c.Fact.Value)
		if err != nil {
			return nil, fmt.Errorf("change %d (%s %s): %w", i, c.Fact.Entity, c.Fact.Attr, err)
		}
		quads[i] = []any{string(c.Fact.Entity), string(c.Fact.Attr), v, c.Added}
	}
	return MarshalCanonical(quads)
}

// DecodeChanges parses a change set produced by EncodeChanges.
func DecodeChanges(schema Schema, data []byte) ([]Change, error) {
	rows, err := decodeRows(data)
	if err != nil {
		return nil, err
	}

	changes := make([]Change, 0, len(rows))
	for i, row := range rows {
		if len(row) != 4 {
			return nil, fmt.Errorf("change %d: expected [entity, attr, value, added], got %d elements", i, len(row))
		}
		f, err := decodeFact(schema, row[:3])
		if err != nil {
			return nil, fmt.Errorf("change %d: %w", i, err)
		}
		var added bool
		if err := json.Unmarshal(row[3], &added); err != nil {
			return nil, fmt.Errorf("change %d: added flag: %w", i, err)
		}
		changes = append(changes, Change{Fact: f, Added: added})
	}
	return changes, nil
}

func decodeRows(data []byte) ([][]json.RawMessage, error) {
	var rows [][]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode fact rows: %w", err)
	}
	return rows, nil
}

func decodeFact(schema Schema, row []json.RawMessage) (Fact, error) {
	var entity, attr string
	if err := json.Unmarshal(row[0], &entity); err != nil {
		return Fact{}, fmt.Errorf("entity: %w", err)
	}
	if err := json.Unmarshal(row[1], &attr); err != nil {
		return Fact{}, fmt.Errorf("attribute: %w", err)
	}

	spec, ok := schema.Spec(Attr(attr))
	if !ok {
		return Fact{}, fmt.Errorf("unknown attribute %q", attr)
	}

	v, err := decodeValue(spec, row[2])
	if err != nil {
		return Fact{}, fmt.Errorf("value of %s: %w", attr, err)
	}

	return Fact{Entity: Key(entity), Attr: Attr(attr), Value: v}, nil
}

// decodeValue maps raw JSON onto the sealed value kinds, consulting the
// attribute declaration for string/ref disambiguation.
func decodeValue(spec AttrSpec, raw json.RawMessage) (Value, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty value")
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if spec.Ref {
			return RefTo(Key(s)), nil
		}
		return String(s), nil

	case 't', 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return Bool(b), nil

	case '[':
		var nums []float64
		if err := json.Unmarshal(raw, &nums); err != nil {
			return nil, fmt.Errorf("vector: %w", err)
		}
		return Vec(nums), nil

	case 'n':
		return nil, fmt.Errorf("null is forbidden")

	case '{':
		return nil, fmt.Errorf("objects are not a value kind")

	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, err
		}
		if i, err := n.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("number %q: %w", n, err)
		}
		return Float(f), nil
	}
}

// valueToCanonical converts a Value into the any-forms the canonical
// encoder accepts, rejecting unresolved placeholders.
func valueToCanonical(v Value) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("nil value")
	case Ref:
		if _, ok := val.To.(Key); !ok {
			return nil, fmt.Errorf("unresolved placeholder %v", val.To)
		}
		return val, nil
	default:
		return val, nil
	}
}
