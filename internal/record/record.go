package record

import "fmt"

// Record is an opaque application entity: a stable identifier plus an
// arbitrary set of fields. Field values are the JSON-compatible types
// (string, bool, float64/int/int64, nil, nested maps and slices).
type Record struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// New creates a Record with a copy of the given fields.
func New(id string, fields map[string]any) Record {
	return Record{ID: id, Fields: CloneFields(fields)}
}

// Clone returns a deep-enough copy of the record for ledger snapshots.
// Nested maps and slices are copied one level at a time.
func (r Record) Clone() Record {
	return Record{ID: r.ID, Fields: CloneFields(r.Fields)}
}

// Field returns the named field value and whether it is present.
func (r Record) Field(name string) (any, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// CloneFields deep-copies a field map. A nil input yields an empty map so
// callers can always index the result.
func CloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CloneFields(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Merge overlays changes onto base and returns a new map. Base is not
// mutated. A nil change value explicitly overwrites: "clear this field"
// is a deliberate mutation, not an absence.
func Merge(base, changes map[string]any) map[string]any {
	out := CloneFields(base)
	for k, v := range changes {
		out[k] = cloneValue(v)
	}
	return out
}

// FieldEqual reports whether two field values are equal under the
// reconciler's comparison rules: strict equality for primitives with
// explicit nil handling. Numeric values compare by magnitude across
// int/int64/float64 because snapshots round-trip through JSON (float64)
// while local mutations may carry native ints.
//
// Composite values (maps, slices) compare structurally.
func FieldEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if na, ok := asFloat(a); ok {
		nb, ok := asFloat(b)
		return ok && na == nb
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvv, present := bv[k]
			if !present || !FieldEqual(v, bvv) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i, v := range av {
			if !FieldEqual(v, bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// ParentKey extracts the parent identity of a record: the string form of
// the named field. Records without the field, or with a nil value, have
// no parent and return ("", false).
func ParentKey(fields map[string]any, parentField string) (string, bool) {
	v, ok := fields[parentField]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	if f, ok := asFloat(v); ok && f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f)), true
	}
	return fmt.Sprintf("%v", v), true
}
