package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_OverlaysWithoutMutatingBase(t *testing.T) {
	base := map[string]any{"score": 10, "status": "pending"}
	changes := map[string]any{"score": 5}

	merged := Merge(base, changes)

	assert.Equal(t, 5, merged["score"])
	assert.Equal(t, "pending", merged["status"])
	assert.Equal(t, 10, base["score"], "base must not be mutated")
}

func TestMerge_NilValueOverwrites(t *testing.T) {
	base := map[string]any{"placement": 2}
	merged := Merge(base, map[string]any{"placement": nil})

	v, ok := merged["placement"]
	require.True(t, ok, "field must remain present")
	assert.Nil(t, v)
}

func TestMerge_NilBase(t *testing.T) {
	merged := Merge(nil, map[string]any{"x": 1})
	assert.Equal(t, 1, merged["x"])
}

func TestFieldEqual_Primitives(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"equal strings", "done", "done", true},
		{"different strings", "done", "pending", false},
		{"equal bools", true, true, true},
		{"string vs bool", "true", true, false},
		{"both nil", nil, nil, true},
		{"nil vs zero", nil, 0, false},
		{"nil vs empty string", nil, "", false},
		{"int vs float64 same value", 5, float64(5), true},
		{"int64 vs float64 same value", int64(42), float64(42), true},
		{"int vs float64 different", 5, float64(6), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FieldEqual(tt.a, tt.b))
		})
	}
}

func TestFieldEqual_Composites(t *testing.T) {
	a := map[string]any{"faults": []any{1, 2}, "meta": map[string]any{"ring": "A"}}
	b := map[string]any{"faults": []any{float64(1), float64(2)}, "meta": map[string]any{"ring": "A"}}
	assert.True(t, FieldEqual(a, b), "JSON round-trip numbers must compare equal")

	c := map[string]any{"faults": []any{1, 3}, "meta": map[string]any{"ring": "A"}}
	assert.False(t, FieldEqual(a, c))
}

func TestCloneFields_DeepCopiesNested(t *testing.T) {
	orig := map[string]any{"nested": map[string]any{"n": 1}, "list": []any{1, 2}}
	clone := CloneFields(orig)

	clone["nested"].(map[string]any)["n"] = 99
	clone["list"].([]any)[0] = 99

	assert.Equal(t, 1, orig["nested"].(map[string]any)["n"])
	assert.Equal(t, 1, orig["list"].([]any)[0])
}

func TestParentKey(t *testing.T) {
	fields := map[string]any{"class_id": float64(340)}
	key, ok := ParentKey(fields, "class_id")
	require.True(t, ok)
	assert.Equal(t, "340", key, "integral floats format without fraction")

	key, ok = ParentKey(map[string]any{"class_id": "agility-a"}, "class_id")
	require.True(t, ok)
	assert.Equal(t, "agility-a", key)

	_, ok = ParentKey(map[string]any{}, "class_id")
	assert.False(t, ok)

	_, ok = ParentKey(map[string]any{"class_id": nil}, "class_id")
	assert.False(t, ok)
}

func TestMarshalCanonical_DeterministicKeyOrder(t *testing.T) {
	a := map[string]any{"b": 1, "a": 2, "c": map[string]any{"z": true, "y": nil}}
	b := map[string]any{"c": map[string]any{"y": nil, "z": true}, "a": 2, "b": 1}

	ja, err := MarshalCanonical(a)
	require.NoError(t, err)
	jb, err := MarshalCanonical(b)
	require.NoError(t, err)

	assert.Equal(t, string(ja), string(jb))
	assert.Equal(t, `{"a":2,"b":1,"c":{"y":null,"z":true}}`, string(ja))
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	out, err := MarshalCanonical(map[string]any{"note": "a<b&c>d"})
	require.NoError(t, err)
	assert.Equal(t, `{"note":"a<b&c>d"}`, string(out))
}

func TestMarshalCanonical_IntegralFloat(t *testing.T) {
	a, err := MarshalCanonical(map[string]any{"score": 5})
	require.NoError(t, err)
	b, err := MarshalCanonical(map[string]any{"score": float64(5)})
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestFingerprint_StableAcrossCalls(t *testing.T) {
	m := map[string]any{"x": 1, "y": []any{"a", "b"}}

	f1, err := Fingerprint(m)
	require.NoError(t, err)
	f2, err := Fingerprint(m)
	require.NoError(t, err)

	assert.Equal(t, f1, f2)
	assert.Len(t, f1, 64)
}
