package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectOrderAndEquality(t *testing.T) {
	a := NewObject().Set("b", Int(2)).Set("a", Int(1))
	b := NewObject().Set("a", Int(1)).Set("b", Int(2))

	assert.Equal(t, []string{"b", "a"}, a.Keys())
	assert.True(t, Equal(FromObject(a), FromObject(b)), "object equality ignores key order")

	a.Set("b", Int(3))
	assert.Equal(t, []string{"b", "a"}, a.Keys(), "replacing a key keeps its position")
	assert.False(t, Equal(FromObject(a), FromObject(b)))

	a.Delete("b")
	assert.Equal(t, []string{"a"}, a.Keys())
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"null", Null(), Null(), true},
		{"int vs float same value", Int(2), Float(2), true},
		{"different kinds", String("1"), Int(1), false},
		{"arrays are ordered", Array(Int(1), Int(2)), Array(Int(2), Int(1)), false},
		{"nested", Obj("x", Array(Bool(true))), Obj("x", Array(Bool(true))), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

func TestMarshalJSONKeepsOrder(t *testing.T) {
	v := Obj("z", Int(1), "a", Array(Float(1.5), Null()), "m", String("<x>"))

	data, err := v.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":[1.5,null],"m":"<x>"}`, string(data))
}

func TestFromAny(t *testing.T) {
	v, err := FromAny(map[string]any{
		"name": "ada",
		"tags": []any{"x", 1, 2.5, nil},
		"meta": map[any]any{"ok": true},
	})
	require.NoError(t, err)

	obj, ok := v.AsObject()
	require.True(t, ok)
	assert.Equal(t, []string{"meta", "name", "tags"}, obj.Keys())

	tags, _ := obj.Get("tags")
	items, ok := tags.AsArray()
	require.True(t, ok)
	require.Len(t, items, 4)
	assert.True(t, items[1].IsInt())
	assert.False(t, items[2].IsInt())
	assert.True(t, items[3].IsNull())

	_, err = FromAny(make(chan int))
	assert.Error(t, err)
}

func TestToAny(t *testing.T) {
	v := Obj("n", Int(3), "list", Array(String("a")))
	native, ok := v.ToAny().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, int64(3), native["n"])
	assert.Equal(t, []any{"a"}, native["list"])
}

func TestScalar(t *testing.T) {
	assert.Equal(t, "", Null().Scalar())
	assert.Equal(t, "true", Bool(true).Scalar())
	assert.Equal(t, "42", Int(42).Scalar())
	assert.Equal(t, "0.25", Float(0.25).Scalar())
	assert.Equal(t, "plain", String("plain").Scalar())
	assert.Equal(t, `{"a":1}`, Obj("a", Int(1)).Scalar())
}
