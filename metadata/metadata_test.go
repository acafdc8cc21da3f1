package metadata

import (
	"math"
	"testing"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestFromAny(t *testing.T) {
	t.Run("Scalars", func(t *testing.T) {
		tests := []struct {
			name     string
			input    any
			expected Value
		}{
			{"nil", nil, Null()},
			{"Value", Int(1), Int(1)},
			{"bool true", true, Bool(true)},
			{"bool false", false, Bool(false)},
			{"string", "hello", String("hello")},
			{"float64", 3.14, Float(3.14)},
			{"float32", float32(1.5), Float(1.5)},
			{"int", int(1), Int(1)},
			{"int8", int8(1), Int(1)},
			{"int16", int16(1), Int(1)},
			{"int32", int32(1), Int(1)},
			{"int64", int64(1), Int(1)},
			{"uint8", uint8(1), Int(1)},
			{"uint32 max", uint32(math.MaxUint32), Int(int64(math.MaxUint32))},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				v, err := FromAny(tc.input)
				require.NoError(t, err)
				assert.True(t, tc.expected.Equal(v), "got %#v", v)
			})
		}
	})

	t.Run("Uint64 Range", func(t *testing.T) {
		v, err := FromAny(uint64(math.MaxInt64))
		require.NoError(t, err)
		assert.Equal(t, int64(math.MaxInt64), v.I64)

		_, err = FromAny(uint64(math.MaxInt64) + 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "out of range")
	})

	t.Run("Nested", func(t *testing.T) {
		v, err := FromAny(map[string]any{
			"tags":  []any{"a", int64(2)},
			"inner": map[string]any{"ok": true},
		})
		require.NoError(t, err)
		assert.Equal(t, KindMap, v.Kind)

		tags, ok := v.M["tags"].AsArray()
		require.True(t, ok)
		require.Len(t, tags, 2)
		assert.Equal(t, "a", tags[0].StringValue())

		inner, ok := v.M["inner"].AsMap()
		require.True(t, ok)
		b, _ := inner["ok"].AsBool()
		assert.True(t, b)
	})

	t.Run("Unsupported", func(t *testing.T) {
		_, err := FromAny(struct{}{})
		assert.Error(t, err)

		_, err = DocumentFromAny(map[string]any{"bad": make(chan int)})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"bad"`)
	})
}

func TestToAnyRoundTrip(t *testing.T) {
	in := map[string]any{
		"name":   "widget",
		"count":  int64(3),
		"price":  9.5,
		"active": true,
		"none":   nil,
		"tags":   []any{"x", "y"},
		"dims":   map[string]any{"w": int64(2), "h": 1.25},
	}

	doc, err := DocumentFromAny(in)
	require.NoError(t, err)
	assert.Equal(t, in, doc.ToAny())
}

func TestDocumentCloneAndMerge(t *testing.T) {
	orig := Document{
		"tags": Array([]Value{String("a")}),
		"n":    Int(1),
	}

	clone := orig.Clone()
	clone["tags"].A[0] = String("changed")
	assert.Equal(t, "a", orig["tags"].A[0].StringValue())

	merged := orig.Merge(Document{"n": Int(2), "extra": Bool(true)})
	assert.Equal(t, int64(1), orig["n"].I64)
	assert.Equal(t, int64(2), merged["n"].I64)
	assert.Equal(t, []string{"extra", "n", "tags"}, merged.Keys())

	assert.Nil(t, Document(nil).Clone())
}

func TestAsFloat64(t *testing.T) {
	f, ok := Int(3).AsFloat64()
	assert.True(t, ok)
	assert.Equal(t, 3.0, f)

	_, ok = String("3").AsFloat64()
	assert.False(t, ok)
}

func sampleDocument() Document {
	return Document{
		"s":    String("hello"),
		"i":    Int(-42),
		"f":    Float(0.125),
		"b":    Bool(true),
		"null": Null(),
		"arr":  Array([]Value{Int(1), String("two"), Float(3)}),
		"map":  Map(map[string]Value{"deep": Array([]Value{Bool(false)})}),
	}
}

func TestMsgpackRoundTrip(t *testing.T) {
	doc := sampleDocument()

	data, err := msgpack.Marshal(doc)
	require.NoError(t, err)

	var out Document
	require.NoError(t, msgpack.Unmarshal(data, &out))
	assert.True(t, doc.Equal(out))
	assert.Equal(t, KindFloat, out["arr"].A[2].Kind)
}

func TestJSONRoundTrip(t *testing.T) {
	doc := sampleDocument()

	data, err := gojson.Marshal(doc)
	require.NoError(t, err)

	var out Document
	require.NoError(t, gojson.Unmarshal(data, &out))
	assert.True(t, doc.Equal(out))
	assert.Equal(t, KindInt, out["i"].Kind)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "map", KindMap.String())
	assert.Equal(t, "invalid", Kind(99).String())
}
