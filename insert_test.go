package entitydb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/hupe1980/entitydb/embed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsert_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	raw := map[string]any{
		"id":   "doc-1",
		"text": "hello world",
		"lang": "en",
		"n":    int64(3),
		"tags": []any{"a", "b"},
	}
	key, err := db.Insert(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", key)

	got, err := db.Get(ctx, "doc-1")
	require.NoError(t, err)
	vec, ok := got["embedding"].([]float32)
	require.True(t, ok)
	assert.Len(t, vec, embed.DefaultHashDimension)

	delete(got, "embedding")
	assert.Equal(t, raw, got)
}

func TestInsertManualVectors_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	raw := map[string]any{
		"id":        "m",
		"embedding": []float32{0.5, -1, 2},
		"title":     "manual",
		"meta":      map[string]any{"ok": true, "none": nil},
	}
	_, err := db.InsertManualVectors(ctx, raw)
	require.NoError(t, err)

	got, err := db.Get(ctx, "m")
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestInsert_Upsert(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	_, err := db.Insert(ctx, map[string]any{"id": "a", "text": "one", "color": "red"})
	require.NoError(t, err)
	_, err = db.Insert(ctx, map[string]any{"id": "a", "text": "two"})
	require.NoError(t, err)

	got, err := db.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "two", got["text"])
	assert.NotContains(t, got, "color")

	n, err := db.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInsert_ReencodeMovesGroups(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	_, err := db.InsertBinary(ctx, map[string]any{"id": "a", "text": "binary first"})
	require.NoError(t, err)
	_, err = db.Insert(ctx, map[string]any{"id": "a", "text": "binary first"})
	require.NoError(t, err)

	res, err := db.QueryBinary(ctx, "binary first")
	require.NoError(t, err)
	assert.Empty(t, res)

	res, err = db.Query(ctx, "binary first")
	require.NoError(t, err)
	require.Len(t, res, 1)
}

func TestInsert_AutoID(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, Config{VectorField: "embedding", AutoID: true})

	key, err := db.Insert(ctx, map[string]any{"text": "no id given"})
	require.NoError(t, err)

	u, err := uuid.Parse(key)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), u.Version())

	got, err := db.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, key, got["id"])

	key2, err := db.Insert(ctx, map[string]any{"text": "no id given"})
	require.NoError(t, err)
	assert.NotEqual(t, key, key2)
}

func TestInsert_Validation(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	tests := []struct {
		name  string
		raw   map[string]any
		enc   Encoding
		field string
	}{
		{"missing id", map[string]any{"text": "x"}, EncodingFloat, "id"},
		{"non-string id", map[string]any{"id": 7, "text": "x"}, EncodingFloat, "id"},
		{"missing text", map[string]any{"id": "a"}, EncodingFloat, "text"},
		{"numeric vector on embedded insert", map[string]any{"id": "a", "text": "x", "embedding": []float32{1}}, EncodingBinary, "embedding"},
		{"missing manual vector", map[string]any{"id": "a"}, EncodingManual, "embedding"},
		{"nested manual vector", map[string]any{"id": "a", "embedding": []any{[]any{1.0}}}, EncodingManual, "embedding"},
		{"string manual vector", map[string]any{"id": "a", "embedding": "text"}, EncodingManual, "embedding"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := db.insert(ctx, tc.raw, tc.enc)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	n, err := db.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInsert_VectorFieldText(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	_, err := db.Insert(ctx, map[string]any{"id": "a", "embedding": "embed this"})
	require.NoError(t, err)

	got, err := db.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "embed this", got["text"])
	assert.IsType(t, []float32{}, got["embedding"])
}

func TestInsert_DimensionGuard(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	_, err := db.InsertManualVectors(ctx, map[string]any{"id": "a", "embedding": []float32{1, 0, 0}})
	require.NoError(t, err)

	_, err = db.InsertManualVectors(ctx, map[string]any{"id": "b", "embedding": []float32{1, 0}})
	assert.ErrorIs(t, err, ErrValidation)
	var dm *DimensionMismatchError
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 3, dm.Expected)
	assert.Equal(t, 2, dm.Actual)

	_, err = db.InsertManualVectors(ctx, map[string]any{"id": "a", "embedding": []float32{1, 0}})
	assert.ErrorIs(t, err, ErrValidation)

	n, err := db.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ok, err := db.HasEmbedding(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := db.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, got["embedding"])
}

func TestInsert_ProviderError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("model unavailable")
	db := newTestDB(t, WithEmbedder(embed.Func{Dim: 3, Fn: func(context.Context, string) ([]float32, error) {
		return nil, boom
	}}))

	_, err := db.Insert(ctx, map[string]any{"id": "a", "text": "x"})
	assert.ErrorIs(t, err, ErrProvider)
	assert.ErrorIs(t, err, boom)

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "custom", pe.Provider)

	n, err := db.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInsert_ProviderWrongDimension(t *testing.T) {
	ctx := context.Background()
	// Dim 0 leaves the shape check to the store's established dimension.
	db := newTestDB(t, WithEmbedder(embed.Func{Fn: func(_ context.Context, text string) ([]float32, error) {
		if text == "short" {
			return []float32{1, 0}, nil
		}
		return []float32{1, 0, 0}, nil
	}}))

	_, err := db.Insert(ctx, map[string]any{"id": "a", "text": "long"})
	require.NoError(t, err)

	_, err = db.Insert(ctx, map[string]any{"id": "b", "text": "short"})
	assert.ErrorIs(t, err, ErrProvider)
	assert.ErrorIs(t, err, embed.ErrBadOutput)
	assert.NotErrorIs(t, err, ErrValidation)
}

func TestInsert_ConcurrentSameKey(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := db.InsertBinary(ctx, map[string]any{"id": "k", "text": fmt.Sprintf("version %d", i)})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := db.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	keys, err := db.GetAllKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, keys)
}
