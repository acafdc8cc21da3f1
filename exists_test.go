package entitydb

import (
	"context"
	"testing"

	"github.com/hupe1980/entitydb/metadata"
	"github.com/hupe1980/entitydb/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasEmbedding(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	_, err := db.Insert(ctx, map[string]any{"id": "float", "text": "x"})
	require.NoError(t, err)
	_, err = db.InsertBinary(ctx, map[string]any{"id": "binary", "text": "y"})
	require.NoError(t, err)
	_, err = db.InsertManualVectors(ctx, map[string]any{"id": "manual", "embedding": []float32{1}})
	require.NoError(t, err)
	require.NoError(t, db.adapter.Put(ctx, record.Record{Key: "plain", Attributes: metadata.Document{}}))

	for key, want := range map[string]bool{
		"float":   true,
		"binary":  true,
		"manual":  true,
		"plain":   false,
		"missing": false,
		"":        false,
	} {
		ok, err := db.HasEmbedding(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, want, ok, key)
	}

	got, err := db.HasEmbeddings(ctx, []string{"float", "missing", "plain", "manual", "float"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{
		"float":   true,
		"missing": false,
		"plain":   false,
		"manual":  true,
	}, got)

	empty, err := db.HasEmbeddings(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGetAllKeys(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	keys, err := db.GetAllKeys(ctx)
	require.NoError(t, err)
	assert.NotNil(t, keys)
	assert.Empty(t, keys)

	_, err = db.InsertBinary(ctx, map[string]any{"id": "b", "text": "x"})
	require.NoError(t, err)
	_, err = db.Insert(ctx, map[string]any{"id": "c", "text": "x"})
	require.NoError(t, err)
	_, err = db.InsertManualVectors(ctx, map[string]any{"id": "a", "embedding": []float32{1}})
	require.NoError(t, err)
	_, err = db.InsertManualVectors(ctx, map[string]any{"id": "key with/odd:chars", "embedding": []float32{2}})
	require.NoError(t, err)
	require.NoError(t, db.adapter.Put(ctx, record.Record{Key: "plain", Attributes: metadata.Document{}}))

	keys, err = db.GetAllKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "key with/odd:chars"}, keys)

	n, err := db.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	_, err := db.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.Key)

	require.NoError(t, db.adapter.Put(ctx, record.Record{
		Key:        "plain",
		Attributes: metadata.Document{"note": metadata.String("no vector")},
	}))
	got, err := db.Get(ctx, "plain")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "plain", "note": "no vector"}, got)
}
