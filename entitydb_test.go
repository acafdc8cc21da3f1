package entitydb

import (
	"context"
	"fmt"
	"slices"
	"testing"

	"github.com/hupe1980/entitydb/codec"
	"github.com/hupe1980/entitydb/embed"
	"github.com/hupe1980/entitydb/kv"
	"github.com/hupe1980/entitydb/quantization"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T, optFns ...Option) *DB {
	t.Helper()
	return openTestDB(t, Config{VectorField: "embedding"}, optFns...)
}

func openTestDB(t *testing.T, cfg Config, optFns ...Option) *DB {
	t.Helper()
	db, err := Open(context.Background(), cfg, optFns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// tableEmbedder embeds only the texts it knows.
func tableEmbedder(vectors map[string][]float32) embed.Func {
	dim := 0
	for _, v := range vectors {
		dim = len(v)
		break
	}
	return embed.Func{
		Dim: dim,
		Fn: func(_ context.Context, text string) ([]float32, error) {
			v, ok := vectors[text]
			if !ok {
				return nil, fmt.Errorf("no vector for %q", text)
			}
			return slices.Clone(v), nil
		},
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults", func(t *testing.T) {
		cfg := newTestDB(t).Config()
		assert.Equal(t, DefaultName, cfg.Name)
		assert.Equal(t, "id", cfg.IDField)
		assert.Equal(t, "text", cfg.TextField)
		assert.Equal(t, DefaultEmbeddingProvider, cfg.EmbeddingProvider)
	})

	t.Run("missing vector field", func(t *testing.T) {
		_, err := Open(ctx, Config{})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := Open(ctx, Config{VectorField: "v", EmbeddingProvider: "nope"})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("hash with dimension", func(t *testing.T) {
		db := openTestDB(t, Config{VectorField: "v", EmbeddingProvider: "hash/16"})
		_, err := db.Insert(ctx, map[string]any{"id": "a", "text": "hello"})
		require.NoError(t, err)

		d, err := db.Dimension(ctx, EncodingFloat)
		require.NoError(t, err)
		assert.Equal(t, 16, d)
	})

	t.Run("custom mux", func(t *testing.T) {
		mux := embed.NewMux()
		require.NoError(t, mux.Handle("fixed", tableEmbedder(map[string][]float32{"hi": {1, 0}})))

		db := openTestDB(t, Config{VectorField: "v", EmbeddingProvider: "fixed"}, WithMux(mux))
		_, err := db.Insert(ctx, map[string]any{"id": "a", "text": "hi"})
		require.NoError(t, err)

		got, err := db.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 0}, got["v"])
	})

	t.Run("openai needs registration", func(t *testing.T) {
		mux := embed.NewMux()
		cfg := Config{VectorField: "v", EmbeddingProvider: "openai/text-embedding-3-small"}

		_, err := Open(ctx, cfg, WithMux(mux))
		assert.ErrorIs(t, err, ErrValidation)

		require.NoError(t, embed.RegisterOpenAI(mux, "test-key"))
		db := openTestDB(t, cfg, WithMux(mux))
		assert.Equal(t, "openai/text-embedding-3-small", db.Config().EmbeddingProvider)
	})

	t.Run("custom fields", func(t *testing.T) {
		db := openTestDB(t, Config{VectorField: "vec", IDField: "pk", TextField: "body"})
		key, err := db.Insert(ctx, map[string]any{"pk": "x", "body": "some text"})
		require.NoError(t, err)
		assert.Equal(t, "x", key)

		got, err := db.Get(ctx, "x")
		require.NoError(t, err)
		assert.Equal(t, "x", got["pk"])
		assert.Equal(t, "some text", got["body"])
		assert.Contains(t, got, "vec")
	})
}

func TestOpen_ManualDimension(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory(nil)

	db := newTestDB(t, WithKV(store), WithManualDimension(3))
	d, err := db.Dimension(ctx, EncodingManual)
	require.NoError(t, err)
	assert.Equal(t, 3, d)

	_, err = db.InsertManualVectors(ctx, map[string]any{"id": "a", "embedding": []float32{1, 2}})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = Open(ctx, Config{VectorField: "embedding"}, WithKV(store), WithManualDimension(4))
	var dm *DimensionMismatchError
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 3, dm.Expected)
	assert.Equal(t, 4, dm.Actual)

	_, err = Open(ctx, Config{VectorField: "embedding"}, WithManualDimension(-1))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestOpen_ProviderDimensionChange(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory(nil)

	db := openTestDB(t, Config{VectorField: "embedding", EmbeddingProvider: "hash/8"}, WithKV(store))
	_, err := db.Insert(ctx, map[string]any{"id": "a", "text": "hello"})
	require.NoError(t, err)

	_, err = Open(ctx, Config{VectorField: "embedding", EmbeddingProvider: "hash/16"}, WithKV(store))
	assert.ErrorIs(t, err, ErrProvider)
	assert.ErrorIs(t, err, embed.ErrBadOutput)
}

func TestOpen_QuantizerPersisted(t *testing.T) {
	ctx := context.Background()
	cfg := Config{VectorField: "embedding"}

	t.Run("thresholds", func(t *testing.T) {
		store := kv.NewMemory(nil)
		openTestDB(t, cfg, WithKV(store), WithQuantizer(quantization.NewBinaryQuantizer(0).WithThreshold(0.5)))

		db := openTestDB(t, cfg, WithKV(store))
		assert.Equal(t, float32(0.5), db.quantizer.Threshold())

		openTestDB(t, cfg, WithKV(store), WithQuantizer(quantization.NewBinaryQuantizer(0).WithThreshold(0.5)))

		_, err := Open(ctx, cfg, WithKV(store), WithQuantizer(quantization.NewBinaryQuantizer(0)))
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("means", func(t *testing.T) {
		store := kv.NewMemory(nil)
		openTestDB(t, cfg, WithKV(store), WithQuantizer(quantization.NewBinaryQuantizer(0).WithMeans([]float32{0.1, 0.2})))

		db := openTestDB(t, cfg, WithKV(store))
		assert.Equal(t, []float32{0.1, 0.2}, db.quantizer.Means())
		assert.Equal(t, 2, db.quantizer.Dimension())

		_, err := Open(ctx, cfg, WithKV(store), WithQuantizer(quantization.NewBinaryQuantizer(0).WithMeans([]float32{0.1, 0.3})))
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("codes written with the default", func(t *testing.T) {
		store := kv.NewMemory(nil)
		db := openTestDB(t, cfg, WithKV(store))
		_, err := db.InsertBinary(ctx, map[string]any{"id": "a", "text": "hello"})
		require.NoError(t, err)

		_, err = Open(ctx, cfg, WithKV(store), WithQuantizer(quantization.NewBinaryQuantizer(0).WithThreshold(0.5)))
		assert.ErrorIs(t, err, ErrValidation)

		openTestDB(t, cfg, WithKV(store), WithQuantizer(quantization.NewBinaryQuantizer(0)))
	})

	t.Run("fresh store without codes", func(t *testing.T) {
		store := kv.NewMemory(nil)
		openTestDB(t, cfg, WithKV(store))
		openTestDB(t, cfg, WithKV(store), WithQuantizer(quantization.NewBinaryQuantizer(0).WithThreshold(0.5)))
	})
}

func TestSharedStoreNamespaces(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory(nil)

	a := openTestDB(t, Config{Name: "a", VectorField: "embedding"}, WithKV(store))
	b := openTestDB(t, Config{Name: "b", VectorField: "embedding"}, WithKV(store))

	_, err := a.InsertManualVectors(ctx, map[string]any{"id": "k", "embedding": []float32{1, 0}})
	require.NoError(t, err)
	_, err = b.InsertManualVectors(ctx, map[string]any{"id": "k", "embedding": []float32{1, 0, 0}})
	require.NoError(t, err, "dimensions are per database")

	n, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := a.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, got["embedding"])
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	_, err := db.Insert(ctx, map[string]any{"id": "a", "text": "x"})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = db.Query(ctx, "x")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = db.InsertBatch(ctx, nil)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = db.HasEmbedding(ctx, "a")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, db.Delete(ctx, "a"), ErrClosed)
}

func TestClose_StoreOwnership(t *testing.T) {
	ctx := context.Background()

	shared := kv.NewMemory(nil)
	db, err := Open(ctx, Config{VectorField: "embedding"}, WithKV(shared))
	require.NoError(t, err)
	require.NoError(t, db.Close())
	assert.NoError(t, shared.Set(ctx, kv.Key{"still", "open"}, []byte("x")))

	owned := kv.NewMemory(nil)
	db, err = Open(ctx, Config{VectorField: "embedding"}, WithKV(owned), WithCloseKV())
	require.NoError(t, err)
	require.NoError(t, db.Close())
	assert.ErrorIs(t, owned.Set(ctx, kv.Key{"closed"}, []byte("x")), kv.ErrClosed)
}

func TestPersistence_Badger(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	open := func() *DB {
		store, err := kv.NewBadger(kv.BadgerOptions{Dir: dir})
		require.NoError(t, err)
		db, err := Open(ctx, Config{VectorField: "embedding"}, WithKV(store), WithCloseKV(), WithCompression(codec.CompressionZSTD))
		require.NoError(t, err)
		return db
	}

	db := open()
	_, err := db.InsertBinary(ctx, map[string]any{"id": "a", "text": "persisted across restarts"})
	require.NoError(t, err)
	_, err = db.InsertManualVectors(ctx, map[string]any{"id": "m", "embedding": []float32{1, 2, 3}})
	require.NoError(t, err)
	want, err := db.Get(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db = open()
	defer db.Close()

	got, err := db.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	d, err := db.Dimension(ctx, EncodingManual)
	require.NoError(t, err)
	assert.Equal(t, 3, d)

	_, err = db.InsertManualVectors(ctx, map[string]any{"id": "n", "embedding": []float32{1}})
	assert.ErrorIs(t, err, ErrValidation)

	res, err := db.QueryBinary(ctx, "persisted across restarts")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, float32(0), res[0].Distance)
}
