package entitydb

import (
	"context"
	"errors"
	"slices"

	"github.com/hupe1980/entitydb/record"
	"github.com/hupe1980/entitydb/storage"
)

// HasEmbedding reports whether key exists and holds a non-empty vector.
func (db *DB) HasEmbedding(ctx context.Context, key string) (bool, error) {
	if err := db.checkOpen(); err != nil {
		return false, err
	}
	return db.hasEmbedding(ctx, key)
}

func (db *DB) hasEmbedding(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	r, err := db.adapter.Get(ctx, key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return false, nil
	case err != nil:
		var de *storage.DecodeError
		if errors.As(err, &de) {
			db.logger.LogSkipped(ctx, key, err)
			return false, nil
		}
		return false, translateError("get", key, err)
	}
	return !r.Vector.Empty(), nil
}

// HasEmbeddings reports HasEmbedding for every key. Missing keys map to
// false; only a storage failure fails the call.
func (db *DB) HasEmbeddings(ctx context.Context, keys []string) (map[string]bool, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}

	found := make([]bool, len(keys))
	g := db.group()
	for i, k := range keys {
		g.Go(func() error {
			ok, err := db.hasEmbedding(ctx, k)
			found[i] = ok
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]bool, len(keys))
	for i, k := range keys {
		out[k] = out[k] || found[i]
	}
	return out, nil
}

// GetAllKeys returns the sorted keys of every record holding a vector.
// Records stored without an embedding are not listed.
func (db *DB) GetAllKeys(ctx context.Context) ([]string, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}

	// Binary records are indexed in the float group as well.
	keys := []string{}
	for _, g := range []record.Group{record.GroupFloat, record.GroupManual} {
		for k, err := range db.adapter.Keys(ctx, &g) {
			if err != nil {
				return nil, translateError("list", "", err)
			}
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return slices.Compact(keys), nil
}

// Get returns the stored record under key in its raw form, including the
// vector field when the record has one.
func (db *DB) Get(ctx context.Context, key string) (map[string]any, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	r, err := db.adapter.Get(ctx, key)
	if err != nil {
		return nil, translateError("get", key, err)
	}
	return db.codec.Decode(r, true), nil
}

// Count returns the number of stored records, with or without a vector.
func (db *DB) Count(ctx context.Context) (int, error) {
	if err := db.checkOpen(); err != nil {
		return 0, err
	}
	n, err := db.adapter.Count(ctx)
	return n, translateError("count", "", err)
}
