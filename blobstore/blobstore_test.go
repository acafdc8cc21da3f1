package blobstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]BlobStore {
	return map[string]BlobStore{
		"memory": NewMemoryStore(),
		"local":  NewLocalStore(t.TempDir()),
	}
}

func TestBlobStore_Lifecycle(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			data := []byte("hello world, this is a test blob")

			w, err := store.Create(ctx, "snapshots/db-001.bin")
			require.NoError(t, err)
			n, err := w.Write(data)
			require.NoError(t, err)
			require.Equal(t, len(data), n)

			// not visible before Close
			_, err = store.Open(ctx, "snapshots/db-001.bin")
			assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

			require.NoError(t, w.Close())

			blob, err := store.Open(ctx, "snapshots/db-001.bin")
			require.NoError(t, err)
			require.Equal(t, int64(len(data)), blob.Size())

			buf := make([]byte, 5)
			n, err = blob.ReadAt(ctx, buf, 6)
			require.NoError(t, err)
			require.Equal(t, 5, n)
			assert.Equal(t, "world", string(buf))

			rc, err := blob.ReadRange(ctx, 13, 4)
			require.NoError(t, err)
			got, err := io.ReadAll(rc)
			require.NoError(t, err)
			require.NoError(t, rc.Close())
			assert.Equal(t, "this", string(got))

			rc, err = blob.ReadRange(ctx, 20, 1000)
			require.NoError(t, err)
			got, err = io.ReadAll(rc)
			require.NoError(t, err)
			assert.Equal(t, string(data[20:]), string(got))
			require.NoError(t, blob.Close())

			require.NoError(t, store.Put(ctx, "snapshots/db-002.bin", []byte("x")))
			require.NoError(t, store.Put(ctx, "other.bin", []byte("y")))

			names, err := store.List(ctx, "snapshots/")
			require.NoError(t, err)
			assert.Equal(t, []string{"snapshots/db-001.bin", "snapshots/db-002.bin"}, names)

			all, err := store.List(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 3)

			rc, err = ReadAll(ctx, store, "snapshots/db-001.bin")
			require.NoError(t, err)
			got, err = io.ReadAll(rc)
			require.NoError(t, err)
			require.NoError(t, rc.Close())
			assert.Equal(t, data, got)

			require.NoError(t, store.Delete(ctx, "snapshots/db-001.bin"))
			require.NoError(t, store.Delete(ctx, "snapshots/db-001.bin"))
			_, err = store.Open(ctx, "snapshots/db-001.bin")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestBlobStore_Abort(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			w, err := store.Create(ctx, "aborted")
			require.NoError(t, err)
			_, err = w.Write([]byte("partial"))
			require.NoError(t, err)
			require.NoError(t, w.Abort())
			require.NoError(t, w.Close())

			_, err = store.Open(ctx, "aborted")
			assert.ErrorIs(t, err, ErrNotFound)

			names, err := store.List(ctx, "")
			require.NoError(t, err)
			assert.Empty(t, names)
		})
	}
}

func TestMemoryStore_PutCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	data := []byte("abc")
	require.NoError(t, s.Put(ctx, "k", data))
	data[0] = 'z'

	b, err := s.Open(ctx, "k")
	require.NoError(t, err)
	buf := make([]byte, 3)
	_, err = b.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(buf))
}

func TestLocalStore_Paths(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := NewLocalStore(root)

	_, err := s.Create(ctx, "../escape")
	assert.Error(t, err)

	require.NoError(t, s.Put(ctx, "a/b/c.bin", []byte("deep")))
	_, err = os.Stat(filepath.Join(root, "a", "b", "c.bin"))
	require.NoError(t, err)

	names, err := NewLocalStore(filepath.Join(root, "missing")).List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)
}
