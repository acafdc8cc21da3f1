package minio

import (
	"context"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/hupe1980/entitydb/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dialTest connects to the server named by MINIO_ENDPOINT.
func dialTest(t *testing.T) *Store {
	t.Helper()

	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("Skipping MinIO integration test: MINIO_ENDPOINT not set")
	}
	access := os.Getenv("MINIO_ACCESS_KEY")
	if access == "" {
		access = "minioadmin"
	}
	secret := os.Getenv("MINIO_SECRET_KEY")
	if secret == "" {
		secret = "minioadmin"
	}

	store, err := Dial(context.Background(), Config{
		Endpoint:     endpoint,
		AccessKey:    access,
		SecretKey:    secret,
		Bucket:       "test-entitydb",
		Prefix:       fmt.Sprintf("run-%d/", time.Now().UnixNano()),
		CreateBucket: true,
	})
	if err != nil {
		t.Skipf("MinIO not available: %v", err)
	}
	return store
}

func TestMinioStore_Integration(t *testing.T) {
	store := dialTest(t)
	ctx := context.Background()

	data := []byte("hello minio world")
	require.NoError(t, store.Put(ctx, "test.txt", data))

	blob, err := store.Open(ctx, "test.txt")
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, len(data))
	n, err := blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, data, buf)

	rc, err := blob.ReadRange(ctx, 6, 5)
	require.NoError(t, err)
	part, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "minio", string(part))
	require.NoError(t, rc.Close())
	require.NoError(t, blob.Close())

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"test.txt"}, names)

	require.NoError(t, store.Delete(ctx, "test.txt"))
	require.NoError(t, store.Delete(ctx, "test.txt"))
	_, err = store.Open(ctx, "test.txt")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestMinioStore_Streaming(t *testing.T) {
	store := dialTest(t)
	ctx := context.Background()

	w, err := store.Create(ctx, "stream.bin")
	require.NoError(t, err)
	for i := range 100 {
		_, err := fmt.Fprintf(w, "line %03d\n", i)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	rc, err := blobstore.ReadAll(ctx, store, "stream.bin")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Len(t, got, 900)

	w, err = store.Create(ctx, "aborted.bin")
	require.NoError(t, err)
	_, _ = w.Write([]byte("partial"))
	require.NoError(t, w.Abort())

	_, err = store.Open(ctx, "aborted.bin")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
