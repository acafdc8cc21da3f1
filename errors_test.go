package entitydb

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hupe1980/entitydb/embed"
	"github.com/hupe1980/entitydb/kv"
	"github.com/hupe1980/entitydb/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateError(t *testing.T) {
	assert.NoError(t, translateError("get", "k", nil))

	t.Run("passthrough", func(t *testing.T) {
		for _, err := range []error{
			invalid("id", "bad"),
			&ProviderError{Provider: "p", Err: errors.New("x")},
			&NotFoundError{Key: "k"},
			context.Canceled,
			fmt.Errorf("wrapped: %w", context.DeadlineExceeded),
			ErrClosed,
		} {
			assert.Same(t, err, translateError("op", "k", err))
		}
	})

	t.Run("not found", func(t *testing.T) {
		cause := fmt.Errorf("%w: %q", storage.ErrNotFound, "k")
		err := translateError("get", "k", cause)

		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "k", nf.Key)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.NotErrorIs(t, err, ErrStorage)
	})

	t.Run("closed store", func(t *testing.T) {
		err := translateError("put", "k", kv.ErrClosed)
		assert.ErrorIs(t, err, ErrClosed)
		assert.ErrorIs(t, err, kv.ErrClosed)
	})

	t.Run("decode", func(t *testing.T) {
		err := translateError("query", "", &storage.DecodeError{Key: "bad", Err: errors.New("eof")})

		var se *StorageError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "query", se.Op)
		assert.Equal(t, "bad", se.Key)
		assert.ErrorIs(t, err, ErrStorage)
		assert.Contains(t, err.Error(), `storage error: query "bad"`)
	})

	t.Run("other", func(t *testing.T) {
		cause := errors.New("disk full")
		err := translateError("put", "", cause)
		assert.ErrorIs(t, err, ErrStorage)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "storage error: put: disk full", err.Error())
	})
}

func TestErrorTaxonomy(t *testing.T) {
	ve := invalid("id", "is required")
	assert.ErrorIs(t, ve, ErrValidation)
	assert.NotErrorIs(t, ve, ErrProvider)

	pe := &ProviderError{Provider: "openai", Err: embed.ErrBadOutput}
	assert.ErrorIs(t, pe, ErrProvider)
	assert.ErrorIs(t, pe, embed.ErrBadOutput)
	assert.NotErrorIs(t, pe, ErrValidation)

	nf := &NotFoundError{Key: "k"}
	assert.Equal(t, `not found: "k"`, nf.Error())
	assert.Nil(t, errors.Unwrap(nf))
}
