package embed_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/hupe1980/entitydb/distance"
	"github.com/hupe1980/entitydb/embed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbeddingResponse builds a minimal OpenAI-compatible embedding
// response. Items are returned in reverse order to exercise index mapping.
func fakeEmbeddingResponse(dim int, texts []string) []byte {
	type embItem struct {
		Object    string    `json:"object"`
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	}
	type resp struct {
		Object string    `json:"object"`
		Model  string    `json:"model"`
		Data   []embItem `json:"data"`
		Usage  struct {
			PromptTokens int `json:"prompt_tokens"`
			TotalTokens  int `json:"total_tokens"`
		} `json:"usage"`
	}

	r := resp{Object: "list", Model: "test-model"}
	for i := len(texts) - 1; i >= 0; i-- {
		vec := make([]float64, dim)
		for j := range vec {
			vec[j] = float64(i+1) * 0.01 * float64(j+1)
		}
		r.Data = append(r.Data, embItem{Object: "embedding", Index: i, Embedding: vec})
	}
	b, _ := json.Marshal(r)
	return b
}

type fakeServer struct {
	*httptest.Server
	requests atomic.Int32
}

func newFakeServer(t *testing.T, dim int) *fakeServer {
	t.Helper()
	fs := &fakeServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.requests.Add(1)
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Input any `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var texts []string
		switch v := req.Input.(type) {
		case string:
			texts = []string{v}
		case []any:
			for _, item := range v {
				texts = append(texts, fmt.Sprint(item))
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(fakeEmbeddingResponse(dim, texts))
	}))
	t.Cleanup(fs.Close)
	return fs
}

func TestOpenAI_Embed(t *testing.T) {
	const dim = 8
	srv := newFakeServer(t, dim)

	e := embed.NewOpenAI("test-key", embed.WithBaseURL(srv.URL), embed.WithDimension(dim))
	assert.Equal(t, dim, e.Dimension())
	assert.Equal(t, embed.ModelOpenAI3Small, e.Model())

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, dim)

	_, err = e.Embed(context.Background(), "")
	assert.ErrorIs(t, err, embed.ErrEmptyInput)
}

func TestOpenAI_EmbedBatch(t *testing.T) {
	const dim = 4
	srv := newFakeServer(t, dim)

	e := embed.NewOpenAI("test-key",
		embed.WithBaseURL(srv.URL),
		embed.WithDimension(dim),
		embed.WithMaxBatch(2),
	)

	texts := []string{"a", "b", "c", "d", "e"}
	vecs, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))
	assert.Equal(t, int32(3), srv.requests.Load())

	// first item of each request has index 0
	assert.InDelta(t, 0.01, vecs[0][0], 1e-6)
	assert.InDelta(t, 0.02, vecs[1][0], 1e-6)
	assert.InDelta(t, 0.01, vecs[2][0], 1e-6)

	_, err = e.EmbedBatch(context.Background(), nil)
	assert.ErrorIs(t, err, embed.ErrEmptyInput)
}

func TestOpenAI_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	e := embed.NewOpenAI("bad", embed.WithBaseURL(srv.URL), embed.WithDimension(4))
	_, err := e.Embed(context.Background(), "x")
	assert.Error(t, err)
}

func TestHash(t *testing.T) {
	ctx := context.Background()
	h := embed.NewHash(64)
	assert.Equal(t, 64, h.Dimension())
	assert.Equal(t, embed.DefaultHashDimension, embed.NewHash(0).Dimension())

	a, err := h.Embed(ctx, "The quick brown fox")
	require.NoError(t, err)
	b, err := embed.NewHash(64).Embed(ctx, "the QUICK brown fox!")
	require.NoError(t, err)
	assert.Equal(t, a, b, "deterministic and case-insensitive")
	assert.InDelta(t, 1, distance.Norm(a), 1e-5)

	near, err := h.Embed(ctx, "quick brown foxes")
	require.NoError(t, err)
	far, err := h.Embed(ctx, "interest rates and bond yields")
	require.NoError(t, err)
	assert.Less(t, distance.CosineDistance(a, near), distance.CosineDistance(a, far))

	punct, err := h.Embed(ctx, "?!")
	require.NoError(t, err)
	assert.InDelta(t, 1, distance.Norm(punct), 1e-5)

	_, err = h.Embed(ctx, "   ")
	assert.ErrorIs(t, err, embed.ErrEmptyInput)

	vecs, err := h.EmbedBatch(ctx, []string{"one", "two"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
}

func TestFunc(t *testing.T) {
	f := embed.Func{
		Dim: 2,
		Fn: func(_ context.Context, text string) ([]float32, error) {
			return []float32{float32(len(text)), 1}, nil
		},
	}
	vecs, err := f.EmbedBatch(context.Background(), []string{"a", "bbb"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 1}, {3, 1}}, vecs)
	assert.Equal(t, 2, f.Dimension())
}

func TestMux(t *testing.T) {
	srv := newFakeServer(t, 4)

	mux := embed.NewMux()
	h := embed.NewHash(16)
	require.NoError(t, mux.Handle("local", h))
	assert.Error(t, mux.Handle("local", h))
	assert.Error(t, mux.Handle("nil", nil))

	got, err := mux.Get("local")
	require.NoError(t, err)
	assert.Same(t, h, got)

	_, err = mux.Get("nonexistent")
	assert.Error(t, err)

	require.NoError(t, embed.RegisterOpenAI(mux, "key", embed.WithBaseURL(srv.URL), embed.WithDimension(4)))
	e1, err := mux.Get("openai/text-embedding-3-large")
	require.NoError(t, err)
	assert.Equal(t, embed.ModelOpenAI3Large, e1.(*embed.OpenAI).Model())
	e2, err := mux.Get("openai/text-embedding-3-large")
	require.NoError(t, err)
	assert.Same(t, e1, e2, "factory results are cached")

	_, err = mux.Get("openai/")
	assert.Error(t, err)

	vec, err := mux.Embed(context.Background(), "openai/text-embedding-3-large", "hi")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
	assert.Contains(t, mux.Names(), "local")
}

func TestDefaultMux(t *testing.T) {
	e, err := embed.Get("hash")
	require.NoError(t, err)
	assert.Equal(t, embed.DefaultHashDimension, e.Dimension())

	e, err = embed.Get("hash/32")
	require.NoError(t, err)
	assert.Equal(t, 32, e.Dimension())

	_, err = embed.Get("hash/abc")
	assert.Error(t, err)
}

func TestProvider(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("model offline")

	var calls atomic.Int32
	counting := embed.Func{Dim: 3, Fn: func(_ context.Context, text string) ([]float32, error) {
		calls.Add(1)
		switch text {
		case "fail":
			return nil, boom
		case "short":
			return []float32{1}, nil
		case "nan":
			return []float32{1, float32(nanValue()), 0}, nil
		}
		return []float32{1, 2, 3}, nil
	}}
	p := embed.NewProvider("test", counting)
	assert.Equal(t, "test", p.Name())
	assert.Equal(t, 3, p.Dimension())

	t.Run("no caching", func(t *testing.T) {
		calls.Store(0)
		for range 3 {
			_, err := p.Embed(ctx, "same")
			require.NoError(t, err)
		}
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("failure wrapped once", func(t *testing.T) {
		_, err := p.Embed(ctx, "fail")
		assert.ErrorIs(t, err, embed.ErrProvider)
		assert.ErrorIs(t, err, boom)
		var pe *embed.ProviderError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "test", pe.Provider)
		assert.Equal(t, boom, pe.Err)

		outer := embed.NewProvider("outer", p)
		_, err = outer.Embed(ctx, "fail")
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "test", pe.Provider)
	})

	t.Run("bad output", func(t *testing.T) {
		for _, text := range []string{"short", "nan"} {
			_, err := p.Embed(ctx, text)
			assert.ErrorIs(t, err, embed.ErrProvider)
			assert.ErrorIs(t, err, embed.ErrBadOutput)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := p.Embed(ctx, "")
		assert.ErrorIs(t, err, embed.ErrEmptyInput)
		_, err = p.EmbedBatch(ctx, nil)
		assert.ErrorIs(t, err, embed.ErrEmptyInput)
	})

	t.Run("batch", func(t *testing.T) {
		vecs, err := p.EmbedBatch(ctx, []string{"a", "b"})
		require.NoError(t, err)
		assert.Len(t, vecs, 2)

		_, err = p.EmbedBatch(ctx, []string{"a", "short"})
		assert.ErrorIs(t, err, embed.ErrBadOutput)
	})

	t.Run("batch length mismatch", func(t *testing.T) {
		bp := embed.NewProvider("short-batch", shortBatch{})
		_, err := bp.EmbedBatch(ctx, []string{"a", "b"})
		assert.ErrorIs(t, err, embed.ErrBadOutput)
	})
}

type shortBatch struct{}

func (shortBatch) Embed(context.Context, string) ([]float32, error) { return []float32{1}, nil }
func (shortBatch) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return [][]float32{{1}}, nil
}
func (shortBatch) Dimension() int { return 1 }

func nanValue() float64 {
	zero := 0.0
	return zero / zero
}

func TestProvider_Canceled(t *testing.T) {
	p := embed.NewProvider("limited", embed.NewHash(8), embed.WithRateLimit(0.001, 1), embed.WithMaxConcurrent(1))
	require.NotNil(t, p.Limiter())

	_, err := p.Embed(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Embed(ctx, "second")
	assert.ErrorIs(t, err, embed.ErrProvider)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, p.Limiter().InFlight())
}

func TestLimiter(t *testing.T) {
	assert.Nil(t, embed.NewLimiter(embed.LimiterConfig{}))

	var nilLimiter *embed.Limiter
	require.NoError(t, nilLimiter.Acquire(context.Background()))
	nilLimiter.Release()

	l := embed.NewLimiter(embed.LimiterConfig{MaxConcurrent: 2})
	require.NoError(t, l.Acquire(context.Background()))
	require.NoError(t, l.Acquire(context.Background()))
	assert.Equal(t, int64(2), l.InFlight())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, l.Acquire(ctx))

	l.Release()
	l.Release()
	assert.Zero(t, l.InFlight())
}
