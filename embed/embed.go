// Package embed turns text into dense float32 vectors.
//
// # Implementations
//
//   - [OpenAI]: any OpenAI-compatible embeddings endpoint
//   - [Hash]: local, deterministic feature hashing; no network
//   - [Func]: adapts a plain function
//
// [Mux] resolves provider identifiers such as "hash" or
// "openai/text-embedding-3-small" to an Embedder. [Provider] wraps an
// Embedder with output validation, error wrapping, rate limiting and a
// concurrency cap.
//
// # Quick Start
//
//	e := embed.NewOpenAI("sk-xxx", embed.WithModel(embed.ModelOpenAI3Small))
//	vec, err := e.Embed(ctx, "hello world")
//
//	p := embed.NewProvider("openai", e, embed.WithRateLimit(50, 10))
//	vecs, err := p.EmbedBatch(ctx, []string{"hello", "world"})
package embed

import (
	"context"
	"errors"
)

// Embedder converts text into dense float32 vectors.
type Embedder interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns embedding vectors for multiple texts, in order.
	// Implementations may split large batches into smaller calls.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the dimensionality of the output vectors, or 0 when
	// it is only known after the first call.
	Dimension() int
}

// Common errors.
var (
	// ErrEmptyInput is returned when the input text is empty.
	ErrEmptyInput = errors.New("embed: empty input")

	// ErrBadOutput is returned when an embedder produced a vector of the
	// wrong shape: empty, non-finite or of unexpected length.
	ErrBadOutput = errors.New("embed: malformed embedding")

	// ErrProvider is matched by every *ProviderError.
	ErrProvider = errors.New("embedding provider error")
)
