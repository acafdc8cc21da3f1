package embed

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ProviderError wraps a failure of the embedding provider. The cause is
// preserved for errors.Is / errors.As.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("embedding provider: %v", e.Err)
	}
	return fmt.Sprintf("embedding provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is reports whether target is ErrProvider.
func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithLimiter throttles calls to the wrapped embedder.
func WithLimiter(l *Limiter) ProviderOption {
	return func(p *Provider) { p.limiter = l }
}

// WithRateLimit caps the wrapped embedder at rps requests per second.
func WithRateLimit(rps float64, burst int) ProviderOption {
	return func(p *Provider) {
		cfg := p.limits
		cfg.RequestsPerSecond, cfg.Burst = rps, burst
		p.limits = cfg
	}
}

// WithMaxConcurrent caps in-flight requests to the wrapped embedder.
func WithMaxConcurrent(n int64) ProviderOption {
	return func(p *Provider) { p.limits.MaxConcurrent = n }
}

// Provider wraps an Embedder with the guarantees the database relies on:
// every call reaches the embedder (no caching), every failure is a
// *ProviderError, and every returned vector is non-empty, finite and of
// the embedder's declared dimension.
type Provider struct {
	name    string
	e       Embedder
	limiter *Limiter
	limits  LimiterConfig
}

// NewProvider wraps e. name identifies the provider in errors and logs.
func NewProvider(name string, e Embedder, opts ...ProviderOption) *Provider {
	p := &Provider{name: name, e: e}
	for _, o := range opts {
		o(p)
	}
	if p.limiter == nil {
		p.limiter = NewLimiter(p.limits)
	}
	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return p.name }

// Dimension returns the wrapped embedder's dimension, or 0 if unknown.
func (p *Provider) Dimension() int { return p.e.Dimension() }

// Limiter returns the active limiter, possibly nil.
func (p *Provider) Limiter() *Limiter { return p.limiter }

func (p *Provider) wrap(err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Provider: p.name, Err: err}
}

// Embed returns the embedding of text.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, p.wrap(ErrEmptyInput)
	}
	if err := p.limiter.Acquire(ctx); err != nil {
		return nil, p.wrap(err)
	}
	defer p.limiter.Release()

	vec, err := p.e.Embed(ctx, text)
	if err != nil {
		return nil, p.wrap(err)
	}
	if err := p.check(vec); err != nil {
		return nil, p.wrap(err)
	}
	return vec, nil
}

// EmbedBatch embeds texts in one call to the wrapped embedder.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, p.wrap(ErrEmptyInput)
	}
	if err := p.limiter.Acquire(ctx); err != nil {
		return nil, p.wrap(err)
	}
	defer p.limiter.Release()

	vecs, err := p.e.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, p.wrap(err)
	}
	if len(vecs) != len(texts) {
		return nil, p.wrap(fmt.Errorf("%w: %d vectors for %d texts", ErrBadOutput, len(vecs), len(texts)))
	}
	for i, v := range vecs {
		if err := p.check(v); err != nil {
			return nil, p.wrap(fmt.Errorf("item %d: %w", i, err))
		}
	}
	return vecs, nil
}

func (p *Provider) check(vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("%w: empty vector", ErrBadOutput)
	}
	if d := p.e.Dimension(); d > 0 && len(vec) != d {
		return fmt.Errorf("%w: got %d dimensions, want %d", ErrBadOutput, len(vec), d)
	}
	for i, f := range vec {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return fmt.Errorf("%w: element %d is not finite", ErrBadOutput, i)
		}
	}
	return nil
}
