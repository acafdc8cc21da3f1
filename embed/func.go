package embed

import "context"

// Func adapts a function to [Embedder]. EmbedBatch calls Fn per text.
type Func struct {
	Fn  func(ctx context.Context, text string) ([]float32, error)
	Dim int
}

var _ Embedder = Func{}

// Embed calls Fn.
func (f Func) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	return f.Fn(ctx, text)
}

// EmbedBatch calls Fn for every text, stopping at the first error.
func (f Func) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Dimension returns Dim.
func (f Func) Dimension() int { return f.Dim }
