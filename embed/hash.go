package embed

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/hupe1980/entitydb/distance"
)

// DefaultHashDimension matches the output size of small sentence-embedding
// models such as all-MiniLM-L6-v2.
const DefaultHashDimension = 384

// Hash is a deterministic, local [Embedder] based on signed feature
// hashing of lower-cased word tokens and their character trigrams.
//
// Texts sharing words or word fragments get similar vectors, which is
// enough for tests, demos and offline use. Vectors are L2-normalized. The
// same text always yields the same vector across processes.
type Hash struct {
	dim int
}

var _ Embedder = (*Hash)(nil)

// NewHash returns a Hash embedder producing dim-dimensional vectors.
// dim <= 0 selects DefaultHashDimension.
func NewHash(dim int) *Hash {
	if dim <= 0 {
		dim = DefaultHashDimension
	}
	return &Hash{dim: dim}
}

// Embed returns the hashed embedding of text.
func (h *Hash) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	vec := make([]float32, h.dim)
	for _, tok := range tokenize(text) {
		h.add(vec, "w:"+tok, 1)
		r := []rune("^" + tok + "$")
		for i := 0; i+3 <= len(r); i++ {
			h.add(vec, "t:"+string(r[i:i+3]), 0.5)
		}
	}
	if !distance.NormalizeL2InPlace(vec) {
		// punctuation only: fall back to hashing the raw text
		h.add(vec, "raw:"+text, 1)
		distance.NormalizeL2InPlace(vec)
	}
	return vec, nil
}

// EmbedBatch embeds each text in turn.
func (h *Hash) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := h.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Dimension returns the output dimensionality.
func (h *Hash) Dimension() int { return h.dim }

func (h *Hash) add(vec []float32, feature string, weight float32) {
	f := fnv.New64a()
	_, _ = f.Write([]byte(feature))
	sum := f.Sum64()
	idx := sum % uint64(len(vec))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
