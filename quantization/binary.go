package quantization

import (
	"errors"
	"fmt"
)

// ErrEmptyVector is returned when quantizing a zero-length vector.
var ErrEmptyVector = errors.New("quantization: empty vector")

// BinaryQuantizer maps float32 vectors to one bit per dimension.
//
// A component becomes 1 when it is >= its threshold, otherwise 0. The
// threshold is 0 by default (sign quantization); WithThreshold sets a
// global value and Train or WithMeans set one threshold per dimension.
//
// A BinaryQuantizer is immutable after configuration and safe for
// concurrent use.
type BinaryQuantizer struct {
	dimension  int
	threshold  float32
	thresholds []float32
}

// NewBinaryQuantizer creates a new binary quantizer for the given dimension.
// A dimension of 0 accepts vectors of any length.
func NewBinaryQuantizer(dimension int) *BinaryQuantizer {
	return &BinaryQuantizer{dimension: dimension}
}

// WithThreshold sets a global threshold and clears per-dimension means.
func (bq *BinaryQuantizer) WithThreshold(threshold float32) *BinaryQuantizer {
	bq.threshold = threshold
	bq.thresholds = nil
	return bq
}

// WithMeans sets one threshold per dimension.
func (bq *BinaryQuantizer) WithMeans(means []float32) *BinaryQuantizer {
	bq.thresholds = append([]float32(nil), means...)
	bq.dimension = len(means)
	return bq
}

// Train computes the per-dimension mean of vectors and uses it as threshold.
func (bq *BinaryQuantizer) Train(vectors [][]float32) error {
	if len(vectors) == 0 {
		return errors.New("no vectors provided for training")
	}

	dim := len(vectors[0])
	if dim == 0 {
		return ErrEmptyVector
	}
	if bq.dimension > 0 && dim != bq.dimension {
		return fmt.Errorf("quantization: training dimension %d, want %d", dim, bq.dimension)
	}

	sums := make([]float64, dim)
	for i, vec := range vectors {
		if len(vec) != dim {
			return fmt.Errorf("quantization: training vector %d has dimension %d, want %d", i, len(vec), dim)
		}
		for j, val := range vec {
			sums[j] += float64(val)
		}
	}

	means := make([]float32, dim)
	for j := range sums {
		means[j] = float32(sums[j] / float64(len(vectors)))
	}
	bq.WithMeans(means)
	return nil
}

// Dimension returns the expected vector dimension (0 if unconstrained).
func (bq *BinaryQuantizer) Dimension() int { return bq.dimension }

// Threshold returns the global threshold.
func (bq *BinaryQuantizer) Threshold() float32 { return bq.threshold }

// Means returns a copy of the per-dimension thresholds, or nil.
func (bq *BinaryQuantizer) Means() []float32 {
	if bq.thresholds == nil {
		return nil
	}
	return append([]float32(nil), bq.thresholds...)
}

// Quantize encodes v into a Code. The result depends only on v and the
// quantizer configuration.
func (bq *BinaryQuantizer) Quantize(v []float32) (Code, error) {
	if len(v) == 0 {
		return Code{}, ErrEmptyVector
	}
	if bq.dimension > 0 && len(v) != bq.dimension {
		return Code{}, fmt.Errorf("quantization: vector dimension %d, want %d", len(v), bq.dimension)
	}

	code := NewCode(len(v))
	for i, val := range v {
		t := bq.threshold
		if bq.thresholds != nil {
			t = bq.thresholds[i]
		}
		if val >= t {
			code.Words[i/64] |= 1 << (i % 64)
		}
	}
	return code, nil
}
