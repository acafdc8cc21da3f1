// Package distance provides the float32 distance functions used for
// exact nearest-neighbour scans.
//
// # Supported Metrics
//
//   - MetricCosine: 1 - cosine similarity, in [0, 2]
//   - MetricHamming: differing bits between binary codes (see package quantization)
//
// # Usage
//
//	d := distance.CosineDistance(a, b)
//	sim := distance.Cosine(a, b)
//
// CosineDistance returns the maximum distance (2) when either vector has
// zero norm or the lengths differ, so such records rank last instead of
// producing NaN.
package distance
