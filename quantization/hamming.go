package quantization

import "math/bits"

// Hamming returns the number of differing bits between a and b, comparing
// one dimension at a time. It is the reference implementation; HammingSIMD
// must agree with it on every input.
//
// Codes of different dimension are maximally distant: the result is the
// larger of the two dimensions.
func Hamming(a, b Code) int {
	if mismatch(a, b) {
		return max(a.Dim, b.Dim)
	}

	dist := 0
	for i := 0; i < a.Dim; i++ {
		if a.Bit(i) != b.Bit(i) {
			dist++
		}
	}
	return dist
}

// HammingSIMD returns the same value as Hamming using word-parallel
// XOR+popcount over 64-bit lanes with the kernel selected at startup.
func HammingSIMD(a, b Code) int {
	if mismatch(a, b) {
		return max(a.Dim, b.Dim)
	}
	return hammingKernel(a.Words, b.Words)
}

// NormalizedHamming returns the Hamming distance divided by the dimension.
func NormalizedHamming(dist, dim int) float32 {
	if dim <= 0 {
		return 1
	}
	return float32(dist) / float32(dim)
}

func mismatch(a, b Code) bool {
	return a.Dim != b.Dim || !a.Valid() || !b.Valid()
}

func hammingGeneric(a, b []uint64) int {
	dist := 0
	for i := range a {
		dist += bits.OnesCount64(a[i] ^ b[i])
	}
	return dist
}

// hammingUnrolled4 processes four words per iteration with independent
// accumulators so the popcounts can issue in parallel.
func hammingUnrolled4(a, b []uint64) int {
	n := len(a)
	b = b[:n]

	var d0, d1, d2, d3 int
	i := 0
	for ; i+4 <= n; i += 4 {
		d0 += bits.OnesCount64(a[i] ^ b[i])
		d1 += bits.OnesCount64(a[i+1] ^ b[i+1])
		d2 += bits.OnesCount64(a[i+2] ^ b[i+2])
		d3 += bits.OnesCount64(a[i+3] ^ b[i+3])
	}
	for ; i < n; i++ {
		d0 += bits.OnesCount64(a[i] ^ b[i])
	}
	return d0 + d1 + d2 + d3
}
