// Package quantization provides binary quantization and Hamming distance.
//
// A BinaryQuantizer compresses a float32 vector to one bit per dimension
// (32x smaller) using a threshold, 0 by default:
//
//	bq := quantization.NewBinaryQuantizer(0)
//	code, err := bq.Quantize(vector)
//
// Two Hamming implementations are provided:
//
//   - Hamming: per-dimension reference loop.
//   - HammingSIMD: XOR+popcount over 64-bit words, unrolled when the CPU
//     has hardware popcount (POPCNT on x86-64, ASIMD on arm64).
//
// Both return identical results for every pair of codes. Set
// ENTITYDB_SIMD=generic to force the portable kernel.
package quantization
