// Package testutil provides testing utilities for entitydb.
//
// This package is intended for use in tests and benchmarks only.
//
//	rng := testutil.NewRNG(seed)
//	vecs := rng.NormalVectors(100, 64)
//	want := testutil.BruteForce(byKey, query, 5, distance.CosineDistance)
package testutil
