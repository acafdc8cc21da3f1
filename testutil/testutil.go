package testutil

import (
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"
)

// Neighbor is a ranked key with its distance.
type Neighbor struct {
	Key      string
	Distance float32
}

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float32 returns, as a float32, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// UniformVectors generates num vectors with components in [0, 1).
func (r *RNG) UniformVectors(num, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([][]float32, num)
	for i := range out {
		v := make([]float32, dimensions)
		for j := range v {
			v[j] = r.rand.Float32()
		}
		out[i] = v
	}
	return out
}

// NormalVectors generates num vectors with standard normal components.
// Roughly half the components are negative, which makes them useful for
// sign quantization tests.
func (r *RNG) NormalVectors(num, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([][]float32, num)
	for i := range out {
		v := make([]float32, dimensions)
		for j := range v {
			v[j] = float32(r.rand.NormFloat64())
		}
		out[i] = v
	}
	return out
}

// UnitVectors generates num L2-normalized normal vectors.
func (r *RNG) UnitVectors(num, dimensions int) [][]float32 {
	out := r.NormalVectors(num, dimensions)
	for _, v := range out {
		Normalize(v)
	}
	return out
}

// Words returns n pseudo-random lower-case words joined by spaces.
func (r *RNG) Words(n int) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	const letters = "abcdefghijklmnopqrstuvwxyz"
	words := make([]string, n)
	for i := range words {
		l := 3 + r.rand.Intn(6)
		var sb strings.Builder
		for j := 0; j < l; j++ {
			sb.WriteByte(letters[r.rand.Intn(len(letters))])
		}
		words[i] = sb.String()
	}
	return strings.Join(words, " ")
}

// Normalize scales v to unit length in place. Zero vectors are unchanged.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}

// BruteForce ranks every entry of vectors against query with dist and
// returns the k closest, ties broken by key.
func BruteForce(vectors map[string][]float32, query []float32, k int, dist func(a, b []float32) float32) []Neighbor {
	all := make([]Neighbor, 0, len(vectors))
	for key, v := range vectors {
		all = append(all, Neighbor{Key: key, Distance: dist(query, v)})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Distance != all[j].Distance {
			return all[i].Distance < all[j].Distance
		}
		return all[i].Key < all[j].Key
	})
	if k < len(all) {
		all = all[:k]
	}
	return all
}
