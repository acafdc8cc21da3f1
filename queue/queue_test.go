package queue

import (
	"fmt"
	"slices"
	"testing"

	"github.com/hupe1980/entitydb/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keys[T any](items []Item[T]) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Key
	}
	return out
}

func TestTopK_Basic(t *testing.T) {
	q := NewTopK[int](3)
	assert.True(t, q.Offer("d", 0.4, 4))
	assert.True(t, q.Offer("a", 0.1, 1))
	assert.True(t, q.Offer("c", 0.3, 3))
	assert.True(t, q.Offer("b", 0.2, 2))
	assert.False(t, q.Offer("e", 0.5, 5))

	got := q.Sorted()
	assert.Equal(t, []string{"a", "b", "c"}, keys(got))
	assert.Equal(t, 2, got[1].Value)

	worst, ok := q.Worst()
	require.True(t, ok)
	assert.Equal(t, "c", worst.Key)
}

func TestTopK_TieBreakByKey(t *testing.T) {
	q := NewTopK[struct{}](2)
	q.Offer("z", 1, struct{}{})
	q.Offer("m", 1, struct{}{})
	q.Offer("a", 1, struct{}{})
	assert.Equal(t, []string{"a", "m"}, keys(q.Sorted()))
}

func TestTopK_Zero(t *testing.T) {
	q := NewTopK[int](0)
	assert.False(t, q.Offer("a", 0, 0))
	assert.Empty(t, q.Sorted())

	_, ok := q.Worst()
	assert.False(t, ok)
}

func TestTopK_MatchesFullSort(t *testing.T) {
	rng := testutil.NewRNG(7)
	type cand struct {
		key  string
		dist float32
	}

	var all []cand
	q := NewTopK[int](10)
	for i := range 500 {
		c := cand{key: fmt.Sprintf("k%03d", i), dist: float32(rng.Intn(50)) / 10}
		all = append(all, c)
		q.Offer(c.key, c.dist, i)
	}

	slices.SortFunc(all, func(a, b cand) int {
		if a.dist != b.dist {
			if a.dist < b.dist {
				return -1
			}
			return 1
		}
		if a.key < b.key {
			return -1
		}
		return 1
	})
	want := make([]string, 10)
	for i := range want {
		want[i] = all[i].key
	}
	assert.Equal(t, want, keys(q.Sorted()))
}
