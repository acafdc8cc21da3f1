// Package queue provides the bounded priority queue used to rank query
// candidates.
package queue

import (
	"container/heap"
	"slices"
)

// Item is a scored candidate.
type Item[T any] struct {
	Key      string  // Key identifies the candidate and breaks distance ties.
	Distance float32 // Distance is the priority; smaller is better.
	Value    T

	index int
}

// Less reports whether a ranks before b: smaller distance first, then
// smaller key.
func Less[T any](a, b *Item[T]) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.Key < b.Key
}

// TopK keeps the k best items seen so far. Internally it is a max-heap on
// (Distance, Key), so the current worst item sits at the root and is the
// one evicted.
type TopK[T any] struct {
	k     int
	items []*Item[T]
}

// Compile time check to ensure TopK satisfies the heap interface.
var _ heap.Interface = (*TopK[struct{}])(nil)

// NewTopK returns a queue holding at most k items. k <= 0 keeps nothing.
func NewTopK[T any](k int) *TopK[T] {
	if k < 0 {
		k = 0
	}
	return &TopK[T]{k: k, items: make([]*Item[T], 0, min(k, 1024))}
}

// Len returns the number of items held.
func (q *TopK[T]) Len() int { return len(q.items) }

// Less orders the heap with the worst item on top.
func (q *TopK[T]) Less(i, j int) bool { return Less(q.items[j], q.items[i]) }

// Swap swaps the elements with indexes i and j.
func (q *TopK[T]) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index, q.items[j].index = i, j
}

// Push implements heap.Interface. Use Offer instead.
func (q *TopK[T]) Push(x any) {
	item, _ := x.(*Item[T])
	item.index = len(q.items)
	q.items = append(q.items, item)
}

// Pop implements heap.Interface.
func (q *TopK[T]) Pop() any {
	old := q.items
	n := len(old)
	if n == 0 {
		return nil
	}
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	q.items = old[:n-1]
	return item
}

// Offer adds a candidate if it ranks among the k best and reports whether
// it was kept.
func (q *TopK[T]) Offer(key string, distance float32, value T) bool {
	if q.k == 0 {
		return false
	}
	item := &Item[T]{Key: key, Distance: distance, Value: value}
	if len(q.items) < q.k {
		heap.Push(q, item)
		return true
	}
	worst := q.items[0]
	if !Less(item, worst) {
		return false
	}
	item.index = 0
	q.items[0] = item
	heap.Fix(q, 0)
	return true
}

// Worst returns the item that would be evicted next.
func (q *TopK[T]) Worst() (Item[T], bool) {
	if len(q.items) == 0 {
		return Item[T]{}, false
	}
	return *q.items[0], true
}

// Sorted returns the held items from best to worst. The queue is left
// unchanged.
func (q *TopK[T]) Sorted() []Item[T] {
	out := make([]Item[T], len(q.items))
	for i, it := range q.items {
		out[i] = *it
	}
	slices.SortFunc(out, func(a, b Item[T]) int {
		switch {
		case Less(&a, &b):
			return -1
		case Less(&b, &a):
			return 1
		default:
			return 0
		}
	})
	return out
}
