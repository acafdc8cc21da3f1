package kv

import (
	"bytes"
	"context"
	"iter"
	"slices"
	"sync"
)

// Memory is an in-memory Store implementation backed by a map.
// It is safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	data   map[string][]byte
	opts   *Options
	closed bool
}

// NewMemory creates a new in-memory Store.
// Pass nil for default options.
func NewMemory(opts *Options) *Memory {
	return &Memory{
		data: make(map[string][]byte),
		opts: opts,
	}
}

func (m *Memory) Get(_ context.Context, key Key) ([]byte, error) {
	k := string(m.opts.encode(key))
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	v, ok := m.data[k]
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(v), nil
}

func (m *Memory) Set(ctx context.Context, key Key, value []byte) error {
	return m.Apply(ctx, []Entry{{Key: key, Value: value}}, nil)
}

func (m *Memory) Delete(ctx context.Context, key Key) error {
	return m.Apply(ctx, nil, []Key{key})
}

func (m *Memory) List(_ context.Context, prefix Key) iter.Seq2[Entry, error] {
	p := m.opts.prefixBytes(prefix)

	return func(yield func(Entry, error) bool) {
		// snapshot under read lock so yield may call back into the store
		m.mu.RLock()
		if m.closed {
			m.mu.RUnlock()
			yield(Entry{}, ErrClosed)
			return
		}
		type pair struct {
			key string
			val []byte
		}
		var matches []pair
		for k, v := range m.data {
			if len(p) == 0 || bytes.HasPrefix([]byte(k), p) {
				matches = append(matches, pair{k, bytes.Clone(v)})
			}
		}
		m.mu.RUnlock()

		slices.SortFunc(matches, func(a, b pair) int {
			return bytes.Compare([]byte(a.key), []byte(b.key))
		})

		for _, kv := range matches {
			if !yield(Entry{Key: m.opts.decode([]byte(kv.key)), Value: kv.val}, nil) {
				return
			}
		}
	}
}

func (m *Memory) BatchSet(ctx context.Context, entries []Entry) error {
	return m.Apply(ctx, entries, nil)
}

func (m *Memory) BatchDelete(ctx context.Context, keys []Key) error {
	return m.Apply(ctx, nil, keys)
}

func (m *Memory) Apply(ctx context.Context, sets []Entry, deletes []Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for _, key := range deletes {
		delete(m.data, string(m.opts.encode(key)))
	}
	for _, e := range sets {
		m.data[string(m.opts.encode(e.Key))] = bytes.Clone(e.Value)
	}
	return nil
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
