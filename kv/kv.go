// Package kv provides the persistence substrate: a key-value store with
// hierarchical path-based keys and atomic multi-key writes.
//
// Keys are string slices (e.g. ["docs", "r", "a1"]) encoded with a
// separator, ':' by default. Segments must not contain the separator;
// callers storing arbitrary identifiers escape them first.
//
// Implementations:
//
//   - Memory: sorted in-memory map, for tests and ephemeral stores.
//   - Badger: github.com/dgraph-io/badger/v4, on disk or in memory.
//   - SQLite: modernc.org/sqlite, a single kv table in one file.
//   - DynamoDB: github.com/aws/aws-sdk-go-v2/service/dynamodb.
package kv

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"strings"
)

// Sentinel errors.
var (
	// ErrNotFound is returned when a key does not exist in the store.
	ErrNotFound = errors.New("kv: not found")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("kv: store closed")
)

// Key is a hierarchical path represented as a slice of string segments.
type Key []string

// String returns the key as a human-readable string using ':' as separator.
func (k Key) String() string {
	return strings.Join(k, ":")
}

// Entry is a key-value pair returned by List and used by BatchSet.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is the interface for a key-value store with path-based keys.
type Store interface {
	// Get retrieves the value for a key. Returns ErrNotFound if not present.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set stores a key-value pair. Overwrites any existing value.
	Set(ctx context.Context, key Key, value []byte) error

	// Delete removes a key. No error if the key does not exist.
	Delete(ctx context.Context, key Key) error

	// List iterates over all entries whose key starts with the given prefix.
	// The iteration order is lexicographic by encoded key. An empty prefix
	// lists everything.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]

	// BatchSet atomically stores multiple key-value pairs.
	BatchSet(ctx context.Context, entries []Entry) error

	// BatchDelete atomically removes multiple keys.
	BatchDelete(ctx context.Context, keys []Key) error

	// Apply atomically stores sets and removes deletes: either every
	// change becomes visible or none does.
	Apply(ctx context.Context, sets []Entry, deletes []Key) error

	// Close releases any resources held by the store.
	Close() error
}

// DefaultSeparator is the default separator byte used to encode key segments.
const DefaultSeparator byte = ':'

// Options configures store behavior.
type Options struct {
	// Separator is the byte used to join key segments when encoding to storage.
	// Default is ':' if zero.
	Separator byte
}

func (o *Options) sep() byte {
	if o != nil && o.Separator != 0 {
		return o.Separator
	}
	return DefaultSeparator
}

func (o *Options) encode(k Key) []byte {
	s := o.sep()
	n := 0
	for i, seg := range k {
		if i > 0 {
			n++
		}
		n += len(seg)
	}
	buf := make([]byte, n)
	pos := 0
	for i, seg := range k {
		if i > 0 {
			buf[pos] = s
			pos++
		}
		pos += copy(buf[pos:], seg)
	}
	return buf
}

// prefixBytes returns the encoded prefix followed by the separator, so
// "a:b" does not match "a:bc". An empty prefix yields nil.
func (o *Options) prefixBytes(prefix Key) []byte {
	p := o.encode(prefix)
	if len(p) == 0 {
		return nil
	}
	return append(p, o.sep())
}

func (o *Options) decode(b []byte) Key {
	parts := bytes.Split(b, []byte{o.sep()})
	k := make(Key, len(parts))
	for i, p := range parts {
		k[i] = string(p)
	}
	return k
}
