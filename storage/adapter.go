// Package storage maps records onto a kv.Store.
//
// The Adapter owns the persisted layout: one entry per record, one empty
// index entry per scan group the record belongs to, and a small dimension
// registry. Every write is a single kv.Store.Apply, so a record and its
// index entries become visible together or not at all.
package storage

import (
	"context"
	"errors"
	"fmt"
	"hash/maphash"
	"iter"
	"slices"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/hupe1980/entitydb/codec"
	"github.com/hupe1980/entitydb/kv"
	"github.com/hupe1980/entitydb/metadata"
	"github.com/hupe1980/entitydb/record"
)

// ErrNotFound is returned by Get for absent keys.
var ErrNotFound = errors.New("storage: record not found")

// DecodeError reports a stored record that could not be decoded.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("storage: decode record %q: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DefaultStripes is the number of key lock stripes.
const DefaultStripes = 64

type options struct {
	codec   codec.Codec
	stripes int
}

// Option configures an Adapter.
type Option func(*options)

// WithCodec sets the value codec. Nil selects codec.Default.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithStripes sets the number of per-key lock stripes.
func WithStripes(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.stripes = n
		}
	}
}

// Adapter stores records in a kv.Store under a namespace.
// It is safe for concurrent use. Operations on the same key are serialized;
// the last write wins.
type Adapter struct {
	store kv.Store
	name  string
	codec codec.Codec

	seed  maphash.Seed
	locks []sync.Mutex

	dimMu sync.Mutex
	dims  sync.Map // record.Group -> int
}

// New returns an Adapter storing records of the named database in store.
func New(store kv.Store, name string, optFns ...Option) *Adapter {
	opts := options{codec: codec.Default, stripes: DefaultStripes}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Adapter{
		store: store,
		name:  escape(name),
		codec: opts.codec,
		seed:  maphash.MakeSeed(),
		locks: make([]sync.Mutex, opts.stripes),
	}
}

// Codec returns the value codec.
func (a *Adapter) Codec() codec.Codec { return a.codec }

func (a *Adapter) lock(key string) func() {
	mu := &a.locks[maphash.String(a.seed, key)%uint64(len(a.locks))]
	mu.Lock()
	return mu.Unlock
}

// NewKey resolves spec to a concrete key. Generated keys are UUIDv7.
func (a *Adapter) NewKey(spec record.KeySpec) (string, error) {
	if id, ok := spec.ID(); ok {
		return id, nil
	}
	u, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("storage: generate key: %w", err)
	}
	return u.String(), nil
}

// stored is the persisted form of a record.
type stored struct {
	Key        string            `msgpack:"k" json:"k"`
	Attributes metadata.Document `msgpack:"a,omitempty" json:"a,omitempty"`
	Encoding   uint8             `msgpack:"e" json:"e"`
	Float      []float32         `msgpack:"f,omitempty" json:"f,omitempty"`
	Code       []byte            `msgpack:"c,omitempty" json:"c,omitempty"`
}

func (a *Adapter) encode(r record.Record) ([]byte, error) {
	s := stored{
		Key:        r.Key,
		Attributes: r.Attributes,
		Encoding:   uint8(r.Vector.Encoding),
		Float:      r.Vector.Float,
	}
	if r.Vector.Encoding == record.EncodingBinary {
		b, err := r.Vector.Code.MarshalBinary()
		if err != nil {
			return nil, err
		}
		s.Code = b
	}
	return a.codec.Marshal(&s)
}

func (a *Adapter) decode(key string, data []byte) (record.Record, error) {
	var s stored
	if err := a.codec.Unmarshal(data, &s); err != nil {
		return record.Record{}, &DecodeError{Key: key, Err: err}
	}
	enc := record.Encoding(s.Encoding)
	if enc > record.EncodingManual {
		return record.Record{}, &DecodeError{Key: key, Err: fmt.Errorf("unknown encoding %d", s.Encoding)}
	}
	r := record.Record{
		Key:        key,
		Attributes: s.Attributes,
		Vector:     record.Vector{Encoding: enc, Float: s.Float},
	}
	if r.Attributes == nil {
		r.Attributes = metadata.Document{}
	}
	if enc == record.EncodingBinary {
		if err := r.Vector.Code.UnmarshalBinary(s.Code); err != nil {
			return record.Record{}, &DecodeError{Key: key, Err: err}
		}
	}
	return r, nil
}

// Get returns the record stored under key, or ErrNotFound.
func (a *Adapter) Get(ctx context.Context, key string) (record.Record, error) {
	data, err := a.store.Get(ctx, a.recordKey(key))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return record.Record{}, fmt.Errorf("%w: %q", ErrNotFound, key)
		}
		return record.Record{}, err
	}
	return a.decode(key, data)
}

// Put writes rec, replacing any record under the same key. The vector
// dimension is checked against its group; the first record of a group
// establishes it in the same atomic write.
func (a *Adapter) Put(ctx context.Context, rec record.Record) error {
	defer a.lock(rec.Key)()
	return a.put(ctx, rec)
}

// Update applies fn to the record stored under key and writes the result.
// The key stays locked for the duration, so fn may perform slow work such
// as re-embedding without racing other writers of the same key.
func (a *Adapter) Update(ctx context.Context, key string, fn func(record.Record) (record.Record, error)) error {
	defer a.lock(key)()

	cur, err := a.Get(ctx, key)
	if err != nil {
		return err
	}
	next, err := fn(cur)
	if err != nil {
		return err
	}
	next.Key = key
	return a.put(ctx, next)
}

func (a *Adapter) put(ctx context.Context, rec record.Record) error {
	if rec.Key == "" {
		return errors.New("storage: empty key")
	}
	data, err := a.encode(rec)
	if err != nil {
		return fmt.Errorf("storage: encode record %q: %w", rec.Key, err)
	}

	groups := rec.Vector.Encoding.Groups()
	sets := make([]kv.Entry, 0, 1+len(groups)+1)
	sets = append(sets, kv.Entry{Key: a.recordKey(rec.Key), Value: data})
	for _, g := range groups {
		sets = append(sets, kv.Entry{Key: a.indexKey(g, rec.Key), Value: []byte{}})
	}
	var deletes []kv.Key
	for _, g := range record.Groups {
		if !slices.Contains(groups, g) {
			deletes = append(deletes, a.indexKey(g, rec.Key))
		}
	}

	if rec.Vector.Empty() {
		return a.store.Apply(ctx, sets, deletes)
	}

	g := rec.Vector.Encoding.DimensionGroup()
	dim := rec.Vector.Dim()
	if d, ok := a.cachedDim(g); ok {
		if err := record.CheckDimension(g, d, dim); err != nil {
			return err
		}
		return a.store.Apply(ctx, sets, deletes)
	}

	// Not yet established: hold the registry lock across the write so two
	// first writers cannot both win.
	a.dimMu.Lock()
	defer a.dimMu.Unlock()

	d, err := a.loadDim(ctx, g)
	if err != nil {
		return err
	}
	if err := record.CheckDimension(g, d, dim); err != nil {
		return err
	}
	if d == 0 {
		sets = append(sets, kv.Entry{Key: a.dimKey(g), Value: []byte(strconv.Itoa(dim))})
	}
	if err := a.store.Apply(ctx, sets, deletes); err != nil {
		return err
	}
	a.dims.Store(g, dim)
	return nil
}

// Delete removes the record and its index entries. Absent keys are not an
// error.
func (a *Adapter) Delete(ctx context.Context, key string) error {
	defer a.lock(key)()
	return a.store.Apply(ctx, nil, a.deleteKeys(key))
}

func (a *Adapter) deleteKeys(key string) []kv.Key {
	keys := make([]kv.Key, 0, 1+len(record.Groups))
	keys = append(keys, a.recordKey(key))
	for _, g := range record.Groups {
		keys = append(keys, a.indexKey(g, key))
	}
	return keys
}

// BatchPut writes each record independently. The returned slice has one
// entry per input, nil on success.
func (a *Adapter) BatchPut(ctx context.Context, recs []record.Record) []error {
	errs := make([]error, len(recs))
	for i, r := range recs {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			continue
		}
		errs[i] = a.Put(ctx, r)
	}
	return errs
}

// BatchDelete deletes each key independently.
func (a *Adapter) BatchDelete(ctx context.Context, keys []string) []error {
	errs := make([]error, len(keys))
	for i, k := range keys {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			continue
		}
		errs[i] = a.Delete(ctx, k)
	}
	return errs
}

// Keys iterates the keys of every record, or of the records in group
// when group is non-nil. Order is unspecified.
func (a *Adapter) Keys(ctx context.Context, group *record.Group) iter.Seq2[string, error] {
	prefix := a.recordPrefix()
	if group != nil {
		prefix = a.indexPrefix(*group)
	}
	return func(yield func(string, error) bool) {
		for e, err := range a.store.List(ctx, prefix) {
			if err != nil {
				yield("", err)
				return
			}
			key, err := lastSegment(e.Key)
			if err != nil {
				if !yield("", fmt.Errorf("storage: malformed key %v: %w", e.Key, err)) {
					return
				}
				continue
			}
			if !yield(key, nil) {
				return
			}
		}
	}
}

// ListKeys collects Keys into a sorted slice.
func (a *Adapter) ListKeys(ctx context.Context, group *record.Group) ([]string, error) {
	var keys []string
	for k, err := range a.Keys(ctx, group) {
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}

// Contains reports whether key is indexed in group.
func (a *Adapter) Contains(ctx context.Context, g record.Group, key string) (bool, error) {
	_, err := a.store.Get(ctx, a.indexKey(g, key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, kv.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// Scan iterates the records of group, or every record when group is nil.
//
// Undecodable records are yielded as *DecodeError with the record's key set;
// the consumer may skip them and keep iterating. Records deleted while the
// scan runs are skipped. Any other error ends the scan.
func (a *Adapter) Scan(ctx context.Context, group *record.Group) iter.Seq2[record.Record, error] {
	if group == nil {
		return a.scanAll(ctx)
	}
	return func(yield func(record.Record, error) bool) {
		for key, err := range a.Keys(ctx, group) {
			if err != nil {
				if !yield(record.Record{}, err) {
					return
				}
				continue
			}
			r, err := a.Get(ctx, key)
			switch {
			case errors.Is(err, ErrNotFound):
				continue
			case err != nil:
				var de *DecodeError
				if !yield(record.Record{Key: key}, err) || !errors.As(err, &de) {
					return
				}
				continue
			}
			if !yield(r, nil) {
				return
			}
		}
	}
}

func (a *Adapter) scanAll(ctx context.Context) iter.Seq2[record.Record, error] {
	return func(yield func(record.Record, error) bool) {
		for e, err := range a.store.List(ctx, a.recordPrefix()) {
			if err != nil {
				yield(record.Record{}, err)
				return
			}
			key, err := lastSegment(e.Key)
			if err != nil {
				if !yield(record.Record{}, &DecodeError{Key: e.Key.String(), Err: err}) {
					return
				}
				continue
			}
			r, err := a.decode(key, e.Value)
			if !yield(r, err) {
				return
			}
		}
	}
}

// Count returns the number of stored records.
func (a *Adapter) Count(ctx context.Context) (int, error) {
	n := 0
	for _, err := range a.Keys(ctx, nil) {
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

func (a *Adapter) cachedDim(g record.Group) (int, bool) {
	v, ok := a.dims.Load(g)
	if !ok {
		return 0, false
	}
	return v.(int), true
}

func (a *Adapter) loadDim(ctx context.Context, g record.Group) (int, error) {
	if d, ok := a.cachedDim(g); ok {
		return d, nil
	}
	data, err := a.store.Get(ctx, a.dimKey(g))
	if errors.Is(err, kv.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	d, err := strconv.Atoi(string(data))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("storage: corrupt %s dimension %q", g, data)
	}
	a.dims.Store(g, d)
	return d, nil
}

// Dimension returns the established dimension of g, or 0.
func (a *Adapter) Dimension(ctx context.Context, g record.Group) (int, error) {
	return a.loadDim(ctx, g)
}

// EstablishDimension fixes the dimension of g to d unless one is already
// established. It returns the dimension in effect; the first writer wins.
func (a *Adapter) EstablishDimension(ctx context.Context, g record.Group, d int) (int, error) {
	if d <= 0 {
		return 0, fmt.Errorf("storage: invalid dimension %d", d)
	}
	a.dimMu.Lock()
	defer a.dimMu.Unlock()

	cur, err := a.loadDim(ctx, g)
	if err != nil {
		return 0, err
	}
	if cur > 0 {
		return cur, nil
	}
	if err := a.store.Set(ctx, a.dimKey(g), []byte(strconv.Itoa(d))); err != nil {
		return 0, err
	}
	a.dims.Store(g, d)
	return d, nil
}
