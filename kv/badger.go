package kv

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"
)

// Badger is a Store implementation backed by BadgerDB v4.
type Badger struct {
	db   *badger.DB
	opts *Options
}

// BadgerOptions configures the BadgerDB store.
type BadgerOptions struct {
	// Options is the common kv options (separator, etc.).
	Options *Options

	// Dir is the directory for BadgerDB data files.
	// Required unless InMemory is set.
	Dir string

	// InMemory runs BadgerDB in memory-only mode (no disk persistence).
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives badger's warnings and errors. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// NewBadger creates a new BadgerDB-backed Store.
func NewBadger(bopts BadgerOptions) (*Badger, error) {
	if !bopts.InMemory && bopts.Dir == "" {
		return nil, errors.New("kv: BadgerOptions.Dir is required for on-disk mode")
	}
	dir := bopts.Dir
	if bopts.InMemory {
		dir = ""
	}
	dbOpts := badger.DefaultOptions(dir).
		WithInMemory(bopts.InMemory).
		WithSyncWrites(bopts.SyncWrites).
		WithLogger(badgerLogger{l: bopts.Logger})

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("kv: open badger: %w", err)
	}
	return &Badger{db: db, opts: bopts.Options}, nil
}

func (b *Badger) Get(_ context.Context, key Key) ([]byte, error) {
	k := b.opts.encode(key)
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return val, b.mapErr(err)
}

func (b *Badger) Set(ctx context.Context, key Key, value []byte) error {
	return b.Apply(ctx, []Entry{{Key: key, Value: value}}, nil)
}

func (b *Badger) Delete(ctx context.Context, key Key) error {
	return b.Apply(ctx, nil, []Key{key})
}

func (b *Badger) List(_ context.Context, prefix Key) iter.Seq2[Entry, error] {
	p := b.opts.prefixBytes(prefix)

	return func(yield func(Entry, error) bool) {
		var entries []Entry
		err := b.db.View(func(txn *badger.Txn) error {
			iterOpts := badger.DefaultIteratorOptions
			iterOpts.Prefix = p
			it := txn.NewIterator(iterOpts)
			defer it.Close()

			for it.Seek(p); it.ValidForPrefix(p); it.Next() {
				item := it.Item()
				val, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				entries = append(entries, Entry{
					Key:   b.opts.decode(item.KeyCopy(nil)),
					Value: val,
				})
			}
			return nil
		})
		if err != nil {
			yield(Entry{}, b.mapErr(err))
			return
		}
		// yield outside the read txn so callers may write while iterating
		for _, e := range entries {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (b *Badger) BatchSet(ctx context.Context, entries []Entry) error {
	return b.Apply(ctx, entries, nil)
}

func (b *Badger) BatchDelete(ctx context.Context, keys []Key) error {
	return b.Apply(ctx, nil, keys)
}

// Apply commits all changes in a single badger transaction. Batches that
// exceed badger's transaction limits fail with badger.ErrTxnTooBig and
// leave the store unchanged.
func (b *Badger) Apply(ctx context.Context, sets []Entry, deletes []Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		for _, key := range deletes {
			if err := txn.Delete(b.opts.encode(key)); err != nil {
				return err
			}
		}
		for _, e := range sets {
			if err := txn.Set(b.opts.encode(e.Key), e.Value); err != nil {
				return err
			}
		}
		return nil
	})
	return b.mapErr(err)
}

func (b *Badger) Close() error {
	return b.db.Close()
}

func (b *Badger) mapErr(err error) error {
	if errors.Is(err, badger.ErrDBClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return err
}

// badgerLogger routes badger's warnings and errors to slog and drops its
// info and debug chatter.
type badgerLogger struct {
	l *slog.Logger
}

func (b badgerLogger) logger() *slog.Logger {
	if b.l != nil {
		return b.l
	}
	return slog.Default()
}

func (b badgerLogger) Errorf(f string, v ...interface{}) {
	b.logger().Error(fmt.Sprintf(f, v...), "component", "badger")
}

func (b badgerLogger) Warningf(f string, v ...interface{}) {
	b.logger().Warn(fmt.Sprintf(f, v...), "component", "badger")
}

func (badgerLogger) Infof(string, ...interface{})  {}
func (badgerLogger) Debugf(string, ...interface{}) {}
