package entitydb

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync/atomic"

	"github.com/hupe1980/entitydb/codec"
	"github.com/hupe1980/entitydb/distance"
	"github.com/hupe1980/entitydb/embed"
	"github.com/hupe1980/entitydb/kv"
	"github.com/hupe1980/entitydb/quantization"
	"github.com/hupe1980/entitydb/record"
	"github.com/hupe1980/entitydb/storage"
)

// Defaults for Config.
const (
	DefaultName              = "EntityDB"
	DefaultEmbeddingProvider = "hash"
)

// Encoding tags the vector representation of a record.
type Encoding = record.Encoding

// Encodings.
const (
	EncodingNone   = record.EncodingNone
	EncodingFloat  = record.EncodingFloat
	EncodingBinary = record.EncodingBinary
	EncodingManual = record.EncodingManual
)

// Config names the database and its special fields.
type Config struct {
	// Name identifies the database inside the store. Several databases may
	// share one kv.Store under different names. Default "EntityDB".
	Name string

	// VectorField is the record field holding the embedding. Required.
	VectorField string

	// TextField is the field embedded by Insert and InsertBinary.
	// Default "text".
	TextField string

	// IDField holds the record key. Default "id".
	IDField string

	// EmbeddingProvider selects the embedder from the mux, e.g. "hash" or
	// "hash/256". Default "hash". OpenAI models such as
	// "openai/text-embedding-3-small" resolve only after
	// embed.RegisterOpenAI has been called on the mux; otherwise Open fails
	// with a validation error. Ignored when WithEmbedder is given.
	EmbeddingProvider string

	// AutoID generates UUIDv7 keys for records without an id instead of
	// rejecting them.
	AutoID bool
}

// DB is an embedded vector database over a kv.Store.
//
// A DB is safe for concurrent use. It holds no in-memory index: every
// query scans the records of its group in the store.
type DB struct {
	cfg       Config
	codec     *record.Codec
	store     kv.Store
	ownsStore bool
	adapter   *storage.Adapter
	provider  *embed.Provider
	quantizer *quantization.BinaryQuantizer

	floatDistance distance.Func

	logger           *Logger
	metrics          MetricsCollector
	batchConcurrency int

	closed atomic.Bool
}

// Open validates cfg and returns a ready DB.
func Open(ctx context.Context, cfg Config, optFns ...Option) (*DB, error) {
	o := applyOptions(optFns)

	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.EmbeddingProvider == "" {
		cfg.EmbeddingProvider = DefaultEmbeddingProvider
	}

	rc, err := record.NewCodec(record.CodecConfig{
		IDField:     cfg.IDField,
		VectorField: cfg.VectorField,
		TextField:   cfg.TextField,
		AutoID:      cfg.AutoID,
	})
	if err != nil {
		return nil, err
	}
	eff := rc.Config()
	cfg.IDField, cfg.TextField = eff.IDField, eff.TextField

	e, name, err := resolveEmbedder(cfg, o)
	if err != nil {
		return nil, err
	}

	store, owns := o.store, false
	if store == nil {
		store, owns = kv.NewMemory(nil), true
	} else {
		owns = o.closeStore
	}

	vc := o.codec
	if o.compression != codec.CompressionNone {
		vc = codec.NewCompressed(vc, o.compression)
	}

	dist, err := distance.Provider(distance.MetricCosine)
	if err != nil {
		return nil, err
	}

	q := o.quantizer
	if q == nil {
		q = quantization.NewBinaryQuantizer(0)
	}

	db := &DB{
		cfg:              cfg,
		codec:            rc,
		store:            store,
		ownsStore:        owns,
		adapter:          storage.New(store, cfg.Name, storage.WithCodec(vc), storage.WithStripes(o.stripes)),
		provider:         embed.NewProvider(name, e, embed.WithLimiter(embed.NewLimiter(o.limits))),
		quantizer:        q,
		floatDistance:    dist,
		logger:           o.logger.With("db", cfg.Name),
		metrics:          o.metricsCollector,
		batchConcurrency: o.batchConcurrency,
	}

	if err := db.init(ctx, o); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func resolveEmbedder(cfg Config, o options) (embed.Embedder, string, error) {
	if o.embedder != nil {
		return o.embedder, "custom", nil
	}
	mux := o.mux
	if mux == nil {
		mux = embed.DefaultMux
	}
	e, err := mux.Get(cfg.EmbeddingProvider)
	if err != nil {
		return nil, "", invalid("embeddingProvider", err.Error())
	}
	return e, cfg.EmbeddingProvider, nil
}

func (db *DB) init(ctx context.Context, o options) error {
	if o.manualDimension > 0 {
		d, err := db.adapter.EstablishDimension(ctx, record.GroupManual, o.manualDimension)
		if err != nil {
			return translateError("open", "", err)
		}
		if err := record.CheckDimension(record.GroupManual, d, o.manualDimension); err != nil {
			return err
		}
	} else if o.manualDimension < 0 {
		return invalid("manualDimension", fmt.Sprintf("must be positive, got %d", o.manualDimension))
	}

	if err := db.initQuantizer(ctx, o.quantizer != nil); err != nil {
		return err
	}

	if pd := db.provider.Dimension(); pd > 0 {
		d, err := db.adapter.Dimension(ctx, record.GroupFloat)
		if err != nil {
			return translateError("open", "", err)
		}
		if d > 0 && d != pd {
			return &ProviderError{
				Provider: db.provider.Name(),
				Err:      fmt.Errorf("%w: produces %d dimensions, store has %d", embed.ErrBadOutput, pd, d),
			}
		}
	}
	return nil
}

// initQuantizer reconciles the configured quantizer with the thresholds
// stored codes were built with. Without an explicit quantizer the stored
// thresholds are adopted; an explicit one must match them.
func (db *DB) initQuantizer(ctx context.Context, explicit bool) error {
	stored, ok, err := db.adapter.Quantizer(ctx)
	if err != nil {
		return translateError("open", "", err)
	}
	if !ok {
		// Binary codes written before any thresholds were stored used the
		// default sign quantizer.
		if ok, err = db.hasGroup(ctx, record.GroupBinary); err != nil {
			return translateError("open", "", err)
		}
	}

	cur := storage.QuantizerParams{Threshold: db.quantizer.Threshold(), Means: db.quantizer.Means()}
	switch {
	case !ok && explicit:
		if stored, err = db.adapter.EstablishQuantizer(ctx, cur); err != nil {
			return translateError("open", "", err)
		}
		if !stored.Equal(cur) {
			return invalid("quantizer", "thresholds differ from the stored ones")
		}
	case !ok:
	case explicit:
		if !stored.Equal(cur) {
			return invalid("quantizer", "thresholds differ from the stored ones")
		}
	case len(stored.Means) > 0:
		db.quantizer = quantization.NewBinaryQuantizer(0).WithMeans(stored.Means)
	default:
		db.quantizer = quantization.NewBinaryQuantizer(0).WithThreshold(stored.Threshold)
	}
	return nil
}

func (db *DB) hasGroup(ctx context.Context, g record.Group) (bool, error) {
	next, stop := iter.Pull2(db.adapter.Keys(ctx, &g))
	defer stop()
	_, err, ok := next()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Config returns the effective configuration.
func (db *DB) Config() Config { return db.cfg }

// Dimension returns the dimensionality established for vectors of the
// given encoding, or 0 if none is stored yet. Float and binary records
// share one dimension.
func (db *DB) Dimension(ctx context.Context, enc Encoding) (int, error) {
	if err := db.checkOpen(); err != nil {
		return 0, err
	}
	if enc == EncodingNone {
		return 0, nil
	}
	d, err := db.adapter.Dimension(ctx, enc.DimensionGroup())
	return d, translateError("dimension", "", err)
}

// Close releases the DB. Further calls fail with ErrClosed. Close is
// idempotent.
func (db *DB) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return nil
	}
	if db.ownsStore {
		if err := db.store.Close(); err != nil && !errors.Is(err, kv.ErrClosed) {
			return err
		}
	}
	return nil
}

func (db *DB) checkOpen() error {
	if db.closed.Load() {
		return ErrClosed
	}
	return nil
}
