package entitydb

import (
	"log/slog"

	"github.com/hupe1980/entitydb/codec"
	"github.com/hupe1980/entitydb/embed"
	"github.com/hupe1980/entitydb/kv"
	"github.com/hupe1980/entitydb/quantization"
)

// DefaultBatchConcurrency is the number of batch items processed at once.
const DefaultBatchConcurrency = 8

type options struct {
	store            kv.Store
	closeStore       bool
	embedder         embed.Embedder
	mux              *embed.Mux
	codec            codec.Codec
	compression      codec.Compression
	quantizer        *quantization.BinaryQuantizer
	manualDimension  int
	stripes          int
	metricsCollector MetricsCollector
	logger           *Logger
	batchConcurrency int
	limits           embed.LimiterConfig
}

// Option configures Open.
type Option func(*options)

// WithKV stores records in s instead of a private in-memory store.
// The DB does not close s unless WithCloseKV is also given.
//
// Example with Badger on disk:
//
//	store, _ := kv.NewBadger(kv.BadgerOptions{Dir: "./data"})
//	db, _ := entitydb.Open(ctx, cfg, entitydb.WithKV(store), entitydb.WithCloseKV())
func WithKV(s kv.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithCloseKV makes Close also close the store given with WithKV.
func WithCloseKV() Option {
	return func(o *options) {
		o.closeStore = true
	}
}

// WithEmbedder uses e as the embedding provider, overriding
// Config.EmbeddingProvider.
func WithEmbedder(e embed.Embedder) Option {
	return func(o *options) {
		o.embedder = e
	}
}

// WithMux resolves Config.EmbeddingProvider in m instead of
// embed.DefaultMux.
func WithMux(m *embed.Mux) Option {
	return func(o *options) {
		o.mux = m
	}
}

// WithCodec configures the codec used for persisted records.
//
// If nil is passed, codec.Default (msgpack) is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCompression compresses persisted records with c.
func WithCompression(c codec.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithQuantizer configures the quantizer used by binary inserts and
// queries. The default sign-quantizes at threshold 0.
//
// The thresholds are persisted with the first Open that sets them.
// Reopening the store adopts them when no quantizer is given and fails
// with ErrValidation when a quantizer with other thresholds is given.
func WithQuantizer(q *quantization.BinaryQuantizer) Option {
	return func(o *options) {
		o.quantizer = q
	}
}

// WithManualDimension fixes the dimensionality of manual vectors up
// front instead of on the first manual insert.
func WithManualDimension(dim int) Option {
	return func(o *options) {
		o.manualDimension = dim
	}
}

// WithKeyStripes sets the number of per-key lock stripes.
func WithKeyStripes(n int) Option {
	return func(o *options) {
		o.stripes = n
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &entitydb.BasicMetricsCollector{}
//	db, _ := entitydb.Open(ctx, cfg, entitydb.WithMetricsCollector(metrics))
//	// ... use db ...
//	stats := metrics.GetStats()
//	fmt.Printf("Inserts: %d, Avg latency: %dns\n", stats.InsertCount, stats.InsertAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := entitydb.NewJSONLogger(slog.LevelInfo)
//	db, _ := entitydb.Open(ctx, cfg, entitydb.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithBatchConcurrency sets how many batch items run at once.
func WithBatchConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchConcurrency = n
		}
	}
}

// WithRateLimit caps calls to the embedding provider at rps per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *options) {
		o.limits.RequestsPerSecond = rps
		o.limits.Burst = burst
	}
}

// WithMaxConcurrentEmbeds caps in-flight calls to the embedding provider.
func WithMaxConcurrentEmbeds(n int64) Option {
	return func(o *options) {
		o.limits.MaxConcurrent = n
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:            codec.Default,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		batchConcurrency: DefaultBatchConcurrency,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
