package entitydb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/entitydb/quantization"
	"github.com/hupe1980/entitydb/queue"
	"github.com/hupe1980/entitydb/record"
	"github.com/hupe1980/entitydb/storage"
)

// DefaultLimit is the number of results returned when no limit is given.
const DefaultLimit = 5

// Result keys merged into Result.Data.
const (
	DistanceField = "distance"
	ScoreField    = "score"
)

// Result is one ranked query match.
type Result struct {
	Key string
	// Distance is the cosine distance for float and manual queries and the
	// Hamming distance for binary queries. Lower is more similar.
	Distance float32
	// Score is 1-Distance for cosine queries and 1-Distance/dim for binary
	// queries. Higher is more similar.
	Score float32
	// Data is the stored record: the id field, the attributes, the vector
	// field unless WithoutVectors was given, plus DistanceField and
	// ScoreField.
	Data map[string]any
}

type queryOptions struct {
	limit         int
	includeVector bool
	maxDistance   float32
	hasMax        bool
}

// QueryOption configures a query.
type QueryOption func(*queryOptions)

// WithLimit sets the maximum number of results. A limit <= 0 yields an
// empty result.
func WithLimit(n int) QueryOption {
	return func(o *queryOptions) {
		o.limit = n
	}
}

// WithoutVectors omits the vector field from Result.Data.
func WithoutVectors() QueryOption {
	return func(o *queryOptions) {
		o.includeVector = false
	}
}

// WithMaxDistance drops matches farther than d.
func WithMaxDistance(d float32) QueryOption {
	return func(o *queryOptions) {
		o.maxDistance = d
		o.hasMax = true
	}
}

type queryMode uint8

const (
	modeFloat queryMode = iota
	modeBinary
	modeBinarySIMD
	modeManual
)

func (m queryMode) String() string {
	switch m {
	case modeFloat:
		return "float"
	case modeBinary:
		return "binary"
	case modeBinarySIMD:
		return "binary_simd"
	default:
		return "manual"
	}
}

func (m queryMode) group() record.Group {
	switch m {
	case modeFloat:
		return record.GroupFloat
	case modeBinary, modeBinarySIMD:
		return record.GroupBinary
	default:
		return record.GroupManual
	}
}

// Query embeds text and ranks every record with a float vector (float and
// binary inserts) by cosine distance.
func (db *DB) Query(ctx context.Context, text string, optFns ...QueryOption) ([]Result, error) {
	return db.query(ctx, modeFloat, text, nil, optFns)
}

// QueryBinary embeds and quantizes text and ranks the binary records by
// Hamming distance.
func (db *DB) QueryBinary(ctx context.Context, text string, optFns ...QueryOption) ([]Result, error) {
	return db.query(ctx, modeBinary, text, nil, optFns)
}

// QueryBinarySIMD is QueryBinary computed with the word-parallel Hamming
// kernel. It returns the same ranking as QueryBinary.
func (db *DB) QueryBinarySIMD(ctx context.Context, text string, optFns ...QueryOption) ([]Result, error) {
	return db.query(ctx, modeBinarySIMD, text, nil, optFns)
}

// QueryManualVectors ranks the manual records by cosine distance to vector.
func (db *DB) QueryManualVectors(ctx context.Context, vector []float32, optFns ...QueryOption) ([]Result, error) {
	return db.query(ctx, modeManual, "", vector, optFns)
}

// scorer returns the distance of a stored record to the query, or false
// when the record cannot be compared.
type scorer func(r record.Record) (float32, bool)

func (db *DB) query(ctx context.Context, mode queryMode, text string, vec []float32, optFns []QueryOption) (results []Result, err error) {
	o := queryOptions{limit: DefaultLimit, includeVector: true}
	for _, fn := range optFns {
		fn(&o)
	}

	start := time.Now()
	defer func() {
		db.metrics.RecordQuery(mode.String(), o.limit, len(results), time.Since(start), err)
		db.logger.LogQuery(ctx, mode.String(), o.limit, len(results), err)
	}()

	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	if o.limit <= 0 {
		return []Result{}, nil
	}

	score, dim, err := db.scorer(ctx, mode, text, vec)
	if err != nil {
		return nil, err
	}

	group := mode.group()
	top := queue.NewTopK[record.Record](o.limit)
	for r, err := range db.adapter.Scan(ctx, &group) {
		if err != nil {
			var de *storage.DecodeError
			if errors.As(err, &de) {
				db.logger.LogSkipped(ctx, de.Key, err)
				continue
			}
			return nil, translateError("query", "", err)
		}
		d, ok := score(r)
		if !ok {
			db.logger.LogSkipped(ctx, r.Key, fmt.Errorf("%s vector does not match the query", r.Vector.Encoding))
			continue
		}
		if o.hasMax && d > o.maxDistance {
			continue
		}
		top.Offer(r.Key, d, r)
	}

	items := top.Sorted()
	results = make([]Result, len(items))
	for i, it := range items {
		results[i] = db.result(it, mode, dim, o.includeVector)
	}
	return results, nil
}

// scorer prepares the query vector for mode and returns the distance
// function and the query dimension.
func (db *DB) scorer(ctx context.Context, mode queryMode, text string, vec []float32) (scorer, int, error) {
	if mode == modeManual {
		q, err := record.ParseVector(vec)
		if err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				ve.Field = db.cfg.VectorField
			}
			return nil, 0, err
		}
		d, err := db.adapter.Dimension(ctx, record.GroupManual)
		if err != nil {
			return nil, 0, translateError("query", "", err)
		}
		if err := record.CheckDimension(record.GroupManual, d, len(q)); err != nil {
			return nil, 0, err
		}
		return db.cosineScorer(q), len(q), nil
	}

	if text == "" {
		return nil, 0, invalid(db.cfg.TextField, "query text must not be empty")
	}
	q, err := db.embed(ctx, text)
	if err != nil {
		return nil, 0, err
	}
	if mode == modeFloat {
		return db.cosineScorer(q), len(q), nil
	}

	code, err := db.quantizer.Quantize(q)
	if err != nil {
		return nil, 0, invalid(db.cfg.TextField, err.Error())
	}
	hamming := quantization.Hamming
	if mode == modeBinarySIMD {
		hamming = quantization.HammingSIMD
	}
	return func(r record.Record) (float32, bool) {
		if r.Vector.Code.Dim != code.Dim || !r.Vector.Code.Valid() {
			return 0, false
		}
		return float32(hamming(code, r.Vector.Code)), true
	}, code.Dim, nil
}

func (db *DB) cosineScorer(q []float32) scorer {
	return func(r record.Record) (float32, bool) {
		if len(r.Vector.Float) != len(q) {
			return 0, false
		}
		return db.floatDistance(q, r.Vector.Float), true
	}
}

func (db *DB) result(it queue.Item[record.Record], mode queryMode, dim int, includeVector bool) Result {
	score := 1 - it.Distance
	if mode == modeBinary || mode == modeBinarySIMD {
		score = 1 - quantization.NormalizedHamming(int(it.Distance), dim)
	}
	data := db.codec.Decode(it.Value, includeVector)
	data[DistanceField] = float64(it.Distance)
	data[ScoreField] = float64(score)
	return Result{Key: it.Key, Distance: it.Distance, Score: score, Data: data}
}
