package entitydb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/entitydb/record"
)

// BatchResult is the outcome of one batch item.
type BatchResult struct {
	// Key is the effective key of the item. It is empty when the item was
	// rejected before a key could be resolved.
	Key string
	// Err is nil on success.
	Err error
}

// OK reports whether the item succeeded.
func (r BatchResult) OK() bool { return r.Err == nil }

// BatchResults holds one BatchResult per input item, in input order.
type BatchResults []BatchResult

// Keys returns the keys of the successful items in input order.
func (rs BatchResults) Keys() []string {
	keys := make([]string, 0, len(rs))
	for _, r := range rs {
		if r.Err == nil {
			keys = append(keys, r.Key)
		}
	}
	return keys
}

// Failed returns the number of failed items.
func (rs BatchResults) Failed() int {
	n := 0
	for _, r := range rs {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// Err joins the item errors, each prefixed with its index, or returns nil
// when every item succeeded.
func (rs BatchResults) Err() error {
	var errs []error
	for i, r := range rs {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("item %d: %w", i, r.Err))
		}
	}
	return errors.Join(errs...)
}

// Patch is one item of UpdateBatch.
type Patch struct {
	Key  string
	Data map[string]any
}

// InsertBatch inserts every item like Insert. One item's failure does not
// affect the others; the returned error is non-nil only when the batch as
// a whole cannot run.
func (db *DB) InsertBatch(ctx context.Context, items []map[string]any) (BatchResults, error) {
	return db.insertBatch(ctx, items, EncodingFloat)
}

// InsertBinaryBatch inserts every item like InsertBinary.
func (db *DB) InsertBinaryBatch(ctx context.Context, items []map[string]any) (BatchResults, error) {
	return db.insertBatch(ctx, items, EncodingBinary)
}

// InsertManualBatch inserts every item like InsertManualVectors.
func (db *DB) InsertManualBatch(ctx context.Context, items []map[string]any) (BatchResults, error) {
	return db.insertBatch(ctx, items, EncodingManual)
}

func (db *DB) insertBatch(ctx context.Context, items []map[string]any, enc Encoding) (BatchResults, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	start := time.Now()

	results := make(BatchResults, len(items))
	drafts := make([]record.Draft, len(items))
	valid := make([]bool, len(items))

	// Validate and resolve keys in input order before any write.
	for i, raw := range items {
		d, err := db.codec.Encode(raw, enc)
		if err != nil {
			results[i].Err = err
			continue
		}
		key, err := db.adapter.NewKey(d.Key)
		if err != nil {
			results[i].Err = translateError("insert", "", err)
			continue
		}
		results[i].Key = key
		drafts[i] = d
		valid[i] = true
	}

	var vecs [][]float32
	if enc.Embedded() {
		vecs = db.embedBatch(ctx, drafts, valid)
	}

	var idx []int
	for i := range items {
		if valid[i] {
			idx = append(idx, i)
		}
	}
	db.runPerKey(results, idx, func(i int) error {
		var pre []float32
		if vecs != nil {
			pre = vecs[i]
		}
		return db.insertDraft(ctx, results[i].Key, drafts[i], enc, pre)
	})

	db.finishBatch(ctx, "insert", results, start)
	return results, nil
}

// insertDraft stores one validated batch item. pre is the embedding from
// the batch call, or nil.
func (db *DB) insertDraft(ctx context.Context, key string, d record.Draft, enc Encoding, pre []float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	vec := d.Vector
	if enc.Embedded() {
		vec = pre
		if vec == nil {
			var err error
			if vec, err = db.embed(ctx, d.Text); err != nil {
				return err
			}
		} else if err := db.checkEmbedding(ctx, vec); err != nil {
			return err
		}
	}
	return db.write(ctx, key, d.Attributes, enc, vec)
}

// embedBatch embeds the texts of all valid drafts with one provider call.
// The result is indexed like drafts; it is nil when the call failed, in
// which case every item is embedded on its own.
func (db *DB) embedBatch(ctx context.Context, drafts []record.Draft, valid []bool) [][]float32 {
	var (
		texts []string
		idx   []int
	)
	for i, d := range drafts {
		if valid[i] {
			texts = append(texts, d.Text)
			idx = append(idx, i)
		}
	}
	if len(texts) < 2 {
		return nil
	}

	vecs, err := db.provider.EmbedBatch(ctx, texts)
	if err != nil {
		db.logger.DebugContext(ctx, "batch embedding failed, embedding items individually",
			"items", len(texts),
			"error", err,
		)
		return nil
	}

	out := make([][]float32, len(drafts))
	for j, i := range idx {
		out[i] = vecs[j]
	}
	return out
}

// UpdateBatch applies every patch like Update.
func (db *DB) UpdateBatch(ctx context.Context, patches []Patch) (BatchResults, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	start := time.Now()

	results := make(BatchResults, len(patches))
	idx := make([]int, len(patches))
	for i, p := range patches {
		results[i].Key = p.Key
		idx[i] = i
	}
	db.runPerKey(results, idx, func(i int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return db.update(ctx, patches[i].Key, patches[i].Data)
	})

	db.finishBatch(ctx, "update", results, start)
	return results, nil
}

// DeleteBatch deletes every key like Delete.
func (db *DB) DeleteBatch(ctx context.Context, keys []string) (BatchResults, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	start := time.Now()

	results := make(BatchResults, len(keys))
	var (
		pending []string
		idx     []int
	)
	for i, k := range keys {
		results[i].Key = k
		if k == "" {
			results[i].Err = invalid(db.cfg.IDField, "must not be empty")
			continue
		}
		pending = append(pending, k)
		idx = append(idx, i)
	}
	for j, err := range db.adapter.BatchDelete(ctx, pending) {
		results[idx[j]].Err = translateError("delete", pending[j], err)
	}

	db.finishBatch(ctx, "delete", results, start)
	return results, nil
}

func (db *DB) group() *errgroup.Group {
	g := new(errgroup.Group)
	g.SetLimit(db.batchConcurrency)
	return g
}

// runPerKey calls fn for every index in idx and stores its error in
// results. Items sharing a key run one after another in input order, so
// the last one wins; distinct keys run concurrently.
func (db *DB) runPerKey(results BatchResults, idx []int, fn func(i int) error) {
	var keys []string
	chains := make(map[string][]int, len(idx))
	for _, i := range idx {
		k := results[i].Key
		if _, ok := chains[k]; !ok {
			keys = append(keys, k)
		}
		chains[k] = append(chains[k], i)
	}

	g := db.group()
	for _, k := range keys {
		chain := chains[k]
		g.Go(func() error {
			for _, i := range chain {
				results[i].Err = fn(i)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (db *DB) finishBatch(ctx context.Context, op string, results BatchResults, start time.Time) {
	failed := results.Failed()
	db.metrics.RecordBatch(op, len(results), failed, time.Since(start))
	db.logger.LogBatch(ctx, op, len(results), failed)
}
