package entitydb

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/entitydb/embed"
	"github.com/hupe1980/entitydb/metadata"
	"github.com/hupe1980/entitydb/record"
)

// Insert embeds the text field of data and stores the record with a float
// vector. It returns the record key. Inserting an existing key replaces
// the stored record.
func (db *DB) Insert(ctx context.Context, data map[string]any) (string, error) {
	return db.insert(ctx, data, EncodingFloat)
}

// InsertBinary is like Insert but additionally stores the binary
// quantized code, making the record visible to QueryBinary. The float
// vector is kept, so Query also sees the record.
func (db *DB) InsertBinary(ctx context.Context, data map[string]any) (string, error) {
	return db.insert(ctx, data, EncodingBinary)
}

// InsertManualVectors stores the vector held in the vector field verbatim,
// without calling the embedding provider.
func (db *DB) InsertManualVectors(ctx context.Context, data map[string]any) (string, error) {
	return db.insert(ctx, data, EncodingManual)
}

func (db *DB) insert(ctx context.Context, data map[string]any, enc Encoding) (key string, err error) {
	start := time.Now()
	defer func() {
		db.metrics.RecordInsert(enc.String(), time.Since(start), err)
		db.logger.LogInsert(ctx, key, enc, err)
	}()

	if err := db.checkOpen(); err != nil {
		return "", err
	}

	draft, err := db.codec.Encode(data, enc)
	if err != nil {
		return "", err
	}
	key, err = db.adapter.NewKey(draft.Key)
	if err != nil {
		return "", translateError("insert", "", err)
	}

	vec := draft.Vector
	if enc.Embedded() {
		if vec, err = db.embed(ctx, draft.Text); err != nil {
			return key, err
		}
	}
	return key, db.write(ctx, key, draft.Attributes, enc, vec)
}

// write builds the record for vec and stores it.
func (db *DB) write(ctx context.Context, key string, attrs metadata.Document, enc Encoding, vec []float32) error {
	v, err := db.vector(enc, vec)
	if err != nil {
		return err
	}
	rec := record.Record{Key: key, Attributes: attrs, Vector: v}
	return translateError("put", key, db.adapter.Put(ctx, rec))
}

// vector assembles the stored representation of vec.
func (db *DB) vector(enc Encoding, vec []float32) (record.Vector, error) {
	v := record.Vector{Encoding: enc, Float: vec}
	if enc == EncodingBinary {
		code, err := db.quantizer.Quantize(vec)
		if err != nil {
			return record.Vector{}, invalid(db.cfg.VectorField, err.Error())
		}
		v.Code = code
	}
	return v, nil
}

// embed calls the provider and checks the result against the float
// dimension already established in the store.
func (db *DB) embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := db.provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := db.checkEmbedding(ctx, vec); err != nil {
		return nil, err
	}
	return vec, nil
}

func (db *DB) checkEmbedding(ctx context.Context, vec []float32) error {
	d, err := db.adapter.Dimension(ctx, record.GroupFloat)
	if err != nil {
		return translateError("dimension", "", err)
	}
	if d > 0 && len(vec) != d {
		return &ProviderError{
			Provider: db.provider.Name(),
			Err:      fmt.Errorf("%w: got %d dimensions, store has %d", embed.ErrBadOutput, len(vec), d),
		}
	}
	return nil
}
