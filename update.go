package entitydb

import (
	"context"
	"time"

	"github.com/hupe1980/entitydb/record"
)

// Update merges data into the record stored under key. Attributes in data
// overwrite stored ones and the id field is ignored unless it names a
// different key. For float and binary records a new text re-embeds the
// record; a numeric vector field replaces the vector after dimension
// validation. Update fails with *NotFoundError when key is absent.
func (db *DB) Update(ctx context.Context, key string, data map[string]any) (err error) {
	start := time.Now()
	defer func() {
		db.metrics.RecordUpdate(time.Since(start), err)
		db.logger.LogUpdate(ctx, key, err)
	}()

	if err := db.checkOpen(); err != nil {
		return err
	}
	return db.update(ctx, key, data)
}

func (db *DB) update(ctx context.Context, key string, data map[string]any) error {
	if key == "" {
		return invalid(db.cfg.IDField, "must not be empty")
	}
	err := db.adapter.Update(ctx, key, func(cur record.Record) (record.Record, error) {
		return db.merge(ctx, cur, data)
	})
	return translateError("update", key, err)
}

func (db *DB) merge(ctx context.Context, cur record.Record, data map[string]any) (record.Record, error) {
	enc := cur.Vector.Encoding
	p, err := db.codec.EncodePatch(cur.Key, data, enc)
	if err != nil {
		return record.Record{}, err
	}

	next := record.Record{
		Key:        cur.Key,
		Attributes: cur.Attributes.Merge(p.Attributes),
		Vector:     cur.Vector,
	}

	switch {
	case p.Text != nil:
		vec, err := db.embed(ctx, *p.Text)
		if err != nil {
			return record.Record{}, err
		}
		if next.Vector, err = db.vector(enc, vec); err != nil {
			return record.Record{}, err
		}
	case p.Vector != nil:
		if enc == EncodingNone {
			enc = EncodingManual
		}
		if next.Vector, err = db.vector(enc, p.Vector); err != nil {
			return record.Record{}, err
		}
	}
	return next, nil
}

// Delete removes the record stored under key. Deleting an absent key is
// not an error.
func (db *DB) Delete(ctx context.Context, key string) (err error) {
	start := time.Now()
	defer func() {
		db.metrics.RecordDelete(time.Since(start), err)
		db.logger.LogDelete(ctx, key, err)
	}()

	if err := db.checkOpen(); err != nil {
		return err
	}
	if key == "" {
		return invalid(db.cfg.IDField, "must not be empty")
	}
	return translateError("delete", key, db.adapter.Delete(ctx, key))
}
