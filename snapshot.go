package entitydb

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/hupe1980/entitydb/blobstore"
	"github.com/hupe1980/entitydb/metadata"
	"github.com/hupe1980/entitydb/quantization"
	"github.com/hupe1980/entitydb/record"
	"github.com/hupe1980/entitydb/storage"
)

// Snapshot blob layout: a zstd stream of msgpack values, one header, one
// frame per record and a final frame with End set and the record count.
const (
	snapshotMagic   = "entitydb-snapshot"
	snapshotVersion = 1
)

// ErrCorruptSnapshot is returned by Restore for unreadable snapshots.
var ErrCorruptSnapshot = errors.New("entitydb: corrupt snapshot")

type snapshotHeader struct {
	Magic   string `msgpack:"magic"`
	Version int    `msgpack:"v"`
	Name    string `msgpack:"name"`
	FloatD  int    `msgpack:"fd,omitempty"`
	ManualD int    `msgpack:"md,omitempty"`
}

type snapshotFrame struct {
	Key        string            `msgpack:"k,omitempty"`
	Attributes metadata.Document `msgpack:"a,omitempty"`
	Encoding   record.Encoding   `msgpack:"e,omitempty"`
	Float      []float32         `msgpack:"f,omitempty"`
	Code       []byte            `msgpack:"c,omitempty"`
	End        bool              `msgpack:"end,omitempty"`
	Count      int               `msgpack:"n,omitempty"`
}

// Snapshot writes every record to the blob name in bs and returns the
// number of records written. Undecodable records are skipped and logged.
// The blob appears only if the whole snapshot succeeds.
func (db *DB) Snapshot(ctx context.Context, bs blobstore.BlobStore, name string) (n int, err error) {
	defer func() { db.logger.LogSnapshot(ctx, "snapshot", name, n, err) }()

	if err := db.checkOpen(); err != nil {
		return 0, err
	}

	w, err := bs.Create(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("snapshot %s: %w", name, err)
	}
	n, err = db.writeSnapshot(ctx, w)
	if err != nil {
		_ = w.Abort()
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("snapshot %s: %w", name, err)
	}
	return n, nil
}

func (db *DB) writeSnapshot(ctx context.Context, w io.Writer) (int, error) {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return 0, err
	}
	done := false
	defer func() {
		if !done {
			_ = zw.Close()
		}
	}()

	fd, err := db.adapter.Dimension(ctx, record.GroupFloat)
	if err != nil {
		return 0, translateError("snapshot", "", err)
	}
	md, err := db.adapter.Dimension(ctx, record.GroupManual)
	if err != nil {
		return 0, translateError("snapshot", "", err)
	}

	enc := msgpack.NewEncoder(zw)
	if err := enc.Encode(snapshotHeader{
		Magic:   snapshotMagic,
		Version: snapshotVersion,
		Name:    db.cfg.Name,
		FloatD:  fd,
		ManualD: md,
	}); err != nil {
		return 0, err
	}

	n := 0
	for r, err := range db.adapter.Scan(ctx, nil) {
		if err != nil {
			var de *storage.DecodeError
			if errors.As(err, &de) {
				db.logger.LogSkipped(ctx, de.Key, err)
				continue
			}
			return 0, translateError("snapshot", "", err)
		}
		f := snapshotFrame{
			Key:        r.Key,
			Attributes: r.Attributes,
			Encoding:   r.Vector.Encoding,
			Float:      r.Vector.Float,
		}
		if r.Vector.Code.Valid() {
			if f.Code, err = r.Vector.Code.MarshalBinary(); err != nil {
				return 0, err
			}
		}
		if err := enc.Encode(f); err != nil {
			return 0, err
		}
		n++
	}

	if err := enc.Encode(snapshotFrame{End: true, Count: n}); err != nil {
		return 0, err
	}
	done = true
	return n, zw.Close()
}

// Restore upserts every record of the snapshot blob name into the DB and
// returns the number restored. Records already in the DB that are not in
// the snapshot are kept. Restore stops at the first record it cannot
// store; records written before it stay.
func (db *DB) Restore(ctx context.Context, bs blobstore.BlobStore, name string) (n int, err error) {
	defer func() { db.logger.LogSnapshot(ctx, "restore", name, n, err) }()

	if err := db.checkOpen(); err != nil {
		return 0, err
	}

	rc, err := blobstore.ReadAll(ctx, bs, name)
	if err != nil {
		return 0, fmt.Errorf("restore %s: %w", name, err)
	}
	defer func() { _ = rc.Close() }()

	zr, err := zstd.NewReader(rc)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	defer zr.Close()

	dec := msgpack.NewDecoder(zr)
	var h snapshotHeader
	if err := dec.Decode(&h); err != nil {
		return 0, fmt.Errorf("%w: header: %w", ErrCorruptSnapshot, err)
	}
	if h.Magic != snapshotMagic || h.Version != snapshotVersion {
		return 0, fmt.Errorf("%w: unsupported header %q v%d", ErrCorruptSnapshot, h.Magic, h.Version)
	}
	if err := db.checkSnapshotDims(ctx, h); err != nil {
		return 0, err
	}

	for {
		var f snapshotFrame
		if err := dec.Decode(&f); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return n, fmt.Errorf("%w: record %d: %w", ErrCorruptSnapshot, n, err)
		}
		if f.End {
			if f.Count != n {
				return n, fmt.Errorf("%w: %d records, trailer says %d", ErrCorruptSnapshot, n, f.Count)
			}
			return n, nil
		}

		rec, err := f.record()
		if err != nil {
			return n, fmt.Errorf("%w: record %q: %w", ErrCorruptSnapshot, f.Key, err)
		}
		if err := db.adapter.Put(ctx, rec); err != nil {
			return n, translateError("restore", rec.Key, err)
		}
		n++
	}
}

// checkSnapshotDims rejects a snapshot whose dimensions conflict with the
// ones already established in the DB, before anything is written.
func (db *DB) checkSnapshotDims(ctx context.Context, h snapshotHeader) error {
	for _, gd := range []struct {
		g record.Group
		d int
	}{{record.GroupFloat, h.FloatD}, {record.GroupManual, h.ManualD}} {
		if gd.d == 0 {
			continue
		}
		cur, err := db.adapter.Dimension(ctx, gd.g)
		if err != nil {
			return translateError("restore", "", err)
		}
		if err := record.CheckDimension(gd.g, cur, gd.d); err != nil {
			return err
		}
	}
	return nil
}

func (f snapshotFrame) record() (record.Record, error) {
	if f.Key == "" {
		return record.Record{}, errors.New("empty key")
	}
	if f.Encoding > record.EncodingManual {
		return record.Record{}, fmt.Errorf("unknown encoding %d", f.Encoding)
	}
	r := record.Record{
		Key:        f.Key,
		Attributes: f.Attributes,
		Vector:     record.Vector{Encoding: f.Encoding, Float: f.Float},
	}
	if r.Attributes == nil {
		r.Attributes = metadata.Document{}
	}
	if len(f.Code) > 0 {
		var c quantization.Code
		if err := c.UnmarshalBinary(f.Code); err != nil {
			return record.Record{}, err
		}
		r.Vector.Code = c
	}
	return r, nil
}
