package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

// SQLite is a Store backed by a single table in a SQLite database, using
// the pure-Go modernc.org/sqlite driver.
//
// Schema:
//
//	CREATE TABLE kv (k BLOB PRIMARY KEY, v BLOB NOT NULL) WITHOUT ROWID
type SQLite struct {
	db    *sql.DB
	opts  *Options
	owned bool
}

// SQLiteOptions configures the SQLite store.
type SQLiteOptions struct {
	// Options is the common kv options (separator, etc.).
	Options *Options

	// Path is the database file. ":memory:" opens a private in-memory database.
	Path string

	// DB uses an existing handle instead of opening Path. The caller keeps
	// ownership: Close does not close it.
	DB *sql.DB
}

const sqliteSchema = `CREATE TABLE IF NOT EXISTS kv (k BLOB PRIMARY KEY, v BLOB NOT NULL) WITHOUT ROWID`

// NewSQLite opens (or creates) a SQLite-backed Store and ensures its schema.
func NewSQLite(ctx context.Context, sopts SQLiteOptions) (*SQLite, error) {
	db, owned := sopts.DB, false
	if db == nil {
		if sopts.Path == "" {
			return nil, errors.New("kv: SQLiteOptions.Path or DB is required")
		}
		dsn := sopts.Path
		if dsn != ":memory:" {
			dsn = "file:" + dsn + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		}
		var err error
		db, err = sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("kv: open sqlite: %w", err)
		}
		// one writer connection; also keeps ":memory:" on a single database
		db.SetMaxOpenConns(1)
		owned = true
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		if owned {
			_ = db.Close()
		}
		return nil, fmt.Errorf("kv: ensure sqlite schema: %w", err)
	}
	return &SQLite{db: db, opts: sopts.Options, owned: owned}, nil
}

func (s *SQLite) Get(ctx context.Context, key Key) ([]byte, error) {
	var val []byte
	err := s.db.QueryRowContext(ctx, `SELECT v FROM kv WHERE k = ?`, s.opts.encode(key)).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, s.mapErr(err)
	}
	if val == nil {
		val = []byte{}
	}
	return val, nil
}

func (s *SQLite) Set(ctx context.Context, key Key, value []byte) error {
	return s.Apply(ctx, []Entry{{Key: key, Value: value}}, nil)
}

func (s *SQLite) Delete(ctx context.Context, key Key) error {
	return s.Apply(ctx, nil, []Key{key})
}

func (s *SQLite) List(ctx context.Context, prefix Key) iter.Seq2[Entry, error] {
	p := s.opts.prefixBytes(prefix)

	return func(yield func(Entry, error) bool) {
		entries, err := s.list(ctx, p)
		if err != nil {
			yield(Entry{}, err)
			return
		}
		for _, e := range entries {
			if !yield(e, nil) {
				return
			}
		}
	}
}

// list materializes the range so the single connection is released before
// the caller sees the first entry.
func (s *SQLite) list(ctx context.Context, p []byte) ([]Entry, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if len(p) == 0 {
		rows, err = s.db.QueryContext(ctx, `SELECT k, v FROM kv ORDER BY k`)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT k, v FROM kv WHERE k >= ? AND k < ? ORDER BY k`, p, prefixEnd(p))
	}
	if err != nil {
		return nil, s.mapErr(err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var k, v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out = append(out, Entry{Key: s.opts.decode(k), Value: v})
	}
	return out, rows.Err()
}

// prefixEnd returns the smallest key greater than every key starting with p.
// p always ends in the separator, which is never 0xff.
func prefixEnd(p []byte) []byte {
	end := append([]byte(nil), p...)
	end[len(end)-1]++
	return end
}

func (s *SQLite) BatchSet(ctx context.Context, entries []Entry) error {
	return s.Apply(ctx, entries, nil)
}

func (s *SQLite) BatchDelete(ctx context.Context, keys []Key) error {
	return s.Apply(ctx, nil, keys)
}

// Apply runs all changes in one transaction.
func (s *SQLite) Apply(ctx context.Context, sets []Entry, deletes []Key) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.mapErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	if len(deletes) > 0 {
		stmt, err := tx.PrepareContext(ctx, `DELETE FROM kv WHERE k = ?`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, key := range deletes {
			if _, err := stmt.ExecContext(ctx, s.opts.encode(key)); err != nil {
				return err
			}
		}
	}
	if len(sets) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO kv(k, v) VALUES(?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, e := range sets {
			v := e.Value
			if v == nil {
				v = []byte{}
			}
			if _, err := stmt.ExecContext(ctx, s.opts.encode(e.Key), v); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func (s *SQLite) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) mapErr(err error) error {
	if err != nil && err.Error() == "sql: database is closed" {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return err
}
