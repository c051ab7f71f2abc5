package metastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key      TEXT PRIMARY KEY,
	value    BLOB NOT NULL,
	revision INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS kv_seq (
	id  INTEGER PRIMARY KEY CHECK (id = 1),
	seq INTEGER NOT NULL
);
INSERT OR IGNORE INTO kv_seq (id, seq) VALUES (1, 0);
`

// SQLiteStore implements Store on a single SQLite file.
//
// Revisions come from one table-wide sequence so a deleted and recreated key
// never reuses a revision a stale reader might still hold.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path.
// Use ":memory:" for a throwaway database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: sqlite path is required", ErrInvalidConfig)
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// Serialize writers; SQLite allows one at a time anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*Entry, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	e := Entry{Key: key}
	err := s.db.QueryRowContext(ctx, `SELECT value, revision FROM kv WHERE key = ?`, key).Scan(&e.Value, &e.Revision)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite get %q: %w", key, err)
	}
	return &e, nil
}

func (s *SQLiteStore) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	if err := ValidateKey(key); err != nil {
		return 0, err
	}
	var rev uint64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if rev, err = nextRevision(ctx, tx); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO kv (key, value, revision) VALUES (?, ?, ?) ON CONFLICT(key) DO NOTHING`,
			key, nonNil(value), rev)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrKeyExists
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrKeyExists) {
			return 0, ErrKeyExists
		}
		return 0, fmt.Errorf("sqlite create %q: %w", key, err)
	}
	return rev, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	if err := ValidateKey(key); err != nil {
		return 0, err
	}
	var rev uint64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if rev, err = nextRevision(ctx, tx); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO kv (key, value, revision) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, revision = excluded.revision`,
			key, nonNil(value), rev)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("sqlite put %q: %w", key, err)
	}
	return rev, nil
}

func (s *SQLiteStore) Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error) {
	if err := ValidateKey(key); err != nil {
		return 0, err
	}
	var rev uint64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var current uint64
		err := tx.QueryRowContext(ctx, `SELECT revision FROM kv WHERE key = ?`, key).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if current != revision {
			return ErrRevisionMismatch
		}
		if rev, err = nextRevision(ctx, tx); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE kv SET value = ?, revision = ? WHERE key = ?`, nonNil(value), rev, key)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrRevisionMismatch) {
			return 0, err
		}
		return 0, fmt.Errorf("sqlite update %q: %w", key, err)
	}
	return rev, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("sqlite delete %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, prefix string) ([]Entry, error) {
	if err := ValidatePrefix(prefix); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value, revision FROM kv WHERE substr(key, 1, ?) = ? ORDER BY key`,
		len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("sqlite list %q: %w", prefix, err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value, &e.Revision); err != nil {
			return nil, fmt.Errorf("sqlite list %q: %w", prefix, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite list %q: %w", prefix, err)
	}
	return entries, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nextRevision(ctx context.Context, tx *sql.Tx) (uint64, error) {
	var rev uint64
	err := tx.QueryRowContext(ctx, `UPDATE kv_seq SET seq = seq + 1 WHERE id = 1 RETURNING seq`).Scan(&rev)
	return rev, err
}

// nonNil keeps the NOT NULL constraint satisfied for empty values.
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

var _ Store = (*SQLiteStore)(nil)
