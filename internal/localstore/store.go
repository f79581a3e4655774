package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrUnknownTable = errors.New("unknown table")
	ErrUnknownIndex = errors.New("unknown index")
)

// Record is anything that can be stored in a table. The key is assigned by
// the caller and never changes.
type Record interface {
	RecordKey() string
}

// Store is the table-scoped contract every component reads and writes through.
// Each call runs in its own transaction.
type Store interface {
	Get(ctx context.Context, table, key string, dst any) error
	GetAll(ctx context.Context, table string) ([]json.RawMessage, error)
	GetAllByIndex(ctx context.Context, table, index string, value any) ([]json.RawMessage, error)
	Put(ctx context.Context, table string, record Record) error
	Delete(ctx context.Context, table, key string) error
	Close() error
}

// SQLiteStore implements Store on a single SQLite file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// compile-time check
var _ Store = (*SQLiteStore)(nil)

// Open opens (creating if needed) the database at path and brings its schema
// up to the latest version.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	// SQLite allows one writer; a single connection serializes transactions.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, path: path}, nil
}

func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Version returns the applied schema version.
func (s *SQLiteStore) Version(ctx context.Context) (int64, error) {
	p, err := newProvider(s.db)
	if err != nil {
		return 0, err
	}
	return p.GetDBVersion(ctx)
}

func (s *SQLiteStore) Get(ctx context.Context, table, key string, dst any) error {
	if err := checkTable(table); err != nil {
		return err
	}
	var body string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		q := fmt.Sprintf("SELECT body FROM %s WHERE record_key = ?", table)
		return tx.QueryRowContext(ctx, q, key).Scan(&body)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %q: %w", table, key, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("reading %s %q: %w", table, key, err)
	}
	if err := json.Unmarshal([]byte(body), dst); err != nil {
		return fmt.Errorf("decoding %s %q: %w", table, key, err)
	}
	return nil
}

func (s *SQLiteStore) GetAll(ctx context.Context, table string) ([]json.RawMessage, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	q := fmt.Sprintf("SELECT body FROM %s ORDER BY seq", table)
	return s.query(ctx, table, q)
}

func (s *SQLiteStore) GetAllByIndex(ctx context.Context, table, index string, value any) ([]json.RawMessage, error) {
	path, err := indexPath(table, index)
	if err != nil {
		return nil, err
	}
	// The expression must match the index definition for SQLite to use it.
	q := fmt.Sprintf("SELECT body FROM %s WHERE json_extract(body, '%s') = ? ORDER BY seq", table, path)
	return s.query(ctx, table, q, value)
}

// Put inserts or replaces a record. A replaced record keeps its original
// position in insertion order.
func (s *SQLiteStore) Put(ctx context.Context, table string, record Record) error {
	if err := checkTable(table); err != nil {
		return err
	}
	key := record.RecordKey()
	if key == "" {
		return fmt.Errorf("writing %s: record key is required", table)
	}
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding %s %q: %w", table, key, err)
	}
	q := fmt.Sprintf(`INSERT INTO %s (record_key, body) VALUES (?, ?)
ON CONFLICT(record_key) DO UPDATE SET body = excluded.body`, table)
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, q, key, string(body))
		return err
	})
	if err != nil {
		return fmt.Errorf("writing %s %q: %w", table, key, err)
	}
	return nil
}

// Delete removes a record. Deleting a missing key is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, table, key string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	q := fmt.Sprintf("DELETE FROM %s WHERE record_key = ?", table)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, q, key)
		return err
	})
	if err != nil {
		return fmt.Errorf("deleting %s %q: %w", table, key, err)
	}
	return nil
}

func (s *SQLiteStore) query(ctx context.Context, table, q string, args ...any) ([]json.RawMessage, error) {
	var out []json.RawMessage
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var body string
			if err := rows.Scan(&body); err != nil {
				return err
			}
			out = append(out, json.RawMessage(body))
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", table, err)
	}
	return out, nil
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func unknownTable(table string) error {
	return fmt.Errorf("%w %q", ErrUnknownTable, table)
}

func unknownIndex(table, index string) error {
	return fmt.Errorf("%w %q on %s", ErrUnknownIndex, index, table)
}
