// Package sqlitestore keeps failure records in a SQLite database.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aponysus/smartretry/store"

	_ "modernc.org/sqlite"
)

const createRecordsTable = `
CREATE TABLE IF NOT EXISTS failure_records (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    id         TEXT NOT NULL UNIQUE,
    record     TEXT NOT NULL,
    created_at DATETIME NOT NULL
)`

// Compile-time interface satisfaction check.
var _ store.Store = (*Store)(nil)

// Store implements store.Store using SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens the SQLite database at dbPath and creates the records table.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and writes serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(createRecordsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create failure_records table: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database location.
func (s *Store) Path() string { return s.path }

func (s *Store) Save(ctx context.Context, rec store.FailureRecord) error {
	if err := store.Validate(rec); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal failure record: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM failure_records WHERE id = ?`, rec.ID).Scan(&exists)
	switch {
	case err == nil:
		return store.ErrDuplicateID
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("check failure record: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO failure_records (id, record, created_at) VALUES (?, ?, ?)`,
		rec.ID, string(data), time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("insert failure record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit failure record: %w", err)
	}
	return nil
}

func (s *Store) LoadAll(ctx context.Context) ([]store.FailureRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM failure_records ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("list failure records: %w", err)
	}
	defer rows.Close()

	var records []store.FailureRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan failure record: %w", err)
		}
		var rec store.FailureRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("decode failure record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate failure records: %w", err)
	}
	return records, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (store.FailureRecord, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM failure_records WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return store.FailureRecord{}, false, nil
	}
	if err != nil {
		return store.FailureRecord{}, false, fmt.Errorf("get failure record: %w", err)
	}
	var rec store.FailureRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return store.FailureRecord{}, false, fmt.Errorf("decode failure record: %w", err)
	}
	return rec, true, nil
}

func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM failure_records WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete failure record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM failure_records`); err != nil {
		return fmt.Errorf("clear failure records: %w", err)
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM failure_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count failure records: %w", err)
	}
	return n, nil
}
