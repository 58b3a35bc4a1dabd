// Package pgstore keeps failure records in PostgreSQL.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aponysus/smartretry/store"
)

const createRecordsTable = `
CREATE TABLE IF NOT EXISTS failure_records (
    seq        BIGSERIAL,
    id         TEXT PRIMARY KEY,
    record     JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

var _ store.Store = (*Store)(nil)

// Store implements store.Store on a pgx connection pool.
type Store struct {
	pool  *pgxpool.Pool
	owned bool
}

// Open connects to dsn, pings the server and creates the records table.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 4
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("new pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s, err := New(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// New uses an existing pool and ensures the records table exists. The caller
// keeps ownership of pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, createRecordsTable); err != nil {
		return nil, fmt.Errorf("create failure_records table: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close closes the pool when the store opened it.
func (s *Store) Close() error {
	if s.owned {
		s.pool.Close()
	}
	return nil
}

func (s *Store) Save(ctx context.Context, rec store.FailureRecord) error {
	if err := store.Validate(rec); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal failure record: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO failure_records (id, record) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		rec.ID, data,
	)
	if err != nil {
		return fmt.Errorf("insert failure record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrDuplicateID
	}
	return nil
}

func (s *Store) LoadAll(ctx context.Context) ([]store.FailureRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT record FROM failure_records ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("list failure records: %w", err)
	}
	defer rows.Close()

	var records []store.FailureRecord
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan failure record: %w", err)
		}
		var rec store.FailureRecord
		if err := json.Unmarshal(data, &rec); err != nil {
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
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT record FROM failure_records WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.FailureRecord{}, false, nil
	}
	if err != nil {
		return store.FailureRecord{}, false, fmt.Errorf("get failure record: %w", err)
	}
	var rec store.FailureRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return store.FailureRecord{}, false, fmt.Errorf("decode failure record: %w", err)
	}
	return rec, true, nil
}

func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM failure_records WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete failure record: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM failure_records`); err != nil {
		return fmt.Errorf("clear failure records: %w", err)
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM failure_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count failure records: %w", err)
	}
	return n, nil
}
