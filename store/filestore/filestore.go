// Package filestore keeps failure records in a single pretty-printed JSON
// array on disk.
//
// Every operation reads the whole file and mutations rewrite it in full.
// Writes within one process are serialized; separate processes sharing a
// file can still overwrite each other's appends.
package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/aponysus/smartretry/store"
)

// DefaultFileName is used when no path is configured.
const DefaultFileName = "smart-retry-log.json"

var (
	_ store.Store  = (*Store)(nil)
	_ store.Pather = (*Store)(nil)
)

// Store is a store.Store backed by one JSON file.
type Store struct {
	mu   sync.Mutex
	path string
}

// Open returns a store for path, creating the file holding an empty array
// when it does not exist. An empty path resolves to DefaultFileName; relative
// paths are fixed against the working directory at the time of the call.
func Open(path string) (*Store, error) {
	if path == "" {
		path = DefaultFileName
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("smartretry: resolve log path: %w", err)
	}
	path = abs

	s := &Store{path: path}
	if err := s.ensureFile(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file location.
func (s *Store) Path() string { return s.path }

func (s *Store) ensureFile() error {
	_, err := os.Stat(s.path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("smartretry: stat log file: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("smartretry: create log directory: %w", err)
		}
	}
	return s.write(nil)
}

func (s *Store) Save(ctx context.Context, rec store.FailureRecord) error {
	if err := store.Validate(rec); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read(ctx)
	if err != nil {
		return err
	}
	for _, r := range records {
		if r.ID == rec.ID {
			return store.ErrDuplicateID
		}
	}
	return s.write(append(records, rec))
}

func (s *Store) LoadAll(ctx context.Context) ([]store.FailureRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(ctx)
}

func (s *Store) FindByID(ctx context.Context, id string) (store.FailureRecord, bool, error) {
	records, err := s.LoadAll(ctx)
	if err != nil {
		return store.FailureRecord{}, false, err
	}
	for _, r := range records {
		if r.ID == id {
			return r, true, nil
		}
	}
	return store.FailureRecord{}, false, nil
}

func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read(ctx)
	if err != nil {
		return false, err
	}
	filtered := make([]store.FailureRecord, 0, len(records))
	for _, r := range records {
		if r.ID != id {
			filtered = append(filtered, r)
		}
	}
	if len(filtered) == len(records) {
		return false, nil
	}
	if err := s.write(filtered); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(nil)
}

func (s *Store) Count(ctx context.Context) (int, error) {
	records, err := s.LoadAll(ctx)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

func (s *Store) read(ctx context.Context) ([]store.FailureRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("smartretry: read log file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var records []store.FailureRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("smartretry: decode log file %s: %w", s.path, err)
	}
	return records, nil
}

// write replaces the file contents through a temp file and rename so readers
// never observe a partial array.
func (s *Store) write(records []store.FailureRecord) error {
	if records == nil {
		records = []store.FailureRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("smartretry: encode log file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("smartretry: create temp log file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("smartretry: write log file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("smartretry: sync log file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("smartretry: close log file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("smartretry: replace log file: %w", err)
	}
	return nil
}
