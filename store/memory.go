package store

import (
	"context"
	"sync"
)

var _ Store = (*Memory)(nil)

// Memory is an in-process Store. The zero value is ready to use.
type Memory struct {
	mu      sync.Mutex
	records []FailureRecord
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Save(_ context.Context, rec FailureRecord) error {
	if err := Validate(rec); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ID == rec.ID {
			return ErrDuplicateID
		}
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *Memory) LoadAll(context.Context) ([]FailureRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]FailureRecord, len(m.records))
	copy(out, m.records)
	return out, nil
}

func (m *Memory) FindByID(_ context.Context, id string) (FailureRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ID == id {
			return r, true, nil
		}
	}
	return FailureRecord{}, false, nil
}

func (m *Memory) Remove(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.records {
		if r.ID == id {
			m.records = append(m.records[:i:i], m.records[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	m.records = nil
	m.mu.Unlock()
	return nil
}

func (m *Memory) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records), nil
}
