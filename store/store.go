// Package store persists failure records.
//
// Every implementation keeps records in insertion order and reports a
// missing id through a boolean, never through an error.
package store

import (
	"context"
	"errors"
)

var (
	// ErrDuplicateID is returned by Save when a record with the same id exists.
	ErrDuplicateID = errors.New("smartretry: duplicate failure record id")
	// ErrInvalidRecord is returned by Save for records without an id.
	ErrInvalidRecord = errors.New("smartretry: failure record has no id")
)

// Store is an ordered collection of failure records.
type Store interface {
	// Save appends rec and returns once it is durable.
	Save(ctx context.Context, rec FailureRecord) error
	// LoadAll returns every record, oldest first.
	LoadAll(ctx context.Context) ([]FailureRecord, error)
	// FindByID returns the record with id, or false when there is none.
	FindByID(ctx context.Context, id string) (FailureRecord, bool, error)
	// Remove deletes the record with id and reports whether it existed.
	Remove(ctx context.Context, id string) (bool, error)
	// Clear deletes every record.
	Clear(ctx context.Context) error
	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)
}

// Pather is implemented by stores backed by a single file.
type Pather interface {
	Path() string
}

// Validate checks the invariants Save enforces on a new record.
func Validate(rec FailureRecord) error {
	if rec.ID == "" {
		return ErrInvalidRecord
	}
	return nil
}
