package retry

import (
	"context"

	"github.com/aponysus/smartretry/policy"
	"github.com/aponysus/smartretry/store"
)

// FailedRequests returns every persisted failure record, oldest first.
func (e *Executor) FailedRequests(ctx context.Context) ([]store.FailureRecord, error) {
	return e.store.LoadAll(ctx)
}

// FailedRequest returns the record with id, or false when there is none.
func (e *Executor) FailedRequest(ctx context.Context, id string) (store.FailureRecord, bool, error) {
	return e.store.FindByID(ctx, id)
}

// RemoveFailedRequest deletes the record with id and reports whether it
// existed.
func (e *Executor) RemoveFailedRequest(ctx context.Context, id string) (bool, error) {
	return e.store.Remove(ctx, id)
}

// ClearFailedRequests deletes every record.
func (e *Executor) ClearFailedRequests(ctx context.Context) error {
	return e.store.Clear(ctx)
}

// FailedRequestCount returns the number of persisted records.
func (e *Executor) FailedRequestCount(ctx context.Context) (int, error) {
	return e.store.Count(ctx)
}

// LogFilePath returns the failure log location, or "" when the store is not
// file backed.
func (e *Executor) LogFilePath() string {
	if p, ok := e.store.(store.Pather); ok {
		return p.Path()
	}
	return ""
}

// Store returns the failure store.
func (e *Executor) Store() store.Store { return e.store }

// Policy returns the normalized retry policy.
func (e *Executor) Policy() policy.RetryPolicy { return e.policy }
