// Package smartretry is the convenience entry point: one-shot retried calls
// and construction of a reusable manager.
package smartretry

import (
	"context"

	"github.com/aponysus/smartretry/retry"
)

// Manager runs retried operations and exposes the persisted failure log.
type Manager = retry.Executor

// Result is the outcome of a retried operation.
type Result[T any] = retry.Result[T]

// NewManager builds a Manager from opts.
func NewManager(opts ...retry.Option) (*Manager, error) {
	return retry.New(opts...)
}

// Retry runs op once under a manager built from opts.
//
// Construction failures (invalid policy, unwritable failure log) are reported
// in Result.Err with zero attempts.
func Retry[T any](ctx context.Context, op retry.OperationValue[T], opts ...retry.Option) Result[T] {
	m, err := NewManager(opts...)
	if err != nil {
		return Result[T]{Err: err}
	}
	return retry.Execute(ctx, m, op)
}

// Init sets the global default manager.
// It must be called before Do/Execute are used.
func Init(m *Manager) {
	retry.SetGlobal(m)
}

// Execute runs op with the default manager.
func Execute[T any](ctx context.Context, op retry.OperationValue[T]) Result[T] {
	return retry.Execute(ctx, nil, op)
}

// Do runs op with the default manager and returns its final error.
func Do(ctx context.Context, op func(ctx context.Context) error) error {
	m, err := retry.DefaultExecutor()
	if err != nil {
		return err
	}
	return m.Do(ctx, op)
}
