package retry

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/aponysus/smartretry/classify"
	"github.com/aponysus/smartretry/observe"
	"github.com/aponysus/smartretry/store"
)

// Result is the outcome of one Execute call. Operation failures are reported
// here, never returned or panicked.
type Result[T any] struct {
	Success bool
	Data    T
	// Err is the last error returned by the operation.
	Err error

	Attempts      int
	TotalDuration time.Duration

	// RecordID is the id of the persisted failure record. Empty on success
	// and when the record could not be saved.
	RecordID string
	// StoreErr is the persistence error for the failure record, if any.
	StoreErr error
}

var callSeq atomic.Uint64

// Execute runs op until it succeeds, the retry predicate rejects its error,
// or the policy's attempts are exhausted.
func (e *Executor) Execute(ctx context.Context, op Operation) Result[any] {
	return Execute[any](ctx, e, OperationValue[any](op))
}

// Do runs op and returns its final error.
func (e *Executor) Do(ctx context.Context, op func(ctx context.Context) error) error {
	if op == nil {
		return ErrNilOperation
	}
	res := Execute(ctx, e, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return res.Err
}

// Execute is the typed form of Executor.Execute. A nil exec uses
// DefaultExecutor.
func Execute[T any](ctx context.Context, exec *Executor, op OperationValue[T]) Result[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	if op == nil {
		return Result[T]{Err: ErrNilOperation}
	}
	if exec == nil {
		var err error
		if exec, err = DefaultExecutor(); err != nil {
			return Result[T]{Err: err}
		}
	}

	pol := exec.policy
	callID := callSeq.Add(1)
	start := exec.clock()
	tl := observe.Timeline{
		CallID:     callID,
		Policy:     pol,
		Start:      start,
		Attributes: make(map[string]string),
		Attempts:   make([]observe.AttemptRecord, 0, pol.MaxAttempts),
	}
	call := observe.Call{ID: callID, Policy: pol, Start: start}
	exec.notify(ctx, "observer", func() { exec.observer.OnStart(ctx, call) })

	callCtx := ctx
	if cs, ok := exec.observer.(observe.ContextStarter); ok {
		exec.notify(ctx, "observer", func() {
			if next := cs.StartContext(ctx, call); next != nil {
				callCtx = next
			}
		})
	}

	recordAttempt := func(rec observe.AttemptRecord) {
		tl.Attempts = append(tl.Attempts, rec)
		exec.notify(ctx, "observer", func() { exec.observer.OnAttempt(ctx, rec) })
	}

	var lastErr error
	attempts := 0
	for attempts < pol.MaxAttempts {
		attempts++

		attemptCtx := observe.WithAttemptInfo(observe.WithoutTimelineCapture(callCtx), observe.AttemptInfo{
			Attempt:     attempts,
			MaxAttempts: pol.MaxAttempts,
		})

		rec := observe.AttemptRecord{CallID: callID, Attempt: attempts, StartTime: exec.clock()}
		val, err := invoke(exec, attemptCtx, op)
		rec.EndTime = exec.clock()
		rec.Err = err

		if err == nil {
			rec.Outcome = classify.Outcome{Kind: classify.OutcomeSuccess, Reason: "success"}
			recordAttempt(rec)

			tl.End = exec.clock()
			exec.notify(ctx, "observer", func() { exec.observer.OnSuccess(ctx, tl) })
			observe.PublishTimeline(ctx, tl)
			return Result[T]{
				Success:       true,
				Data:          val,
				Attempts:      attempts,
				TotalDuration: elapsed(start, tl.End),
			}
		}
		lastErr = err

		out := exec.classify(ctx, err)
		if !out.Retryable() {
			out.Kind = classify.OutcomeNonRetryable
			rec.Outcome = out
			recordAttempt(rec)
			tl.Attributes["stop_reason"] = "non_retryable"
			break
		}
		if attempts >= pol.MaxAttempts {
			rec.Outcome = classify.Outcome{
				Kind:       classify.OutcomeNonRetryable,
				Reason:     "attempts_exhausted",
				Attributes: out.Attributes,
			}
			recordAttempt(rec)
			tl.Attributes["stop_reason"] = "attempts_exhausted"
			break
		}

		delay := pol.Delay(attempts)
		rec.Outcome = out
		rec.Backoff = delay
		recordAttempt(rec)

		if exec.onRetry != nil {
			exec.notify(ctx, "on_retry", func() { exec.onRetry(attempts, err) })
		}
		exec.notify(ctx, "observer", func() {
			exec.observer.OnRetry(ctx, observe.RetryEvent{CallID: callID, Attempt: attempts, Err: err, Delay: delay})
		})

		if serr := exec.sleep(ctx, delay); serr != nil {
			tl.Attributes["stop_reason"] = "context_done"
			tl.Attributes["context_error"] = serr.Error()
			break
		}
	}

	tl.End = exec.clock()
	tl.FinalErr = lastErr
	total := elapsed(start, tl.End)

	rec := exec.newRecord(lastErr, attempts, total, tl.End)
	storeErr := exec.store.Save(context.WithoutCancel(ctx), rec)
	if storeErr != nil {
		storeErr = fmt.Errorf("smartretry: save failure record %s: %w", rec.ID, storeErr)
	} else {
		tl.RecordID = rec.ID
	}

	exec.notify(ctx, "observer", func() { exec.observer.OnFailure(ctx, tl) })
	exec.notify(ctx, "observer", func() { exec.observer.OnRecordSaved(ctx, tl, rec.ID, storeErr) })
	observe.PublishTimeline(ctx, tl)

	return Result[T]{
		Err:           lastErr,
		Attempts:      attempts,
		TotalDuration: total,
		RecordID:      tl.RecordID,
		StoreErr:      storeErr,
	}
}

func elapsed(start, end time.Time) time.Duration {
	if end.Before(start) {
		return 0
	}
	return end.Sub(start)
}

func invoke[T any](exec *Executor, ctx context.Context, op OperationValue[T]) (val T, err error) {
	if exec.recoverPanics {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				val = zero
				err = &PanicError{Component: "operation", Value: r, Stack: debug.Stack()}
			}
		}()
	}
	return op(ctx)
}

func (e *Executor) classify(ctx context.Context, err error) (out classify.Outcome) {
	if e.recoverPanics {
		defer func() {
			if r := recover(); r != nil {
				e.logger.ErrorContext(ctx, "retry predicate panicked", "panic", r)
				out = classify.Outcome{Kind: classify.OutcomeNonRetryable, Reason: "panic_in_classifier"}
			}
		}()
	}
	return e.classifier.Classify(err)
}

// notify runs a user callback, isolating panics when RecoverPanics is set.
func (e *Executor) notify(ctx context.Context, component string, fn func()) {
	if e.recoverPanics {
		defer func() {
			if r := recover(); r != nil {
				perr := &PanicError{Component: component, Value: r, Stack: debug.Stack()}
				e.logger.ErrorContext(ctx, "callback panicked", "component", component, "error", perr)
			}
		}()
	}
	fn()
}

func (e *Executor) newRecord(err error, attempts int, total time.Duration, at time.Time) store.FailureRecord {
	d := classify.Describe(err)
	return store.FailureRecord{
		ID:            e.newID(),
		URL:           d.URL,
		Method:        d.Method,
		Headers:       d.Headers,
		Body:          d.Body,
		Error:         d.Message,
		StatusCode:    d.StatusCode,
		Attempts:      attempts,
		TotalDuration: total,
		Timestamp:     at.UTC().Truncate(time.Millisecond),
	}
}
