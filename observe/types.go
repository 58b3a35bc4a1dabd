package observe

import (
	"context"
	"time"

	"github.com/aponysus/smartretry/classify"
	"github.com/aponysus/smartretry/policy"
)

// Call describes a single Execute invocation as it starts.
type Call struct {
	// ID is unique per Execute invocation within the process.
	ID     uint64
	Policy policy.RetryPolicy
	Start  time.Time
}

// AttemptRecord describes a single attempt.
type AttemptRecord struct {
	CallID    uint64
	Attempt   int
	StartTime time.Time
	EndTime   time.Time

	// Outcome is OutcomeSuccess, OutcomeRetryable (another attempt follows)
	// or OutcomeNonRetryable (terminal).
	Outcome classify.Outcome

	Err error

	Backoff time.Duration // delay scheduled after this attempt
}

// RetryEvent is emitted after a retryable failure, before the backoff sleep.
type RetryEvent struct {
	CallID  uint64
	Attempt int
	Err     error
	Delay   time.Duration
}

// Timeline is the structured record of a single call and all of its attempts.
type Timeline struct {
	CallID uint64
	Policy policy.RetryPolicy
	Start  time.Time
	End    time.Time

	// Attributes holds call-level metadata (stop reason, panics, etc.).
	Attributes map[string]string

	Attempts []AttemptRecord
	FinalErr error

	// RecordID is the id of the persisted failure record, if any.
	RecordID string
}

// Duration returns the wall time covered by the timeline.
func (tl Timeline) Duration() time.Duration {
	if tl.End.Before(tl.Start) {
		return 0
	}
	return tl.End.Sub(tl.Start)
}

// Observer receives lifecycle callbacks for a single call.
//
// Callbacks run synchronously on the calling goroutine, in attempt order.
type Observer interface {
	OnStart(ctx context.Context, call Call)
	OnAttempt(ctx context.Context, rec AttemptRecord)
	OnRetry(ctx context.Context, ev RetryEvent)

	OnSuccess(ctx context.Context, tl Timeline)
	OnFailure(ctx context.Context, tl Timeline)

	// OnRecordSaved follows OnFailure. err is the persistence error, if any.
	OnRecordSaved(ctx context.Context, tl Timeline, id string, err error)
}

// ContextStarter is implemented by observers that attach call-scoped values,
// such as a trace span, to the context every attempt runs with. The executor
// calls StartContext right after OnStart.
type ContextStarter interface {
	StartContext(ctx context.Context, call Call) context.Context
}
