package observe

import (
	"context"
	"log/slog"
)

// LogObserver writes call events to a slog.Logger: retries at debug,
// terminal failures at warn and persistence errors at error.
type LogObserver struct {
	BaseObserver
	Logger *slog.Logger
}

// NewLogObserver returns a LogObserver writing to logger, or slog.Default()
// when logger is nil.
func NewLogObserver(logger *slog.Logger) LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return LogObserver{Logger: logger}
}

func (o LogObserver) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o LogObserver) OnRetry(ctx context.Context, ev RetryEvent) {
	o.logger().DebugContext(ctx, "retrying operation",
		"attempt", ev.Attempt,
		"delay", ev.Delay,
		"error", ev.Err,
	)
}

func (o LogObserver) OnFailure(ctx context.Context, tl Timeline) {
	o.logger().WarnContext(ctx, "operation failed",
		"attempts", len(tl.Attempts),
		"duration", tl.Duration(),
		"error", tl.FinalErr,
	)
}

func (o LogObserver) OnRecordSaved(ctx context.Context, tl Timeline, id string, err error) {
	if err != nil {
		o.logger().ErrorContext(ctx, "failed to save failure record",
			"id", id,
			"error", err,
		)
		return
	}
	o.logger().DebugContext(ctx, "saved failure record", "id", id)
}
