package observe

import "context"

// NoopObserver implements Observer with no-op methods.
type NoopObserver struct{}

func (NoopObserver) OnStart(context.Context, Call)                          {}
func (NoopObserver) OnAttempt(context.Context, AttemptRecord)               {}
func (NoopObserver) OnRetry(context.Context, RetryEvent)                    {}
func (NoopObserver) OnSuccess(context.Context, Timeline)                    {}
func (NoopObserver) OnFailure(context.Context, Timeline)                    {}
func (NoopObserver) OnRecordSaved(context.Context, Timeline, string, error) {}

// BaseObserver implements Observer with no-op methods.
//
// Users can embed BaseObserver to implement only the callbacks they need.
type BaseObserver struct{}

func (BaseObserver) OnStart(context.Context, Call)                          {}
func (BaseObserver) OnAttempt(context.Context, AttemptRecord)               {}
func (BaseObserver) OnRetry(context.Context, RetryEvent)                    {}
func (BaseObserver) OnSuccess(context.Context, Timeline)                    {}
func (BaseObserver) OnFailure(context.Context, Timeline)                    {}
func (BaseObserver) OnRecordSaved(context.Context, Timeline, string, error) {}

// MultiObserver fans out events to multiple observers.
type MultiObserver struct {
	Observers []Observer
}

func (m MultiObserver) OnStart(ctx context.Context, call Call) {
	for _, o := range m.Observers {
		if o != nil {
			o.OnStart(ctx, call)
		}
	}
}

// StartContext threads ctx through every observer implementing
// ContextStarter, in order.
func (m MultiObserver) StartContext(ctx context.Context, call Call) context.Context {
	for _, o := range m.Observers {
		if cs, ok := o.(ContextStarter); ok {
			if next := cs.StartContext(ctx, call); next != nil {
				ctx = next
			}
		}
	}
	return ctx
}

func (m MultiObserver) OnAttempt(ctx context.Context, rec AttemptRecord) {
	for _, o := range m.Observers {
		if o != nil {
			o.OnAttempt(ctx, rec)
		}
	}
}

func (m MultiObserver) OnRetry(ctx context.Context, ev RetryEvent) {
	for _, o := range m.Observers {
		if o != nil {
			o.OnRetry(ctx, ev)
		}
	}
}

func (m MultiObserver) OnSuccess(ctx context.Context, tl Timeline) {
	for _, o := range m.Observers {
		if o != nil {
			o.OnSuccess(ctx, tl)
		}
	}
}

func (m MultiObserver) OnFailure(ctx context.Context, tl Timeline) {
	for _, o := range m.Observers {
		if o != nil {
			o.OnFailure(ctx, tl)
		}
	}
}

func (m MultiObserver) OnRecordSaved(ctx context.Context, tl Timeline, id string, err error) {
	for _, o := range m.Observers {
		if o != nil {
			o.OnRecordSaved(ctx, tl, id, err)
		}
	}
}
