package observe

import (
	"context"
	"sync/atomic"
)

// TimelineCapture receives the timeline of the next call made with its
// context.
type TimelineCapture struct {
	tl atomic.Pointer[Timeline]
}

// Timeline returns the captured timeline, or nil until the call completes.
func (c *TimelineCapture) Timeline() *Timeline {
	if c == nil {
		return nil
	}
	return c.tl.Load()
}

type timelineCaptureKey struct{}

// RecordTimeline returns a derived context that requests timeline capture,
// plus a holder for retrieving the completed timeline.
func RecordTimeline(ctx context.Context) (context.Context, *TimelineCapture) {
	if ctx == nil {
		ctx = context.Background()
	}
	capture := &TimelineCapture{}
	return context.WithValue(ctx, timelineCaptureKey{}, capture), capture
}

// PublishTimeline stores tl into the capture requested on ctx, if any.
func PublishTimeline(ctx context.Context, tl Timeline) {
	if ctx == nil {
		return
	}
	if c, ok := ctx.Value(timelineCaptureKey{}).(*TimelineCapture); ok && c != nil {
		c.tl.Store(&tl)
	}
}

// WithoutTimelineCapture hides any capture on ctx so nested calls made by
// the operation do not overwrite the outer timeline.
func WithoutTimelineCapture(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, timelineCaptureKey{}, (*TimelineCapture)(nil))
}
