package observe_test

import (
	"context"
	"testing"

	"github.com/aponysus/smartretry/observe"
)

func TestAttemptInfo_RoundTrip(t *testing.T) {
	if _, ok := observe.AttemptFromContext(context.Background()); ok {
		t.Fatalf("expected no attempt info")
	}
	ctx := observe.WithAttemptInfo(context.Background(), observe.AttemptInfo{Attempt: 2, MaxAttempts: 3})
	info, ok := observe.AttemptFromContext(ctx)
	if !ok || info.Attempt != 2 || info.MaxAttempts != 3 {
		t.Fatalf("info=%+v ok=%v", info, ok)
	}
	if info.Last() {
		t.Fatalf("attempt 2 of 3 is not last")
	}
	info.Attempt = 3
	if !info.Last() {
		t.Fatalf("attempt 3 of 3 is last")
	}
}

func TestRecordTimeline(t *testing.T) {
	ctx, capture := observe.RecordTimeline(context.Background())
	if capture.Timeline() != nil {
		t.Fatalf("expected nil timeline before publish")
	}

	observe.PublishTimeline(ctx, observe.Timeline{RecordID: "abc"})
	tl := capture.Timeline()
	if tl == nil || tl.RecordID != "abc" {
		t.Fatalf("timeline=%+v", tl)
	}
}

func TestWithoutTimelineCapture(t *testing.T) {
	ctx, capture := observe.RecordTimeline(context.Background())
	inner := observe.WithoutTimelineCapture(ctx)
	observe.PublishTimeline(inner, observe.Timeline{RecordID: "inner"})
	if capture.Timeline() != nil {
		t.Fatalf("inner publish leaked to outer capture")
	}

	var nilCapture *observe.TimelineCapture
	if nilCapture.Timeline() != nil {
		t.Fatalf("nil capture returns nil")
	}
}
