package observe_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/aponysus/smartretry/observe"
)

type countingObserver struct {
	observe.BaseObserver
	events []string
}

func (c *countingObserver) OnStart(context.Context, observe.Call) { c.events = append(c.events, "start") }
func (c *countingObserver) OnRetry(context.Context, observe.RetryEvent) {
	c.events = append(c.events, "retry")
}
func (c *countingObserver) OnRecordSaved(context.Context, observe.Timeline, string, error) {
	c.events = append(c.events, "saved")
}

func TestMultiObserver_FansOutAndSkipsNil(t *testing.T) {
	a, b := &countingObserver{}, &countingObserver{}
	m := observe.MultiObserver{Observers: []observe.Observer{a, nil, b}}
	ctx := context.Background()

	m.OnStart(ctx, observe.Call{})
	m.OnAttempt(ctx, observe.AttemptRecord{})
	m.OnRetry(ctx, observe.RetryEvent{Attempt: 1})
	m.OnSuccess(ctx, observe.Timeline{})
	m.OnFailure(ctx, observe.Timeline{})
	m.OnRecordSaved(ctx, observe.Timeline{}, "x", nil)

	for _, c := range []*countingObserver{a, b} {
		if got := strings.Join(c.events, ","); got != "start,retry,saved" {
			t.Fatalf("events=%q, want start,retry,saved", got)
		}
	}
}

type ctxKey string

type taggingObserver struct {
	observe.BaseObserver
	tag string
}

func (o taggingObserver) StartContext(ctx context.Context, call observe.Call) context.Context {
	prev, _ := ctx.Value(ctxKey("tags")).(string)
	return context.WithValue(ctx, ctxKey("tags"), prev+o.tag)
}

func TestMultiObserver_StartContextChains(t *testing.T) {
	m := observe.MultiObserver{Observers: []observe.Observer{
		taggingObserver{tag: "a"}, nil, &countingObserver{}, taggingObserver{tag: "b"},
	}}

	ctx := m.StartContext(context.Background(), observe.Call{ID: 1})
	if got, _ := ctx.Value(ctxKey("tags")).(string); got != "ab" {
		t.Fatalf("tags=%q, want ab", got)
	}
}

func TestTimelineDuration(t *testing.T) {
	start := time.Unix(100, 0)
	tl := observe.Timeline{Start: start, End: start.Add(1500 * time.Millisecond)}
	if got := tl.Duration(); got != 1500*time.Millisecond {
		t.Fatalf("Duration=%v, want 1.5s", got)
	}
	tl.End = start.Add(-time.Second)
	if got := tl.Duration(); got != 0 {
		t.Fatalf("Duration=%v, want 0", got)
	}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestLogObserver_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	obs := observe.NewLogObserver(logger)
	ctx := context.Background()
	boom := errors.New("boom")

	obs.OnRetry(ctx, observe.RetryEvent{Attempt: 1, Err: boom, Delay: time.Second})
	obs.OnFailure(ctx, observe.Timeline{FinalErr: boom, Attempts: make([]observe.AttemptRecord, 3)})
	obs.OnRecordSaved(ctx, observe.Timeline{}, "rec-1", errors.New("disk full"))

	lines := decodeLines(t, &buf)
	if len(lines) != 3 {
		t.Fatalf("lines=%d, want 3", len(lines))
	}
	wantLevels := []string{"DEBUG", "WARN", "ERROR"}
	for i, want := range wantLevels {
		if got := lines[i]["level"]; got != want {
			t.Fatalf("line %d level=%v, want %s", i, got, want)
		}
	}
	if got := lines[1]["attempts"]; got != float64(3) {
		t.Fatalf("attempts=%v, want 3", got)
	}
	if got := lines[2]["id"]; got != "rec-1" {
		t.Fatalf("id=%v, want rec-1", got)
	}
}

func TestLogObserver_NilLoggerUsesDefault(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	observe.LogObserver{}.OnFailure(context.Background(), observe.Timeline{FinalErr: errors.New("x")})
	if !strings.Contains(buf.String(), "operation failed") {
		t.Fatalf("default logger not used: %q", buf.String())
	}
}
