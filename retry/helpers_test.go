package retry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aponysus/smartretry/classify"
	"github.com/aponysus/smartretry/store"
)

var errBoom = errors.New("boom")

// fakeTime is a clock that only moves when the executor sleeps.
type fakeTime struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeTime() *fakeTime {
	return &fakeTime{now: time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)}
}

func (f *fakeTime) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeTime) Sleep(_ context.Context, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sleeps = append(f.sleeps, d)
	f.now = f.now.Add(d)
	return nil
}

func (f *fakeTime) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.sleeps...)
}

type testEnv struct {
	exec  *Executor
	store *store.Memory
	time  *fakeTime
}

func newTestExecutor(t *testing.T, opts ...Option) testEnv {
	t.Helper()
	ft := newFakeTime()
	mem := store.NewMemory()

	base := []Option{
		WithStore(mem),
		WithClock(ft.Now),
		WithDelay(100 * time.Millisecond),
		WithLogger(slog.New(slog.DiscardHandler)),
	}
	exec, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	exec.sleep = ft.Sleep
	return testEnv{exec: exec, store: mem, time: ft}
}

func mustRecords(t *testing.T, s store.Store) []store.FailureRecord {
	t.Helper()
	recs, err := s.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	return recs
}

// httpFailure carries a status and the request that produced it.
type httpFailure struct {
	status int
	text   string
	req    classify.RequestInfo
}

func (e *httpFailure) Error() string                     { return "request failed" }
func (e *httpFailure) HTTPStatusCode() int               { return e.status }
func (e *httpFailure) HTTPStatusText() string            { return e.text }
func (e *httpFailure) RequestInfo() classify.RequestInfo { return e.req }

type failingStore struct {
	store.Memory
	err error
}

func (f *failingStore) Save(context.Context, store.FailureRecord) error { return f.err }
