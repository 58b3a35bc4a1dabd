package retry

import (
	"bytes"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aponysus/smartretry/classify"
	"github.com/aponysus/smartretry/policy"
	"github.com/aponysus/smartretry/store"
)

func TestNew_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	exec, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	pol := exec.Policy()
	if pol.MaxAttempts != 3 || pol.BaseDelay != 2*time.Second || pol.Backoff != policy.BackoffExponential {
		t.Fatalf("policy=%+v", pol)
	}
	if filepath.Base(exec.LogFilePath()) != "smart-retry-log.json" {
		t.Fatalf("LogFilePath=%q", exec.LogFilePath())
	}
	if !filepath.IsAbs(exec.LogFilePath()) {
		t.Fatalf("LogFilePath=%q, want absolute", exec.LogFilePath())
	}
	if exec.clock == nil || exec.sleep == nil || exec.observer == nil || exec.classifier == nil || exec.logger == nil {
		t.Fatal("expected defaults to be set")
	}
}

func TestNew_OptionWiring(t *testing.T) {
	mem := store.NewMemory()
	logger := slog.New(slog.DiscardHandler)
	now := time.Unix(0, 0)

	exec, err := New(
		WithMaxRetries(5),
		WithDelay(250*time.Millisecond),
		WithBackoff(policy.BackoffLinear),
		WithStore(mem),
		WithLogger(logger),
		WithClock(func() time.Time { return now }),
		WithRecoverPanics(true),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	pol := exec.Policy()
	if pol.MaxAttempts != 5 || pol.BaseDelay != 250*time.Millisecond || pol.Backoff != policy.BackoffLinear {
		t.Fatalf("policy=%+v", pol)
	}
	if exec.Store() != mem {
		t.Fatalf("store not wired")
	}
	if exec.LogFilePath() != "" {
		t.Fatalf("LogFilePath=%q, want empty for memory store", exec.LogFilePath())
	}
	if exec.logger != logger || !exec.recoverPanics || !exec.clock().Equal(now) {
		t.Fatalf("options not wired")
	}
}

func TestNew_ZeroDelayAllowed(t *testing.T) {
	exec, err := New(WithStore(store.NewMemory()), WithDelay(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if exec.Policy().BaseDelay != 0 {
		t.Fatalf("BaseDelay=%v, want 0", exec.Policy().BaseDelay)
	}
}

func TestNewFromOptions_Overrides(t *testing.T) {
	exec, err := NewFromOptions(Options{
		MaxRetries: 2,
		Delay:      time.Second,
		Backoff:    policy.BackoffNone,
		Store:      store.NewMemory(),
	})
	if err != nil {
		t.Fatalf("NewFromOptions: %v", err)
	}
	pol := exec.Policy()
	if pol.MaxAttempts != 2 || pol.BaseDelay != time.Second || pol.Backoff != policy.BackoffNone {
		t.Fatalf("policy=%+v", pol)
	}

	exec, err = NewFromOptions(Options{
		Policy:     policy.RetryPolicy{MaxAttempts: 7, BaseDelay: 10 * time.Millisecond, Backoff: policy.BackoffLinear},
		MaxRetries: 4,
		Store:      store.NewMemory(),
	})
	if err != nil {
		t.Fatalf("NewFromOptions: %v", err)
	}
	pol = exec.Policy()
	if pol.MaxAttempts != 4 || pol.BaseDelay != 10*time.Millisecond || pol.Backoff != policy.BackoffLinear {
		t.Fatalf("policy=%+v", pol)
	}
}

func TestNew_InvalidBackoff(t *testing.T) {
	_, err := New(WithStore(store.NewMemory()), WithBackoff("fibonacci"))
	var nerr *policy.NormalizeError
	if !errors.As(err, &nerr) {
		t.Fatalf("err=%v, want NormalizeError", err)
	}
}

func TestNew_UnknownClassifier(t *testing.T) {
	_, err := New(
		WithStore(store.NewMemory()),
		WithPolicy(policy.New(policy.Classifier("missing"))),
	)
	var cerr *NoClassifierError
	if !errors.As(err, &cerr) || cerr.Name != "missing" {
		t.Fatalf("err=%v, want NoClassifierError", err)
	}
}

type stopClassifier struct{}

func (stopClassifier) Classify(error) classify.Outcome {
	return classify.Outcome{Kind: classify.OutcomeNonRetryable, Reason: "custom"}
}

func TestNew_CustomRegistry(t *testing.T) {
	reg := classify.NewDefaultRegistry()
	reg.Register("custom", stopClassifier{})

	exec, err := New(
		WithStore(store.NewMemory()),
		WithClassifiers(reg),
		WithPolicy(policy.New(policy.Classifier("custom"))),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := exec.classifier.(stopClassifier); !ok {
		t.Fatalf("classifier=%T, want stopClassifier", exec.classifier)
	}
}

func TestNew_StorePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "failures.json")
	exec, err := New(WithStorePath(path))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if exec.LogFilePath() != path {
		t.Fatalf("LogFilePath=%q, want %q", exec.LogFilePath(), path)
	}
}

func TestWithPolicy_TakenAsGiven(t *testing.T) {
	literal, err := New(WithStore(store.NewMemory()), WithPolicy(policy.RetryPolicy{MaxAttempts: 5}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p := literal.Policy(); p.MaxAttempts != 5 || p.BaseDelay != 0 || p.Backoff != policy.BackoffExponential {
		t.Fatalf("policy=%+v, want 5 attempts, zero delay", p)
	}

	built, err := New(WithStore(store.NewMemory()), WithPolicy(policy.New(policy.MaxAttempts(5))))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p := built.Policy(); p.MaxAttempts != 5 || p.BaseDelay != policy.DefaultBaseDelay {
		t.Fatalf("policy=%+v, want 5 attempts, default delay", p)
	}
}

func TestNew_LogsNormalizedFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if _, err := New(WithStore(store.NewMemory()), WithLogger(logger), WithMaxRetries(-2)); err != nil {
		t.Fatalf("New: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "retry policy normalized") || !strings.Contains(out, "retry.max_attempts") {
		t.Fatalf("log=%q", out)
	}
}
