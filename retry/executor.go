package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aponysus/smartretry/classify"
	"github.com/aponysus/smartretry/observe"
	"github.com/aponysus/smartretry/policy"
	"github.com/aponysus/smartretry/store"
	"github.com/aponysus/smartretry/store/filestore"
)

// Operation is a retryable unit of work.
type Operation func(ctx context.Context) (any, error)

// OperationValue is a retryable unit of work returning a typed value.
type OperationValue[T any] func(ctx context.Context) (T, error)

// Executor runs operations under a fixed retry policy and persists a
// failure record for every call that ultimately fails.
//
// An Executor is safe for concurrent use; all per-call state is local to
// Execute.
type Executor struct {
	policy        policy.RetryPolicy
	classifier    classify.Classifier
	onRetry       func(attempt int, err error)
	store         store.Store
	observer      observe.Observer
	logger        *slog.Logger
	clock         func() time.Time
	sleep         func(context.Context, time.Duration) error
	newID         func() string
	recoverPanics bool
}

type executorConfig struct {
	opts Options
}

// Options configures an Executor.
//
// MaxRetries, Delay and Backoff override the matching Policy fields when
// non-zero. A zero Policy means policy.Default().
type Options struct {
	MaxRetries int
	Delay      time.Duration
	Backoff    policy.BackoffKind
	Policy     policy.RetryPolicy

	// ShouldRetry decides whether a failed attempt is retried. It takes
	// precedence over Policy.ClassifierName.
	ShouldRetry func(err error) bool
	// OnRetry runs after each retryable failure, before the backoff sleep.
	OnRetry func(attempt int, err error)

	// Store receives failure records. When nil, a JSON file store is opened
	// at StorePath (default smart-retry-log.json in the working directory).
	Store     store.Store
	StorePath string

	Observer      observe.Observer
	Logger        *slog.Logger
	Clock         func() time.Time
	Classifiers   *classify.Registry
	RecoverPanics bool
}

// Option configures an Executor.
type Option func(*executorConfig)

// New creates an Executor from functional options.
func New(opts ...Option) (*Executor, error) {
	cfg := &executorConfig{opts: Options{Policy: policy.Default()}}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return NewFromOptions(cfg.opts)
}

// NewFromOptions creates an Executor from a config struct.
func NewFromOptions(opts Options) (*Executor, error) {
	pol := opts.Policy
	if isZeroPolicy(pol) {
		pol = policy.Default()
	}
	if opts.MaxRetries != 0 {
		pol.MaxAttempts = opts.MaxRetries
	}
	if opts.Delay != 0 {
		pol.BaseDelay = opts.Delay
	}
	if opts.Backoff != "" {
		pol.Backoff = opts.Backoff
	}
	pol, err := pol.Normalize()
	if err != nil {
		return nil, err
	}

	e := &Executor{
		policy:        pol,
		onRetry:       opts.OnRetry,
		store:         opts.Store,
		logger:        opts.Logger,
		clock:         opts.Clock,
		sleep:         sleepWithContext,
		newID:         store.NewID,
		recoverPanics: opts.RecoverPanics,
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if norm := pol.Meta.Normalization; norm.Changed {
		e.logger.Debug("retry policy normalized", "fields", norm.ChangedFields)
	}

	e.classifier, err = resolveClassifier(opts, pol)
	if err != nil {
		return nil, err
	}

	logObs := observe.NewLogObserver(e.logger)
	if opts.Observer != nil {
		e.observer = observe.MultiObserver{Observers: []observe.Observer{logObs, opts.Observer}}
	} else {
		e.observer = logObs
	}

	if e.store == nil {
		fs, err := filestore.Open(opts.StorePath)
		if err != nil {
			return nil, fmt.Errorf("smartretry: open failure log: %w", err)
		}
		e.store = fs
	}

	return e, nil
}

func isZeroPolicy(p policy.RetryPolicy) bool {
	return p.MaxAttempts == 0 && p.BaseDelay == 0 && p.Backoff == "" && p.ClassifierName == ""
}

// NoClassifierError is returned by New when the policy names a classifier
// the registry does not know.
type NoClassifierError struct {
	Name string
}

func (e *NoClassifierError) Error() string {
	return fmt.Sprintf("smartretry: classifier not found: %s", e.Name)
}

func resolveClassifier(opts Options, pol policy.RetryPolicy) (classify.Classifier, error) {
	if opts.ShouldRetry != nil {
		return classify.Func(opts.ShouldRetry), nil
	}
	if pol.ClassifierName == "" {
		return classify.Default{}, nil
	}
	reg := opts.Classifiers
	if reg == nil {
		reg = classify.NewDefaultRegistry()
	}
	c, ok := reg.Get(pol.ClassifierName)
	if !ok {
		return nil, &NoClassifierError{Name: pol.ClassifierName}
	}
	return c, nil
}

// PanicError reports a panic recovered from user code when RecoverPanics is
// enabled.
type PanicError struct {
	Component string
	Value     any
	Stack     []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("smartretry: panic in %s: %v", e.Component, e.Value)
}

// WithMaxRetries sets the total number of attempts, including the first.
func WithMaxRetries(n int) Option {
	return func(c *executorConfig) {
		c.opts.Policy.MaxAttempts = n
	}
}

// WithDelay sets the backoff base delay. Zero disables waiting.
func WithDelay(d time.Duration) Option {
	return func(c *executorConfig) {
		c.opts.Policy.BaseDelay = d
	}
}

// WithBackoff sets the backoff strategy.
func WithBackoff(kind policy.BackoffKind) Option {
	return func(c *executorConfig) {
		c.opts.Policy.Backoff = kind
	}
}

// WithPolicy replaces the whole retry policy. p is taken as given: a zero
// BaseDelay means no wait between attempts. Build p with policy.New to start
// from the defaults and change only some fields.
func WithPolicy(p policy.RetryPolicy) Option {
	return func(c *executorConfig) {
		c.opts.Policy = p
	}
}

// WithShouldRetry sets the retryability predicate.
func WithShouldRetry(f func(err error) bool) Option {
	return func(c *executorConfig) {
		c.opts.ShouldRetry = f
	}
}

// WithOnRetry sets the callback run before each backoff sleep.
func WithOnRetry(f func(attempt int, err error)) Option {
	return func(c *executorConfig) {
		c.opts.OnRetry = f
	}
}

// WithStore sets the failure store.
func WithStore(s store.Store) Option {
	return func(c *executorConfig) {
		c.opts.Store = s
	}
}

// WithStorePath sets the JSON file used when no store is given.
func WithStorePath(path string) Option {
	return func(c *executorConfig) {
		c.opts.StorePath = path
	}
}

// WithObserver sets the observer.
func WithObserver(o observe.Observer) Option {
	return func(c *executorConfig) {
		c.opts.Observer = o
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *executorConfig) {
		c.opts.Logger = l
	}
}

// WithClock sets the clock function.
func WithClock(f func() time.Time) Option {
	return func(c *executorConfig) {
		c.opts.Clock = f
	}
}

// WithClassifiers sets the registry used to resolve Policy.ClassifierName.
func WithClassifiers(r *classify.Registry) Option {
	return func(c *executorConfig) {
		c.opts.Classifiers = r
	}
}

// WithRecoverPanics sets whether to capture and report panics in user code.
func WithRecoverPanics(recover bool) Option {
	return func(c *executorConfig) {
		c.opts.RecoverPanics = recover
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ErrNilOperation is reported in Result.Err when Execute is given a nil op.
var ErrNilOperation = errors.New("smartretry: nil operation")
