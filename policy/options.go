package policy

import "time"

// Option mutates a RetryPolicy under construction.
type Option func(*RetryPolicy)

// New builds a normalized policy from the defaults plus opts. Invalid input
// falls back to Default.
func New(opts ...Option) RetryPolicy {
	p := Default()
	for _, opt := range opts {
		if opt != nil {
			opt(&p)
		}
	}
	normalized, err := p.Normalize()
	if err != nil {
		normalized, _ = Default().Normalize()
	}
	return normalized
}

func MaxAttempts(n int) Option {
	return func(p *RetryPolicy) { p.MaxAttempts = n }
}

func BaseDelay(d time.Duration) Option {
	return func(p *RetryPolicy) { p.BaseDelay = d }
}

func Backoff(kind BackoffKind) Option {
	return func(p *RetryPolicy) { p.Backoff = kind }
}

// Classifier selects a registered retryability predicate by name.
func Classifier(name string) Option {
	return func(p *RetryPolicy) { p.ClassifierName = name }
}
