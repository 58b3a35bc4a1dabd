package policy

import (
	"strings"
	"time"
)

// BackoffKind selects the delay schedule between attempts.
type BackoffKind string

const (
	BackoffExponential BackoffKind = "exponential"
	BackoffLinear      BackoffKind = "linear"
	BackoffNone        BackoffKind = "none"
)

func (k BackoffKind) String() string { return string(k) }

// Valid reports whether k is one of the known backoff kinds.
func (k BackoffKind) Valid() bool {
	switch k {
	case BackoffExponential, BackoffLinear, BackoffNone:
		return true
	default:
		return false
	}
}

// ParseBackoff parses a backoff kind name. Matching is case-insensitive and
// an empty string yields the default (exponential).
func ParseBackoff(s string) (BackoffKind, error) {
	k := BackoffKind(strings.ToLower(strings.TrimSpace(s)))
	if k == "" {
		return BackoffExponential, nil
	}
	if !k.Valid() {
		return "", &NormalizeError{Field: "retry.backoff", Value: s}
	}
	return k, nil
}

// Defaults applied when a field is left unset.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 2000 * time.Millisecond
	DefaultBackoff     = BackoffExponential
)

// RetryPolicy is the immutable per-executor retry configuration.
type RetryPolicy struct {
	// MaxAttempts counts every attempt including the first.
	MaxAttempts int `json:"max_attempts"`

	// BaseDelay is the delay unit the backoff schedule multiplies.
	BaseDelay time.Duration `json:"base_delay"`

	Backoff BackoffKind `json:"backoff"`

	// ClassifierName selects a registered retryability predicate. Empty uses
	// the default predicate.
	ClassifierName string `json:"classifier_name,omitempty"`

	Meta Metadata `json:"-"`
}

type NormalizationInfo struct {
	Changed       bool     `json:"-"`
	ChangedFields []string `json:"-"`
}

type Metadata struct {
	Normalization NormalizationInfo `json:"-"`
}

// Default returns the policy used when nothing is configured.
func Default() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Backoff:     DefaultBackoff,
	}
}

// Normalize fills unset fields with defaults and clamps out-of-range values.
// A zero BaseDelay is kept as zero; only negative delays are clamped.
func (p RetryPolicy) Normalize() (RetryPolicy, error) {
	normalized := p
	norm := &normalized.Meta.Normalization

	markChanged := func(field string) {
		norm.Changed = true
		for _, f := range norm.ChangedFields {
			if f == field {
				return
			}
		}
		norm.ChangedFields = append(norm.ChangedFields, field)
	}

	if normalized.MaxAttempts == 0 {
		normalized.MaxAttempts = DefaultMaxAttempts
		markChanged("retry.max_attempts")
	}
	if normalized.MaxAttempts < 1 {
		normalized.MaxAttempts = 1
		markChanged("retry.max_attempts")
	}

	if normalized.BaseDelay < 0 {
		normalized.BaseDelay = 0
		markChanged("retry.base_delay")
	}

	switch normalized.Backoff {
	case "":
		normalized.Backoff = DefaultBackoff
		markChanged("retry.backoff")
	case BackoffExponential, BackoffLinear, BackoffNone:
	default:
		return RetryPolicy{}, &NormalizeError{Field: "retry.backoff", Value: string(normalized.Backoff)}
	}

	normalized.ClassifierName = strings.TrimSpace(normalized.ClassifierName)

	return normalized, nil
}
