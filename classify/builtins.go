package classify

import (
	"strconv"
	"strings"

	"github.com/aponysus/smartretry/internal"
)

// Built-in classifier registry names.
const (
	ClassifierDefault = "default"
	ClassifierAlways  = "always"
	ClassifierNever   = "never"
)

// RegisterBuiltins registers core classifiers into reg.
func RegisterBuiltins(reg *Registry) {
	if reg == nil {
		return
	}
	reg.Register(ClassifierDefault, Default{})
	reg.Register(ClassifierAlways, AlwaysRetryOnError{})
	reg.Register(ClassifierNever, NeverRetry{})
}

// DefaultShouldRetry is the default retryability predicate.
func DefaultShouldRetry(err error) bool {
	return Default{}.Classify(err).Retryable()
}

// Default classifies errors the way the executor does out of the box:
//
//   - nil errors are not retryable.
//   - ECONNREFUSED, ETIMEDOUT, ENOTFOUND and ECONNRESET are retryable.
//   - A present HTTP status is retryable only for 408, 429 and 5xx.
//   - Errors without any status are retryable.
type Default struct{}

func (Default) Classify(err error) Outcome {
	if internal.IsTypedNil(err) {
		return Outcome{Kind: OutcomeNonRetryable, Reason: "nil_error"}
	}

	if code := NetworkCode(err); IsTransientCode(code) {
		return Outcome{
			Kind:       OutcomeRetryable,
			Reason:     "network_" + strings.ToLower(code),
			Attributes: map[string]string{"code": code},
		}
	}

	status, ok := StatusCode(err)
	if !ok {
		return Outcome{Kind: OutcomeRetryable, Reason: "no_status"}
	}

	out := Outcome{
		Kind:       OutcomeNonRetryable,
		Reason:     "http_non_retryable_status",
		Attributes: map[string]string{"status": strconv.Itoa(status)},
	}
	if IsRetryableStatus(status) {
		out.Kind = OutcomeRetryable
		out.Reason = "http_" + strconv.Itoa(status)
	}
	return out
}

// AlwaysRetryOnError retries every non-nil error.
type AlwaysRetryOnError struct{}

func (AlwaysRetryOnError) Classify(err error) Outcome {
	if internal.IsTypedNil(err) {
		return Outcome{Kind: OutcomeNonRetryable, Reason: "nil_error"}
	}
	return Outcome{Kind: OutcomeRetryable, Reason: "retryable_error"}
}

// NeverRetry stops after the first failure.
type NeverRetry struct{}

func (NeverRetry) Classify(error) Outcome {
	return Outcome{Kind: OutcomeNonRetryable, Reason: "never_retry"}
}
