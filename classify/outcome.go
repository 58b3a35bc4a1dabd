package classify

// OutcomeKind describes the executor's decision about a failed attempt.
type OutcomeKind int

const (
	OutcomeUnknown OutcomeKind = iota
	OutcomeSuccess
	OutcomeRetryable
	OutcomeNonRetryable
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeNonRetryable:
		return "non_retryable"
	default:
		return "unknown"
	}
}

// Outcome describes the classification of an attempt.
type Outcome struct {
	Kind   OutcomeKind
	Reason string

	Attributes map[string]string
}

// Retryable reports whether the outcome warrants another attempt.
func (o Outcome) Retryable() bool { return o.Kind == OutcomeRetryable }

// Classifier decides whether a failed attempt should be retried.
type Classifier interface {
	Classify(err error) Outcome
}

// Func adapts a plain predicate to a Classifier.
type Func func(err error) bool

func (f Func) Classify(err error) Outcome {
	if f == nil {
		return Default{}.Classify(err)
	}
	if f(err) {
		return Outcome{Kind: OutcomeRetryable, Reason: "predicate_retry"}
	}
	return Outcome{Kind: OutcomeNonRetryable, Reason: "predicate_stop"}
}

// Predicate adapts a Classifier to a plain predicate.
func Predicate(c Classifier) func(error) bool {
	if c == nil {
		return DefaultShouldRetry
	}
	return func(err error) bool {
		return c.Classify(err).Retryable()
	}
}
