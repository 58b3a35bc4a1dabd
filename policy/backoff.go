package policy

import (
	"math"
	"time"
)

// Delay returns the wait before the next attempt, given the number of
// attempts already made (1-based).
//
//	exponential: base * 2^(attempt-1)
//	linear:      base * attempt
//	none:        base
//
// Unknown kinds fall back to base. Results saturate instead of overflowing.
func Delay(base time.Duration, attempt int, kind BackoffKind) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}

	switch kind {
	case BackoffExponential:
		shift := attempt - 1
		if shift >= 62 {
			return time.Duration(math.MaxInt64)
		}
		return mulSaturate(base, int64(1)<<uint(shift))
	case BackoffLinear:
		return mulSaturate(base, int64(attempt))
	default:
		return base
	}
}

// Delay returns the backoff for p after attempt attempts.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return Delay(p.BaseDelay, attempt, p.Backoff)
}

func mulSaturate(d time.Duration, n int64) time.Duration {
	if n <= 0 {
		return 0
	}
	if int64(d) > math.MaxInt64/n {
		return time.Duration(math.MaxInt64)
	}
	return d * time.Duration(n)
}
