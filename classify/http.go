package classify

import (
	"errors"

	"github.com/aponysus/smartretry/internal"
)

// HTTPError is implemented by errors that carry an HTTP-like status.
//
// A status code of 0 means no status is present (for example a transport
// error).
type HTTPError interface {
	HTTPStatusCode() int
}

// StatusTexter is implemented by errors that carry an HTTP status text.
type StatusTexter interface {
	HTTPStatusText() string
}

// StatusCode returns the HTTP status carried by err, if any.
func StatusCode(err error) (int, bool) {
	if internal.IsTypedNil(err) {
		return 0, false
	}
	var he HTTPError
	if !errors.As(err, &he) || internal.IsTypedNil(he) {
		return 0, false
	}
	code := he.HTTPStatusCode()
	if code <= 0 {
		return 0, false
	}
	return code, true
}

// IsRetryableStatus reports whether an HTTP status warrants a retry:
// 408, 429 and every 5xx.
func IsRetryableStatus(status int) bool {
	return status == 408 || status == 429 || (status >= 500 && status <= 599)
}
