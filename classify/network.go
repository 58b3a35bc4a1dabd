package classify

import (
	"errors"
	"net"
	"os"
	"syscall"

	"github.com/aponysus/smartretry/internal"
)

// Low-level network error codes treated as transient.
const (
	CodeConnRefused = "ECONNREFUSED"
	CodeTimedOut    = "ETIMEDOUT"
	CodeNotFound    = "ENOTFOUND"
	CodeConnReset   = "ECONNRESET"
)

// CodedError is implemented by errors that carry an explicit low-level code,
// for example adapters that surface a driver or socket error code.
type CodedError interface {
	ErrorCode() string
}

// NetworkCode returns the low-level code for err, or "" when none applies.
//
// An explicit CodedError anywhere in the chain wins. Otherwise the code is
// derived from syscall errnos, DNS lookup failures and timeouts.
func NetworkCode(err error) string {
	if internal.IsTypedNil(err) {
		return ""
	}

	var coded CodedError
	if errors.As(err, &coded) && !internal.IsTypedNil(coded) {
		if code := coded.ErrorCode(); code != "" {
			return code
		}
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return CodeConnRefused
	case errors.Is(err, syscall.ECONNRESET):
		return CodeConnReset
	case errors.Is(err, syscall.ETIMEDOUT):
		return CodeTimedOut
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return CodeNotFound
	}

	if errors.Is(err, os.ErrDeadlineExceeded) {
		return CodeTimedOut
	}
	var netErr net.Error
	if errors.As(err, &netErr) && !internal.IsTypedNil(netErr) && netErr.Timeout() {
		return CodeTimedOut
	}
	return ""
}

// IsTransientCode reports whether code is one of the always-retryable codes.
func IsTransientCode(code string) bool {
	switch code {
	case CodeConnRefused, CodeTimedOut, CodeNotFound, CodeConnReset:
		return true
	default:
		return false
	}
}
