package classify

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aponysus/smartretry/internal"
)

// RequestInfo describes the call that produced an error.
type RequestInfo struct {
	URL     string
	Path    string
	Method  string
	Headers map[string]string
	Body    any
}

// RequestContext is implemented by errors produced by request-shaped
// collaborators (HTTP, gRPC adapters) so failure records can name the call.
type RequestContext interface {
	RequestInfo() RequestInfo
}

// Description is the diagnostic view of an error used for failure records.
type Description struct {
	URL        string
	Method     string
	Headers    map[string]string
	Body       any
	Message    string
	StatusCode *int
}

// Describe extracts the request and status details carried by err.
//
// URL falls back from the request URL to the request path to "unknown";
// method is upper-cased and defaults to GET. The message prefers the HTTP
// status text over the error string.
func Describe(err error) Description {
	d := Description{URL: "unknown", Method: "GET"}
	if internal.IsTypedNil(err) {
		d.Message = "<nil>"
		return d
	}

	var rc RequestContext
	if errors.As(err, &rc) && !internal.IsTypedNil(rc) {
		info := rc.RequestInfo()
		switch {
		case info.URL != "":
			d.URL = info.URL
		case info.Path != "":
			d.URL = info.Path
		}
		if m := strings.TrimSpace(info.Method); m != "" {
			d.Method = strings.ToUpper(m)
		}
		if len(info.Headers) > 0 {
			d.Headers = info.Headers
		}
		d.Body = info.Body
	}

	d.Message = message(err)

	if code, ok := StatusCode(err); ok {
		d.StatusCode = &code
	}
	return d
}

func message(err error) string {
	var st StatusTexter
	if errors.As(err, &st) && !internal.IsTypedNil(st) {
		if text := st.HTTPStatusText(); text != "" {
			return text
		}
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fmt.Sprintf("%T", err)
}
