// Package http retries net/http requests through a retry.Executor.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/aponysus/smartretry/classify"
	"github.com/aponysus/smartretry/observe"
	"github.com/aponysus/smartretry/retry"
)

// ErrBodyNotReplayable is returned for requests whose body cannot be re-sent.
var ErrBodyNotReplayable = errors.New("smartretry: request body is not replayable (GetBody is nil)")

// ExecuteRequest sends req through exec. Non-2xx responses fail the attempt
// with a *StatusError; transport failures with a *RequestError.
func ExecuteRequest(ctx context.Context, exec *retry.Executor, client *http.Client, req *http.Request) retry.Result[*http.Response] {
	return execute(ctx, exec, client, req, nil)
}

// DoHTTP executes an HTTP request with retries and returns the call's
// timeline alongside the response.
func DoHTTP(ctx context.Context, exec *retry.Executor, client *http.Client, req *http.Request) (*http.Response, observe.Timeline, error) {
	ctx, capture := observe.RecordTimeline(ctx)

	res := ExecuteRequest(ctx, exec, client, req)

	var tl observe.Timeline
	if t := capture.Timeline(); t != nil {
		tl = *t
	}
	if !res.Success {
		return nil, tl, res.Err
	}
	return res.Data, tl, nil
}

func execute(ctx context.Context, exec *retry.Executor, client *http.Client, req *http.Request, body any) retry.Result[*http.Response] {
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return retry.Result[*http.Response]{Err: ErrBodyNotReplayable}
	}
	if client == nil {
		client = http.DefaultClient
	}

	info := classify.RequestInfo{
		URL:     req.URL.String(),
		Path:    req.URL.Path,
		Method:  req.Method,
		Headers: flattenHeader(req.Header),
		Body:    body,
	}

	op := func(ctx context.Context) (*http.Response, error) {
		outReq := req.Clone(ctx)
		if req.GetBody != nil {
			b, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			outReq.Body = b
		}

		resp, err := client.Do(outReq)
		if err != nil {
			return nil, &RequestError{Request: info, Err: err}
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		// Drain a bounded amount so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		resp.Body.Close()

		return nil, &StatusError{
			Code:    resp.StatusCode,
			Status:  statusText(resp),
			Header:  resp.Header,
			Request: info,
		}
	}

	return retry.Execute(ctx, exec, op)
}

func statusText(resp *http.Response) string {
	// resp.Status is "503 Service Unavailable".
	if text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))); text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

func flattenHeader(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = strings.Join(v, ", ")
	}
	return out
}

// StatusError reports a non-2xx response. It implements classify.HTTPError,
// classify.StatusTexter and classify.RequestContext.
type StatusError struct {
	Code    int
	Status  string
	Header  http.Header
	Request classify.RequestInfo
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Status)
}

func (e *StatusError) HTTPStatusCode() int                { return e.Code }
func (e *StatusError) HTTPStatusText() string             { return e.Status }
func (e *StatusError) RequestInfo() classify.RequestInfo { return e.Request }

// RequestError reports a transport failure. It unwraps to the underlying
// network error so the default predicate can read its code.
type RequestError struct {
	Request classify.RequestInfo
	Err     error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Request.Method, e.Request.URL, e.Err)
}

func (e *RequestError) Unwrap() error                     { return e.Err }
func (e *RequestError) RequestInfo() classify.RequestInfo { return e.Request }

// Client issues retried HTTP requests.
type Client struct {
	exec   *retry.Executor
	client *http.Client
}

// NewClient returns a Client sending through client (http.DefaultClient when
// nil) under exec (the default executor when nil).
func NewClient(exec *retry.Executor, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{exec: exec, client: client}
}

// Executor returns the executor the client retries through.
func (c *Client) Executor() *retry.Executor { return c.exec }

// Execute sends req and returns the full retry result.
func (c *Client) Execute(ctx context.Context, req *http.Request) retry.Result[*http.Response] {
	return execute(ctx, c.exec, c.client, req, nil)
}

// Do sends req. A failed call returns the last attempt's error.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return unwrap(c.Execute(ctx, req))
}

func (c *Client) Get(ctx context.Context, url string, header http.Header) (*http.Response, error) {
	return c.send(ctx, http.MethodGet, url, nil, header)
}

func (c *Client) Delete(ctx context.Context, url string, header http.Header) (*http.Response, error) {
	return c.send(ctx, http.MethodDelete, url, nil, header)
}

// Post sends body encoded as JSON.
func (c *Client) Post(ctx context.Context, url string, body any, header http.Header) (*http.Response, error) {
	return c.send(ctx, http.MethodPost, url, body, header)
}

// Put sends body encoded as JSON.
func (c *Client) Put(ctx context.Context, url string, body any, header http.Header) (*http.Response, error) {
	return c.send(ctx, http.MethodPut, url, body, header)
}

// Patch sends body encoded as JSON.
func (c *Client) Patch(ctx context.Context, url string, body any, header http.Header) (*http.Response, error) {
	return c.send(ctx, http.MethodPatch, url, body, header)
}

func (c *Client) send(ctx context.Context, method, url string, body any, header http.Header) (*http.Response, error) {
	return unwrap(c.ExecuteJSON(ctx, method, url, body, header))
}

// ExecuteJSON sends body encoded as JSON and returns the full retry result.
// The decoded body is kept on the failure record.
func (c *Client) ExecuteJSON(ctx context.Context, method, url string, body any, header http.Header) retry.Result[*http.Response] {
	req, err := NewJSONRequest(ctx, method, url, body, header)
	if err != nil {
		return retry.Result[*http.Response]{Err: err}
	}
	return execute(ctx, c.exec, c.client, req, body)
}

// NewJSONRequest builds a request whose body is body encoded as JSON. A nil
// body sends no payload. Content-Type defaults to application/json.
func NewJSONRequest(ctx context.Context, method, url string, body any, header http.Header) (*http.Request, error) {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, payload)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func unwrap(res retry.Result[*http.Response]) (*http.Response, error) {
	if !res.Success {
		return nil, res.Err
	}
	return res.Data, nil
}
