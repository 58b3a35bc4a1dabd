// Package resty retries go-resty requests through a retry.Executor.
//
// Failed attempts carry the request configuration (method, URL, headers,
// body) so failure records describe the call that failed.
package resty

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/aponysus/smartretry/classify"
	"github.com/aponysus/smartretry/retry"
)

// Request is the configuration of a single call.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    any
}

func (r Request) info() classify.RequestInfo {
	return classify.RequestInfo{
		URL:     r.URL,
		Method:  r.Method,
		Headers: r.Headers,
		Body:    r.Body,
	}
}

// ResponseError reports a response outside the 2xx range.
type ResponseError struct {
	Request  Request
	Response *resty.Response
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Response.StatusCode(), e.HTTPStatusText())
}

func (e *ResponseError) HTTPStatusCode() int { return e.Response.StatusCode() }

func (e *ResponseError) HTTPStatusText() string {
	status := strings.TrimSpace(strings.TrimPrefix(e.Response.Status(), strconv.Itoa(e.Response.StatusCode())))
	if status == "" {
		return http.StatusText(e.Response.StatusCode())
	}
	return status
}

func (e *ResponseError) RequestInfo() classify.RequestInfo { return e.Request.info() }

// RequestError reports a failure before any response was received.
type RequestError struct {
	Request Request
	Err     error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Request.Method, e.Request.URL, e.Err)
}

func (e *RequestError) Unwrap() error                     { return e.Err }
func (e *RequestError) RequestInfo() classify.RequestInfo { return e.Request.info() }

// Client wraps a resty.Client with retries.
type Client struct {
	exec  *retry.Executor
	resty *resty.Client
}

// NewClient returns a Client using rc (a fresh resty client when nil) under
// exec (the default executor when nil).
func NewClient(exec *retry.Executor, rc *resty.Client) *Client {
	if rc == nil {
		rc = resty.New()
	}
	return &Client{exec: exec, resty: rc}
}

// Resty returns the underlying resty client.
func (c *Client) Resty() *resty.Client { return c.resty }

// Execute sends req and returns the full retry result.
func (c *Client) Execute(ctx context.Context, req Request) retry.Result[*resty.Response] {
	req.Method = strings.ToUpper(strings.TrimSpace(req.Method))
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	op := func(ctx context.Context) (*resty.Response, error) {
		r := c.resty.R().SetContext(ctx)
		if len(req.Headers) > 0 {
			r.SetHeaders(req.Headers)
		}
		if req.Body != nil {
			r.SetBody(req.Body)
		}

		resp, err := r.Execute(req.Method, req.URL)
		if err != nil {
			return nil, &RequestError{Request: req, Err: err}
		}
		if !resp.IsSuccess() {
			return nil, &ResponseError{Request: req, Response: resp}
		}
		return resp, nil
	}

	return retry.Execute(ctx, c.exec, op)
}

// Request sends req. A failed call returns the last attempt's error.
func (c *Client) Request(ctx context.Context, req Request) (*resty.Response, error) {
	res := c.Execute(ctx, req)
	if !res.Success {
		return nil, res.Err
	}
	return res.Data, nil
}

func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*resty.Response, error) {
	return c.Request(ctx, Request{Method: http.MethodGet, URL: url, Headers: headers})
}

func (c *Client) Delete(ctx context.Context, url string, headers map[string]string) (*resty.Response, error) {
	return c.Request(ctx, Request{Method: http.MethodDelete, URL: url, Headers: headers})
}

func (c *Client) Post(ctx context.Context, url string, body any, headers map[string]string) (*resty.Response, error) {
	return c.Request(ctx, Request{Method: http.MethodPost, URL: url, Headers: headers, Body: body})
}

func (c *Client) Put(ctx context.Context, url string, body any, headers map[string]string) (*resty.Response, error) {
	return c.Request(ctx, Request{Method: http.MethodPut, URL: url, Headers: headers, Body: body})
}

func (c *Client) Patch(ctx context.Context, url string, body any, headers map[string]string) (*resty.Response, error) {
	return c.Request(ctx, Request{Method: http.MethodPatch, URL: url, Headers: headers, Body: body})
}
