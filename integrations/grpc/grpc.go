// Package grpc retries unary gRPC calls through a retry.Executor.
package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/aponysus/smartretry/classify"
	"github.com/aponysus/smartretry/internal"
	"github.com/aponysus/smartretry/retry"
)

// ClassifierName is the registry name of the gRPC classifier.
const ClassifierName = "grpc"

// RecordMethod is the method recorded for failed gRPC calls.
const RecordMethod = "GRPC"

// MethodError ties a failed call to its full method name so failure records
// name the RPC ("/pkg.Service/Method").
type MethodError struct {
	Method string
	Err    error
}

func (e *MethodError) Error() string { return e.Method + ": " + e.Err.Error() }

func (e *MethodError) Unwrap() error { return e.Err }

func (e *MethodError) RequestInfo() classify.RequestInfo {
	return classify.RequestInfo{URL: e.Method, Method: RecordMethod}
}

// UnaryClientInterceptor returns a gRPC interceptor that retries calls using
// exec (the default executor when nil). The returned error is the last
// attempt's error as produced by the invoker.
func UnaryClientInterceptor(exec *retry.Executor) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		op := func(ctx context.Context) (struct{}, error) {
			if err := invoker(ctx, method, req, reply, cc, opts...); err != nil {
				return struct{}{}, &MethodError{Method: method, Err: err}
			}
			return struct{}{}, nil
		}

		res := retry.Execute(ctx, exec, op)
		if res.Success {
			return nil
		}
		var me *MethodError
		if errors.As(res.Err, &me) {
			return me.Err
		}
		return res.Err
	}
}

// Classifier implements classify.Classifier for gRPC status codes.
//
// Unavailable, ResourceExhausted, DeadlineExceeded and Aborted are
// retryable; every other code is not. Errors without a gRPC status are
// classified by classify.Default.
type Classifier struct{}

func (Classifier) Classify(err error) classify.Outcome {
	if internal.IsTypedNil(err) {
		return classify.Outcome{Kind: classify.OutcomeNonRetryable, Reason: "nil_error"}
	}

	st, ok := status.FromError(err)
	if !ok {
		return classify.Default{}.Classify(err)
	}

	code := st.Code()
	outcome := classify.Outcome{
		Kind:       classify.OutcomeNonRetryable,
		Reason:     "grpc_" + code.String(),
		Attributes: map[string]string{"grpc_code": code.String()},
	}

	switch code {
	case codes.Unavailable, codes.ResourceExhausted, codes.Aborted:
		outcome.Kind = classify.OutcomeRetryable
	case codes.DeadlineExceeded:
		outcome.Kind = classify.OutcomeRetryable
		outcome.Reason = "context_deadline_exceeded"
	case codes.Canceled:
		outcome.Reason = "context_canceled"
	}

	return outcome
}

// ShouldRetry is Classifier in predicate form.
func ShouldRetry(err error) bool {
	return Classifier{}.Classify(err).Retryable()
}

// RegisterClassifier registers Classifier under ClassifierName.
func RegisterClassifier(reg *classify.Registry) {
	if reg == nil {
		return
	}
	reg.Register(ClassifierName, Classifier{})
}

// WithClassifier returns an executor option that makes ShouldRetry the
// retry predicate.
func WithClassifier() retry.Option {
	return retry.WithShouldRetry(ShouldRetry)
}
