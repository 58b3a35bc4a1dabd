// Package otel traces executor calls with OpenTelemetry.
package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aponysus/smartretry/observe"
)

// SpanName is the name of the span covering one Execute call.
const SpanName = "smartretry.execute"

const instrumentationName = "github.com/aponysus/smartretry/integrations/otel"

var (
	_ observe.Observer       = (*Observer)(nil)
	_ observe.ContextStarter = (*Observer)(nil)
)

// Observer opens one span per call and records attempts and retries as span
// events.
type Observer struct {
	tracer trace.Tracer
	spans  sync.Map // call id -> trace.Span
}

// NewObserver returns an Observer using tp, or the global provider when tp
// is nil.
func NewObserver(tp trace.TracerProvider) *Observer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Observer{tracer: tp.Tracer(instrumentationName)}
}

func (o *Observer) span(id uint64) (trace.Span, bool) {
	v, ok := o.spans.Load(id)
	if !ok {
		return nil, false
	}
	return v.(trace.Span), true
}

func (o *Observer) OnStart(ctx context.Context, call observe.Call) {
	_, span := o.tracer.Start(ctx, SpanName,
		trace.WithTimestamp(call.Start),
		trace.WithAttributes(
			attribute.Int("smartretry.max_attempts", call.Policy.MaxAttempts),
			attribute.Int64("smartretry.base_delay_ms", call.Policy.BaseDelay.Milliseconds()),
			attribute.String("smartretry.backoff", call.Policy.Backoff.String()),
		),
	)
	o.spans.Store(call.ID, span)
}

// StartContext returns ctx carrying the call's span, so spans started by the
// operation become its children.
func (o *Observer) StartContext(ctx context.Context, call observe.Call) context.Context {
	span, ok := o.span(call.ID)
	if !ok {
		return ctx
	}
	return trace.ContextWithSpan(ctx, span)
}

func (o *Observer) OnAttempt(_ context.Context, rec observe.AttemptRecord) {
	span, ok := o.span(rec.CallID)
	if !ok {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.Int("smartretry.attempt", rec.Attempt),
		attribute.String("smartretry.outcome", rec.Outcome.Kind.String()),
		attribute.String("smartretry.reason", rec.Outcome.Reason),
	}
	if rec.Err != nil {
		attrs = append(attrs, attribute.String("error.message", rec.Err.Error()))
	}
	span.AddEvent("attempt", trace.WithTimestamp(rec.EndTime), trace.WithAttributes(attrs...))
}

func (o *Observer) OnRetry(_ context.Context, ev observe.RetryEvent) {
	span, ok := o.span(ev.CallID)
	if !ok {
		return
	}
	span.AddEvent("retry", trace.WithAttributes(
		attribute.Int("smartretry.attempt", ev.Attempt),
		attribute.Int64("smartretry.delay_ms", ev.Delay.Milliseconds()),
	))
}

func (o *Observer) OnSuccess(_ context.Context, tl observe.Timeline) {
	v, ok := o.spans.LoadAndDelete(tl.CallID)
	if !ok {
		return
	}
	span := v.(trace.Span)
	span.SetAttributes(attribute.Int("smartretry.attempts", len(tl.Attempts)))
	span.SetStatus(codes.Ok, "")
	span.End(trace.WithTimestamp(tl.End))
}

func (o *Observer) OnFailure(_ context.Context, tl observe.Timeline) {
	span, ok := o.span(tl.CallID)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int("smartretry.attempts", len(tl.Attempts)))
	if reason := tl.Attributes["stop_reason"]; reason != "" {
		span.SetAttributes(attribute.String("smartretry.stop_reason", reason))
	}
	if tl.FinalErr != nil {
		span.RecordError(tl.FinalErr)
		span.SetStatus(codes.Error, tl.FinalErr.Error())
	} else {
		span.SetStatus(codes.Error, "operation failed")
	}
}

// OnRecordSaved ends the span opened for a failed call.
func (o *Observer) OnRecordSaved(_ context.Context, tl observe.Timeline, id string, err error) {
	v, ok := o.spans.LoadAndDelete(tl.CallID)
	if !ok {
		return
	}
	span := v.(trace.Span)
	if err != nil {
		span.AddEvent("record_save_failed", trace.WithAttributes(attribute.String("error.message", err.Error())))
	} else {
		span.SetAttributes(attribute.String("smartretry.record_id", id))
	}
	span.End(trace.WithTimestamp(tl.End))
}
