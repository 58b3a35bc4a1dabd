// Package prometheus exports executor activity as Prometheus metrics.
package prometheus

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/aponysus/smartretry/observe"
)

// Observer records attempts, retries, calls and failure-record saves.
type Observer struct {
	observe.BaseObserver

	attempts     *prometheus.CounterVec
	retries      prometheus.Counter
	calls        *prometheus.CounterVec
	recordsSaved *prometheus.CounterVec
	duration     *prometheus.HistogramVec
}

// NewObserver registers the metrics with reg (prometheus.DefaultRegisterer
// when nil) and returns the observer feeding them.
func NewObserver(reg prometheus.Registerer) *Observer {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Observer{
		attempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smartretry_attempts_total",
				Help: "Total number of operation attempts by outcome",
			},
			[]string{"outcome"},
		),
		retries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "smartretry_retries_total",
				Help: "Total number of scheduled retries",
			},
		),
		calls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smartretry_calls_total",
				Help: "Total number of Execute calls by result",
			},
			[]string{"result"},
		),
		recordsSaved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smartretry_records_saved_total",
				Help: "Total number of failure record saves by result",
			},
			[]string{"result"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "smartretry_call_duration_seconds",
				Help:    "Execute call duration in seconds, backoff included",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		),
	}
}

func (o *Observer) OnAttempt(_ context.Context, rec observe.AttemptRecord) {
	o.attempts.WithLabelValues(rec.Outcome.Kind.String()).Inc()
}

func (o *Observer) OnRetry(context.Context, observe.RetryEvent) {
	o.retries.Inc()
}

func (o *Observer) OnSuccess(_ context.Context, tl observe.Timeline) {
	o.calls.WithLabelValues("success").Inc()
	o.duration.WithLabelValues("success").Observe(tl.Duration().Seconds())
}

func (o *Observer) OnFailure(_ context.Context, tl observe.Timeline) {
	o.calls.WithLabelValues("failure").Inc()
	o.duration.WithLabelValues("failure").Observe(tl.Duration().Seconds())
}

func (o *Observer) OnRecordSaved(_ context.Context, _ observe.Timeline, _ string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	o.recordsSaved.WithLabelValues(result).Inc()
}
