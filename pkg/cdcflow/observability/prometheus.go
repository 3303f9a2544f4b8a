package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements MetricsRecorder on a Prometheus registry.
// It is what the cdcflow CLI exposes on its /metrics endpoint.
type PrometheusRecorder struct {
	enqueued   *prometheus.CounterVec
	dequeued   *prometheus.CounterVec
	dropped    *prometheus.CounterVec
	depth      *prometheus.GaugeVec
	received   *prometheus.CounterVec
	success    *prometheus.CounterVec
	errors     *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	deadEvents *prometheus.CounterVec
}

var _ MetricsRecorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder creates the cdcflow collectors and registers them on reg.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	keyLabel := []string{AttrEventKey}
	counter := func(name, help string, labels []string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cdcflow",
			Name:      name,
			Help:      help,
		}, labels)
	}

	r := &PrometheusRecorder{
		enqueued: counter("queue_enqueued_total", "Number of events accepted into a queue.", keyLabel),
		dequeued: counter("queue_dequeued_total", "Number of events taken from a queue.", keyLabel),
		dropped:  counter("queue_dropped_total", "Number of events lost to backpressure.", []string{AttrEventKey, AttrStrategy}),
		depth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "cdcflow",
			Name:      "queue_depth",
			Help:      "Current number of buffered events per key.",
		}, keyLabel),
		received: counter("handler_received_total", "Number of handler invocations started.", keyLabel),
		success:  counter("handler_success_total", "Number of successful handler invocations.", keyLabel),
		errors:   counter("handler_errors_total", "Number of failed handler invocations.", keyLabel),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cdcflow",
			Name:      "handler_latency_seconds",
			Help:      "Handler invocation latency.",
			Buckets:   prometheus.DefBuckets,
		}, keyLabel),
		deadEvents: counter("events_dead_total", "Number of events discarded after retries.", keyLabel),
	}

	for _, c := range []prometheus.Collector{
		r.enqueued, r.dequeued, r.dropped, r.depth,
		r.received, r.success, r.errors, r.latency, r.deadEvents,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *PrometheusRecorder) RecordEnqueued(_ context.Context, key string) {
	r.enqueued.WithLabelValues(key).Inc()
}

func (r *PrometheusRecorder) RecordDequeued(_ context.Context, key string) {
	r.dequeued.WithLabelValues(key).Inc()
}

func (r *PrometheusRecorder) RecordDropped(_ context.Context, key, strategy string) {
	r.dropped.WithLabelValues(key, strategy).Inc()
}

func (r *PrometheusRecorder) RecordDepth(_ context.Context, key string, depth int) {
	r.depth.WithLabelValues(key).Set(float64(depth))
}

func (r *PrometheusRecorder) RecordReceived(_ context.Context, key string) {
	r.received.WithLabelValues(key).Inc()
}

func (r *PrometheusRecorder) RecordSuccess(_ context.Context, key string, duration time.Duration) {
	r.success.WithLabelValues(key).Inc()
	r.latency.WithLabelValues(key).Observe(duration.Seconds())
}

func (r *PrometheusRecorder) RecordError(_ context.Context, key string, duration time.Duration) {
	r.errors.WithLabelValues(key).Inc()
	r.latency.WithLabelValues(key).Observe(duration.Seconds())
}

func (r *PrometheusRecorder) RecordDeadEvent(_ context.Context, key string) {
	r.deadEvents.WithLabelValues(key).Inc()
}
