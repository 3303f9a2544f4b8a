package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records queue and handler metrics, tagged by event key.
// Use NewMetricsRecorder() for OTel metrics, NewPrometheusRecorder for a
// Prometheus registry, or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordEnqueued counts an event accepted into a key's queue.
	RecordEnqueued(ctx context.Context, key string)

	// RecordDequeued counts an event taken out of a key's queue.
	RecordDequeued(ctx context.Context, key string)

	// RecordDropped counts an event lost to backpressure under strategy.
	RecordDropped(ctx context.Context, key, strategy string)

	// RecordDepth reports the current depth of a key's queue.
	RecordDepth(ctx context.Context, key string, depth int)

	// RecordReceived counts a handler invocation starting.
	RecordReceived(ctx context.Context, key string)

	// RecordSuccess counts a successful invocation and records its latency.
	RecordSuccess(ctx context.Context, key string, duration time.Duration)

	// RecordError counts a failed invocation and records its latency.
	RecordError(ctx context.Context, key string, duration time.Duration)

	// RecordDeadEvent counts an event discarded after retries were exhausted.
	RecordDeadEvent(ctx context.Context, key string)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	enqueued   metric.Int64Counter
	dequeued   metric.Int64Counter
	dropped    metric.Int64Counter
	depth      metric.Int64Gauge
	received   metric.Int64Counter
	success    metric.Int64Counter
	errors     metric.Int64Counter
	latency    metric.Float64Histogram
	deadEvents metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics(otel.GetMeterProvider())
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics(provider metric.MeterProvider) (*otelMetrics, error) {
	meter := provider.Meter("cdcflow")
	m := &otelMetrics{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.enqueued, "cdcflow.queue.enqueued", "Number of events accepted into a queue"},
		{&m.dequeued, "cdcflow.queue.dequeued", "Number of events taken from a queue"},
		{&m.dropped, "cdcflow.queue.dropped", "Number of events lost to backpressure"},
		{&m.received, "cdcflow.handler.received", "Number of handler invocations started"},
		{&m.success, "cdcflow.handler.success", "Number of successful handler invocations"},
		{&m.errors, "cdcflow.handler.errors", "Number of failed handler invocations"},
		{&m.deadEvents, "cdcflow.events.dead", "Number of events discarded after retries"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, err
		}
	}

	m.depth, err = meter.Int64Gauge("cdcflow.queue.depth",
		metric.WithDescription("Current number of buffered events per key"),
	)
	if err != nil {
		return nil, err
	}

	m.latency, err = meter.Float64Histogram("cdcflow.handler.latency_ms",
		metric.WithDescription("Handler invocation latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// NewMetricsRecorderWithProvider returns an OTel recorder bound to provider
// instead of the global one.
func NewMetricsRecorderWithProvider(provider metric.MeterProvider) (MetricsRecorder, error) {
	return newOtelMetrics(provider)
}

func keyAttr(key string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String(AttrEventKey, key))
}

func (m *otelMetrics) RecordEnqueued(ctx context.Context, key string) {
	m.enqueued.Add(ctx, 1, keyAttr(key))
}

func (m *otelMetrics) RecordDequeued(ctx context.Context, key string) {
	m.dequeued.Add(ctx, 1, keyAttr(key))
}

func (m *otelMetrics) RecordDropped(ctx context.Context, key, strategy string) {
	m.dropped.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrEventKey, key),
		attribute.String(AttrStrategy, strategy),
	))
}

func (m *otelMetrics) RecordDepth(ctx context.Context, key string, depth int) {
	m.depth.Record(ctx, int64(depth), keyAttr(key))
}

func (m *otelMetrics) RecordReceived(ctx context.Context, key string) {
	m.received.Add(ctx, 1, keyAttr(key))
}

func (m *otelMetrics) RecordSuccess(ctx context.Context, key string, duration time.Duration) {
	m.success.Add(ctx, 1, keyAttr(key))
	m.latency.Record(ctx, durationMs(duration), keyAttr(key))
}

func (m *otelMetrics) RecordError(ctx context.Context, key string, duration time.Duration) {
	m.errors.Add(ctx, 1, keyAttr(key))
	m.latency.Record(ctx, durationMs(duration), keyAttr(key))
}

func (m *otelMetrics) RecordDeadEvent(ctx context.Context, key string) {
	m.deadEvents.Add(ctx, 1, keyAttr(key))
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
