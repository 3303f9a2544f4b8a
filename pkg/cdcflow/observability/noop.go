package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a MetricsRecorder that does nothing.
// Use when metrics are disabled to avoid overhead.
type NoopMetrics struct{}

// Compile-time interface check.
var _ MetricsRecorder = NoopMetrics{}

func (NoopMetrics) RecordEnqueued(context.Context, string) {}
func (NoopMetrics) RecordDequeued(context.Context, string) {}
func (NoopMetrics) RecordDropped(context.Context, string, string) {}
func (NoopMetrics) RecordDepth(context.Context, string, int) {}
func (NoopMetrics) RecordReceived(context.Context, string) {}
func (NoopMetrics) RecordSuccess(context.Context, string, time.Duration) {}
func (NoopMetrics) RecordError(context.Context, string, time.Duration) {}
func (NoopMetrics) RecordDeadEvent(context.Context, string) {}

// NoopSpanManager is a SpanManager that does nothing.
// Use when tracing is disabled to avoid overhead.
type NoopSpanManager struct{}

// Compile-time interface check.
var _ SpanManager = NoopSpanManager{}

var noopSpan = noop.Span{}

// StartHandlerSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartHandlerSpan(ctx context.Context, _, _, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// EndSpanWithError does nothing.
func (NoopSpanManager) EndSpanWithError(trace.Span, error) {}

// AddSpanEvent does nothing.
func (NoopSpanManager) AddSpanEvent(context.Context, string, ...attribute.KeyValue) {}
