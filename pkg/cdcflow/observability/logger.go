// Package observability provides structured logging, metrics, and tracing
// for cdcflow's queue and dispatcher.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry or Prometheus
//   - Tracing via OpenTelemetry
//
// All features have no-op implementations; every log helper accepts a nil
// logger and does nothing with it.
package observability

import (
	"context"
	"log/slog"
	"time"
)

// Attribute keys shared by every log line and metric.
const (
	AttrEventKey   = "event_key"
	AttrEventID    = "event_id"
	AttrHandler    = "handler"
	AttrAttempt    = "attempt"
	AttrDurationMs = "duration_ms"
	AttrError      = "error"
	AttrErrorKind  = "error_kind"
	AttrStrategy   = "strategy"
)

// EnrichLogger adds event context to a logger.
//
// Example:
//
//	enriched := EnrichLogger(logger, "messages.insert", evt.ID)
//	enriched.Info("indexing message") // includes event_key, event_id
func EnrichLogger(logger *slog.Logger, key, eventID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String(AttrEventKey, key),
		slog.String(AttrEventID, eventID),
	)
}

// LogConsumerStart logs that a consumer began draining a key.
func LogConsumerStart(logger *slog.Logger, key string, handlers int) {
	if logger == nil {
		return
	}
	logger.Info("consumer starting",
		slog.String(AttrEventKey, key),
		slog.Int("handlers", handlers),
	)
}

// LogConsumerStop logs that a consumer exited.
func LogConsumerStop(logger *slog.Logger, key string, reason error) {
	if logger == nil {
		return
	}
	attrs := []any{slog.String(AttrEventKey, key)}
	if reason != nil {
		attrs = append(attrs, slog.String("reason", reason.Error()))
	}
	logger.Info("consumer stopped", attrs...)
}

// LogNoHandlers logs a start with an empty handler registry.
func LogNoHandlers(logger *slog.Logger) {
	if logger == nil {
		return
	}
	logger.Warn("no handlers registered, no consumers started")
}

// LogLateRegistration logs a handler registered for a key that has no consumer.
func LogLateRegistration(logger *slog.Logger, key, handler string) {
	if logger == nil {
		return
	}
	logger.Warn("handler registered after start for a key without a consumer, it will not receive events",
		slog.String(AttrEventKey, key),
		slog.String(AttrHandler, handler),
	)
}

// LogTakeError logs a queue failure in a consumer loop.
func LogTakeError(logger *slog.Logger, key string, err error, retryIn time.Duration) {
	if logger == nil {
		return
	}
	logger.Error("take failed",
		slog.String(AttrEventKey, key),
		slog.String(AttrError, err.Error()),
		slog.Duration("retry_in", retryIn),
	)
}

// LogEvicted logs an event lost to backpressure.
// Sliding evictions are routine and logged at debug; explicit drops warn.
func LogEvicted(logger *slog.Logger, key, eventID, strategy string) {
	if logger == nil {
		return
	}
	level := slog.LevelWarn
	if strategy == "sliding" {
		level = slog.LevelDebug
	}
	logger.Log(context.Background(), level, "event dropped",
		slog.String(AttrEventKey, key),
		slog.String(AttrEventID, eventID),
		slog.String(AttrStrategy, strategy),
	)
}

// LogHandlerStart logs a handler invocation starting.
func LogHandlerStart(logger *slog.Logger, key, eventID, handler string, attempt int) {
	if logger == nil {
		return
	}
	logger.Debug("handler starting",
		slog.String(AttrEventKey, key),
		slog.String(AttrEventID, eventID),
		slog.String(AttrHandler, handler),
		slog.Int(AttrAttempt, attempt),
	)
}

// LogHandlerComplete logs a successful handler invocation.
func LogHandlerComplete(logger *slog.Logger, key, eventID, handler string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("handler completed",
		slog.String(AttrEventKey, key),
		slog.String(AttrEventID, eventID),
		slog.String(AttrHandler, handler),
		slog.Float64(AttrDurationMs, durationMs),
	)
}

// LogHandlerError writes the structured error record used for error tracking.
func LogHandlerError(logger *slog.Logger, key, eventID, handler string, attempt int, err error, kind string) {
	if logger == nil {
		return
	}
	logger.Error("handler error",
		slog.String(AttrEventKey, key),
		slog.String(AttrEventID, eventID),
		slog.String(AttrHandler, handler),
		slog.Int(AttrAttempt, attempt),
		slog.String(AttrError, err.Error()),
		slog.String(AttrErrorKind, kind),
	)
}

// LogEventDiscarded logs an event+handler pairing given up on after retries.
func LogEventDiscarded(logger *slog.Logger, key, eventID, handler string, attempts int, err error) {
	if logger == nil {
		return
	}
	logger.Error("event discarded after retries exhausted",
		slog.String(AttrEventKey, key),
		slog.String(AttrEventID, eventID),
		slog.String(AttrHandler, handler),
		slog.Int("attempts", attempts),
		slog.String(AttrError, err.Error()),
	)
}

// LogHandlerPanic logs a panic that escaped the middleware stack.
func LogHandlerPanic(logger *slog.Logger, key, eventID, handler string, recovered any) {
	if logger == nil {
		return
	}
	logger.Error("handler panicked outside middleware",
		slog.String(AttrEventKey, key),
		slog.String(AttrEventID, eventID),
		slog.String(AttrHandler, handler),
		slog.Any("panic", recovered),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
