package middleware

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/randalmurphal/cdcflow/pkg/cdcflow/change"
	cdcerrors "github.com/randalmurphal/cdcflow/pkg/cdcflow/errors"
	"github.com/randalmurphal/cdcflow/pkg/cdcflow/observability"
	"github.com/randalmurphal/cdcflow/pkg/cdcflow/registry"
)

// Logging logs "handler starting" before and "handler completed" with the
// elapsed duration after a successful invocation. Failures are left to
// ErrorTracking.
func Logging(logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, key change.Key, evt change.Event) error {
			name := HandlerName(ctx)
			observability.LogHandlerStart(logger, key.String(), evt.ID, name, cdcerrors.AttemptFrom(ctx))
			done := observability.TimedOperation()
			err := next(ctx, key, evt)
			if err == nil {
				observability.LogHandlerComplete(logger, key.String(), evt.ID, name, done())
			}
			return err
		}
	}
}

// Metrics counts received invocations before and success or error after.
// The wrapped error is returned untouched.
func Metrics(recorder observability.MetricsRecorder) Middleware {
	if recorder == nil {
		recorder = observability.NoopMetrics{}
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, key change.Key, evt change.Event) error {
			k := key.String()
			recorder.RecordReceived(ctx, k)
			start := time.Now()
			err := next(ctx, key, evt)
			if err != nil {
				recorder.RecordError(ctx, k, time.Since(start))
			} else {
				recorder.RecordSuccess(ctx, k, time.Since(start))
			}
			return err
		}
	}
}

// ErrorTracking logs a structured error record, including a best-effort
// error kind and the attempt number, for every failed invocation.
func ErrorTracking(logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, key change.Key, evt change.Event) error {
			err := next(ctx, key, evt)
			if err != nil {
				observability.LogHandlerError(logger, key.String(), evt.ID, HandlerName(ctx),
					cdcerrors.AttemptFrom(ctx), err, cdcerrors.Kind(err))
			}
			return err
		}
	}
}

// Recovery converts a panic in next into a *errors.PanicError.
func Recovery() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, key change.Key, evt change.Event) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = cdcerrors.Recovered(r)
				}
			}()
			return next(ctx, key, evt)
		}
	}
}

// Tracing wraps each invocation in a span.
func Tracing(spans observability.SpanManager) Middleware {
	if spans == nil {
		spans = observability.NoopSpanManager{}
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, key change.Key, evt change.Event) error {
			ctx, span := spans.StartHandlerSpan(ctx, key.String(), evt.ID, HandlerName(ctx))
			err := next(ctx, key, evt)
			spans.EndSpanWithError(span, err)
			return err
		}
	}
}

// Timeout bounds each invocation. A non-positive d disables it.
func Timeout(d time.Duration) Middleware {
	return func(next Handler) Handler {
		if d <= 0 {
			return next
		}
		return func(ctx context.Context, key change.Key, evt change.Event) error {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, key, evt)
		}
	}
}

// RateLimit throttles invocations per event key with a token bucket of
// limit events per second and the given burst. Waiting honours ctx.
func RateLimit(limit rate.Limit, burst int) Middleware {
	if burst < 1 {
		burst = 1
	}
	limiters := registry.New[change.Key, *rate.Limiter]()
	return func(next Handler) Handler {
		return func(ctx context.Context, key change.Key, evt change.Event) error {
			l, _ := limiters.GetOrCreate(key, func() *rate.Limiter {
				return rate.NewLimiter(limit, burst)
			})
			if err := l.Wait(ctx); err != nil {
				return err
			}
			return next(ctx, key, evt)
		}
	}
}

// Default is the standard bundle, logging outermost.
func Default(logger *slog.Logger, recorder observability.MetricsRecorder) []Middleware {
	return []Middleware{
		Logging(logger),
		Metrics(recorder),
		ErrorTracking(logger),
	}
}
