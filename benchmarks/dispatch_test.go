package benchmarks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/randalmurphal/cdcflow/pkg/cdcflow"
	"github.com/randalmurphal/cdcflow/pkg/cdcflow/change"
	"github.com/randalmurphal/cdcflow/pkg/cdcflow/middleware"
	"github.com/randalmurphal/cdcflow/pkg/cdcflow/observability"
)

func tableName(i int) string {
	return fmt.Sprintf("table_%d", i)
}

func mustEngine(b *testing.B, mws []middleware.Middleware) *cdcflow.Engine {
	b.Helper()
	cfg := cdcflow.DefaultConfig
	cfg.Dispatcher.Middleware = mws
	e, err := cdcflow.New(cfg,
		cdcflow.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		cdcflow.WithMetrics(observability.NoopMetrics{}),
	)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = e.Shutdown() })
	return e
}

func benchmarkDispatch(b *testing.B, handlers int, mws []middleware.Middleware) {
	e := mustEngine(b, mws)

	var wg sync.WaitGroup
	for i := 0; i < handlers; i++ {
		e.OnChange("messages", change.Insert, func(context.Context, change.Event) error {
			wg.Done()
			return nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)

	evt := change.New(change.Insert, "messages", 1)
	wg.Add(b.N * handlers)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := e.Ingest(ctx, evt); err != nil {
			b.Fatal(err)
		}
	}
	wg.Wait()
}

// BenchmarkDispatch_OneHandler dispatches to a single handler without middleware.
func BenchmarkDispatch_OneHandler(b *testing.B) {
	benchmarkDispatch(b, 1, []middleware.Middleware{})
}

// BenchmarkDispatch_FanOut_8 dispatches every event to 8 concurrent handlers.
func BenchmarkDispatch_FanOut_8(b *testing.B) {
	benchmarkDispatch(b, 8, []middleware.Middleware{})
}

// BenchmarkDispatch_DefaultMiddleware adds logging, metrics and error tracking.
func BenchmarkDispatch_DefaultMiddleware(b *testing.B) {
	benchmarkDispatch(b, 1, middleware.Default(nil, observability.NoopMetrics{}))
}

// BenchmarkCompose_10 measures invoking a handler wrapped in ten middleware.
func BenchmarkCompose_10(b *testing.B) {
	mws := make([]middleware.Middleware, 10)
	for i := range mws {
		mws[i] = func(next middleware.Handler) middleware.Handler {
			return func(ctx context.Context, key change.Key, evt change.Event) error {
				return next(ctx, key, evt)
			}
		}
	}
	h := middleware.Chain(func(context.Context, change.Key, change.Event) error { return nil }, mws...)
	ctx := context.Background()
	evt := change.New(change.Insert, "messages", 1)
	key := evt.Key()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = h(ctx, key, evt)
	}
}
