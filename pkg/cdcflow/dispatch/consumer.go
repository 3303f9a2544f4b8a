package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/randalmurphal/cdcflow/pkg/cdcflow/change"
	"github.com/randalmurphal/cdcflow/pkg/cdcflow/deadletter"
	cdcerrors "github.com/randalmurphal/cdcflow/pkg/cdcflow/errors"
	"github.com/randalmurphal/cdcflow/pkg/cdcflow/middleware"
	"github.com/randalmurphal/cdcflow/pkg/cdcflow/observability"
)

// consume drains key until ctx is done. It settles the fan-out for one
// event before taking the next.
func (d *Dispatcher) consume(ctx context.Context, key change.Key, handlers int) {
	defer d.wg.Done()
	k := key.String()
	observability.LogConsumerStart(d.logger, k, handlers)
	defer func() {
		d.states.Update(key, func(State, bool) State { return Idle })
		observability.LogConsumerStop(d.logger, k, ctx.Err())
	}()

	for {
		evt, err := d.source.Take(ctx, key)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			observability.LogTakeError(d.logger, k, err, d.config.TakeRetryInterval)
			if !sleep(ctx, d.config.TakeRetryInterval) {
				return
			}
			continue
		}
		d.fanOut(ctx, key, evt)
	}
}

// fanOut runs every handler currently registered for key concurrently and
// waits for all of them, or for ctx.
func (d *Dispatcher) fanOut(ctx context.Context, key change.Key, evt change.Event) {
	regs, _ := d.handlers.Get(key)
	if len(regs) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, reg := range regs {
		wg.Add(1)
		go func(reg *registration) {
			defer wg.Done()
			d.run(ctx, key, evt, reg)
		}(reg)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// run invokes one handler with retries. Nothing escapes it: a final
// failure is reported and discarded, and a panic outside the middleware
// stack is logged.
func (d *Dispatcher) run(ctx context.Context, key change.Key, evt change.Event, reg *registration) {
	defer func() {
		if r := recover(); r != nil {
			observability.LogHandlerPanic(d.logger, key.String(), evt.ID, reg.name, r)
			d.discard(ctx, key, evt, reg, 0, cdcerrors.Recovered(r))
		}
	}()

	hctx := middleware.WithHandlerName(ctx, reg.name)
	result := cdcerrors.Do(hctx, d.retry, func(actx context.Context) error {
		return reg.invoke(actx, key, evt)
	})
	if result.Err == nil {
		return
	}
	// Interrupted by shutdown rather than failed.
	if ctx.Err() != nil && cdcerrors.IsCancelled(result.Err) {
		return
	}
	d.discard(ctx, key, evt, reg, result.Attempts, result.Err)
}

func (d *Dispatcher) discard(ctx context.Context, key change.Key, evt change.Event, reg *registration, attempts int, err error) {
	observability.LogEventDiscarded(d.logger, key.String(), evt.ID, reg.name, attempts, err)
	d.metrics.RecordDeadEvent(ctx, key.String())
	if d.sink == nil {
		return
	}
	if serr := d.sink.Report(ctx, deadletter.New(key, evt, reg.name, attempts, err)); serr != nil && d.logger != nil {
		d.logger.Warn("dead-letter report failed",
			slog.String(observability.AttrEventKey, key.String()),
			slog.String(observability.AttrEventID, evt.ID),
			slog.String(observability.AttrError, serr.Error()),
		)
	}
}

// sleep waits for d or until ctx is done. Reports false on cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
