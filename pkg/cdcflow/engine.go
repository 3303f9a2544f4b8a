package cdcflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/randalmurphal/cdcflow/pkg/cdcflow/change"
	"github.com/randalmurphal/cdcflow/pkg/cdcflow/deadletter"
	"github.com/randalmurphal/cdcflow/pkg/cdcflow/dispatch"
	"github.com/randalmurphal/cdcflow/pkg/cdcflow/middleware"
	"github.com/randalmurphal/cdcflow/pkg/cdcflow/observability"
	"github.com/randalmurphal/cdcflow/pkg/cdcflow/queue"
)

// engineConfig holds what Options can set.
type engineConfig struct {
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	sink    deadletter.Sink
}

// Option configures an Engine.
type Option func(*engineConfig)

// WithLogger sets the logger shared by the queue, the dispatcher and the
// default middleware. Default: slog.Default(). A nil logger disables
// engine logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *engineConfig) {
		c.logger = logger
	}
}

// WithMetrics sets the recorder shared by the queue, the dispatcher and the
// default middleware. Default: observability.NewMetricsRecorder(), which
// reports to the global OpenTelemetry meter provider.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *engineConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithDeadLetter reports every discarded event to sink.
func WithDeadLetter(sink deadletter.Sink) Option {
	return func(c *engineConfig) {
		c.sink = sink
	}
}

// Engine buffers change events per key and dispatches them to handlers.
//
// The producer calls Ingest once per observed row mutation. Integrations
// register with On or OnChange, then call Start once.
type Engine struct {
	queue      *queue.Queue
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
}

// New builds an engine. A nil cfg.Dispatcher.Middleware is replaced by
// middleware.Default built from the engine's logger and recorder; pass an
// empty non-nil slice for no middleware.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ec := engineConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&ec)
	}
	if ec.metrics == nil {
		ec.metrics = observability.NewMetricsRecorder()
	}

	if cfg.Dispatcher.Middleware == nil {
		cfg.Dispatcher.Middleware = middleware.Default(ec.logger, ec.metrics)
	}

	q, err := queue.New(cfg.Queue, queue.WithLogger(ec.logger), queue.WithMetrics(ec.metrics))
	if err != nil {
		return nil, err
	}

	dopts := []dispatch.Option{
		dispatch.WithLogger(ec.logger),
		dispatch.WithMetrics(ec.metrics),
	}
	if ec.sink != nil {
		dopts = append(dopts, dispatch.WithDeadLetter(ec.sink))
	}
	d, err := dispatch.New(q, cfg.Dispatcher, dopts...)
	if err != nil {
		return nil, err
	}

	return &Engine{queue: q, dispatcher: d, logger: ec.logger}, nil
}

// Ingest validates evt and offers it to its key's buffer. Under the block
// strategy it waits for space or ctx; the other strategies never wait.
// Events are not deduplicated.
func (e *Engine) Ingest(ctx context.Context, evt change.Event) error {
	if err := evt.Validate(); err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	return e.queue.Offer(ctx, evt)
}

// On registers h for key. See dispatch.Dispatcher.On.
func (e *Engine) On(key change.Key, h dispatch.HandlerFunc, opts ...dispatch.HandlerOption) {
	e.dispatcher.On(key, h, opts...)
}

// OnChange registers h for op on table.
func (e *Engine) OnChange(table string, op change.Operation, h dispatch.HandlerFunc, opts ...dispatch.HandlerOption) {
	e.dispatcher.On(change.KeyOf(table, op), h, opts...)
}

// Start launches one consumer per registered key. Consumers stop when ctx
// is done.
func (e *Engine) Start(ctx context.Context) {
	e.dispatcher.Start(ctx)
}

// Wait blocks until every consumer has exited.
func (e *Engine) Wait() {
	e.dispatcher.Wait()
}

// Size returns the number of events buffered for key.
func (e *Engine) Size(key change.Key) (int, error) {
	return e.queue.Size(key)
}

// Poll removes and returns the next buffered event for key without
// waiting.
func (e *Engine) Poll(key change.Key) (change.Event, bool, error) {
	return e.queue.Poll(key)
}

// Shutdown releases every buffer. Blocked producers and consumers receive
// queue.ErrShutdown. Consumer lifetime is governed by the context passed to
// Start, not by Shutdown.
func (e *Engine) Shutdown() error {
	return e.queue.Shutdown()
}

// Queue returns the underlying queue.
func (e *Engine) Queue() *queue.Queue {
	return e.queue
}

// Dispatcher returns the underlying dispatcher.
func (e *Engine) Dispatcher() *dispatch.Dispatcher {
	return e.dispatcher
}
