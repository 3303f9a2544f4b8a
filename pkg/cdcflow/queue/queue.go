// Package queue holds one bounded in-memory buffer per event key.
//
// Buffers are created lazily on first Offer, Take or Poll and live until
// Shutdown. Every buffer shares the Queue's Config; there is no per-key
// override.
package queue

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/randalmurphal/cdcflow/pkg/cdcflow/change"
	"github.com/randalmurphal/cdcflow/pkg/cdcflow/observability"
	"github.com/randalmurphal/cdcflow/pkg/cdcflow/registry"
)

// Queue routes change events into per-key buffers.
type Queue struct {
	config  Config
	buffers *registry.Registry[change.Key, *buffer]
	metrics observability.MetricsRecorder
	logger  *slog.Logger
	closed  atomic.Bool
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the logger. A nil logger disables queue logging.
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		q.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(q *Queue) {
		if m != nil {
			q.metrics = m
		}
	}
}

// New creates a queue. It fails only on an invalid config.
func New(config Config, opts ...Option) (*Queue, error) {
	if err := config.Validate(); err != nil {
		return nil, wrap("", OpCreate, err)
	}
	q := &Queue{
		config:  config,
		buffers: registry.New[change.Key, *buffer](),
		metrics: observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Config returns the configuration shared by every buffer.
func (q *Queue) Config() Config {
	return q.config
}

// buffer returns the key's buffer, creating it on first use.
func (q *Queue) buffer(key change.Key, op string) (*buffer, error) {
	if q.closed.Load() {
		return nil, wrap(key, op, ErrShutdown)
	}
	buf, created := q.buffers.GetOrCreate(key, func() *buffer {
		return newBuffer(q.config.Capacity)
	})
	// Shutdown may have drained the registry between the check and the
	// create; a buffer created that late must not outlive it.
	if created && q.closed.Load() {
		buf.close()
		return nil, wrap(key, op, ErrShutdown)
	}
	return buf, nil
}

// Offer adds evt to the buffer for evt.Key(). Under Block it waits for
// space until ctx is done; every other strategy returns immediately and
// may drop one event.
func (q *Queue) Offer(ctx context.Context, evt change.Event) error {
	key := evt.Key()
	buf, err := q.buffer(key, OpOffer)
	if err != nil {
		return err
	}

	res, err := buf.offer(ctx, evt, q.config.Backpressure)
	if err != nil {
		return wrap(key, OpOffer, err)
	}

	k := key.String()
	if res.hasDropped {
		q.metrics.RecordDropped(ctx, k, q.config.Backpressure.String())
		observability.LogEvicted(q.logger, k, res.dropped.ID, q.config.Backpressure.String())
	}
	if !res.hasDropped || q.config.Backpressure != DropNewest {
		q.metrics.RecordEnqueued(ctx, k)
	}
	q.metrics.RecordDepth(ctx, k, res.depth)
	return nil
}

// Take removes and returns the oldest event for key, waiting until one is
// available, ctx is done, or the queue shuts down.
func (q *Queue) Take(ctx context.Context, key change.Key) (change.Event, error) {
	buf, err := q.buffer(key, OpTake)
	if err != nil {
		return change.Event{}, err
	}

	evt, depth, err := buf.take(ctx)
	if err != nil {
		return change.Event{}, wrap(key, OpTake, err)
	}
	q.recordDequeue(ctx, key, depth)
	return evt, nil
}

// Poll removes and returns the oldest event for key without waiting.
// ok is false when nothing is buffered.
func (q *Queue) Poll(key change.Key) (evt change.Event, ok bool, err error) {
	buf, err := q.buffer(key, OpPoll)
	if err != nil {
		return change.Event{}, false, err
	}

	evt, depth, ok, err := buf.poll()
	if err != nil {
		return change.Event{}, false, wrap(key, OpPoll, err)
	}
	if ok {
		q.recordDequeue(context.Background(), key, depth)
	}
	return evt, ok, nil
}

func (q *Queue) recordDequeue(ctx context.Context, key change.Key, depth int) {
	k := key.String()
	q.metrics.RecordDequeued(ctx, k)
	q.metrics.RecordDepth(ctx, k, depth)
}

// Size returns the number of buffered events for key. Unlike Offer and
// Take it does not create a buffer; an unknown key has size 0.
func (q *Queue) Size(key change.Key) (int, error) {
	if q.closed.Load() {
		return 0, wrap(key, OpSize, ErrShutdown)
	}
	buf, ok := q.buffers.Get(key)
	if !ok {
		return 0, nil
	}
	return buf.len(), nil
}

// Keys returns every key that has a buffer. The order is not guaranteed.
func (q *Queue) Keys() []change.Key {
	return q.buffers.Keys()
}

// Shutdown releases every buffer. Blocked takers and offerers return
// ErrShutdown, and so does every later operation. Calling it again is a no-op.
func (q *Queue) Shutdown() error {
	if !q.closed.CompareAndSwap(false, true) {
		return nil
	}
	for key, buf := range q.buffers.Drain() {
		buf.close()
		q.metrics.RecordDepth(context.Background(), key.String(), 0)
	}
	if q.logger != nil {
		q.logger.Info("queue shut down")
	}
	return nil
}

// Closed reports whether Shutdown has been called.
func (q *Queue) Closed() bool {
	return q.closed.Load()
}
