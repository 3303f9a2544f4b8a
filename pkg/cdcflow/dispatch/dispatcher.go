// Package dispatch runs one consumer per event key and fans each event out
// to the handlers registered for that key.
//
// Handlers are registered with On and consumption begins with Start. Start
// reads the registry once: a key first registered after Start has no
// consumer and its handlers never run. Registering another handler for a
// key that already has a consumer takes effect from that key's next event.
//
// Every handler runs inside the configured middleware and a retry policy.
// A handler still failing after its last attempt is logged, counted,
// reported to the dead-letter sink if one is set, and discarded. Neither
// siblings nor the consumer loop ever see that failure.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/cdcflow/pkg/cdcflow/change"
	"github.com/randalmurphal/cdcflow/pkg/cdcflow/deadletter"
	cdcerrors "github.com/randalmurphal/cdcflow/pkg/cdcflow/errors"
	"github.com/randalmurphal/cdcflow/pkg/cdcflow/middleware"
	"github.com/randalmurphal/cdcflow/pkg/cdcflow/observability"
	"github.com/randalmurphal/cdcflow/pkg/cdcflow/registry"
)

// HandlerFunc processes one change event. The payload is evt.Value.
type HandlerFunc func(ctx context.Context, evt change.Event) error

// Source yields events per key. *queue.Queue implements it.
type Source interface {
	Take(ctx context.Context, key change.Key) (change.Event, error)
}

// State is a key's consumer state.
type State int

const (
	// Idle means no consumer is running for the key.
	Idle State = iota
	// Consuming means a consumer is draining the key.
	Consuming
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Consuming:
		return "consuming"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// registration is a handler with its middleware stack already applied.
type registration struct {
	name    string
	timeout time.Duration
	invoke  middleware.Handler
}

// HandlerOption configures a handler registration.
type HandlerOption func(*registration)

// WithHandlerName names the handler in logs, metrics and dead events.
// Default: "<key>#<n>".
func WithHandlerName(name string) HandlerOption {
	return func(r *registration) {
		r.name = name
	}
}

// WithHandlerTimeout bounds each attempt of the handler.
func WithHandlerTimeout(d time.Duration) HandlerOption {
	return func(r *registration) {
		r.timeout = d
	}
}

// Dispatcher owns the handler registry and the per-key consumers.
type Dispatcher struct {
	source  Source
	config  Config
	retry   cdcerrors.RetryConfig
	stack   middleware.Middleware
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	sink    deadletter.Sink

	handlers *registry.Registry[change.Key, []*registration]
	states   *registry.Registry[change.Key, State]

	// startMu orders Start against the late-registration check in On.
	startMu sync.Mutex
	started atomic.Bool
	seq     atomic.Int64
	wg      sync.WaitGroup
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. A nil logger disables dispatcher logging.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithMetrics sets the recorder used for dead-event counts.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(d *Dispatcher) {
		if m != nil {
			d.metrics = m
		}
	}
}

// WithDeadLetter reports every discarded (event, handler) pair to sink.
func WithDeadLetter(sink deadletter.Sink) Option {
	return func(d *Dispatcher) {
		d.sink = sink
	}
}

// New creates a dispatcher that takes events from source.
func New(source Source, config Config, opts ...Option) (*Dispatcher, error) {
	if source == nil {
		return nil, fmt.Errorf("%w: nil source", ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.TakeRetryInterval == 0 {
		config.TakeRetryInterval = DefaultConfig.TakeRetryInterval
	}

	d := &Dispatcher{
		source:   source,
		config:   config,
		retry:    config.Retry(),
		stack:    middleware.Compose(config.Middleware...),
		metrics:  observability.NoopMetrics{},
		handlers: registry.New[change.Key, []*registration](),
		states:   registry.New[change.Key, State](),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// On registers h for key. Registration is additive; several handlers may
// share a key. The middleware stack is applied here, once.
func (d *Dispatcher) On(key change.Key, h HandlerFunc, opts ...HandlerOption) {
	if h == nil {
		if d.logger != nil {
			d.logger.Warn("ignoring nil handler", slog.String(observability.AttrEventKey, key.String()))
		}
		return
	}

	reg := &registration{name: fmt.Sprintf("%s#%d", key, d.seq.Add(1))}
	for _, opt := range opts {
		opt(reg)
	}

	bare := func(ctx context.Context, _ change.Key, evt change.Event) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = cdcerrors.Recovered(r)
			}
		}()
		return h(ctx, evt)
	}
	reg.invoke = d.stack(middleware.Chain(bare, middleware.Timeout(reg.timeout)))

	d.startMu.Lock()
	defer d.startMu.Unlock()
	d.handlers.Update(key, func(cur []*registration, _ bool) []*registration {
		return append(slices.Clip(cur), reg)
	})
	if d.started.Load() && !d.states.Has(key) {
		observability.LogLateRegistration(d.logger, key.String(), reg.name)
	}
}

// Start spawns one consumer per key registered at this moment. Consumers
// run until ctx is done. With no handlers registered it logs a warning
// and starts nothing. Only the first call has any effect.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startMu.Lock()
	defer d.startMu.Unlock()

	if !d.started.CompareAndSwap(false, true) {
		if d.logger != nil {
			d.logger.Warn("dispatcher already started")
		}
		return
	}

	snapshot := d.handlers.Snapshot()
	if len(snapshot) == 0 {
		observability.LogNoHandlers(d.logger)
		return
	}

	for key, regs := range snapshot {
		d.states.Update(key, func(State, bool) State { return Consuming })
		d.wg.Add(1)
		go d.consume(ctx, key, len(regs))
	}
}

// Wait blocks until every consumer has exited. Consumers exit only when
// the context passed to Start is done; in-flight handlers are not awaited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Started reports whether Start has been called.
func (d *Dispatcher) Started() bool {
	return d.started.Load()
}

// Keys returns every key with at least one registered handler.
func (d *Dispatcher) Keys() []change.Key {
	keys := d.handlers.Keys()
	slices.Sort(keys)
	return keys
}

// Handlers returns the names of the handlers registered for key, in
// registration order.
func (d *Dispatcher) Handlers(key change.Key) []string {
	regs, _ := d.handlers.Get(key)
	names := make([]string, len(regs))
	for i, r := range regs {
		names[i] = r.name
	}
	return names
}

// State returns key's consumer state.
func (d *Dispatcher) State(key change.Key) State {
	s, _ := d.states.Get(key)
	return s
}
