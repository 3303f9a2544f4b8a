package cdcflow

import (
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/randalmurphal/cdcflow/pkg/cdcflow/config"
	"github.com/randalmurphal/cdcflow/pkg/cdcflow/dispatch"
	"github.com/randalmurphal/cdcflow/pkg/cdcflow/middleware"
	"github.com/randalmurphal/cdcflow/pkg/cdcflow/queue"
)

// ErrInvalidConfig indicates an engine Config that cannot be used.
var ErrInvalidConfig = errors.New("invalid engine config")

// Config holds the construction-time settings of an Engine.
type Config struct {
	Queue      queue.Config
	Dispatcher dispatch.Config
}

// DefaultConfig is a blocking queue of 1024 per key and three retries
// starting at 100ms. Dispatcher.Middleware is nil, which New replaces with
// middleware.Default.
var DefaultConfig = Config{
	Queue:      queue.DefaultConfig,
	Dispatcher: dispatch.DefaultConfig,
}

// Validate checks both halves of the configuration.
func (c Config) Validate() error {
	if err := c.Queue.Validate(); err != nil {
		return fmt.Errorf("%w: queue: %w", ErrInvalidConfig, err)
	}
	if err := c.Dispatcher.Validate(); err != nil {
		return fmt.Errorf("%w: dispatcher: %w", ErrInvalidConfig, err)
	}
	return nil
}

// ConfigFrom maps a loaded configuration document onto Config, starting
// from DefaultConfig. Recognised keys:
//
//	queue.capacity                  int
//	queue.backpressure              block | sliding | dropOldest | dropNewest
//	dispatcher.max_retries          int
//	dispatcher.retry_base_delay_ms  int milliseconds
//	dispatcher.retry_base_delay     duration string, wins over the _ms form
//	dispatcher.max_retry_delay      duration
//	dispatcher.take_retry_interval  duration
//	dispatcher.middleware           list of middleware names
//	dispatcher.handler_timeout      duration, used by "timeout"
//	dispatcher.rate_limit           events per second, used by "rate_limit"
//	dispatcher.rate_burst           int, used by "rate_limit"
//
// deps supplies the logger, recorder and spans the named middleware are
// built with. When dispatcher.middleware is absent the result leaves
// Middleware nil.
func ConfigFrom(cfg config.Config, deps middleware.Deps) (Config, error) {
	out := DefaultConfig

	q := cfg.Sub("queue")
	out.Queue.Capacity = q.Int("capacity", out.Queue.Capacity)
	if q.Has("backpressure") {
		strategy, err := queue.ParseStrategy(q.String("backpressure", ""))
		if err != nil {
			return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		out.Queue.Backpressure = strategy
	}

	d := cfg.Sub("dispatcher")
	out.Dispatcher.MaxRetries = d.Int("max_retries", out.Dispatcher.MaxRetries)
	out.Dispatcher.RetryBaseDelay = d.Millis("retry_base_delay_ms", out.Dispatcher.RetryBaseDelay)
	out.Dispatcher.RetryBaseDelay = d.Duration("retry_base_delay", out.Dispatcher.RetryBaseDelay)
	out.Dispatcher.MaxRetryDelay = d.Duration("max_retry_delay", out.Dispatcher.MaxRetryDelay)
	out.Dispatcher.TakeRetryInterval = d.Duration("take_retry_interval", out.Dispatcher.TakeRetryInterval)

	if d.Has("middleware") {
		names := d.StringSlice("middleware", nil)
		if names == nil {
			return Config{}, fmt.Errorf("%w: dispatcher.middleware must be a list of names", ErrInvalidConfig)
		}
		deps.Timeout = d.Duration("handler_timeout", deps.Timeout)
		if d.Has("rate_limit") {
			deps.RateLimit = rate.Limit(d.Float("rate_limit", 0))
		}
		deps.RateBurst = d.Int("rate_burst", deps.RateBurst)

		mws, err := middleware.FromNames(names, deps)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		out.Dispatcher.Middleware = mws
	}

	if err := out.Validate(); err != nil {
		return Config{}, err
	}
	return out, nil
}
