package dispatch

import (
	"errors"
	"fmt"
	"time"

	cdcerrors "github.com/randalmurphal/cdcflow/pkg/cdcflow/errors"
	"github.com/randalmurphal/cdcflow/pkg/cdcflow/middleware"
)

// ErrInvalidConfig indicates a dispatcher Config that cannot be used.
var ErrInvalidConfig = errors.New("invalid dispatcher config")

// Config configures a Dispatcher.
type Config struct {
	// MaxRetries is the number of retries after the first attempt.
	// Every handler gets MaxRetries+1 attempts per event.
	MaxRetries int

	// RetryBaseDelay is the backoff after the first failed attempt;
	// attempt n is followed by RetryBaseDelay*2^(n-1).
	RetryBaseDelay time.Duration

	// MaxRetryDelay caps a single backoff. Zero means uncapped.
	MaxRetryDelay time.Duration

	// TakeRetryInterval is how long a consumer sleeps after a failed take.
	// Default: 1s
	TakeRetryInterval time.Duration

	// Middleware wraps every handler, first element outermost.
	Middleware []middleware.Middleware
}

// DefaultConfig provides reasonable defaults. It carries no middleware;
// callers usually add middleware.Default.
var DefaultConfig = Config{
	MaxRetries:        3,
	RetryBaseDelay:    100 * time.Millisecond,
	TakeRetryInterval: time.Second,
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must be >= 0, got %d", ErrInvalidConfig, c.MaxRetries)
	}
	if c.RetryBaseDelay < 0 {
		return fmt.Errorf("%w: retry base delay must be >= 0, got %s", ErrInvalidConfig, c.RetryBaseDelay)
	}
	if c.MaxRetryDelay < 0 {
		return fmt.Errorf("%w: max retry delay must be >= 0, got %s", ErrInvalidConfig, c.MaxRetryDelay)
	}
	if c.TakeRetryInterval < 0 {
		return fmt.Errorf("%w: take retry interval must be >= 0, got %s", ErrInvalidConfig, c.TakeRetryInterval)
	}
	return nil
}

// Retry returns the retry policy applied to each handler.
func (c Config) Retry() cdcerrors.RetryConfig {
	return cdcerrors.RetryConfig{
		MaxRetries: c.MaxRetries,
		BaseDelay:  c.RetryBaseDelay,
		MaxDelay:   c.MaxRetryDelay,
	}
}
