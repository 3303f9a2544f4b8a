package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/randalmurphal/cdcflow/pkg/cdcflow/observability"
)

// ErrUnknownMiddleware is returned by ByName for an unrecognised name.
var ErrUnknownMiddleware = errors.New("unknown middleware")

// Deps supplies what named middleware need to be built.
type Deps struct {
	Logger  *slog.Logger
	Metrics observability.MetricsRecorder
	Spans   observability.SpanManager

	// Timeout is used by "timeout".
	Timeout time.Duration

	// RateLimit and RateBurst are used by "rate_limit".
	RateLimit rate.Limit
	RateBurst int
}

// Names lists every name ByName accepts, in canonical spelling.
var Names = []string{"logging", "metrics", "error_tracking", "recovery", "tracing", "timeout", "rate_limit"}

// ByName builds a middleware from its configuration name. Names are
// case-insensitive and '-' is equivalent to '_'; "errorTracking" is also
// accepted.
func ByName(name string, deps Deps) (Middleware, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_") {
	case "logging":
		return Logging(deps.Logger), nil
	case "metrics":
		return Metrics(deps.Metrics), nil
	case "error_tracking", "errortracking":
		return ErrorTracking(deps.Logger), nil
	case "recovery":
		return Recovery(), nil
	case "tracing":
		return Tracing(deps.Spans), nil
	case "timeout":
		if deps.Timeout <= 0 {
			return nil, fmt.Errorf("middleware %q: timeout must be > 0", name)
		}
		return Timeout(deps.Timeout), nil
	case "rate_limit", "ratelimit":
		if deps.RateLimit <= 0 {
			return nil, fmt.Errorf("middleware %q: rate limit must be > 0", name)
		}
		return RateLimit(deps.RateLimit, deps.RateBurst), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMiddleware, name)
	}
}

// FromNames builds an ordered middleware list.
func FromNames(names []string, deps Deps) ([]Middleware, error) {
	out := make([]Middleware, 0, len(names))
	for _, n := range names {
		m, err := ByName(n, deps)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
