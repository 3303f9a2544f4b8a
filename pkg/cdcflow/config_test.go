package cdcflow_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/cdcflow/pkg/cdcflow"
	"github.com/randalmurphal/cdcflow/pkg/cdcflow/config"
	"github.com/randalmurphal/cdcflow/pkg/cdcflow/middleware"
	"github.com/randalmurphal/cdcflow/pkg/cdcflow/observability"
	"github.com/randalmurphal/cdcflow/pkg/cdcflow/queue"
)

func load(t *testing.T, doc string) config.Config {
	t.Helper()
	cfg, err := config.FromYAML([]byte(doc))
	require.NoError(t, err)
	return cfg
}

func TestConfigFrom_Full(t *testing.T) {
	doc := load(t, `
queue:
  capacity: 16
  backpressure: drop-oldest
dispatcher:
  max_retries: 2
  retry_base_delay_ms: 50
  max_retry_delay: 1s
  take_retry_interval: 250ms
  handler_timeout: 2s
  rate_limit: 10
  rate_burst: 5
  middleware: [logging, metrics, error_tracking, timeout, rate_limit]
`)
	cfg, err := cdcflow.ConfigFrom(doc, middleware.Deps{Metrics: observability.NoopMetrics{}})
	require.NoError(t, err)

	assert.Equal(t, queue.Config{Capacity: 16, Backpressure: queue.DropOldest}, cfg.Queue)
	assert.Equal(t, 2, cfg.Dispatcher.MaxRetries)
	assert.Equal(t, 50*time.Millisecond, cfg.Dispatcher.RetryBaseDelay)
	assert.Equal(t, time.Second, cfg.Dispatcher.MaxRetryDelay)
	assert.Equal(t, 250*time.Millisecond, cfg.Dispatcher.TakeRetryInterval)
	assert.Len(t, cfg.Dispatcher.Middleware, 5)
}

func TestConfigFrom_Defaults(t *testing.T) {
	cfg, err := cdcflow.ConfigFrom(config.New(nil), middleware.Deps{})
	require.NoError(t, err)

	assert.Equal(t, cdcflow.DefaultConfig.Queue, cfg.Queue)
	assert.Equal(t, cdcflow.DefaultConfig.Dispatcher.MaxRetries, cfg.Dispatcher.MaxRetries)
	assert.Equal(t, cdcflow.DefaultConfig.Dispatcher.RetryBaseDelay, cfg.Dispatcher.RetryBaseDelay)
	assert.Nil(t, cfg.Dispatcher.Middleware)
}

func TestConfigFrom_DurationStringWinsOverMillis(t *testing.T) {
	doc := load(t, `
dispatcher:
  retry_base_delay_ms: 50
  retry_base_delay: 3s
`)
	cfg, err := cdcflow.ConfigFrom(doc, middleware.Deps{})
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.Dispatcher.RetryBaseDelay)
}

func TestConfigFrom_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown backpressure", "queue:\n  backpressure: lifo\n"},
		{"zero capacity", "queue:\n  capacity: 0\n"},
		{"negative retries", "dispatcher:\n  max_retries: -1\n"},
		{"unknown middleware", "dispatcher:\n  middleware: [logging, auditing]\n"},
		{"middleware not a list", "dispatcher:\n  middleware: logging\n"},
		{"timeout without duration", "dispatcher:\n  middleware: [timeout]\n"},
		{"rate limit without rate", "dispatcher:\n  middleware: [rate_limit]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cdcflow.ConfigFrom(load(t, tt.doc), middleware.Deps{})
			assert.ErrorIs(t, err, cdcflow.ErrInvalidConfig)
		})
	}
}
