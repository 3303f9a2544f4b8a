package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/cdcflow/pkg/cdcflow/config"
)

const engineYAML = `
queue:
  capacity: 3
  backpressure: sliding
dispatcher:
  max_retries: 5
  retry_base_delay_ms: 20
  max_retry_delay: 2s
  middleware: [logging, metrics]
`

func TestConfig_DottedPaths(t *testing.T) {
	cfg, err := config.FromYAML([]byte(engineYAML))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Int("queue.capacity", 0))
	assert.Equal(t, "sliding", cfg.String("queue.backpressure", "block"))
	assert.Equal(t, 5, cfg.Int("dispatcher.max_retries", 0))
	assert.Equal(t, 20*time.Millisecond, cfg.Millis("dispatcher.retry_base_delay_ms", 0))
	assert.Equal(t, 2*time.Second, cfg.Duration("dispatcher.max_retry_delay", 0))
	assert.Equal(t, []string{"logging", "metrics"}, cfg.StringSlice("dispatcher.middleware", nil))

	assert.True(t, cfg.Has("queue.capacity"))
	assert.False(t, cfg.Has("queue.missing"))
	assert.False(t, cfg.Has("queue.capacity.deeper"))
	assert.Equal(t, []string{"dispatcher", "queue"}, cfg.Keys())
}

func TestConfig_Sub(t *testing.T) {
	cfg, err := config.FromYAML([]byte(engineYAML))
	require.NoError(t, err)

	q := cfg.Sub("queue")
	assert.Equal(t, 3, q.Int("capacity", 0))

	missing := cfg.Sub("nope")
	assert.Empty(t, missing.Keys())
	assert.Equal(t, 7, missing.Int("capacity", 7))

	// A scalar is not a section.
	assert.Empty(t, cfg.Sub("queue.capacity").Keys())
}

func TestConfig_Int(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  int
	}{
		{"int", 4, 4},
		{"int64", int64(9), 9},
		{"whole float", float64(12), 12},
		{"fractional float", 1.5, -1},
		{"string", "3", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(map[string]any{"v": tt.value})
			assert.Equal(t, tt.want, cfg.Int("v", -1))
		})
	}
}

func TestConfig_Durations(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		secs   time.Duration
		millis time.Duration
	}{
		{"string", "250ms", 250 * time.Millisecond, 250 * time.Millisecond},
		{"int", 2, 2 * time.Second, 2 * time.Millisecond},
		{"float", float64(3), 3 * time.Second, 3 * time.Millisecond},
		{"duration", 5 * time.Minute, 5 * time.Minute, 5 * time.Minute},
		{"garbage", "soon", time.Hour, time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(map[string]any{"d": tt.value})
			assert.Equal(t, tt.secs, cfg.Duration("d", time.Hour))
			assert.Equal(t, tt.millis, cfg.Millis("d", time.Hour))
		})
	}
}

func TestConfig_ScalarsAndDefaults(t *testing.T) {
	cfg := config.New(map[string]any{
		"flag":  true,
		"ratio": 0.5,
		"count": 2,
		"mixed": []any{"a", 1},
	})

	assert.True(t, cfg.Bool("flag", false))
	assert.False(t, cfg.Bool("missing", false))
	assert.InDelta(t, 0.5, cfg.Float("ratio", 0), 1e-9)
	assert.InDelta(t, 2.0, cfg.Float("count", 0), 1e-9)
	assert.Equal(t, []string{"x"}, cfg.StringSlice("mixed", []string{"x"}))
	assert.Equal(t, "d", cfg.String("count", "d"))
}

func TestConfig_NilMap(t *testing.T) {
	cfg := config.New(nil)
	assert.NotNil(t, cfg.Raw())
	assert.Equal(t, "x", cfg.String("a.b", "x"))
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("yaml with env expansion", func(t *testing.T) {
		t.Setenv("CDCFLOW_TEST_CAPACITY", "42")
		path := filepath.Join(dir, "engine.yml")
		require.NoError(t, os.WriteFile(path, []byte("queue:\n  capacity: ${CDCFLOW_TEST_CAPACITY}\n"), 0o600))

		cfg, err := config.FromFile(path)
		require.NoError(t, err)
		assert.Equal(t, 42, cfg.Int("queue.capacity", 0))
	})

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(dir, "engine.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"queue":{"capacity":8}}`), 0o600))

		cfg, err := config.FromFile(path)
		require.NoError(t, err)
		assert.Equal(t, 8, cfg.Int("queue.capacity", 0))
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(dir, "engine.toml")
		require.NoError(t, os.WriteFile(path, []byte(""), 0o600))

		_, err := config.FromFile(path)
		assert.ErrorContains(t, err, "unsupported config file extension")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.FromFile(filepath.Join(dir, "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("bad yaml", func(t *testing.T) {
		_, err := config.FromYAML([]byte("queue: [unclosed"))
		assert.Error(t, err)
	})
}

func TestParse(t *testing.T) {
	for _, format := range []config.Format{config.YAML, config.JSON} {
		t.Run(string(format)+" empty", func(t *testing.T) {
			cfg, err := config.Parse(nil, format)
			require.NoError(t, err)
			assert.Empty(t, cfg.Keys())
		})
	}

	_, err := config.Parse([]byte("a: 1"), config.Format("toml"))
	assert.ErrorContains(t, err, "unsupported config format")

	f, err := config.FormatOf("/etc/cdcflow/ENGINE.YML")
	require.NoError(t, err)
	assert.Equal(t, config.YAML, f)
}
