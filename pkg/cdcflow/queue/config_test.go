package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"", Block, false},
		{"block", Block, false},
		{"sliding", Sliding, false},
		{"dropOldest", DropOldest, false},
		{"drop_oldest", DropOldest, false},
		{"DROP-OLDEST", DropOldest, false},
		{"dropNewest", DropNewest, false},
		{"drop-newest", DropNewest, false},
		{"lifo", Block, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStrategy(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStrategyString(t *testing.T) {
	assert.Equal(t, "block", Block.String())
	assert.Equal(t, "sliding", Sliding.String())
	assert.Equal(t, "dropOldest", DropOldest.String())
	assert.Equal(t, "dropNewest", DropNewest.String())
	assert.Equal(t, "Strategy(9)", Strategy(9).String())
}

func TestConfigYAML(t *testing.T) {
	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte("capacity: 16\nbackpressure: drop-oldest\n"), &cfg))
	assert.Equal(t, Config{Capacity: 16, Backpressure: DropOldest}, cfg)

	err := yaml.Unmarshal([]byte("capacity: 1\nbackpressure: fifo\n"), &cfg)
	assert.Error(t, err)

	out, err := yaml.Marshal(Config{Capacity: 2, Backpressure: Sliding})
	require.NoError(t, err)
	assert.Contains(t, string(out), "backpressure: sliding")
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig.Validate())
	assert.ErrorIs(t, Config{Capacity: 0}.Validate(), ErrInvalidConfig)
	assert.ErrorIs(t, Config{Capacity: 1, Backpressure: Strategy(42)}.Validate(), ErrInvalidConfig)
}
