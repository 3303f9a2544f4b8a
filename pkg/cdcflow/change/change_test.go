package change_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/cdcflow/pkg/cdcflow/change"
)

func TestParseOperation(t *testing.T) {
	tests := []struct {
		in      string
		want    change.Operation
		wantErr bool
	}{
		{"insert", change.Insert, false},
		{"UPDATE", change.Update, false},
		{" Delete ", change.Delete, false},
		{"upsert", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := change.ParseOperation(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, change.ErrInvalidOperation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKeyOf(t *testing.T) {
	assert.Equal(t, change.Key("messages.insert"), change.KeyOf("messages", change.Insert))

	evt := change.New(change.Delete, "threads", nil)
	assert.Equal(t, change.Key("threads.delete"), evt.Key())
}

func TestParseKey(t *testing.T) {
	t.Run("simple", func(t *testing.T) {
		table, op, err := change.ParseKey("messages.update")
		require.NoError(t, err)
		assert.Equal(t, "messages", table)
		assert.Equal(t, change.Update, op)
	})

	t.Run("schema qualified table", func(t *testing.T) {
		table, op, err := change.ParseKey("public.messages.insert")
		require.NoError(t, err)
		assert.Equal(t, "public.messages", table)
		assert.Equal(t, change.Insert, op)
	})

	for _, bad := range []string{"", "messages", ".insert", "messages.", "messages.merge"} {
		t.Run("invalid "+bad, func(t *testing.T) {
			_, _, err := change.ParseKey(bad)
			assert.True(t, errors.Is(err, change.ErrInvalidKey), "got %v", err)
		})
	}
}

func TestNew(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	evt := change.New(change.Insert, "messages", map[string]any{"id": 1},
		change.WithID("evt-1"),
		change.WithTimestamp(ts),
	)

	assert.Equal(t, "evt-1", evt.ID)
	assert.Equal(t, ts, evt.Timestamp)
	assert.Equal(t, "messages", evt.Table)
	assert.Equal(t, map[string]any{"id": 1}, evt.Value)

	other := change.New(change.Insert, "messages", nil)
	assert.NotEmpty(t, other.ID)
	assert.NotEqual(t, other.ID, change.New(change.Insert, "messages", nil).ID)
}

func TestDecode(t *testing.T) {
	t.Run("fills id and timestamp", func(t *testing.T) {
		evt, err := change.Decode([]byte(`{"operation":"INSERT","table":"messages","value":{"body":"hi"}}`))
		require.NoError(t, err)
		assert.Equal(t, change.Insert, evt.Operation)
		assert.Equal(t, change.Key("messages.insert"), evt.Key())
		assert.NotEmpty(t, evt.ID)
		assert.False(t, evt.Timestamp.IsZero())
		assert.Equal(t, map[string]any{"body": "hi"}, evt.Value)
	})

	t.Run("keeps provided id", func(t *testing.T) {
		evt, err := change.Decode([]byte(`{"id":"abc","operation":"delete","table":"threads","timestamp":"2024-01-01T00:00:00Z"}`))
		require.NoError(t, err)
		assert.Equal(t, "abc", evt.ID)
		assert.Equal(t, 2024, evt.Timestamp.Year())
	})

	t.Run("rejects unknown operation", func(t *testing.T) {
		_, err := change.Decode([]byte(`{"operation":"merge","table":"messages"}`))
		assert.Error(t, err)
	})

	t.Run("rejects missing table", func(t *testing.T) {
		_, err := change.Decode([]byte(`{"operation":"insert"}`))
		assert.ErrorIs(t, err, change.ErrInvalidKey)
	})
}
