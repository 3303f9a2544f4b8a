package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHandler captures log records as JSON lines.
type testHandler struct {
	buf   *bytes.Buffer
	level slog.Level
	attrs []slog.Attr
}

func newTestHandler() *testHandler {
	return &testHandler{
		buf:   &bytes.Buffer{},
		level: slog.LevelDebug,
	}
}

func (h *testHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *testHandler) Handle(_ context.Context, r slog.Record) error {
	data := map[string]any{
		"level": r.Level.String(),
		"msg":   r.Message,
	}
	for _, attr := range h.attrs {
		data[attr.Key] = attr.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Any()
		return true
	})
	return json.NewEncoder(h.buf).Encode(data)
}

func (h *testHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &testHandler{
		buf:   h.buf,
		level: h.level,
		attrs: append(append([]slog.Attr(nil), h.attrs...), attrs...),
	}
}

func (h *testHandler) WithGroup(string) slog.Handler { return h }

func (h *testHandler) records(t *testing.T) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(h.buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestNilLoggerIsSafe(t *testing.T) {
	err := errors.New("boom")
	assert.NotPanics(t, func() {
		assert.Nil(t, EnrichLogger(nil, "k", "id"))
		LogConsumerStart(nil, "k", 1)
		LogConsumerStop(nil, "k", err)
		LogNoHandlers(nil)
		LogLateRegistration(nil, "k", "h")
		LogTakeError(nil, "k", err, time.Second)
		LogEvicted(nil, "k", "id", "sliding")
		LogHandlerStart(nil, "k", "id", "h", 1)
		LogHandlerComplete(nil, "k", "id", "h", 1.5)
		LogHandlerError(nil, "k", "id", "h", 1, err, "unknown")
		LogEventDiscarded(nil, "k", "id", "h", 3, err)
		LogHandlerPanic(nil, "k", "id", "h", "x")
	})
}

func TestEnrichLogger(t *testing.T) {
	h := newTestHandler()
	EnrichLogger(slog.New(h), "messages.insert", "evt-1").Info("hello")

	recs := h.records(t)
	require.Len(t, recs, 1)
	assert.Equal(t, "messages.insert", recs[0][AttrEventKey])
	assert.Equal(t, "evt-1", recs[0][AttrEventID])
}

func TestLogEvictedLevels(t *testing.T) {
	h := newTestHandler()
	logger := slog.New(h)

	LogEvicted(logger, "k", "a", "sliding")
	LogEvicted(logger, "k", "b", "dropOldest")
	LogEvicted(logger, "k", "c", "dropNewest")

	recs := h.records(t)
	require.Len(t, recs, 3)
	assert.Equal(t, "DEBUG", recs[0]["level"])
	assert.Equal(t, "WARN", recs[1]["level"])
	assert.Equal(t, "WARN", recs[2]["level"])
	assert.Equal(t, "dropOldest", recs[1][AttrStrategy])
}

func TestLogHandlerError(t *testing.T) {
	h := newTestHandler()
	LogHandlerError(slog.New(h), "users.update", "evt-9", "indexer", 2, errors.New("down"), "transient")

	recs := h.records(t)
	require.Len(t, recs, 1)
	r := recs[0]
	assert.Equal(t, "ERROR", r["level"])
	assert.Equal(t, "users.update", r[AttrEventKey])
	assert.Equal(t, "indexer", r[AttrHandler])
	assert.EqualValues(t, 2, r[AttrAttempt])
	assert.Equal(t, "down", r[AttrError])
	assert.Equal(t, "transient", r[AttrErrorKind])
}

func TestLogHandlerCompleteIncludesDuration(t *testing.T) {
	h := newTestHandler()
	LogHandlerComplete(slog.New(h), "k", "id", "h", 12.5)

	recs := h.records(t)
	require.Len(t, recs, 1)
	assert.Equal(t, 12.5, recs[0][AttrDurationMs])
}

func TestLogConsumerStop(t *testing.T) {
	h := newTestHandler()
	logger := slog.New(h)
	LogConsumerStop(logger, "k", nil)
	LogConsumerStop(logger, "k", context.Canceled)

	recs := h.records(t)
	require.Len(t, recs, 2)
	assert.NotContains(t, recs[0], "reason")
	assert.Equal(t, "context canceled", recs[1]["reason"])
}

func TestTimedOperation(t *testing.T) {
	done := TimedOperation()
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, done(), 5.0)
}
