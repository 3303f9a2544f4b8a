package dispatch_test

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/randalmurphal/cdcflow/pkg/cdcflow/observability"
)

// sequence interleaves log messages and metric calls in one ordered list.
type sequence struct {
	mu    sync.Mutex
	steps []string
}

func (s *sequence) add(step string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, step)
}

func (s *sequence) get() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.steps...)
}

func (s *sequence) Enabled(context.Context, slog.Level) bool { return true }

func (s *sequence) Handle(_ context.Context, r slog.Record) error {
	s.add(r.Message)
	return nil
}

func (s *sequence) WithAttrs([]slog.Attr) slog.Handler { return s }

func (s *sequence) WithGroup(string) slog.Handler { return s }

type seqMetrics struct {
	observability.NoopMetrics
	seq *sequence
}

func (m seqMetrics) RecordReceived(context.Context, string) { m.seq.add("received") }

func (m seqMetrics) RecordSuccess(context.Context, string, time.Duration) { m.seq.add("success") }

func (m seqMetrics) RecordError(context.Context, string, time.Duration) { m.seq.add("error") }
