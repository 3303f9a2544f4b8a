// Package logtest captures slog records for assertions in tests.
package logtest

import (
	"context"
	"log/slog"
	"sync"
)

// Record is a flattened slog record.
type Record struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// Handler is a slog.Handler that keeps every record in memory.
// It is safe for concurrent use; handlers derived via WithAttrs share storage.
type Handler struct {
	mu      *sync.Mutex
	records *[]Record
	attrs   []slog.Attr
	level   slog.Level
}

// New returns a capturing handler at debug level and a logger writing to it.
func New() (*Handler, *slog.Logger) {
	h := &Handler{mu: &sync.Mutex{}, records: &[]Record{}, level: slog.LevelDebug}
	return h, slog.New(h)
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	rec := Record{Level: r.Level, Message: r.Message, Attrs: make(map[string]any)}
	for _, a := range h.attrs {
		rec.Attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		rec.Attrs[a.Key] = a.Value.Any()
		return true
	})

	h.mu.Lock()
	*h.records = append(*h.records, rec)
	h.mu.Unlock()
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &next
}

// WithGroup is not needed by cdcflow's logging; groups are flattened.
func (h *Handler) WithGroup(string) slog.Handler {
	return h
}

// Records returns a copy of everything logged so far.
func (h *Handler) Records() []Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Record(nil), *h.records...)
}

// Messages returns the message of every record, in order.
func (h *Handler) Messages() []string {
	recs := h.Records()
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Message
	}
	return out
}

// AtLevel returns the records logged at exactly level.
func (h *Handler) AtLevel(level slog.Level) []Record {
	var out []Record
	for _, r := range h.Records() {
		if r.Level == level {
			out = append(out, r)
		}
	}
	return out
}

// Find returns the records whose message equals msg.
func (h *Handler) Find(msg string) []Record {
	var out []Record
	for _, r := range h.Records() {
		if r.Message == msg {
			out = append(out, r)
		}
	}
	return out
}
