// Package deadletter records events whose handlers failed after every retry.
//
// Dead events are never replayed or persisted. The Journal keeps a bounded
// window of recent failures in memory so operators and tests can see what
// was discarded; when it is full the oldest record is evicted.
package deadletter

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/cdcflow/pkg/cdcflow/change"
	cdcerrors "github.com/randalmurphal/cdcflow/pkg/cdcflow/errors"
)

// DeadEvent is one (event, handler) pairing given up on.
type DeadEvent struct {
	ID       string       `json:"id"`
	Key      change.Key   `json:"key"`
	Event    change.Event `json:"event"`
	Handler  string       `json:"handler"`
	Attempts int          `json:"attempts"`
	Error    string       `json:"error"`
	Kind     string       `json:"kind"`
	FailedAt time.Time    `json:"failed_at"`
}

// New builds a DeadEvent from the final handler error.
func New(key change.Key, evt change.Event, handler string, attempts int, err error) *DeadEvent {
	d := &DeadEvent{
		ID:       uuid.NewString(),
		Key:      key,
		Event:    evt,
		Handler:  handler,
		Attempts: attempts,
		FailedAt: time.Now(),
	}
	if err != nil {
		d.Error = err.Error()
		d.Kind = cdcerrors.Kind(err)
	}
	return d
}

// Sink receives dead events from the dispatcher.
type Sink interface {
	Report(ctx context.Context, dead *DeadEvent) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, dead *DeadEvent) error

// Report calls f.
func (f SinkFunc) Report(ctx context.Context, dead *DeadEvent) error {
	return f(ctx, dead)
}

// JournalConfig configures a Journal.
type JournalConfig struct {
	// MaxSize bounds the number of retained records.
	// Default: 1000
	MaxSize int

	// OnReport is called for each reported event, after it is stored.
	OnReport func(*DeadEvent)
}

// DefaultJournalConfig provides reasonable defaults.
var DefaultJournalConfig = JournalConfig{
	MaxSize: 1000,
}

// Stats contains journal statistics.
type Stats struct {
	Retained int
	Reported int64
	Evicted  int64
	ByKey    map[change.Key]int64
}

// Journal is a bounded in-memory Sink.
type Journal struct {
	mu      sync.RWMutex
	cfg     JournalConfig
	records []*DeadEvent // oldest first

	reported int64
	evicted  int64
	byKey    map[change.Key]int64
}

var _ Sink = (*Journal)(nil)

// NewJournal creates a journal.
func NewJournal(cfg JournalConfig) *Journal {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultJournalConfig.MaxSize
	}
	return &Journal{
		cfg:   cfg,
		byKey: make(map[change.Key]int64),
	}
}

// Report stores dead, evicting the oldest record when full. It never fails.
func (j *Journal) Report(_ context.Context, dead *DeadEvent) error {
	if dead == nil {
		return nil
	}

	j.mu.Lock()
	if len(j.records) >= j.cfg.MaxSize {
		j.records[0] = nil
		j.records = j.records[1:]
		j.evicted++
	}
	j.records = append(j.records, dead)
	j.reported++
	j.byKey[dead.Key]++
	j.mu.Unlock()

	if j.cfg.OnReport != nil {
		j.cfg.OnReport(dead)
	}
	return nil
}

// List returns up to limit retained records, oldest first.
// A non-positive limit returns all of them.
func (j *Journal) List(limit int) []*DeadEvent {
	j.mu.RLock()
	defer j.mu.RUnlock()
	n := len(j.records)
	if limit > 0 && limit < n {
		n = limit
	}
	return append([]*DeadEvent(nil), j.records[:n]...)
}

// ListByKey returns up to limit retained records for key, oldest first.
func (j *Journal) ListByKey(key change.Key, limit int) []*DeadEvent {
	j.mu.RLock()
	defer j.mu.RUnlock()
	var out []*DeadEvent
	for _, r := range j.records {
		if limit > 0 && len(out) >= limit {
			break
		}
		if r.Key == key {
			out = append(out, r)
		}
	}
	return out
}

// Len returns the number of retained records.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.records)
}

// Stats returns journal statistics.
func (j *Journal) Stats() Stats {
	j.mu.RLock()
	defer j.mu.RUnlock()
	byKey := make(map[change.Key]int64, len(j.byKey))
	for k, v := range j.byKey {
		byKey[k] = v
	}
	return Stats{
		Retained: len(j.records),
		Reported: j.reported,
		Evicted:  j.evicted,
		ByKey:    byKey,
	}
}

// Clear drops every retained record. Counters are kept.
func (j *Journal) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = nil
}
