// Package change defines the row-level change events that flow through cdcflow.
//
// A change event is one insert, update, or delete observed on a single table
// row. Events are routed by their Key, which names a stream ("messages.insert")
// rather than an individual row change.
package change

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors for parsing.
var (
	// ErrInvalidOperation indicates an operation name outside insert/update/delete.
	ErrInvalidOperation = errors.New("invalid change operation")

	// ErrInvalidKey indicates a key that is not of the form "table.operation".
	ErrInvalidKey = errors.New("invalid event key")
)

// Operation is the kind of row mutation.
type Operation string

const (
	Insert Operation = "insert"
	Update Operation = "update"
	Delete Operation = "delete"
)

// ParseOperation parses an operation name. Matching is case-insensitive so
// that feeds emitting "INSERT" or "Delete" are accepted.
func ParseOperation(s string) (Operation, error) {
	switch Operation(strings.ToLower(strings.TrimSpace(s))) {
	case Insert:
		return Insert, nil
	case Update:
		return Update, nil
	case Delete:
		return Delete, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidOperation, s)
}

// Valid reports whether op is one of the known operations.
func (op Operation) Valid() bool {
	switch op {
	case Insert, Update, Delete:
		return true
	}
	return false
}

// UnmarshalJSON accepts any casing of a known operation.
func (op *Operation) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseOperation(s)
	if err != nil {
		return err
	}
	*op = parsed
	return nil
}

// Key identifies an event stream: table + "." + operation.
type Key string

// KeyOf builds the key for a table and operation.
func KeyOf(table string, op Operation) Key {
	return Key(table + "." + string(op))
}

// ParseKey splits a key into table and operation. The split happens on the
// last dot so schema-qualified tables ("public.messages.insert") work.
func ParseKey(s string) (string, Operation, error) {
	i := strings.LastIndexByte(s, '.')
	if i <= 0 || i == len(s)-1 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	op, err := ParseOperation(s[i+1:])
	if err != nil {
		return "", "", fmt.Errorf("%w: %q: %v", ErrInvalidKey, s, err)
	}
	return s[:i], op, nil
}

// String returns the key as a plain string.
func (k Key) String() string {
	return string(k)
}

// Event is a single change notification.
type Event struct {
	// ID is assigned at construction. Keys are not unique per event; IDs are.
	ID        string    `json:"id"`
	Operation Operation `json:"operation"`
	Table     string    `json:"table"`
	Value     any       `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Key returns the stream key the event is routed by.
func (e Event) Key() Key {
	return KeyOf(e.Table, e.Operation)
}

// Validate checks the fields a producer must set.
func (e Event) Validate() error {
	if e.Table == "" {
		return fmt.Errorf("%w: empty table", ErrInvalidKey)
	}
	if !e.Operation.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidOperation, e.Operation)
	}
	return nil
}

// Option configures event creation.
type Option func(*Event)

// WithID sets a specific event ID (default: random UUID).
func WithID(id string) Option {
	return func(e *Event) {
		e.ID = id
	}
}

// WithTimestamp sets the time the mutation was observed (default: time.Now()).
func WithTimestamp(t time.Time) Option {
	return func(e *Event) {
		e.Timestamp = t
	}
}

// New creates an event for a row mutation.
func New(op Operation, table string, value any, opts ...Option) Event {
	e := Event{
		ID:        uuid.New().String(),
		Operation: op,
		Table:     table,
		Value:     value,
		Timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// Decode parses one JSON-encoded event as written by a feed subscriber.
// Missing IDs and timestamps are filled in.
func Decode(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("decode change event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return e, nil
}
