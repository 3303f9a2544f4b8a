package queue

import (
	"fmt"
	"strings"
)

// Strategy is the backpressure policy applied when a key's buffer is full.
type Strategy int

const (
	// Block suspends the producer until a slot frees. It is the zero value.
	Block Strategy = iota

	// Sliding evicts the oldest buffered event to admit the new one.
	Sliding

	// DropOldest evicts the most recently buffered event to admit the new
	// one, so the head of the backlog is never lost.
	DropOldest

	// DropNewest discards the incoming event.
	DropNewest
)

// String returns the configuration spelling of the strategy.
func (s Strategy) String() string {
	switch s {
	case Block:
		return "block"
	case Sliding:
		return "sliding"
	case DropOldest:
		return "dropOldest"
	case DropNewest:
		return "dropNewest"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy parses a strategy name. Case, '-', '_' and spaces are
// ignored, so "dropOldest", "drop_oldest" and "DROP-OLDEST" are equivalent.
// An empty string means Block.
func ParseStrategy(s string) (Strategy, error) {
	norm := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(s))
	switch norm {
	case "", "block", "blocking":
		return Block, nil
	case "sliding":
		return Sliding, nil
	case "dropoldest":
		return DropOldest, nil
	case "dropnewest":
		return DropNewest, nil
	default:
		return Block, fmt.Errorf("%w: unknown backpressure strategy %q", ErrInvalidConfig, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Config is shared by every per-key buffer of a Queue.
type Config struct {
	// Capacity is the number of events each key may buffer. Must be >= 1.
	Capacity int `yaml:"capacity" json:"capacity"`

	// Backpressure selects what happens when a buffer is full.
	Backpressure Strategy `yaml:"backpressure" json:"backpressure"`
}

// DefaultConfig is a blocking queue of 1024 events per key.
var DefaultConfig = Config{Capacity: 1024, Backpressure: Block}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Capacity < 1 {
		return fmt.Errorf("%w: capacity must be >= 1, got %d", ErrInvalidConfig, c.Capacity)
	}
	switch c.Backpressure {
	case Block, Sliding, DropOldest, DropNewest:
	default:
		return fmt.Errorf("%w: unknown backpressure %s", ErrInvalidConfig, c.Backpressure)
	}
	return nil
}
