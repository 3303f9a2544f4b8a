package queue

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/cdcflow/pkg/cdcflow/change"
)

// Sentinel errors for queue operations.
var (
	// ErrShutdown is returned by every operation after Shutdown.
	ErrShutdown = errors.New("queue shut down")

	// ErrInvalidConfig indicates a QueueConfig that cannot be used.
	ErrInvalidConfig = errors.New("invalid queue config")
)

// Operation names carried by QueueError.
const (
	OpCreate   = "create"
	OpOffer    = "offer"
	OpTake     = "take"
	OpPoll     = "poll"
	OpSize     = "size"
	OpShutdown = "shutdown"
)

// QueueError wraps a buffer failure with the key and operation it hit.
type QueueError struct {
	Key change.Key
	Op  string
	Err error
}

// Error implements the error interface.
func (e *QueueError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("queue %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("queue %s %s: %v", e.Op, e.Key, e.Err)
}

// Unwrap returns the underlying cause.
func (e *QueueError) Unwrap() error {
	return e.Err
}

// ErrorKind classifies queue failures for error reports.
func (e *QueueError) ErrorKind() string {
	return "queue"
}

func wrap(key change.Key, op string, err error) error {
	if err == nil {
		return nil
	}
	return &QueueError{Key: key, Op: op, Err: err}
}
