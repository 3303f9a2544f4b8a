package errors

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"runtime/debug"
	"strings"
)

// PanicError is a recovered handler panic converted into an error.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panic: %v", e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Recovered builds a PanicError from a recover() value, capturing the stack.
// Returns nil when r is nil.
func Recovered(r any) error {
	if r == nil {
		return nil
	}
	return &PanicError{Value: r, Stack: debug.Stack()}
}

// Error kinds reported by Kind.
const (
	KindCanceled  = "canceled"
	KindTimeout   = "timeout"
	KindPanic     = "panic"
	KindTransient = "transient"
	KindPermanent = "permanent"
	KindUnknown   = "unknown"
)

// kinder lets error types from other packages name their own kind
// (queue errors report "queue").
type kinder interface {
	ErrorKind() string
}

// Kind returns a short, best-effort classification of err for error reports.
// It never fails: unrecognised errors are named after their concrete type.
func Kind(err error) string {
	if err == nil {
		return ""
	}

	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		return KindPanic
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return KindTimeout
	}
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return KindTimeout
	}
	var k kinder
	if errors.As(err, &k) {
		return k.ErrorKind()
	}
	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		switch catErr.Category {
		case CategoryTransient:
			return KindTransient
		case CategoryPermanent:
			return KindPermanent
		case CategoryCancelled:
			return KindCanceled
		}
	}

	return typeName(err)
}

// typeName names the innermost error in the Unwrap chain by its Go type.
// Opaque errors.New / fmt.Errorf values collapse to "unknown".
func typeName(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name := t.String()
	switch name {
	case "errors.errorString", "fmt.wrapError", "fmt.wrapErrors", "errors.joinError":
		return KindUnknown
	}
	return strings.TrimPrefix(name, "*")
}
