// Package middleware composes cross-cutting behavior around handler
// invocations.
//
// A Middleware wraps a Handler and returns a new Handler. Compose folds a
// list right-to-left, so the first element is outermost: its "before" logic
// runs first and its "after" logic runs last.
//
//	stack := middleware.Compose(
//	    middleware.Logging(logger),
//	    middleware.Metrics(recorder),
//	    middleware.ErrorTracking(logger),
//	)
//	h := stack(bare) // compose once, invoke per event
package middleware

import (
	"context"

	"github.com/randalmurphal/cdcflow/pkg/cdcflow/change"
)

// Handler is one invocation of a handler for an event.
type Handler func(ctx context.Context, key change.Key, evt change.Event) error

// Middleware decorates a Handler.
type Middleware func(next Handler) Handler

// Compose folds middleware into one. An empty list is the identity.
func Compose(middleware ...Middleware) Middleware {
	mws := append([]Middleware(nil), middleware...)
	return func(next Handler) Handler {
		return Chain(next, mws...)
	}
}

// Chain wraps h with middleware, first element outermost.
func Chain(h Handler, middleware ...Middleware) Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	return h
}

type handlerNameKey struct{}

// WithHandlerName returns a context naming the handler being invoked.
// Built-in middleware include it in logs.
func WithHandlerName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, handlerNameKey{}, name)
}

// HandlerName returns the name stored by WithHandlerName, or "".
func HandlerName(ctx context.Context) string {
	if v, ok := ctx.Value(handlerNameKey{}).(string); ok {
		return v
	}
	return ""
}
