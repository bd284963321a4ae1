package middleware

import (
	"context"
	"time"

	"github.com/jjones-jr/parview/id"
)

// Invocation describes one actor operation as it passes through the
// chain: the method being invoked, the actor and worker it targets, and
// the interactive session it belongs to.
type Invocation struct {
	Method  string
	Actor   id.ActorID
	Rank    int
	Session id.SessionID
	Timeout time.Duration
}

// Handler is the terminal function that executes the actor operation.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler with cross-cutting logic. It receives the
// current context, the invocation being executed, and the next handler
// to call. Middleware MUST call next to continue the chain (unless
// short-circuiting on error).
type Middleware func(ctx context.Context, inv *Invocation, next Handler) error

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recover, timeout) executes as:
//
//	logging → recover → timeout → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, inv *Invocation, next Handler) error {
		// Build the chain from the end backwards.
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, inv, prev)
			}
		}
		return h(ctx)
	}
}
