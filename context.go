package parview

import (
	"context"

	"github.com/jjones-jr/parview/id"
)

type sessionKey struct{}

// WithSession returns a context carrying the viewing session ID.
// Actor invocations made with this context are scoped and logged under
// the session.
func WithSession(ctx context.Context, sid id.SessionID) context.Context {
	return context.WithValue(ctx, sessionKey{}, sid)
}

// SessionFromContext extracts the viewing session ID from the context.
// Returns the nil ID when no session is set.
func SessionFromContext(ctx context.Context) id.SessionID {
	sid, _ := ctx.Value(sessionKey{}).(id.SessionID)
	return sid
}
