package actor

import (
	"context"
	"sync"

	"github.com/jjones-jr/parview/render"
)

// Future is the pending result of an asynchronous render. It resolves
// exactly once; every waiter observes the same frame or error.
type Future struct {
	done  chan struct{}
	once  sync.Once
	frame *render.Frame
	err   error
}

// NewFuture returns an unresolved future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolve completes the future. Later calls are no-ops.
func (f *Future) Resolve(frame *render.Frame, err error) {
	f.once.Do(func() {
		f.frame = frame
		f.err = err
		close(f.done)
	})
}

// Done returns a channel closed when the future resolves.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the future resolves or the context is cancelled.
func (f *Future) Wait(ctx context.Context) (*render.Frame, error) {
	select {
	case <-f.done:
		return f.frame, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RenderAsync starts a render on the handle in a new goroutine and
// returns a future for its result.
func RenderAsync(ctx context.Context, h Handle, cam render.Camera) *Future {
	f := NewFuture()
	go func() {
		frame, err := h.Render(ctx, cam)
		f.Resolve(frame, err)
	}()
	return f
}
