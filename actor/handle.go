package actor

import (
	"context"
	"errors"
	"time"

	"github.com/jjones-jr/parview"
	"github.com/jjones-jr/parview/ext"
	"github.com/jjones-jr/parview/id"
	"github.com/jjones-jr/parview/middleware"
	"github.com/jjones-jr/parview/render"
)

// Handle drives one actor uniformly whether it runs in-process or on a
// remote worker.
type Handle interface {
	ID() id.ActorID
	Rank() int
	Setup(ctx context.Context, spec SetupSpec) error
	Render(ctx context.Context, cam render.Camera) (*render.Frame, error)
	UpdateTransfer(ctx context.Context, tf *render.TransferFunction) error
	UpdateMode(ctx context.Context, mode render.Mode, isoValue float64) error
	Info(ctx context.Context) (Info, error)
	Close(ctx context.Context) error
}

// LocalHandle runs an actor in-process behind a middleware chain and
// emits lifecycle events to the extension registry.
type LocalHandle struct {
	actor   *Actor
	chain   middleware.Middleware
	exts    *ext.Registry
	session id.SessionID

	setupTimeout  time.Duration
	renderTimeout time.Duration
}

// LocalOption configures a LocalHandle.
type LocalOption func(*LocalHandle)

// WithChain sets the middleware chain invocations pass through.
func WithChain(chain middleware.Middleware) LocalOption {
	return func(h *LocalHandle) { h.chain = chain }
}

// WithExtensions sets the registry lifecycle events are emitted to.
func WithExtensions(exts *ext.Registry) LocalOption {
	return func(h *LocalHandle) { h.exts = exts }
}

// WithSession tags invocations with the interactive session they
// belong to.
func WithSession(sessionID id.SessionID) LocalOption {
	return func(h *LocalHandle) { h.session = sessionID }
}

// WithTimeouts sets the per-operation deadlines enforced by the
// timeout middleware.
func WithTimeouts(setup, render time.Duration) LocalOption {
	return func(h *LocalHandle) {
		h.setupTimeout = setup
		h.renderTimeout = render
	}
}

// NewLocalHandle wraps an actor. With no options, invocations run bare
// with no middleware and no event emission.
func NewLocalHandle(a *Actor, opts ...LocalOption) *LocalHandle {
	h := &LocalHandle{actor: a}
	for _, opt := range opts {
		opt(h)
	}
	if h.chain == nil {
		h.chain = middleware.Chain()
	}
	return h
}

// ID returns the underlying actor's ID.
func (h *LocalHandle) ID() id.ActorID { return h.actor.ID }

// Rank returns the underlying actor's rank.
func (h *LocalHandle) Rank() int { return h.actor.Rank() }

func (h *LocalHandle) invoke(ctx context.Context, method string, timeout time.Duration, fn middleware.Handler) error {
	inv := &middleware.Invocation{
		Method:  method,
		Actor:   h.actor.ID,
		Rank:    h.actor.Rank(),
		Session: h.session,
		Timeout: timeout,
	}
	return h.chain(ctx, inv, fn)
}

// Setup loads the actor's block. A redelivered setup against a ready
// actor is treated as success.
func (h *LocalHandle) Setup(ctx context.Context, spec SetupSpec) error {
	err := h.invoke(ctx, "actor.setup", h.setupTimeout, func(ctx context.Context) error {
		return h.actor.Setup(ctx, spec)
	})
	if errors.Is(err, parview.ErrActorReady) {
		return nil
	}
	if err != nil {
		if h.exts != nil {
			h.exts.EmitActorFailed(ctx, h.actor.ID, err)
		}
		return err
	}
	if h.exts != nil {
		h.exts.EmitActorReady(ctx, h.actor.ID, spec.Block)
	}
	return nil
}

// Render produces one frame from the actor's block.
func (h *LocalHandle) Render(ctx context.Context, cam render.Camera) (*render.Frame, error) {
	var frame *render.Frame
	start := time.Now()
	err := h.invoke(ctx, "actor.render", h.renderTimeout, func(ctx context.Context) error {
		var renderErr error
		frame, renderErr = h.actor.Render(ctx, cam)
		return renderErr
	})
	if err != nil {
		if h.exts != nil {
			h.exts.EmitFrameFailed(ctx, h.actor.ID, err)
		}
		return nil, err
	}
	if h.exts != nil {
		h.exts.EmitFrameRendered(ctx, frame, time.Since(start))
	}
	return frame, nil
}

// UpdateTransfer replaces the actor's transfer function.
func (h *LocalHandle) UpdateTransfer(ctx context.Context, tf *render.TransferFunction) error {
	return h.invoke(ctx, "actor.transfer", 0, func(context.Context) error {
		return h.actor.UpdateTransfer(tf)
	})
}

// UpdateMode switches the actor's shading mode.
func (h *LocalHandle) UpdateMode(ctx context.Context, mode render.Mode, isoValue float64) error {
	return h.invoke(ctx, "actor.mode", 0, func(context.Context) error {
		return h.actor.UpdateMode(mode, isoValue)
	})
}

// Info snapshots the actor.
func (h *LocalHandle) Info(ctx context.Context) (Info, error) {
	var info Info
	err := h.invoke(ctx, "actor.info", 0, func(context.Context) error {
		info = h.actor.Info()
		return nil
	})
	return info, err
}

// Close shuts the actor down and emits the closed event.
func (h *LocalHandle) Close(ctx context.Context) error {
	err := h.invoke(ctx, "actor.close", 0, func(context.Context) error {
		return h.actor.Close()
	})
	if err == nil && h.exts != nil {
		h.exts.EmitActorClosed(ctx, h.actor.ID)
	}
	return err
}

var _ Handle = (*LocalHandle)(nil)
