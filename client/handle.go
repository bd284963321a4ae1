package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/jjones-jr/parview"
	"github.com/jjones-jr/parview/actor"
	"github.com/jjones-jr/parview/id"
	"github.com/jjones-jr/parview/render"
	"github.com/jjones-jr/parview/rvp"
)

// RemoteHandle drives an actor hosted on a remote worker through a
// shared client connection. It satisfies actor.Handle, so engines
// treat in-process and remote actors uniformly.
//
// The handle starts unbound: the first Setup spawns the actor on the
// worker and records its ID. Redelivered setups name the recorded
// actor so the worker confirms instead of spawning again.
type RemoteHandle struct {
	c    *Client
	rank int

	mu      sync.Mutex
	actorID id.ActorID
}

// NewRemoteHandle creates an unbound handle for the given compositing
// rank.
func NewRemoteHandle(c *Client, rank int) *RemoteHandle {
	return &RemoteHandle{c: c, rank: rank}
}

// BindRemoteHandle creates a handle bound to an actor that already
// exists on the worker.
func BindRemoteHandle(c *Client, actorID id.ActorID, rank int) *RemoteHandle {
	return &RemoteHandle{c: c, rank: rank, actorID: actorID}
}

// ID returns the remote actor's ID, or the nil ID before the first
// successful Setup.
func (h *RemoteHandle) ID() id.ActorID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.actorID
}

// Rank returns the compositing rank this handle renders for.
func (h *RemoteHandle) Rank() int { return h.rank }

// actorIDString returns the bound actor's wire ID, or "" when unbound.
func (h *RemoteHandle) actorIDString() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.actorID.IsNil() {
		return ""
	}
	return h.actorID.String()
}

// Setup arms the remote actor with its block, spawning it on first
// delivery.
func (h *RemoteHandle) Setup(ctx context.Context, spec actor.SetupSpec) error {
	if spec.Block.Rank != h.rank {
		return fmt.Errorf("%w: block rank %d, handle rank %d",
			parview.ErrRankMismatch, spec.Block.Rank, h.rank)
	}

	resp, err := h.c.Setup(ctx, rvp.SetupRequest{
		ActorID: h.actorIDString(),
		Spec:    spec,
	})
	if err != nil {
		return err
	}

	actorID, parseErr := id.ParseActorID(resp.ActorID)
	if parseErr != nil {
		return fmt.Errorf("parse remote actor id %q: %w", resp.ActorID, parseErr)
	}

	h.mu.Lock()
	h.actorID = actorID
	h.mu.Unlock()
	return nil
}

// Render produces one frame from the remote actor's block.
func (h *RemoteHandle) Render(ctx context.Context, cam render.Camera) (*render.Frame, error) {
	return h.c.Render(ctx, h.actorIDString(), cam)
}

// UpdateTransfer replaces the remote actor's transfer function.
func (h *RemoteHandle) UpdateTransfer(ctx context.Context, tf *render.TransferFunction) error {
	return h.c.UpdateTransfer(ctx, h.actorIDString(), tf)
}

// UpdateMode switches the remote actor's shading mode.
func (h *RemoteHandle) UpdateMode(ctx context.Context, mode render.Mode, isoValue float64) error {
	return h.c.UpdateMode(ctx, h.actorIDString(), mode, isoValue)
}

// Resize changes the remote actor's viewport.
func (h *RemoteHandle) Resize(ctx context.Context, width, height int) error {
	return h.c.Resize(ctx, h.actorIDString(), width, height)
}

// Info snapshots the remote actor.
func (h *RemoteHandle) Info(ctx context.Context) (actor.Info, error) {
	return h.c.ActorInfo(ctx, h.actorIDString())
}

// Close shuts the remote actor down.
func (h *RemoteHandle) Close(ctx context.Context) error {
	return h.c.CloseActor(ctx, h.actorIDString())
}

var _ actor.Handle = (*RemoteHandle)(nil)
