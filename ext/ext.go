// Package ext defines the extension system for parview.
// Extensions are notified of lifecycle events (actor spawned, frame
// rendered, worker joined, etc.) and can react to them — logging,
// metrics, streaming, etc.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"
	"time"

	"github.com/jjones-jr/parview/cluster"
	"github.com/jjones-jr/parview/dataset"
	"github.com/jjones-jr/parview/grid"
	"github.com/jjones-jr/parview/id"
	"github.com/jjones-jr/parview/render"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Actor lifecycle hooks
// ──────────────────────────────────────────────────

// ActorSpawned is called after an actor is created on a worker.
type ActorSpawned interface {
	OnActorSpawned(ctx context.Context, actorID id.ActorID, rank int) error
}

// ActorReady is called after an actor finishes setup and holds its block.
type ActorReady interface {
	OnActorReady(ctx context.Context, actorID id.ActorID, block grid.Block) error
}

// ActorFailed is called when actor setup or rendering fails terminally.
type ActorFailed interface {
	OnActorFailed(ctx context.Context, actorID id.ActorID, err error) error
}

// ActorClosed is called after an actor releases its block and shuts down.
type ActorClosed interface {
	OnActorClosed(ctx context.Context, actorID id.ActorID) error
}

// ──────────────────────────────────────────────────
// Frame lifecycle hooks
// ──────────────────────────────────────────────────

// FrameRendered is called after an actor produces a frame.
type FrameRendered interface {
	OnFrameRendered(ctx context.Context, f *render.Frame, elapsed time.Duration) error
}

// FrameFailed is called when a render request fails.
type FrameFailed interface {
	OnFrameFailed(ctx context.Context, actorID id.ActorID, err error) error
}

// CameraUpdated is called when an interactive session moves the camera.
type CameraUpdated interface {
	OnCameraUpdated(ctx context.Context, sessionID id.SessionID, cam render.Camera) error
}

// ──────────────────────────────────────────────────
// Data and cluster hooks
// ──────────────────────────────────────────────────

// DatasetLoaded is called after a dataset is fetched and available locally.
type DatasetLoaded interface {
	OnDatasetLoaded(ctx context.Context, m *dataset.Meta, elapsed time.Duration) error
}

// BlockAssigned is called when the partitioner binds a block to a worker.
type BlockAssigned interface {
	OnBlockAssigned(ctx context.Context, block grid.Block) error
}

// WorkerJoined is called after a worker registers with the cluster.
type WorkerJoined interface {
	OnWorkerJoined(ctx context.Context, w *cluster.Worker) error
}

// WorkerLeft is called when a worker deregisters or is reaped as dead.
type WorkerLeft interface {
	OnWorkerLeft(ctx context.Context, workerID id.WorkerID) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
