package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/jjones-jr/parview/cluster"
	"github.com/jjones-jr/parview/dataset"
	"github.com/jjones-jr/parview/grid"
	"github.com/jjones-jr/parview/id"
	"github.com/jjones-jr/parview/render"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type actorSpawnedEntry struct {
	name string
	hook ActorSpawned
}

type actorReadyEntry struct {
	name string
	hook ActorReady
}

type actorFailedEntry struct {
	name string
	hook ActorFailed
}

type actorClosedEntry struct {
	name string
	hook ActorClosed
}

type frameRenderedEntry struct {
	name string
	hook FrameRendered
}

type frameFailedEntry struct {
	name string
	hook FrameFailed
}

type cameraUpdatedEntry struct {
	name string
	hook CameraUpdated
}

type datasetLoadedEntry struct {
	name string
	hook DatasetLoaded
}

type blockAssignedEntry struct {
	name string
	hook BlockAssigned
}

type workerJoinedEntry struct {
	name string
	hook WorkerJoined
}

type workerLeftEntry struct {
	name string
	hook WorkerLeft
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	actorSpawned  []actorSpawnedEntry
	actorReady    []actorReadyEntry
	actorFailed   []actorFailedEntry
	actorClosed   []actorClosedEntry
	frameRendered []frameRenderedEntry
	frameFailed   []frameFailedEntry
	cameraUpdated []cameraUpdatedEntry
	datasetLoaded []datasetLoadedEntry
	blockAssigned []blockAssignedEntry
	workerJoined  []workerJoinedEntry
	workerLeft    []workerLeftEntry
	shutdown      []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(ActorSpawned); ok {
		r.actorSpawned = append(r.actorSpawned, actorSpawnedEntry{name, h})
	}
	if h, ok := e.(ActorReady); ok {
		r.actorReady = append(r.actorReady, actorReadyEntry{name, h})
	}
	if h, ok := e.(ActorFailed); ok {
		r.actorFailed = append(r.actorFailed, actorFailedEntry{name, h})
	}
	if h, ok := e.(ActorClosed); ok {
		r.actorClosed = append(r.actorClosed, actorClosedEntry{name, h})
	}
	if h, ok := e.(FrameRendered); ok {
		r.frameRendered = append(r.frameRendered, frameRenderedEntry{name, h})
	}
	if h, ok := e.(FrameFailed); ok {
		r.frameFailed = append(r.frameFailed, frameFailedEntry{name, h})
	}
	if h, ok := e.(CameraUpdated); ok {
		r.cameraUpdated = append(r.cameraUpdated, cameraUpdatedEntry{name, h})
	}
	if h, ok := e.(DatasetLoaded); ok {
		r.datasetLoaded = append(r.datasetLoaded, datasetLoadedEntry{name, h})
	}
	if h, ok := e.(BlockAssigned); ok {
		r.blockAssigned = append(r.blockAssigned, blockAssignedEntry{name, h})
	}
	if h, ok := e.(WorkerJoined); ok {
		r.workerJoined = append(r.workerJoined, workerJoinedEntry{name, h})
	}
	if h, ok := e.(WorkerLeft); ok {
		r.workerLeft = append(r.workerLeft, workerLeftEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Actor event emitters
// ──────────────────────────────────────────────────

// EmitActorSpawned notifies all extensions that implement ActorSpawned.
func (r *Registry) EmitActorSpawned(ctx context.Context, actorID id.ActorID, rank int) {
	for _, e := range r.actorSpawned {
		if err := e.hook.OnActorSpawned(ctx, actorID, rank); err != nil {
			r.logHookError("OnActorSpawned", e.name, err)
		}
	}
}

// EmitActorReady notifies all extensions that implement ActorReady.
func (r *Registry) EmitActorReady(ctx context.Context, actorID id.ActorID, block grid.Block) {
	for _, e := range r.actorReady {
		if err := e.hook.OnActorReady(ctx, actorID, block); err != nil {
			r.logHookError("OnActorReady", e.name, err)
		}
	}
}

// EmitActorFailed notifies all extensions that implement ActorFailed.
func (r *Registry) EmitActorFailed(ctx context.Context, actorID id.ActorID, actorErr error) {
	for _, e := range r.actorFailed {
		if err := e.hook.OnActorFailed(ctx, actorID, actorErr); err != nil {
			r.logHookError("OnActorFailed", e.name, err)
		}
	}
}

// EmitActorClosed notifies all extensions that implement ActorClosed.
func (r *Registry) EmitActorClosed(ctx context.Context, actorID id.ActorID) {
	for _, e := range r.actorClosed {
		if err := e.hook.OnActorClosed(ctx, actorID); err != nil {
			r.logHookError("OnActorClosed", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Frame event emitters
// ──────────────────────────────────────────────────

// EmitFrameRendered notifies all extensions that implement FrameRendered.
func (r *Registry) EmitFrameRendered(ctx context.Context, f *render.Frame, elapsed time.Duration) {
	for _, e := range r.frameRendered {
		if err := e.hook.OnFrameRendered(ctx, f, elapsed); err != nil {
			r.logHookError("OnFrameRendered", e.name, err)
		}
	}
}

// EmitFrameFailed notifies all extensions that implement FrameFailed.
func (r *Registry) EmitFrameFailed(ctx context.Context, actorID id.ActorID, frameErr error) {
	for _, e := range r.frameFailed {
		if err := e.hook.OnFrameFailed(ctx, actorID, frameErr); err != nil {
			r.logHookError("OnFrameFailed", e.name, err)
		}
	}
}

// EmitCameraUpdated notifies all extensions that implement CameraUpdated.
func (r *Registry) EmitCameraUpdated(ctx context.Context, sessionID id.SessionID, cam render.Camera) {
	for _, e := range r.cameraUpdated {
		if err := e.hook.OnCameraUpdated(ctx, sessionID, cam); err != nil {
			r.logHookError("OnCameraUpdated", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Data and cluster event emitters
// ──────────────────────────────────────────────────

// EmitDatasetLoaded notifies all extensions that implement DatasetLoaded.
func (r *Registry) EmitDatasetLoaded(ctx context.Context, m *dataset.Meta, elapsed time.Duration) {
	for _, e := range r.datasetLoaded {
		if err := e.hook.OnDatasetLoaded(ctx, m, elapsed); err != nil {
			r.logHookError("OnDatasetLoaded", e.name, err)
		}
	}
}

// EmitBlockAssigned notifies all extensions that implement BlockAssigned.
func (r *Registry) EmitBlockAssigned(ctx context.Context, block grid.Block) {
	for _, e := range r.blockAssigned {
		if err := e.hook.OnBlockAssigned(ctx, block); err != nil {
			r.logHookError("OnBlockAssigned", e.name, err)
		}
	}
}

// EmitWorkerJoined notifies all extensions that implement WorkerJoined.
func (r *Registry) EmitWorkerJoined(ctx context.Context, w *cluster.Worker) {
	for _, e := range r.workerJoined {
		if err := e.hook.OnWorkerJoined(ctx, w); err != nil {
			r.logHookError("OnWorkerJoined", e.name, err)
		}
	}
}

// EmitWorkerLeft notifies all extensions that implement WorkerLeft.
func (r *Registry) EmitWorkerLeft(ctx context.Context, workerID id.WorkerID) {
	for _, e := range r.workerLeft {
		if err := e.hook.OnWorkerLeft(ctx, workerID); err != nil {
			r.logHookError("OnWorkerLeft", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated — they must not block rendering.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
