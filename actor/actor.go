package actor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jjones-jr/parview"
	"github.com/jjones-jr/parview/dataset"
	"github.com/jjones-jr/parview/grid"
	"github.com/jjones-jr/parview/id"
	"github.com/jjones-jr/parview/render"
)

// State is the lifecycle state of an actor.
type State string

const (
	// StateCreated means the actor exists but holds no block yet.
	StateCreated State = "created"
	// StateReady means the block is loaded and renders are served.
	StateReady State = "ready"
	// StateClosed means the actor released its block. Terminal.
	StateClosed State = "closed"
)

// SetupSpec carries everything an actor needs to load its block and arm
// the raycaster.
type SetupSpec struct {
	Dataset     *dataset.Meta            `json:"dataset" msgpack:"dataset"`
	Block       grid.Block               `json:"block" msgpack:"block"`
	Mode        render.Mode              `json:"mode" msgpack:"mode"`
	IsoValue    float64                  `json:"iso_value" msgpack:"iso_value"`
	Transfer    *render.TransferFunction `json:"transfer" msgpack:"transfer"`
	Width       int                      `json:"width" msgpack:"width"`
	Height      int                      `json:"height" msgpack:"height"`
	Concurrency int                      `json:"concurrency,omitempty" msgpack:"concurrency,omitempty"`
}

// Info is a point-in-time snapshot of an actor.
type Info struct {
	ID        id.ActorID `json:"id" msgpack:"id"`
	Rank      int        `json:"rank" msgpack:"rank"`
	State     State      `json:"state" msgpack:"state"`
	Block     grid.Block `json:"block" msgpack:"block"`
	DataRange [2]float32 `json:"data_range" msgpack:"data_range"`
	Width     int        `json:"width" msgpack:"width"`
	Height    int        `json:"height" msgpack:"height"`
}

// Actor renders one block of the distributed volume. All methods are
// safe for concurrent use; renders serialize on the internal mutex so a
// transfer function update never races a cast in flight.
type Actor struct {
	ID id.ActorID
	parview.Entity

	mu     sync.Mutex
	state  State
	rank   int
	block  grid.Block
	vol    *render.Volume
	rc     *render.Raycaster
	width  int
	height int
	logger *slog.Logger
}

// New creates an actor in the created state for the given rank.
func New(rank int, logger *slog.Logger) *Actor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Actor{
		ID:     id.NewActorID(),
		Entity: parview.NewEntity(),
		state:  StateCreated,
		rank:   rank,
		logger: logger,
	}
}

// State returns the current lifecycle state.
func (a *Actor) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Rank returns the compositing rank this actor renders for.
func (a *Actor) Rank() int { return a.rank }

// Setup loads the actor's block from the local dataset cache and
// transitions to ready. Setup requests can be redelivered; a second call
// on a ready actor returns parview.ErrActorReady without touching the
// loaded block, so callers treat that error as successful confirmation.
func (a *Actor) Setup(ctx context.Context, spec SetupSpec) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.state {
	case StateReady:
		return parview.ErrActorReady
	case StateClosed:
		return parview.ErrActorClosed
	}

	if spec.Dataset == nil {
		return fmt.Errorf("actor %s: %w", a.ID, parview.ErrDatasetNotFound)
	}
	if spec.Block.Rank != a.rank {
		return fmt.Errorf("%w: block rank %d, actor rank %d",
			parview.ErrRankMismatch, spec.Block.Rank, a.rank)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Load one ghost slice past the block's high Z face so trilinear
	// sampling stays continuous across slab boundaries.
	loadExt := spec.Block.Extent
	if loadExt.Hi[2] < spec.Dataset.Dims[2] {
		loadExt.Hi[2]++
	}

	start := time.Now()
	data, err := dataset.ReadBlock(spec.Dataset, loadExt)
	if err != nil {
		return fmt.Errorf("actor %s: load block: %w", a.ID, err)
	}

	vol, err := render.NewVolume(loadExt, spec.Dataset.Dims, data)
	if err != nil {
		return fmt.Errorf("actor %s: %w", a.ID, err)
	}
	vol.Spacing = spec.Dataset.VoxelSpacing()
	vol.Origin = spec.Dataset.Origin

	rc := render.NewRaycaster()
	if spec.Mode != "" {
		rc.Mode = spec.Mode
	}
	if spec.Concurrency > 0 {
		rc.Concurrency = spec.Concurrency
	}
	rc.IsoValue = spec.IsoValue
	if spec.Transfer != nil {
		spec.Transfer.Normalize()
		rc.Transfer = spec.Transfer
	} else {
		lo, hi := vol.Range()
		rc.Transfer = render.CoolToWarm(float64(lo), float64(hi))
	}

	a.block = spec.Block
	a.vol = vol
	a.rc = rc
	a.width = spec.Width
	a.height = spec.Height
	if a.width <= 0 || a.height <= 0 {
		a.width, a.height = 800, 600
	}
	a.state = StateReady
	a.Touch()

	a.logger.Info("actor ready",
		slog.String("actor_id", a.ID.String()),
		slog.Int("rank", a.rank),
		slog.String("extent", loadExt.String()),
		slog.Duration("load_time", time.Since(start)),
	)
	return nil
}

// Render casts the actor's block with the given camera and returns the
// resulting frame, tagged with the actor's rank.
func (a *Actor) Render(ctx context.Context, cam render.Camera) (*render.Frame, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.state {
	case StateCreated:
		return nil, parview.ErrActorNotReady
	case StateClosed:
		return nil, parview.ErrActorClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	frame := a.rc.Render(a.vol, cam, a.width, a.height)
	frame.Rank = a.rank
	a.Touch()
	return frame, nil
}

// UpdateTransfer replaces the transfer function used for subsequent
// renders. A nil function resets to the data-range default.
func (a *Actor) UpdateTransfer(tf *render.TransferFunction) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.state {
	case StateCreated:
		return parview.ErrActorNotReady
	case StateClosed:
		return parview.ErrActorClosed
	}

	if tf == nil {
		lo, hi := a.vol.Range()
		a.rc.Transfer = render.CoolToWarm(float64(lo), float64(hi))
	} else {
		tf.Normalize()
		a.rc.Transfer = tf
	}
	a.Touch()
	return nil
}

// UpdateMode switches the shading mode and isosurface value for
// subsequent renders.
func (a *Actor) UpdateMode(mode render.Mode, isoValue float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.state {
	case StateCreated:
		return parview.ErrActorNotReady
	case StateClosed:
		return parview.ErrActorClosed
	}

	a.rc.Mode = mode
	a.rc.IsoValue = isoValue
	a.Touch()
	return nil
}

// Resize changes the viewport for subsequent renders.
func (a *Actor) Resize(width, height int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateClosed {
		return parview.ErrActorClosed
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: viewport %dx%d", parview.ErrInvalidDims, width, height)
	}
	a.width, a.height = width, height
	a.Touch()
	return nil
}

// Info returns a snapshot of the actor's state and block.
func (a *Actor) Info() Info {
	a.mu.Lock()
	defer a.mu.Unlock()

	info := Info{
		ID:     a.ID,
		Rank:   a.rank,
		State:  a.state,
		Block:  a.block,
		Width:  a.width,
		Height: a.height,
	}
	if a.vol != nil {
		lo, hi := a.vol.Range()
		info.DataRange = [2]float32{lo, hi}
	}
	return info
}

// Volume returns the loaded block volume, or nil before setup. Exposed
// for local engines that frame the camera from the dataset bounds.
func (a *Actor) Volume() *render.Volume {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.vol
}

// Close releases the block and transitions to closed. Idempotent.
func (a *Actor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateClosed {
		return nil
	}
	a.state = StateClosed
	a.vol = nil
	a.rc = nil
	a.Touch()

	a.logger.Info("actor closed",
		slog.String("actor_id", a.ID.String()),
		slog.Int("rank", a.rank),
	)
	return nil
}
