// Package view implements the client-side display: it holds the camera
// and the latest composited image, fans render requests out to every
// actor handle, and blends the returned per-block frames with sort-last
// compositing. Interaction ops mutate the camera and re-render through
// a rate limiter so camera drags don't flood the actors.
package view

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/jjones-jr/parview/actor"
	"github.com/jjones-jr/parview/dataset"
	"github.com/jjones-jr/parview/ext"
	"github.com/jjones-jr/parview/id"
	"github.com/jjones-jr/parview/render"
)

// DefaultMaxRate caps interactive re-renders per second.
const DefaultMaxRate = 30

// View aggregates the frames of a distributed render. It stores only
// camera parameters and the current output image; all volume data stays
// with the actors.
type View struct {
	mu      sync.Mutex
	handles []actor.Handle
	camera  render.Camera
	frame   *render.Frame
	lo, hi  render.Vec3

	limiter *rate.Limiter
	exts    *ext.Registry
	session id.SessionID
	logger  *slog.Logger
}

// Option configures a View.
type Option func(*View)

// WithCamera sets the initial camera. Without it the camera frames the
// view bounds.
func WithCamera(cam render.Camera) Option {
	return func(v *View) { v.camera = cam }
}

// WithBounds sets the world-space box the reset op frames. Defaults to
// the unit cube.
func WithBounds(lo, hi render.Vec3) Option {
	return func(v *View) { v.lo, v.hi = lo, hi }
}

// WithMaxRate caps interactive re-renders at n per second. Zero or
// negative disables the limit.
func WithMaxRate(n float64) Option {
	return func(v *View) {
		if n <= 0 {
			v.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		v.limiter = rate.NewLimiter(rate.Limit(n), 1)
	}
}

// WithExtensions sets the registry camera updates are emitted to.
func WithExtensions(exts *ext.Registry) Option {
	return func(v *View) { v.exts = exts }
}

// WithSession tags camera events with the interactive session.
func WithSession(sessionID id.SessionID) Option {
	return func(v *View) { v.session = sessionID }
}

// WithLogger sets the view's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *View) { v.logger = logger }
}

// New builds a view over the given actor handles. The camera starts
// framed on the view bounds unless WithCamera overrides it.
func New(handles []actor.Handle, opts ...Option) (*View, error) {
	if len(handles) == 0 {
		return nil, fmt.Errorf("view: no actor handles")
	}

	v := &View{
		handles: handles,
		hi:      render.Vec3{X: 1, Y: 1, Z: 1},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.limiter == nil {
		v.limiter = rate.NewLimiter(rate.Limit(DefaultMaxRate), 1)
	}
	if v.camera == (render.Camera{}) {
		v.camera = render.NewCamera()
		v.camera.Reset(v.lo, v.hi)
	}
	return v, nil
}

// Bounds returns the world-space box framed by the dataset: its origin
// corner and the corner dims*spacing away. Feed it to WithBounds when
// building a view over that dataset.
func Bounds(m *dataset.Meta) (lo, hi render.Vec3) {
	s := m.VoxelSpacing()
	lo = render.Vec3{X: m.Origin[0], Y: m.Origin[1], Z: m.Origin[2]}
	hi = lo.Add(render.Vec3{
		X: float64(m.Dims[0]) * s[0],
		Y: float64(m.Dims[1]) * s[1],
		Z: float64(m.Dims[2]) * s[2],
	})
	return lo, hi
}

// Handles returns the actor handles this view fans out to.
func (v *View) Handles() []actor.Handle { return v.handles }

// Camera returns a copy of the current camera.
func (v *View) Camera() render.Camera {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.camera
}

// SetCamera replaces the camera without re-rendering.
func (v *View) SetCamera(cam render.Camera) {
	v.mu.Lock()
	v.camera = cam
	v.mu.Unlock()
	v.emitCamera(context.Background())
}

// Frame returns the last composited output, or nil before the first
// render.
func (v *View) Frame() *render.Frame {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.frame
}

// Render fans the current camera out to every handle, blocks for all
// frames, composites them, and stores the result. One failing handle
// fails the whole render.
func (v *View) Render(ctx context.Context) (*render.Frame, error) {
	v.mu.Lock()
	cam := v.camera
	v.mu.Unlock()

	frames := make([]*render.Frame, len(v.handles))
	g, gctx := errgroup.WithContext(ctx)
	for i, h := range v.handles {
		g.Go(func() error {
			f, err := h.Render(gctx, cam)
			if err != nil {
				return fmt.Errorf("view: render rank %d: %w", h.Rank(), err)
			}
			frames[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out, err := render.Composite(frames)
	if err != nil {
		return nil, fmt.Errorf("view: %w", err)
	}

	v.mu.Lock()
	v.frame = out
	v.mu.Unlock()
	return out, nil
}

// Rotate orbits the camera by the given azimuth and elevation degrees
// and re-renders.
func (v *View) Rotate(ctx context.Context, azimuthDeg, elevationDeg float64) (*render.Frame, error) {
	v.mu.Lock()
	v.camera.Azimuth(azimuthDeg)
	v.camera.Elevation(elevationDeg)
	v.mu.Unlock()
	return v.interact(ctx)
}

// Pan translates the camera and focal point in the view plane and
// re-renders.
func (v *View) Pan(ctx context.Context, dx, dy float64) (*render.Frame, error) {
	v.mu.Lock()
	v.camera.Pan(dx, dy)
	v.mu.Unlock()
	return v.interact(ctx)
}

// Zoom dollies toward (factor > 1) or away from (factor < 1) the focal
// point and re-renders.
func (v *View) Zoom(ctx context.Context, factor float64) (*render.Frame, error) {
	v.mu.Lock()
	v.camera.Dolly(factor)
	v.mu.Unlock()
	return v.interact(ctx)
}

// ResetCamera re-frames the view bounds and re-renders.
func (v *View) ResetCamera(ctx context.Context) (*render.Frame, error) {
	v.mu.Lock()
	v.camera.Reset(v.lo, v.hi)
	v.mu.Unlock()
	return v.interact(ctx)
}

// interact emits the camera update and re-renders unless the rate
// limiter coalesces this interaction, in which case the previous frame
// is returned. The camera mutation is never dropped, so the next render
// picks it up.
func (v *View) interact(ctx context.Context) (*render.Frame, error) {
	v.emitCamera(ctx)
	if !v.limiter.Allow() {
		return v.Frame(), nil
	}
	return v.Render(ctx)
}

func (v *View) emitCamera(ctx context.Context) {
	if v.exts == nil {
		return
	}
	v.mu.Lock()
	cam := v.camera
	v.mu.Unlock()
	v.exts.EmitCameraUpdated(ctx, v.session, cam)
}

// Snapshot writes the last composited frame to a PNG file.
func (v *View) Snapshot(path string) error {
	f := v.Frame()
	if f == nil {
		return fmt.Errorf("view: no frame rendered yet")
	}
	return f.WritePNG(path)
}
