package actor_test

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/jjones-jr/parview"
	"github.com/jjones-jr/parview/actor"
	"github.com/jjones-jr/parview/dataset"
	"github.com/jjones-jr/parview/grid"
	"github.com/jjones-jr/parview/id"
	"github.com/jjones-jr/parview/render"
)

func newTestMeta(t *testing.T, dims [3]int) *dataset.Meta {
	t.Helper()
	data := make([]float32, dims[0]*dims[1]*dims[2])
	for i := range data {
		data[i] = float32(i)
	}
	path := filepath.Join(t.TempDir(), "vol.raw")
	if err := dataset.WriteRaw(path, data); err != nil {
		t.Fatalf("write raw: %v", err)
	}
	return &dataset.Meta{ID: id.NewDatasetID(), Name: "test", Path: path, Dims: dims}
}

func newTestSpec(t *testing.T, rank int) actor.SetupSpec {
	t.Helper()
	dims := [3]int{8, 8, 8}
	layout, err := grid.Partition(dims, 2)
	if err != nil {
		t.Fatalf("partition: %v", err)
	}
	block := *layout.Blocks[rank]
	block.Rank = rank
	return actor.SetupSpec{
		Dataset: newTestMeta(t, dims),
		Block:   block,
		Mode:    render.ModeVolume,
		Width:   32,
		Height:  32,
	}
}

func TestActorLifecycle(t *testing.T) {
	a := actor.New(0, slog.Default())
	ctx := context.Background()

	if a.State() != actor.StateCreated {
		t.Fatalf("state = %s, want created", a.State())
	}

	// Rendering before setup is refused.
	if _, err := a.Render(ctx, render.NewCamera()); !errors.Is(err, parview.ErrActorNotReady) {
		t.Errorf("render before setup: got %v, want ErrActorNotReady", err)
	}

	if err := a.Setup(ctx, newTestSpec(t, 0)); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if a.State() != actor.StateReady {
		t.Fatalf("state = %s, want ready", a.State())
	}

	// Redelivered setup is acknowledged with ErrActorReady, not reloaded.
	if err := a.Setup(ctx, newTestSpec(t, 0)); !errors.Is(err, parview.ErrActorReady) {
		t.Errorf("second setup: got %v, want ErrActorReady", err)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if a.State() != actor.StateClosed {
		t.Fatalf("state = %s, want closed", a.State())
	}
	// Close is idempotent.
	if err := a.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
	if _, err := a.Render(ctx, render.NewCamera()); !errors.Is(err, parview.ErrActorClosed) {
		t.Errorf("render after close: got %v, want ErrActorClosed", err)
	}
	if err := a.Setup(ctx, newTestSpec(t, 0)); !errors.Is(err, parview.ErrActorClosed) {
		t.Errorf("setup after close: got %v, want ErrActorClosed", err)
	}
}

func TestActorSetupRankMismatch(t *testing.T) {
	a := actor.New(1, slog.Default())
	spec := newTestSpec(t, 0) // block bound to rank 0

	if err := a.Setup(context.Background(), spec); !errors.Is(err, parview.ErrRankMismatch) {
		t.Errorf("got %v, want ErrRankMismatch", err)
	}
}

func TestActorSetupLoadsGhostSlice(t *testing.T) {
	a := actor.New(0, slog.Default())
	spec := newTestSpec(t, 0) // first slab, z in [0, 4) of 8

	if err := a.Setup(context.Background(), spec); err != nil {
		t.Fatalf("setup: %v", err)
	}

	// One extra slice past the slab's high Z face keeps trilinear
	// sampling continuous across the block boundary.
	vol := a.Volume()
	if vol.Extent.Hi[2] != spec.Block.Extent.Hi[2]+1 {
		t.Errorf("loaded hi z = %d, want %d", vol.Extent.Hi[2], spec.Block.Extent.Hi[2]+1)
	}
}

func TestActorLastSlabHasNoGhost(t *testing.T) {
	a := actor.New(1, slog.Default())
	spec := newTestSpec(t, 1) // last slab, z in [4, 8) of 8

	if err := a.Setup(context.Background(), spec); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if got := a.Volume().Extent.Hi[2]; got != 8 {
		t.Errorf("loaded hi z = %d, want 8", got)
	}
}

func TestActorRenderTagsRank(t *testing.T) {
	a := actor.New(1, slog.Default())
	if err := a.Setup(context.Background(), newTestSpec(t, 1)); err != nil {
		t.Fatalf("setup: %v", err)
	}

	cam := render.NewCamera()
	cam.Reset(a.Volume().GlobalBounds())

	frame, err := a.Render(context.Background(), cam)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if frame.Rank != 1 {
		t.Errorf("frame rank = %d, want 1", frame.Rank)
	}
	if frame.Width != 32 || frame.Height != 32 {
		t.Errorf("frame size = %dx%d, want 32x32", frame.Width, frame.Height)
	}
}

func TestActorUpdateTransferRequiresReady(t *testing.T) {
	a := actor.New(0, slog.Default())
	if err := a.UpdateTransfer(render.Grayscale(0, 1)); !errors.Is(err, parview.ErrActorNotReady) {
		t.Errorf("got %v, want ErrActorNotReady", err)
	}

	if err := a.Setup(context.Background(), newTestSpec(t, 0)); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := a.UpdateTransfer(render.Grayscale(0, 1)); err != nil {
		t.Errorf("update transfer: %v", err)
	}
	// Nil resets to the data-range default.
	if err := a.UpdateTransfer(nil); err != nil {
		t.Errorf("reset transfer: %v", err)
	}
}

func TestActorInfo(t *testing.T) {
	a := actor.New(0, slog.Default())
	if err := a.Setup(context.Background(), newTestSpec(t, 0)); err != nil {
		t.Fatalf("setup: %v", err)
	}

	info := a.Info()
	if info.State != actor.StateReady {
		t.Errorf("info state = %s, want ready", info.State)
	}
	if info.Rank != 0 {
		t.Errorf("info rank = %d, want 0", info.Rank)
	}
	if info.DataRange[1] <= info.DataRange[0] {
		t.Errorf("data range = %v, want increasing", info.DataRange)
	}
}

func TestRegistry(t *testing.T) {
	r := actor.NewRegistry()
	a := actor.New(0, slog.Default())
	r.Add(a)

	got, err := r.Get(a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != a {
		t.Fatal("got different actor")
	}

	if _, err := r.Get(id.NewActorID()); !errors.Is(err, parview.ErrActorNotFound) {
		t.Errorf("unknown actor: got %v, want ErrActorNotFound", err)
	}

	if r.Len() != 1 {
		t.Errorf("len = %d, want 1", r.Len())
	}

	if err := r.CloseAll(); err != nil {
		t.Fatalf("close all: %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("len after close all = %d, want 0", r.Len())
	}
	if a.State() != actor.StateClosed {
		t.Errorf("actor state = %s, want closed", a.State())
	}
}
