package engine_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/jjones-jr/parview"
	"github.com/jjones-jr/parview/actor"
	"github.com/jjones-jr/parview/cluster"
	"github.com/jjones-jr/parview/dataset"
	"github.com/jjones-jr/parview/engine"
	"github.com/jjones-jr/parview/id"
	"github.com/jjones-jr/parview/render"
	"github.com/jjones-jr/parview/store/memory"
	"github.com/jjones-jr/parview/worker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// smallFrames keeps test renders cheap.
func smallFrames() parview.Config {
	cfg := parview.DefaultConfig()
	cfg.FrameWidth = 32
	cfg.FrameHeight = 32
	return cfg
}

// writeVolume writes a ramp volume to a temp file and returns its meta.
func writeVolume(t *testing.T) *dataset.Meta {
	t.Helper()

	dims := [3]int{12, 12, 12}
	data := make([]float32, dims[0]*dims[1]*dims[2])
	for i := range data {
		data[i] = float32(i % 256)
	}
	path := filepath.Join(t.TempDir(), "vol.raw")
	if err := dataset.WriteRaw(path, data); err != nil {
		t.Fatalf("WriteRaw() error = %v", err)
	}
	return &dataset.Meta{
		ID:   id.NewDatasetID(),
		Name: "ramp",
		Path: path,
		Dims: dims,
	}
}

func TestLocalSessionRender(t *testing.T) {
	t.Parallel()

	meta := writeVolume(t)
	ctx := context.Background()

	sess, err := engine.Local(ctx, meta, 3,
		engine.WithConfig(smallFrames()),
		engine.WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("Local() error = %v", err)
	}
	defer sess.Close(ctx) //nolint:errcheck

	if got := len(sess.Handles()); got != 3 {
		t.Errorf("Handles() = %d, want 3", got)
	}
	if sess.ID().IsNil() {
		t.Error("session ID is nil")
	}

	frame, err := sess.Render(ctx)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if frame.Width != 32 || frame.Height != 32 {
		t.Errorf("frame size = %dx%d, want 32x32", frame.Width, frame.Height)
	}
	_, _, _, a := frame.At(16, 16)
	if a <= 0 {
		t.Errorf("center alpha = %v, want > 0", a)
	}
}

func TestLocalIsosurfaceMode(t *testing.T) {
	t.Parallel()

	meta := writeVolume(t)
	ctx := context.Background()

	sess, err := engine.Local(ctx, meta, 2,
		engine.WithConfig(smallFrames()),
		engine.WithMode(render.ModeIsosurface),
		engine.WithIsoValue(128),
		engine.WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("Local() error = %v", err)
	}
	defer sess.Close(ctx) //nolint:errcheck

	if _, err := sess.Render(ctx); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
}

func TestLocalPartitionError(t *testing.T) {
	t.Parallel()

	meta := writeVolume(t)
	if _, err := engine.Local(context.Background(), meta, 0,
		engine.WithLogger(testLogger()),
	); err == nil {
		t.Fatal("Local() with zero workers succeeded, want error")
	}
}

func TestLocalInvalidMeta(t *testing.T) {
	t.Parallel()

	meta := &dataset.Meta{Name: "bad"}
	if _, err := engine.Local(context.Background(), meta, 2,
		engine.WithLogger(testLogger()),
	); err == nil {
		t.Fatal("Local() with invalid dims succeeded, want error")
	}
}

func TestSessionClose(t *testing.T) {
	t.Parallel()

	meta := writeVolume(t)
	ctx := context.Background()

	sess, err := engine.Local(ctx, meta, 2,
		engine.WithConfig(smallFrames()),
		engine.WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("Local() error = %v", err)
	}

	if err := sess.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := sess.Close(ctx); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	if _, err := sess.Render(ctx); err != parview.ErrSessionClosed {
		t.Errorf("Render() after Close error = %v, want ErrSessionClosed", err)
	}

	info, err := sess.Handles()[0].Info(ctx)
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if info.State != actor.StateClosed {
		t.Errorf("actor state after session close = %s, want %s", info.State, actor.StateClosed)
	}
}

// startCluster brings up n worker hosts on ephemeral ports and writes a
// descriptor file pointing at them.
func startCluster(t *testing.T, n int) string {
	t.Helper()

	desc := &cluster.Descriptor{Name: "test", CreatedAt: time.Now().UTC()}
	for rank := range n {
		h := worker.NewHost(memory.New(), testLogger(),
			worker.WithListenAddr("127.0.0.1:0"),
			worker.WithRank(rank),
		)
		if err := h.Start(context.Background()); err != nil {
			t.Fatalf("host rank %d Start() error = %v", rank, err)
		}
		t.Cleanup(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = h.Stop(ctx)
		})
		desc.Endpoints = append(desc.Endpoints, cluster.Endpoint{
			ID:   h.WorkerID(),
			Addr: h.Addr(),
			Rank: rank,
		})
	}

	path := filepath.Join(t.TempDir(), "cluster.json")
	if err := cluster.WriteDescriptor(desc, path); err != nil {
		t.Fatalf("WriteDescriptor() error = %v", err)
	}
	return path
}

func TestConnectRendersAcrossWorkers(t *testing.T) {
	t.Parallel()

	meta := writeVolume(t)
	descPath := startCluster(t, 2)
	ctx := context.Background()

	sess, err := engine.Connect(ctx, descPath, meta,
		engine.WithConfig(smallFrames()),
		engine.WithToken("dev"),
		engine.WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer sess.Close(ctx) //nolint:errcheck

	if got := len(sess.Handles()); got != 2 {
		t.Fatalf("Handles() = %d, want 2", got)
	}
	for rank, h := range sess.Handles() {
		if h.Rank() != rank {
			t.Errorf("handle %d has rank %d", rank, h.Rank())
		}
		if h.ID().IsNil() {
			t.Errorf("handle %d unbound after Connect", rank)
		}
	}

	frame, err := sess.Render(ctx)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if frame.Width != 32 || frame.Height != 32 {
		t.Errorf("frame size = %dx%d, want 32x32", frame.Width, frame.Height)
	}
	_, _, _, a := frame.At(16, 16)
	if a <= 0 {
		t.Errorf("center alpha = %v, want > 0", a)
	}
}

func TestConnectMsgpackFormat(t *testing.T) {
	t.Parallel()

	meta := writeVolume(t)
	descPath := startCluster(t, 2)
	ctx := context.Background()

	sess, err := engine.Connect(ctx, descPath, meta,
		engine.WithConfig(smallFrames()),
		engine.WithToken("dev"),
		engine.WithFormat("msgpack"),
		engine.WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer sess.Close(ctx) //nolint:errcheck

	if _, err := sess.Render(ctx); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
}

func TestConnectMissingDescriptor(t *testing.T) {
	t.Parallel()

	meta := writeVolume(t)
	if _, err := engine.Connect(context.Background(),
		filepath.Join(t.TempDir(), "absent.json"), meta,
		engine.WithLogger(testLogger()),
	); err == nil {
		t.Fatal("Connect() with missing descriptor succeeded, want error")
	}
}
