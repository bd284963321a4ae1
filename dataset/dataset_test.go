package dataset_test

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/jjones-jr/parview"
	"github.com/jjones-jr/parview/backoff"
	"github.com/jjones-jr/parview/dataset"
	"github.com/jjones-jr/parview/grid"
	"github.com/jjones-jr/parview/id"
)

// rampField returns a field where voxel (x,y,z) holds its flat index.
func rampField(dims [3]int) []float32 {
	data := make([]float32, dims[0]*dims[1]*dims[2])
	for i := range data {
		data[i] = float32(i)
	}
	return data
}

func writeTestVolume(t *testing.T, dims [3]int) *dataset.Meta {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vol.raw")
	if err := dataset.WriteRaw(path, rampField(dims)); err != nil {
		t.Fatalf("write raw: %v", err)
	}
	return &dataset.Meta{ID: id.NewDatasetID(), Name: "ramp", Path: path, Dims: dims}
}

func TestReadBlockFullSlab(t *testing.T) {
	dims := [3]int{4, 3, 6}
	m := writeTestVolume(t, dims)

	ext := grid.Extent{Lo: [3]int{0, 0, 2}, Hi: [3]int{4, 3, 4}}
	data, err := dataset.ReadBlock(m, ext)
	if err != nil {
		t.Fatalf("read block: %v", err)
	}
	if len(data) != ext.Count() {
		t.Fatalf("got %d voxels, want %d", len(data), ext.Count())
	}

	// First voxel of the slab is flat index z*X*Y = 2*4*3 = 24.
	if data[0] != 24 {
		t.Errorf("slab start = %v, want 24", data[0])
	}
	if data[len(data)-1] != float32(4*3*4-1) {
		t.Errorf("slab end = %v, want %v", data[len(data)-1], float32(4*3*4-1))
	}
}

func TestReadBlockPartialRow(t *testing.T) {
	dims := [3]int{8, 4, 4}
	m := writeTestVolume(t, dims)

	ext := grid.Extent{Lo: [3]int{2, 1, 1}, Hi: [3]int{5, 3, 2}}
	data, err := dataset.ReadBlock(m, ext)
	if err != nil {
		t.Fatalf("read block: %v", err)
	}

	// Voxel (2,1,1) has flat index 1*8*4 + 1*8 + 2 = 42.
	if data[0] != 42 {
		t.Errorf("first voxel = %v, want 42", data[0])
	}
}

func TestReadBlockErrors(t *testing.T) {
	dims := [3]int{4, 4, 4}
	m := writeTestVolume(t, dims)

	t.Run("extent out of bounds", func(t *testing.T) {
		ext := grid.Extent{Lo: [3]int{0, 0, 0}, Hi: [3]int{4, 4, 9}}
		if _, err := dataset.ReadBlock(m, ext); !errors.Is(err, parview.ErrBadExtent) {
			t.Errorf("got %v, want ErrBadExtent", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		missing := &dataset.Meta{Name: "gone", Path: filepath.Join(t.TempDir(), "nope.raw"), Dims: dims}
		ext := grid.NewExtent(4, 4, 4)
		if _, err := dataset.ReadBlock(missing, ext); !errors.Is(err, parview.ErrDatasetNotFound) {
			t.Errorf("got %v, want ErrDatasetNotFound", err)
		}
	})

	t.Run("short file", func(t *testing.T) {
		short := writeTestVolume(t, [3]int{4, 4, 2})
		short.Dims = dims // claim more data than the file holds
		ext := grid.NewExtent(4, 4, 4)
		if _, err := dataset.ReadBlock(short, ext); !errors.Is(err, parview.ErrShortFile) {
			t.Errorf("got %v, want ErrShortFile", err)
		}
	})
}

func TestFetchDownloadsOnce(t *testing.T) {
	dims := [3]int{4, 4, 4}
	raw := rampField(dims)

	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		writeFloats(w, raw)
	}))
	defer srv.Close()

	m := &dataset.Meta{
		ID:   id.NewDatasetID(),
		Name: "remote",
		URL:  srv.URL + "/vol.raw",
		Path: filepath.Join(t.TempDir(), "cache", "vol.raw"),
		Dims: dims,
	}

	f := dataset.NewFetcher(dataset.WithMaxRetries(0))
	if err := f.Fetch(context.Background(), m); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if hits != 1 {
		t.Fatalf("server hit %d times, want 1", hits)
	}

	// Second fetch must hit the cache, not the network.
	if err := f.Fetch(context.Background(), m); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if hits != 1 {
		t.Errorf("server hit %d times after cached fetch, want 1", hits)
	}

	// The cached file is readable as a block source.
	data, err := dataset.ReadBlock(m, grid.NewExtent(4, 4, 4))
	if err != nil {
		t.Fatalf("read fetched block: %v", err)
	}
	if data[17] != 17 {
		t.Errorf("fetched voxel 17 = %v, want 17", data[17])
	}
}

func TestFetchRetriesTransientFailure(t *testing.T) {
	dims := [3]int{2, 2, 2}
	raw := rampField(dims)

	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		if hits == 1 {
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		writeFloats(w, raw)
	}))
	defer srv.Close()

	m := &dataset.Meta{
		Name: "flaky",
		URL:  srv.URL,
		Path: filepath.Join(t.TempDir(), "vol.raw"),
		Dims: dims,
	}

	f := dataset.NewFetcher(
		dataset.WithMaxRetries(2),
		dataset.WithBackoff(backoff.NewConstant(time.Millisecond)),
	)
	if err := f.Fetch(context.Background(), m); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if hits != 2 {
		t.Errorf("server hit %d times, want 2", hits)
	}
}

func TestFetchNoURLNoCache(t *testing.T) {
	m := &dataset.Meta{
		Name: "local-only",
		Path: filepath.Join(t.TempDir(), "missing.raw"),
		Dims: [3]int{2, 2, 2},
	}
	if err := dataset.NewFetcher().Fetch(context.Background(), m); err == nil {
		t.Error("expected error for missing local dataset without URL")
	}
}

func writeFloats(w http.ResponseWriter, data []float32) {
	buf := make([]byte, len(data)*4)
	for i, v := range data {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	_, _ = w.Write(buf)
}
