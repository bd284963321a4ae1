package cluster_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jjones-jr/parview"
	"github.com/jjones-jr/parview/cluster"
	"github.com/jjones-jr/parview/id"
)

func testDescriptor(n int) *cluster.Descriptor {
	d := &cluster.Descriptor{Name: "test", CreatedAt: time.Now().UTC()}
	for i := range n {
		d.Endpoints = append(d.Endpoints, cluster.Endpoint{
			ID:   id.NewWorkerID(),
			Addr: "ws://127.0.0.1:9780/rvp",
			Rank: i,
		})
	}
	return d
}

func TestDescriptorRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cluster.json")

	orig := testDescriptor(4)
	if err := cluster.WriteDescriptor(orig, path); err != nil {
		t.Fatalf("write: %v", err)
	}

	loaded, err := cluster.LoadDescriptor(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.WorkerCount() != 4 {
		t.Errorf("worker count = %d, want 4", loaded.WorkerCount())
	}
	for i, ep := range loaded.Endpoints {
		if ep.Rank != i {
			t.Errorf("endpoint %d has rank %d, want sorted by rank", i, ep.Rank)
		}
	}
}

func TestDescriptorValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*cluster.Descriptor)
		wantErr error
	}{
		{
			name:    "empty",
			mutate:  func(d *cluster.Descriptor) { d.Endpoints = nil },
			wantErr: parview.ErrClusterEmpty,
		},
		{
			name:    "duplicate rank",
			mutate:  func(d *cluster.Descriptor) { d.Endpoints[1].Rank = 0 },
			wantErr: parview.ErrBadDescriptor,
		},
		{
			name:    "rank out of range",
			mutate:  func(d *cluster.Descriptor) { d.Endpoints[1].Rank = 7 },
			wantErr: parview.ErrBadDescriptor,
		},
		{
			name:    "missing address",
			mutate:  func(d *cluster.Descriptor) { d.Endpoints[0].Addr = "" },
			wantErr: parview.ErrBadDescriptor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := testDescriptor(3)
			tt.mutate(d)
			if err := d.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDescriptorMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := cluster.LoadDescriptor(path); !errors.Is(err, parview.ErrBadDescriptor) {
		t.Errorf("expected ErrBadDescriptor, got %v", err)
	}
}

func TestDescriptorFromWorkersSkipsInactive(t *testing.T) {
	workers := []*cluster.Worker{
		{ID: id.NewWorkerID(), Addr: "ws://a", Rank: 1, State: cluster.WorkerActive},
		{ID: id.NewWorkerID(), Addr: "ws://b", Rank: 0, State: cluster.WorkerActive},
		{ID: id.NewWorkerID(), Addr: "ws://c", Rank: 2, State: cluster.WorkerDead},
	}

	d, err := cluster.DescriptorFromWorkers("test", workers)
	if err != nil {
		t.Fatalf("from workers: %v", err)
	}
	if d.WorkerCount() != 2 {
		t.Fatalf("worker count = %d, want 2 (dead worker skipped)", d.WorkerCount())
	}
	if d.Endpoints[0].Rank != 0 || d.Endpoints[1].Rank != 1 {
		t.Error("endpoints not sorted by rank")
	}
}
