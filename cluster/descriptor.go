package cluster

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/jjones-jr/parview"
	"github.com/jjones-jr/parview/id"
)

// Endpoint is one worker entry in a cluster descriptor.
type Endpoint struct {
	ID   id.WorkerID `json:"id"`
	Addr string      `json:"addr"`
	Rank int         `json:"rank"`
}

// Descriptor is the JSON discovery file clients use to locate a running
// cluster. It lists the worker RVP endpoints in rank order.
type Descriptor struct {
	Name      string     `json:"name"`
	Endpoints []Endpoint `json:"endpoints"`
	CreatedAt time.Time  `json:"created_at"`
}

// WorkerCount returns the number of workers in the descriptor.
func (d *Descriptor) WorkerCount() int { return len(d.Endpoints) }

// Validate checks that ranks are dense 0..n-1 and unique and that every
// endpoint has an address.
func (d *Descriptor) Validate() error {
	if len(d.Endpoints) == 0 {
		return parview.ErrClusterEmpty
	}

	seen := make(map[int]bool, len(d.Endpoints))
	for _, ep := range d.Endpoints {
		if ep.Addr == "" {
			return fmt.Errorf("%w: endpoint %s has no address", parview.ErrBadDescriptor, ep.ID)
		}
		if ep.Rank < 0 || ep.Rank >= len(d.Endpoints) {
			return fmt.Errorf("%w: rank %d out of range", parview.ErrBadDescriptor, ep.Rank)
		}
		if seen[ep.Rank] {
			return fmt.Errorf("%w: duplicate rank %d", parview.ErrBadDescriptor, ep.Rank)
		}
		seen[ep.Rank] = true
	}
	return nil
}

// LoadDescriptor reads and validates a descriptor file. Endpoints are
// returned sorted by rank.
func LoadDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cluster: read descriptor %s: %w", path, err)
	}

	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", parview.ErrBadDescriptor, err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}

	sort.Slice(d.Endpoints, func(i, j int) bool {
		return d.Endpoints[i].Rank < d.Endpoints[j].Rank
	})
	return &d, nil
}

// WriteDescriptor writes the descriptor as JSON to path, replacing any
// existing file atomically (tmp + rename).
func WriteDescriptor(d *Descriptor, path string) error {
	if err := d.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("cluster: marshal descriptor: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("cluster: write descriptor: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("cluster: rename descriptor: %w", err)
	}
	return nil
}

// DescriptorFromWorkers builds a descriptor from the active workers in a
// registry, ordered by rank.
func DescriptorFromWorkers(name string, workers []*Worker) (*Descriptor, error) {
	d := &Descriptor{Name: name, CreatedAt: time.Now().UTC()}
	for _, w := range workers {
		if w.State != WorkerActive {
			continue
		}
		d.Endpoints = append(d.Endpoints, Endpoint{ID: w.ID, Addr: w.Addr, Rank: w.Rank})
	}
	sort.Slice(d.Endpoints, func(i, j int) bool {
		return d.Endpoints[i].Rank < d.Endpoints[j].Rank
	})
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}
