package grid

import (
	"fmt"
	"sort"

	"github.com/jjones-jr/parview"
	"github.com/jjones-jr/parview/cluster"
	"github.com/jjones-jr/parview/id"
)

// Layout describes how a global extent is tiled into blocks.
type Layout struct {
	Dims   [3]int   `json:"dims"`
	Blocks []*Block `json:"blocks"`
}

// Partition splits a volume of the given dimensions into n contiguous
// Z-slabs. The remainder r = Z mod n is spread over the leading r slabs
// so slab thickness differs by at most one. Blocks are indexed bottom-up
// in Z order.
func Partition(dims [3]int, n int) (*Layout, error) {
	if dims[0] <= 0 || dims[1] <= 0 || dims[2] <= 0 {
		return nil, parview.ErrInvalidDims
	}
	if n <= 0 || n > dims[2] {
		return nil, fmt.Errorf("%w: cannot cut %d slices into %d slabs", parview.ErrInvalidDims, dims[2], n)
	}

	base := dims[2] / n
	rem := dims[2] % n

	layout := &Layout{Dims: dims, Blocks: make([]*Block, 0, n)}
	lo := 0
	for i := range n {
		thickness := base
		if i < rem {
			thickness++
		}
		layout.Blocks = append(layout.Blocks, &Block{
			ID:    id.NewBlockID(),
			Index: i,
			Rank:  -1,
			Extent: Extent{
				Lo: [3]int{0, 0, lo},
				Hi: [3]int{dims[0], dims[1], lo + thickness},
			},
		})
		lo += thickness
	}
	return layout, nil
}

// Rebalance enforces the 1:1 block-to-worker mapping: block i is assigned
// to the active worker with rank i. It errors when the active worker
// count does not match the block count; re-partition in that case.
func Rebalance(layout *Layout, workers []*cluster.Worker) error {
	active := make([]*cluster.Worker, 0, len(workers))
	for _, w := range workers {
		if w.State == cluster.WorkerActive {
			active = append(active, w)
		}
	}
	if len(active) != len(layout.Blocks) {
		return fmt.Errorf("%w: %d blocks, %d active workers",
			parview.ErrRankMismatch, len(layout.Blocks), len(active))
	}

	sort.Slice(active, func(i, j int) bool { return active[i].Rank < active[j].Rank })
	for i, b := range layout.Blocks {
		b.Worker = active[i].ID
		b.Rank = active[i].Rank
	}
	return nil
}

// BlockForWorker returns the block owned by the given worker, or an error
// if the worker owns none.
func (l *Layout) BlockForWorker(workerID id.WorkerID) (*Block, error) {
	for _, b := range l.Blocks {
		if b.Worker.String() == workerID.String() {
			return b, nil
		}
	}
	return nil, parview.ErrBlockNotFound
}

// BlockForRank returns the block assigned to the given rank.
func (l *Layout) BlockForRank(rank int) (*Block, error) {
	for _, b := range l.Blocks {
		if b.Rank == rank {
			return b, nil
		}
	}
	return nil, parview.ErrBlockNotFound
}

// Validate checks the tiling invariant: blocks cover the global extent
// exactly, in Z order, with no overlap and no gaps.
func (l *Layout) Validate() error {
	global := NewExtent(l.Dims[0], l.Dims[1], l.Dims[2])
	next := 0
	for i, b := range l.Blocks {
		if !b.Extent.Within(global) {
			return fmt.Errorf("%w: block %d extent %s", parview.ErrBadExtent, i, b.Extent)
		}
		if b.Extent.Lo[0] != 0 || b.Extent.Hi[0] != l.Dims[0] ||
			b.Extent.Lo[1] != 0 || b.Extent.Hi[1] != l.Dims[1] {
			return fmt.Errorf("%w: block %d is not a full XY slab", parview.ErrBadExtent, i)
		}
		if b.Extent.Lo[2] != next {
			return fmt.Errorf("%w: gap or overlap at z=%d", parview.ErrBadExtent, b.Extent.Lo[2])
		}
		next = b.Extent.Hi[2]
	}
	if next != l.Dims[2] {
		return fmt.Errorf("%w: slabs end at z=%d, want %d", parview.ErrBadExtent, next, l.Dims[2])
	}
	return nil
}
