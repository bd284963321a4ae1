// Package grid models the distributed array: a logical 3-D scalar field
// split into contiguous Z-slab blocks, each owned by exactly one worker.
//
// [Partition] cuts the global voxel extent into n slabs, [Rebalance]
// enforces the 1:1 block-to-worker mapping against a live worker set, and
// [Array] realizes blocks lazily through per-block loader calls.
package grid
