// Package dataset handles volumetric data access: fetching a remote raw
// volume once and caching it at a fixed local path, and reading per-block
// slabs out of the cached file.
//
// The on-disk layout is the one scientific raw dumps use: flat row-major
// 32-bit little-endian floats, X fastest, Z slowest. Reading a Z-slab is
// a single byte-offset seek followed by a contiguous read.
package dataset
