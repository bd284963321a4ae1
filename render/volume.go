package render

import (
	"fmt"
	"math"

	"github.com/jjones-jr/parview"
	"github.com/jjones-jr/parview/grid"
)

// Volume is a block-local scalar field. Extent addresses the block in
// global voxel coordinates; Data holds only the block's voxels in flat
// row-major X-fastest order. GlobalDims, Spacing and Origin carry the
// whole-dataset geometry so every worker places its block in the same
// world frame.
type Volume struct {
	Extent     grid.Extent
	GlobalDims [3]int
	Spacing    [3]float64
	Origin     [3]float64
	Data       []float32
}

// NewVolume validates the extent/data pairing and returns a Volume with
// unit spacing defaults.
func NewVolume(ext grid.Extent, globalDims [3]int, data []float32) (*Volume, error) {
	if ext.Empty() {
		return nil, fmt.Errorf("%w: empty volume extent", parview.ErrBadExtent)
	}
	if len(data) != ext.Count() {
		return nil, fmt.Errorf("%w: %d voxels for extent %s (want %d)",
			parview.ErrBadExtent, len(data), ext, ext.Count())
	}
	return &Volume{
		Extent:     ext,
		GlobalDims: globalDims,
		Spacing:    [3]float64{1, 1, 1},
		Origin:     [3]float64{0, 0, 0},
		Data:       data,
	}, nil
}

// At returns the voxel at global coordinates (x, y, z). Coordinates are
// clamped to the block extent, so sampling at the block boundary reads
// the edge voxel rather than going out of range.
func (v *Volume) At(x, y, z int) float32 {
	x = clampInt(x, v.Extent.Lo[0], v.Extent.Hi[0]-1)
	y = clampInt(y, v.Extent.Lo[1], v.Extent.Hi[1]-1)
	z = clampInt(z, v.Extent.Lo[2], v.Extent.Hi[2]-1)

	d := v.Extent.Dims()
	i := (x - v.Extent.Lo[0]) +
		(y-v.Extent.Lo[1])*d[0] +
		(z-v.Extent.Lo[2])*d[0]*d[1]
	return v.Data[i]
}

// voxelSpace maps a world point into continuous voxel coordinates.
func (v *Volume) voxelSpace(p Vec3) (float64, float64, float64) {
	return (p.X - v.Origin[0]) / v.Spacing[0],
		(p.Y - v.Origin[1]) / v.Spacing[1],
		(p.Z - v.Origin[2]) / v.Spacing[2]
}

// Sample returns the trilinearly interpolated field value at a world
// point. Points outside the block clamp to the nearest edge voxel.
func (v *Volume) Sample(p Vec3) float32 {
	fx, fy, fz := v.voxelSpace(p)

	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	z0 := int(math.Floor(fz))
	tx := fx - float64(x0)
	ty := fy - float64(y0)
	tz := fz - float64(z0)

	c000 := float64(v.At(x0, y0, z0))
	c100 := float64(v.At(x0+1, y0, z0))
	c010 := float64(v.At(x0, y0+1, z0))
	c110 := float64(v.At(x0+1, y0+1, z0))
	c001 := float64(v.At(x0, y0, z0+1))
	c101 := float64(v.At(x0+1, y0, z0+1))
	c011 := float64(v.At(x0, y0+1, z0+1))
	c111 := float64(v.At(x0+1, y0+1, z0+1))

	c00 := lerp(c000, c100, tx)
	c10 := lerp(c010, c110, tx)
	c01 := lerp(c001, c101, tx)
	c11 := lerp(c011, c111, tx)

	c0 := lerp(c00, c10, ty)
	c1 := lerp(c01, c11, ty)
	return float32(lerp(c0, c1, tz))
}

// Gradient returns the central-difference field gradient at a world
// point, in world units.
func (v *Volume) Gradient(p Vec3) Vec3 {
	hx := v.Spacing[0]
	hy := v.Spacing[1]
	hz := v.Spacing[2]
	return Vec3{
		X: float64(v.Sample(Vec3{p.X + hx, p.Y, p.Z})-v.Sample(Vec3{p.X - hx, p.Y, p.Z})) / (2 * hx),
		Y: float64(v.Sample(Vec3{p.X, p.Y + hy, p.Z})-v.Sample(Vec3{p.X, p.Y - hy, p.Z})) / (2 * hy),
		Z: float64(v.Sample(Vec3{p.X, p.Y, p.Z + hz})-v.Sample(Vec3{p.X, p.Y, p.Z - hz})) / (2 * hz),
	}
}

// Range returns the minimum and maximum field values in the block.
func (v *Volume) Range() (lo, hi float32) {
	if len(v.Data) == 0 {
		return 0, 0
	}
	lo, hi = v.Data[0], v.Data[0]
	for _, s := range v.Data[1:] {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	return lo, hi
}

// Bounds returns the world-space bounding box of the block, spanning the
// outer voxel centers [Lo, Hi-1].
func (v *Volume) Bounds() (lo, hi Vec3) {
	lo = Vec3{
		X: v.Origin[0] + float64(v.Extent.Lo[0])*v.Spacing[0],
		Y: v.Origin[1] + float64(v.Extent.Lo[1])*v.Spacing[1],
		Z: v.Origin[2] + float64(v.Extent.Lo[2])*v.Spacing[2],
	}
	hi = Vec3{
		X: v.Origin[0] + float64(v.Extent.Hi[0]-1)*v.Spacing[0],
		Y: v.Origin[1] + float64(v.Extent.Hi[1]-1)*v.Spacing[1],
		Z: v.Origin[2] + float64(v.Extent.Hi[2]-1)*v.Spacing[2],
	}
	return lo, hi
}

// GlobalBounds returns the world-space bounding box of the whole
// dataset, not just this block. The client camera frames this box.
func (v *Volume) GlobalBounds() (lo, hi Vec3) {
	lo = Vec3{X: v.Origin[0], Y: v.Origin[1], Z: v.Origin[2]}
	hi = Vec3{
		X: v.Origin[0] + float64(v.GlobalDims[0]-1)*v.Spacing[0],
		Y: v.Origin[1] + float64(v.GlobalDims[1]-1)*v.Spacing[1],
		Z: v.Origin[2] + float64(v.GlobalDims[2]-1)*v.Spacing[2],
	}
	return lo, hi
}

// Center returns the world-space center of the block.
func (v *Volume) Center() Vec3 {
	lo, hi := v.Bounds()
	return lo.Add(hi).Scale(0.5)
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
