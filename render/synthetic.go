package render

import (
	"math"

	"github.com/jjones-jr/parview/grid"
)

// Synthetic builds a dims-sized volume holding a sum of Gaussian blobs,
// normalized to [0, 1]. It gives examples and tests a field with smooth
// gradients and a well-defined isosurface without any dataset on disk.
func Synthetic(dims [3]int) *Volume {
	type blob struct {
		cx, cy, cz float64 // center, as a fraction of each dimension
		sigma      float64 // width, as a fraction of the smallest dimension
	}
	blobs := []blob{
		{0.5, 0.5, 0.5, 0.20},
		{0.25, 0.3, 0.6, 0.10},
		{0.75, 0.7, 0.35, 0.12},
	}

	minDim := float64(dims[0])
	for _, d := range dims[1:] {
		if float64(d) < minDim {
			minDim = float64(d)
		}
	}

	data := make([]float32, dims[0]*dims[1]*dims[2])
	maxV := 0.0
	i := 0
	for z := 0; z < dims[2]; z++ {
		for y := 0; y < dims[1]; y++ {
			for x := 0; x < dims[0]; x++ {
				v := 0.0
				for _, b := range blobs {
					dx := float64(x) - b.cx*float64(dims[0]-1)
					dy := float64(y) - b.cy*float64(dims[1]-1)
					dz := float64(z) - b.cz*float64(dims[2]-1)
					s := b.sigma * minDim
					v += math.Exp(-(dx*dx + dy*dy + dz*dz) / (2 * s * s))
				}
				data[i] = float32(v)
				if v > maxV {
					maxV = v
				}
				i++
			}
		}
	}
	if maxV > 0 {
		inv := float32(1 / maxV)
		for i := range data {
			data[i] *= inv
		}
	}

	vol, _ := NewVolume(grid.NewExtent(dims[0], dims[1], dims[2]), dims, data)
	return vol
}
