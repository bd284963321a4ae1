package dataset

import (
	"github.com/jjones-jr/parview"
	"github.com/jjones-jr/parview/id"
)

// elemSize is the byte width of one voxel: 32-bit float.
const elemSize = 4

// Meta describes a raw volumetric dataset.
type Meta struct {
	ID   id.DatasetID `json:"id"`
	Name string       `json:"name"`

	// URL is the remote source. Empty for purely local datasets.
	URL string `json:"url,omitempty"`

	// Path is the fixed local cache path.
	Path string `json:"path"`

	// Dims are the voxel counts along X, Y, Z.
	Dims [3]int `json:"dims"`

	// Spacing is the physical size of one voxel along each axis.
	// Zero values default to 1.
	Spacing [3]float64 `json:"spacing,omitempty"`

	// Origin is the world-space position of voxel (0,0,0).
	Origin [3]float64 `json:"origin,omitempty"`
}

// Validate checks the dimensions are positive.
func (m *Meta) Validate() error {
	if m.Dims[0] <= 0 || m.Dims[1] <= 0 || m.Dims[2] <= 0 {
		return parview.ErrInvalidDims
	}
	return nil
}

// ByteSize returns the expected file size in bytes.
func (m *Meta) ByteSize() int64 {
	return int64(m.Dims[0]) * int64(m.Dims[1]) * int64(m.Dims[2]) * elemSize
}

// VoxelSpacing returns the spacing with zero components defaulted to 1.
func (m *Meta) VoxelSpacing() [3]float64 {
	s := m.Spacing
	for axis := range 3 {
		if s[axis] == 0 {
			s[axis] = 1
		}
	}
	return s
}
