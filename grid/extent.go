package grid

import "fmt"

// Extent is a half-open voxel box [Lo, Hi) in global index space.
// Axis order is X, Y, Z.
type Extent struct {
	Lo [3]int `json:"lo"`
	Hi [3]int `json:"hi"`
}

// NewExtent returns the extent covering [0,0,0)..(x,y,z).
func NewExtent(x, y, z int) Extent {
	return Extent{Hi: [3]int{x, y, z}}
}

// Dims returns the size of the extent along each axis.
func (e Extent) Dims() [3]int {
	return [3]int{e.Hi[0] - e.Lo[0], e.Hi[1] - e.Lo[1], e.Hi[2] - e.Lo[2]}
}

// Count returns the number of voxels in the extent.
func (e Extent) Count() int {
	d := e.Dims()
	return d[0] * d[1] * d[2]
}

// Empty reports whether the extent contains no voxels.
func (e Extent) Empty() bool {
	for axis := range 3 {
		if e.Hi[axis] <= e.Lo[axis] {
			return true
		}
	}
	return false
}

// Contains reports whether the voxel (x, y, z) lies inside the extent.
func (e Extent) Contains(x, y, z int) bool {
	return x >= e.Lo[0] && x < e.Hi[0] &&
		y >= e.Lo[1] && y < e.Hi[1] &&
		z >= e.Lo[2] && z < e.Hi[2]
}

// Within reports whether e lies entirely inside outer.
func (e Extent) Within(outer Extent) bool {
	for axis := range 3 {
		if e.Lo[axis] < outer.Lo[axis] || e.Hi[axis] > outer.Hi[axis] {
			return false
		}
	}
	return true
}

func (e Extent) String() string {
	return fmt.Sprintf("[%d,%d,%d)..(%d,%d,%d]", e.Lo[0], e.Lo[1], e.Lo[2], e.Hi[0], e.Hi[1], e.Hi[2])
}
