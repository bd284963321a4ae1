package dataset

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/jjones-jr/parview"
	"github.com/jjones-jr/parview/grid"
)

// ReadBlock reads the voxels of a Z-slab extent from the cached dataset
// file. The slab is located with a single byte-offset seek: in row-major
// X-fastest order a full-XY slab starting at slice z0 begins at byte
// z0*X*Y*4 and is contiguous from there.
//
// Extents narrower than the full XY plane fall back to one seek+read per
// contiguous X-run.
func ReadBlock(m *Meta, ext grid.Extent) ([]float32, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if ext.Empty() || !ext.Within(grid.NewExtent(m.Dims[0], m.Dims[1], m.Dims[2])) {
		return nil, fmt.Errorf("%w: %s in dataset %v", parview.ErrBadExtent, ext, m.Dims)
	}

	f, err := os.Open(m.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", parview.ErrDatasetNotFound, m.Path)
		}
		return nil, fmt.Errorf("dataset: open %s: %w", m.Path, err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("dataset: stat %s: %w", m.Path, err)
	}
	if fi.Size() < m.ByteSize() {
		return nil, fmt.Errorf("%w: %s has %d bytes, want %d",
			parview.ErrShortFile, m.Path, fi.Size(), m.ByteSize())
	}

	d := ext.Dims()
	out := make([]float32, ext.Count())
	buf := make([]byte, d[0]*elemSize)
	sliceStride := int64(m.Dims[0]) * int64(m.Dims[1]) * elemSize
	rowStride := int64(m.Dims[0]) * elemSize

	idx := 0
	for z := ext.Lo[2]; z < ext.Hi[2]; z++ {
		for y := ext.Lo[1]; y < ext.Hi[1]; y++ {
			off := int64(z)*sliceStride + int64(y)*rowStride + int64(ext.Lo[0])*elemSize
			if _, err := f.ReadAt(buf, off); err != nil {
				return nil, fmt.Errorf("dataset: read slab row z=%d y=%d: %w", z, y, err)
			}
			for x := range d[0] {
				bits := binary.LittleEndian.Uint32(buf[x*elemSize:])
				out[idx] = math.Float32frombits(bits)
				idx++
			}
		}
	}
	return out, nil
}

// WriteRaw writes a float32 field to path in the flat row-major layout.
// Used by tests and the synthetic example to materialize datasets.
func WriteRaw(path string, data []float32) error {
	buf := make([]byte, len(data)*elemSize)
	for i, v := range data {
		binary.LittleEndian.PutUint32(buf[i*elemSize:], math.Float32bits(v))
	}
	return os.WriteFile(path, buf, 0o644)
}
