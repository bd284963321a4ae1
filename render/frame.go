package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"github.com/jjones-jr/parview/id"
)

// DepthFar is the depth stored for pixels whose ray hit nothing. It is
// a finite sentinel because frames travel over the wire and
// encoding/json rejects infinities.
const DepthFar = float32(math.MaxFloat32)

// Frame is one rendered image from one block. Color is premultiplied
// float32 RGBA, row-major from the top-left pixel. Depth holds the ray
// parameter of the first contribution per pixel (DepthFar where the ray
// hit nothing). ViewDepth is the distance from the camera to the block
// center and orders frames during compositing.
type Frame struct {
	ID        id.FrameID `json:"id" msgpack:"id"`
	Rank      int        `json:"rank" msgpack:"rank"`
	Width     int        `json:"width" msgpack:"width"`
	Height    int        `json:"height" msgpack:"height"`
	Color     []float32  `json:"color" msgpack:"color"`
	Depth     []float32  `json:"depth" msgpack:"depth"`
	ViewDepth float64    `json:"view_depth" msgpack:"view_depth"`
}

// NewFrame returns a cleared w×h frame with all depths at DepthFar.
func NewFrame(w, h int) *Frame {
	f := &Frame{
		ID:     id.NewFrameID(),
		Rank:   -1,
		Width:  w,
		Height: h,
		Color:  make([]float32, w*h*4),
		Depth:  make([]float32, w*h),
	}
	for i := range f.Depth {
		f.Depth[i] = DepthFar
	}
	return f
}

// Set stores a premultiplied RGBA sample and its depth at pixel (x, y).
func (f *Frame) Set(x, y int, r, g, b, a float32, depth float32) {
	i := y*f.Width + x
	c := f.Color[i*4 : i*4+4]
	c[0], c[1], c[2], c[3] = r, g, b, a
	f.Depth[i] = depth
}

// At returns the premultiplied RGBA sample at pixel (x, y).
func (f *Frame) At(x, y int) (r, g, b, a float32) {
	i := (y*f.Width + x) * 4
	return f.Color[i], f.Color[i+1], f.Color[i+2], f.Color[i+3]
}

// DepthAt returns the depth at pixel (x, y).
func (f *Frame) DepthAt(x, y int) float32 {
	return f.Depth[y*f.Width+x]
}

// ToImage converts the frame to an 8-bit image. image.RGBA is itself
// premultiplied, so the conversion is a straight clamp and quantize.
func (f *Frame) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			r, g, b, a := f.At(x, y)
			img.SetRGBA(x, y, color.RGBA{
				R: quantize(r),
				G: quantize(g),
				B: quantize(b),
				A: quantize(a),
			})
		}
	}
	return img
}

// WritePNG encodes the frame to a PNG file at path.
func (f *Frame) WritePNG(path string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("render: create %s: %w", path, err)
	}
	if err := png.Encode(out, f.ToImage()); err != nil {
		out.Close() //nolint:errcheck
		return fmt.Errorf("render: encode %s: %w", path, err)
	}
	return out.Close()
}

func quantize(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}
