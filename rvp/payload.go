package rvp

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/jjones-jr/parview/id"
	"github.com/jjones-jr/parview/render"
)

// FramePayload is the wire form of a rendered frame. The color and
// depth buffers are packed little-endian float32 bytes: base64 text
// under the JSON codec, raw binary under msgpack.
type FramePayload struct {
	ID        id.FrameID `json:"id" msgpack:"id"`
	Rank      int        `json:"rank" msgpack:"rank"`
	Width     int        `json:"width" msgpack:"width"`
	Height    int        `json:"height" msgpack:"height"`
	Color     []byte     `json:"color" msgpack:"color"`
	Depth     []byte     `json:"depth" msgpack:"depth"`
	ViewDepth float64    `json:"view_depth" msgpack:"view_depth"`
}

// NewFramePayload packs a rendered frame for the wire.
func NewFramePayload(f *render.Frame) *FramePayload {
	return &FramePayload{
		ID:        f.ID,
		Rank:      f.Rank,
		Width:     f.Width,
		Height:    f.Height,
		Color:     packFloat32(f.Color),
		Depth:     packFloat32(f.Depth),
		ViewDepth: f.ViewDepth,
	}
}

// Frame unpacks the payload, validating that the buffers match the
// stated dimensions.
func (p *FramePayload) Frame() (*render.Frame, error) {
	clr, err := unpackFloat32(p.Color)
	if err != nil {
		return nil, fmt.Errorf("rvp: color buffer: %w", err)
	}
	depth, err := unpackFloat32(p.Depth)
	if err != nil {
		return nil, fmt.Errorf("rvp: depth buffer: %w", err)
	}
	n := p.Width * p.Height
	if len(clr) != n*4 || len(depth) != n {
		return nil, fmt.Errorf("rvp: frame buffers (%d color, %d depth) do not match %dx%d",
			len(clr), len(depth), p.Width, p.Height)
	}
	return &render.Frame{
		ID:        p.ID,
		Rank:      p.Rank,
		Width:     p.Width,
		Height:    p.Height,
		Color:     clr,
		Depth:     depth,
		ViewDepth: p.ViewDepth,
	}, nil
}

func packFloat32(src []float32) []byte {
	out := make([]byte, len(src)*4)
	for i, v := range src {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func unpackFloat32(src []byte) ([]float32, error) {
	if len(src)%4 != 0 {
		return nil, fmt.Errorf("length %d is not a multiple of 4", len(src))
	}
	out := make([]float32, len(src)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
	return out, nil
}
