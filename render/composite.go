package render

import (
	"fmt"
	"sort"
)

// Composite blends per-block frames into one image using sort-last
// compositing: frames are ordered nearest block first by ViewDepth, then
// blended per pixel with the front-to-back over operator. All frames
// must share the same dimensions.
//
// The input slice is not modified; frames are copied into sorted order
// before blending.
func Composite(frames []*Frame) (*Frame, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("render: no frames to composite")
	}

	w, h := frames[0].Width, frames[0].Height
	for _, f := range frames[1:] {
		if f.Width != w || f.Height != h {
			return nil, fmt.Errorf("render: frame size mismatch: %dx%d vs %dx%d",
				f.Width, f.Height, w, h)
		}
	}

	ordered := make([]*Frame, len(frames))
	copy(ordered, frames)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ViewDepth < ordered[j].ViewDepth
	})

	out := NewFrame(w, h)
	out.ViewDepth = ordered[0].ViewDepth

	for i := 0; i < w*h; i++ {
		var accR, accG, accB, accA float32
		depth := DepthFar

		for _, f := range ordered {
			r, g, b, a := f.Color[i*4], f.Color[i*4+1], f.Color[i*4+2], f.Color[i*4+3]
			if a == 0 {
				continue
			}
			// Over operator on premultiplied color.
			w := 1 - accA
			accR += w * r
			accG += w * g
			accB += w * b
			accA += w * a

			if f.Depth[i] < depth {
				depth = f.Depth[i]
			}
			if accA > earlyTermination {
				break
			}
		}

		c := out.Color[i*4 : i*4+4]
		c[0], c[1], c[2], c[3] = accR, accG, accB, accA
		out.Depth[i] = depth
	}
	return out, nil
}
