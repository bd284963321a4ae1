package render

import (
	"math"
	"path/filepath"
	"testing"
)

func solidFrame(w, h int, r, g, b, a float32, viewDepth float64) *Frame {
	f := NewFrame(w, h)
	f.ViewDepth = viewDepth
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			f.Set(x, y, r, g, b, a, float32(viewDepth))
		}
	}
	return f
}

func TestCompositeNearestBlockWins(t *testing.T) {
	near := solidFrame(2, 2, 1, 0, 0, 1, 5) // opaque red, nearer
	far := solidFrame(2, 2, 0, 0, 1, 1, 20) // opaque blue, farther

	// Input order must not matter: sorting by view depth decides.
	out, err := Composite([]*Frame{far, near})
	if err != nil {
		t.Fatalf("composite: %v", err)
	}

	r, _, b, a := out.At(0, 0)
	if r != 1 || b != 0 || a != 1 {
		t.Errorf("composite = (r=%v b=%v a=%v), want opaque red", r, b, a)
	}
	if d := out.DepthAt(0, 0); d != 5 {
		t.Errorf("depth = %v, want 5", d)
	}
}

func TestCompositeOverOperator(t *testing.T) {
	// Half-transparent red in front of opaque blue. Premultiplied front
	// color is (0.5, 0, 0, 0.5); the result is 0.5 red + 0.5 blue.
	front := solidFrame(1, 1, 0.5, 0, 0, 0.5, 1)
	back := solidFrame(1, 1, 0, 0, 1, 1, 10)

	out, err := Composite([]*Frame{back, front})
	if err != nil {
		t.Fatalf("composite: %v", err)
	}

	r, _, b, a := out.At(0, 0)
	if math.Abs(float64(r)-0.5) > 1e-6 || math.Abs(float64(b)-0.5) > 1e-6 {
		t.Errorf("blended color = (r=%v, b=%v), want (0.5, 0.5)", r, b)
	}
	if math.Abs(float64(a)-1) > 1e-6 {
		t.Errorf("blended alpha = %v, want 1", a)
	}
}

func TestCompositeSkipsEmptyPixels(t *testing.T) {
	empty := NewFrame(1, 1)
	empty.ViewDepth = 1
	back := solidFrame(1, 1, 0, 1, 0, 1, 10)

	out, err := Composite([]*Frame{empty, back})
	if err != nil {
		t.Fatalf("composite: %v", err)
	}
	_, g, _, a := out.At(0, 0)
	if g != 1 || a != 1 {
		t.Errorf("composite through empty frame = (g=%v, a=%v), want opaque green", g, a)
	}
}

func TestCompositeErrors(t *testing.T) {
	if _, err := Composite(nil); err == nil {
		t.Error("expected error for empty frame list")
	}
	if _, err := Composite([]*Frame{NewFrame(2, 2), NewFrame(3, 3)}); err == nil {
		t.Error("expected error for mismatched frame sizes")
	}
}

func TestCompositeDoesNotReorderInput(t *testing.T) {
	frames := []*Frame{
		solidFrame(1, 1, 0, 0, 1, 1, 20),
		solidFrame(1, 1, 1, 0, 0, 1, 5),
	}
	if _, err := Composite(frames); err != nil {
		t.Fatalf("composite: %v", err)
	}
	if frames[0].ViewDepth != 20 {
		t.Error("input slice was reordered")
	}
}

func TestFrameWritePNG(t *testing.T) {
	f := solidFrame(4, 4, 1, 1, 1, 1, 1)
	path := filepath.Join(t.TempDir(), "frame.png")
	if err := f.WritePNG(path); err != nil {
		t.Fatalf("write png: %v", err)
	}

	img := f.ToImage()
	if c := img.RGBAAt(2, 2); c.R != 255 || c.A != 255 {
		t.Errorf("image pixel = %+v, want opaque white", c)
	}
}
