package render

import (
	"math"
	"runtime"
	"sync"
)

// Mode selects the shading model.
type Mode string

const (
	// ModeVolume accumulates color front to back through the transfer
	// function (emission-absorption).
	ModeVolume Mode = "volume"
	// ModeIsosurface shades the first crossing of IsoValue with a
	// headlight diffuse term.
	ModeIsosurface Mode = "isosurface"
)

// Raycaster renders a block-local volume into a frame. The zero value
// is not usable; NewRaycaster fills in working defaults.
type Raycaster struct {
	Mode        Mode
	Step        float64 // sampling step in world units; 0 means half the smallest spacing
	IsoValue    float64
	Transfer    *TransferFunction
	Concurrency int
}

// NewRaycaster returns a volume-mode raycaster with a grayscale transfer
// function over [0, 1].
func NewRaycaster() *Raycaster {
	return &Raycaster{
		Mode:        ModeVolume,
		Transfer:    Grayscale(0, 1),
		Concurrency: runtime.GOMAXPROCS(0),
	}
}

// opacityUnit is the step length opacities are calibrated against.
// Opacity at other step sizes is corrected so the image does not darken
// or wash out when the sampling rate changes.
const opacityUnit = 1.0

// earlyTermination stops a ray once accumulated alpha passes this.
const earlyTermination = 0.99

// Render casts one ray per pixel of a w×h viewport through the volume
// and returns the resulting frame. Scanlines render in parallel.
func (rc *Raycaster) Render(vol *Volume, cam Camera, w, h int) *Frame {
	frame := NewFrame(w, h)
	frame.ViewDepth = cam.Position.Sub(vol.Center()).Len()

	step := rc.Step
	if step <= 0 {
		step = minSpacing(vol) / 2
	}

	workers := rc.Concurrency
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > h {
		workers = h
	}

	var wg sync.WaitGroup
	rows := make(chan int)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := range rows {
				for x := 0; x < w; x++ {
					rc.castPixel(vol, cam, frame, x, y, step)
				}
			}
		}()
	}
	for y := 0; y < h; y++ {
		rows <- y
	}
	close(rows)
	wg.Wait()
	return frame
}

func (rc *Raycaster) castPixel(vol *Volume, cam Camera, frame *Frame, x, y int, step float64) {
	ray := cam.Ray(x, y, frame.Width, frame.Height)

	lo, hi := vol.Bounds()
	tNear, tFar, ok := intersectBox(ray, lo, hi)
	if !ok {
		return
	}
	if tNear < 0 {
		tNear = 0
	}

	switch rc.Mode {
	case ModeIsosurface:
		rc.castIso(vol, ray, frame, x, y, tNear, tFar, step)
	default:
		rc.castVolume(vol, ray, frame, x, y, tNear, tFar, step)
	}
}

func (rc *Raycaster) castVolume(vol *Volume, ray Ray, frame *Frame, x, y int, tNear, tFar, step float64) {
	var accR, accG, accB, accA float64
	depth := DepthFar

	for t := tNear; t <= tFar; t += step {
		p := ray.Origin.Add(ray.Dir.Scale(t))
		s := float64(vol.Sample(p))

		r, g, b, a := rc.Transfer.Lookup(s)
		if a <= 0 {
			continue
		}
		// Correct opacity for the step length.
		a = 1 - math.Pow(1-a, step/opacityUnit)

		// Front-to-back over operator on premultiplied color.
		w := (1 - accA) * a
		accR += w * r
		accG += w * g
		accB += w * b
		accA += w

		if depth == DepthFar {
			depth = float32(t)
		}
		if accA > earlyTermination {
			break
		}
	}

	if accA > 0 {
		frame.Set(x, y, float32(accR), float32(accG), float32(accB), float32(accA), depth)
	}
}

func (rc *Raycaster) castIso(vol *Volume, ray Ray, frame *Frame, x, y int, tNear, tFar, step float64) {
	prev := float64(vol.Sample(ray.Origin.Add(ray.Dir.Scale(tNear)))) - rc.IsoValue

	for t := tNear + step; t <= tFar; t += step {
		p := ray.Origin.Add(ray.Dir.Scale(t))
		cur := float64(vol.Sample(p)) - rc.IsoValue

		if prev*cur <= 0 && (prev != 0 || cur != 0) {
			// Sign change: interpolate the crossing parameter.
			tHit := t
			if prev != cur {
				tHit = t - step + step*prev/(prev-cur)
			}
			hit := ray.Origin.Add(ray.Dir.Scale(tHit))

			// Headlight diffuse shading off the field gradient.
			n := vol.Gradient(hit).Normalize()
			diffuse := math.Abs(n.Dot(ray.Dir))
			shade := 0.1 + 0.9*diffuse

			r, g, b, _ := rc.Transfer.Lookup(rc.IsoValue)
			frame.Set(x, y,
				float32(r*shade), float32(g*shade), float32(b*shade), 1,
				float32(tHit))
			return
		}
		prev = cur
	}
}

// intersectBox slab-tests a ray against an axis-aligned box and returns
// the entry and exit parameters.
func intersectBox(ray Ray, lo, hi Vec3) (tNear, tFar float64, ok bool) {
	o := [3]float64{ray.Origin.X, ray.Origin.Y, ray.Origin.Z}
	d := [3]float64{ray.Dir.X, ray.Dir.Y, ray.Dir.Z}
	boxLo := [3]float64{lo.X, lo.Y, lo.Z}
	boxHi := [3]float64{hi.X, hi.Y, hi.Z}

	tNear = math.Inf(-1)
	tFar = math.Inf(1)
	for i := range 3 {
		if d[i] == 0 {
			if o[i] < boxLo[i] || o[i] > boxHi[i] {
				return 0, 0, false
			}
			continue
		}
		t0 := (boxLo[i] - o[i]) / d[i]
		t1 := (boxHi[i] - o[i]) / d[i]
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tNear {
			tNear = t0
		}
		if t1 < tFar {
			tFar = t1
		}
		if tNear > tFar {
			return 0, 0, false
		}
	}
	return tNear, tFar, tFar >= 0
}

func minSpacing(vol *Volume) float64 {
	s := vol.Spacing[0]
	if vol.Spacing[1] < s {
		s = vol.Spacing[1]
	}
	if vol.Spacing[2] < s {
		s = vol.Spacing[2]
	}
	if s <= 0 {
		s = 1
	}
	return s
}
