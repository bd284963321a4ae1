package render

import "sort"

// ColorPoint anchors an RGB color at a scalar value.
type ColorPoint struct {
	Value float64 `json:"value" msgpack:"value"`
	R     float64 `json:"r" msgpack:"r"`
	G     float64 `json:"g" msgpack:"g"`
	B     float64 `json:"b" msgpack:"b"`
}

// OpacityPoint anchors an opacity at a scalar value.
type OpacityPoint struct {
	Value   float64 `json:"value" msgpack:"value"`
	Opacity float64 `json:"opacity" msgpack:"opacity"`
}

// TransferFunction maps scalar field values to color and opacity by
// piecewise-linear interpolation between control points. Points are kept
// sorted by value; lookups below the first or above the last point clamp
// to the endpoint.
type TransferFunction struct {
	Colors    []ColorPoint   `json:"colors" msgpack:"colors"`
	Opacities []OpacityPoint `json:"opacities" msgpack:"opacities"`
}

// Normalize sorts the control points by value. Call after mutating the
// point lists directly; the preset constructors return sorted functions.
func (tf *TransferFunction) Normalize() {
	sort.Slice(tf.Colors, func(i, j int) bool { return tf.Colors[i].Value < tf.Colors[j].Value })
	sort.Slice(tf.Opacities, func(i, j int) bool { return tf.Opacities[i].Value < tf.Opacities[j].Value })
}

// Lookup returns the interpolated color and opacity for a scalar value.
func (tf *TransferFunction) Lookup(v float64) (r, g, b, a float64) {
	r, g, b = tf.color(v)
	a = tf.opacity(v)
	return r, g, b, a
}

func (tf *TransferFunction) color(v float64) (r, g, b float64) {
	pts := tf.Colors
	if len(pts) == 0 {
		return 1, 1, 1
	}
	if v <= pts[0].Value {
		return pts[0].R, pts[0].G, pts[0].B
	}
	last := pts[len(pts)-1]
	if v >= last.Value {
		return last.R, last.G, last.B
	}
	i := sort.Search(len(pts), func(i int) bool { return pts[i].Value >= v })
	p0, p1 := pts[i-1], pts[i]
	t := (v - p0.Value) / (p1.Value - p0.Value)
	return lerp(p0.R, p1.R, t), lerp(p0.G, p1.G, t), lerp(p0.B, p1.B, t)
}

func (tf *TransferFunction) opacity(v float64) float64 {
	pts := tf.Opacities
	if len(pts) == 0 {
		return 1
	}
	if v <= pts[0].Value {
		return pts[0].Opacity
	}
	last := pts[len(pts)-1]
	if v >= last.Value {
		return last.Opacity
	}
	i := sort.Search(len(pts), func(i int) bool { return pts[i].Value >= v })
	p0, p1 := pts[i-1], pts[i]
	t := (v - p0.Value) / (p1.Value - p0.Value)
	return lerp(p0.Opacity, p1.Opacity, t)
}

// Grayscale returns a linear black-to-white transfer function over
// [lo, hi] with opacity ramping 0 to 1 over the same range.
func Grayscale(lo, hi float64) *TransferFunction {
	return &TransferFunction{
		Colors: []ColorPoint{
			{Value: lo, R: 0, G: 0, B: 0},
			{Value: hi, R: 1, G: 1, B: 1},
		},
		Opacities: []OpacityPoint{
			{Value: lo, Opacity: 0},
			{Value: hi, Opacity: 1},
		},
	}
}

// CoolToWarm returns the blue-white-red diverging colormap over
// [lo, hi], the default scalar colormap in most scientific viewers.
// Opacity ramps linearly from 0 at lo to 0.8 at hi.
func CoolToWarm(lo, hi float64) *TransferFunction {
	mid := (lo + hi) / 2
	return &TransferFunction{
		Colors: []ColorPoint{
			{Value: lo, R: 0.23, G: 0.30, B: 0.75},
			{Value: mid, R: 0.87, G: 0.87, B: 0.87},
			{Value: hi, R: 0.71, G: 0.02, B: 0.15},
		},
		Opacities: []OpacityPoint{
			{Value: lo, Opacity: 0},
			{Value: hi, Opacity: 0.8},
		},
	}
}
