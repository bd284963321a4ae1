package render

import "math"

// Camera is an orbital perspective camera. Interaction ops (azimuth,
// elevation, dolly, pan) orbit the position around the focal point, the
// way scientific viewers move.
type Camera struct {
	Position   Vec3    `json:"position"`
	FocalPoint Vec3    `json:"focal_point"`
	ViewUp     Vec3    `json:"view_up"`
	FOV        float64 `json:"fov"` // vertical field of view, degrees
}

// NewCamera returns a camera on the +Z axis looking at the origin.
func NewCamera() Camera {
	return Camera{
		Position:   Vec3{0, 0, 5},
		FocalPoint: Vec3{},
		ViewUp:     Vec3{0, 1, 0},
		FOV:        30,
	}
}

// Basis returns the orthonormal view basis: forward (toward the focal
// point), right, and true up.
func (c Camera) Basis() (fwd, right, up Vec3) {
	fwd = c.FocalPoint.Sub(c.Position).Normalize()
	right = fwd.Cross(c.ViewUp).Normalize()
	up = right.Cross(fwd)
	return fwd, right, up
}

// Ray is a half-line from the camera through a pixel.
type Ray struct {
	Origin Vec3
	Dir    Vec3
}

// Ray returns the world-space ray through the center of pixel (px, py)
// on a w×h viewport. Pixel (0,0) is top-left.
func (c Camera) Ray(px, py, w, h int) Ray {
	fwd, right, up := c.Basis()

	halfH := math.Tan(c.FOV * math.Pi / 360)
	halfW := halfH * float64(w) / float64(h)

	// NDC in [-1, 1], y flipped so +y is screen-up.
	u := (2*(float64(px)+0.5)/float64(w) - 1) * halfW
	v := (1 - 2*(float64(py)+0.5)/float64(h)) * halfH

	dir := fwd.Add(right.Scale(u)).Add(up.Scale(v)).Normalize()
	return Ray{Origin: c.Position, Dir: dir}
}

// Azimuth orbits the camera around the view-up axis through the focal
// point by deg degrees.
func (c *Camera) Azimuth(deg float64) {
	axis := c.ViewUp.Normalize()
	offset := c.Position.Sub(c.FocalPoint)
	c.Position = c.FocalPoint.Add(offset.rotateAround(axis, deg*math.Pi/180))
}

// Elevation orbits the camera around the view-right axis by deg degrees,
// rotating the view-up vector with it so the basis stays orthonormal.
func (c *Camera) Elevation(deg float64) {
	fwd := c.FocalPoint.Sub(c.Position).Normalize()
	right := fwd.Cross(c.ViewUp).Normalize()

	angle := deg * math.Pi / 180
	offset := c.Position.Sub(c.FocalPoint)
	c.Position = c.FocalPoint.Add(offset.rotateAround(right, angle))
	c.ViewUp = c.ViewUp.rotateAround(right, angle).Normalize()
}

// Dolly moves the camera toward (factor > 1) or away from (factor < 1)
// the focal point, scaling the distance by 1/factor.
func (c *Camera) Dolly(factor float64) {
	if factor <= 0 {
		return
	}
	offset := c.Position.Sub(c.FocalPoint)
	c.Position = c.FocalPoint.Add(offset.Scale(1 / factor))
}

// Pan translates both the camera and the focal point in the view plane
// by (dx, dy) world units.
func (c *Camera) Pan(dx, dy float64) {
	_, right, up := c.Basis()
	shift := right.Scale(dx).Add(up.Scale(dy))
	c.Position = c.Position.Add(shift)
	c.FocalPoint = c.FocalPoint.Add(shift)
}

// Reset frames the world-space bounding box [lo, hi]: the focal point
// moves to the box center and the camera backs off along +Z far enough
// for the bounding sphere to fit the field of view.
func (c *Camera) Reset(lo, hi Vec3) {
	center := lo.Add(hi).Scale(0.5)
	radius := hi.Sub(lo).Len() / 2
	if radius == 0 {
		radius = 1
	}

	dist := radius / math.Tan(c.FOV*math.Pi/360)
	c.FocalPoint = center
	c.Position = center.Add(Vec3{0, 0, dist + radius})
	c.ViewUp = Vec3{0, 1, 0}
}
