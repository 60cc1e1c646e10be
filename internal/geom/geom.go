// Package geom provides the numeric helpers shared by viewport math and
// selection: rounding, clamping, interval mapping, and axis-aligned rects.
package geom

import "math"

// Round rounds half away from zero to the nearest whole number. Board
// points always land on whole pixels so replicated geometry is identical
// on every window.
func Round(v float64) float64 {
	return math.Round(v)
}

// Round2 rounds to two decimal places. Camera scale is stored this way.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Linear returns the linear map taking [dx1, dx2] onto [rx1, rx2].
// Inputs outside the domain extrapolate; callers clamp afterwards when
// they need a bounded result.
func Linear(dx1, dx2, rx1, rx2 float64) func(float64) float64 {
	return func(v float64) float64 {
		return rx1 + (v-dx1)*(rx2-rx1)/(dx2-dx1)
	}
}

// Rect is an axis-aligned rectangle with MinX <= MaxX and MinY <= MaxY.
type Rect struct {
	MinX, MinY, MaxX, MaxY float64
}

// NewRect builds a normalized rect from two corner points in any order.
func NewRect(ax, ay, bx, by float64) Rect {
	return Rect{
		MinX: math.Min(ax, bx),
		MinY: math.Min(ay, by),
		MaxX: math.Max(ax, bx),
		MaxY: math.Max(ay, by),
	}
}

// Contains reports whether the point lies within the rect, bounds included.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.MinX && x <= r.MaxX && y >= r.MinY && y <= r.MaxY
}

// Width returns the horizontal extent.
func (r Rect) Width() float64 {
	return r.MaxX - r.MinX
}

// Height returns the vertical extent.
func (r Rect) Height() float64 {
	return r.MaxY - r.MinY
}

// Center returns the midpoint.
func (r Rect) Center() (x, y float64) {
	return (r.MinX + r.MaxX) / 2, (r.MinY + r.MaxY) / 2
}

// BoundingBox returns the normalized rect enclosing a set of points given
// as a flat [x1 y1 x2 y2 ...] vector. A trailing odd coordinate is ignored.
// Returns the zero rect and false when no complete point exists.
func BoundingBox(flat []float64) (Rect, bool) {
	if len(flat) < 2 {
		return Rect{}, false
	}
	r := Rect{MinX: flat[0], MinY: flat[1], MaxX: flat[0], MaxY: flat[1]}
	for i := 2; i+1 < len(flat); i += 2 {
		r.MinX = math.Min(r.MinX, flat[i])
		r.MinY = math.Min(r.MinY, flat[i+1])
		r.MaxX = math.Max(r.MaxX, flat[i])
		r.MaxY = math.Max(r.MaxY, flat[i+1])
	}
	return r, true
}
