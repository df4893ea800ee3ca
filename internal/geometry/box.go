// Package geometry implements the bounding-box primitives shared by the
// tracker, prioritizer, and plate proposer.
package geometry

import "math"

// Point2D is a plain 2D point, used for ROI polygon vertices.
type Point2D struct {
	X, Y float64
}

// Box is an axis-aligned bounding box in frame pixel coordinates.
// X1 <= X2 and Y1 <= Y2.
type Box struct {
	X1, Y1, X2, Y2 float64
}

// NewBox builds a box from two opposite corners, normalizing the corner
// order so the invariant X1<=X2, Y1<=Y2 always holds.
func NewBox(x1, y1, x2, y2 float64) Box {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return Box{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// FromCenter builds a box from its center point and dimensions, the
// inverse of Center/Width/Height.
func FromCenter(cx, cy, w, h float64) Box {
	return Box{
		X1: cx - w/2,
		Y1: cy - h/2,
		X2: cx + w/2,
		Y2: cy + h/2,
	}
}

// Width returns the box width.
func (b Box) Width() float64 {
	return b.X2 - b.X1
}

// Height returns the box height.
func (b Box) Height() float64 {
	return b.Y2 - b.Y1
}

// Area returns the box area.
func (b Box) Area() float64 {
	return b.Width() * b.Height()
}

// Center returns the box's center point.
func (b Box) Center() (cx, cy float64) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// Shift translates the box by (dx, dy), preserving its dimensions.
func (b Box) Shift(dx, dy float64) Box {
	return Box{b.X1 + dx, b.Y1 + dy, b.X2 + dx, b.Y2 + dy}
}

// IoU returns the intersection-over-union of two boxes: zero when they
// do not overlap or either has zero area.
func (b Box) IoU(other Box) float64 {
	ix1 := math.Max(b.X1, other.X1)
	iy1 := math.Max(b.Y1, other.Y1)
	ix2 := math.Min(b.X2, other.X2)
	iy2 := math.Min(b.Y2, other.Y2)

	if ix2 <= ix1 || iy2 <= iy1 {
		return 0
	}
	intersection := (ix2 - ix1) * (iy2 - iy1)

	a1, a2 := b.Area(), other.Area()
	if a1 <= 0 || a2 <= 0 {
		return 0
	}

	union := a1 + a2 - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

// Distance returns the Euclidean distance between the two boxes' centers.
func (b Box) Distance(other Box) float64 {
	acx, acy := b.Center()
	bcx, bcy := other.Center()
	return math.Hypot(acx-bcx, acy-bcy)
}

// Contains reports whether the point (x, y) lies within the box.
func (b Box) Contains(x, y float64) bool {
	return x >= b.X1 && x <= b.X2 && y >= b.Y1 && y <= b.Y2
}
