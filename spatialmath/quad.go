package spatialmath

import (
	"math"

	"github.com/golang/geo/r2"
)

// Quad is a four cornered polygon in image coordinates (y grows downwards).
type Quad struct {
	BottomLeft  r2.Point
	TopLeft     r2.Point
	TopRight    r2.Point
	BottomRight r2.Point
}

// NewQuad returns the quad with the given corners.
func NewQuad(bottomLeft, topLeft, topRight, bottomRight r2.Point) Quad {
	return Quad{BottomLeft: bottomLeft, TopLeft: topLeft, TopRight: topRight, BottomRight: bottomRight}
}

// Corners returns bl, tl, tr, br.
func (q Quad) Corners() []r2.Point {
	return []r2.Point{q.BottomLeft, q.TopLeft, q.TopRight, q.BottomRight}
}

// Centre is the mean of the corners.
func (q Quad) Centre() r2.Point {
	return q.BottomLeft.Add(q.TopLeft).Add(q.TopRight).Add(q.BottomRight).Mul(0.25)
}

// AverageWidth is the mean length of the top and bottom edges.
func (q Quad) AverageWidth() float64 {
	return (q.TopRight.Sub(q.TopLeft).Norm() + q.BottomRight.Sub(q.BottomLeft).Norm()) / 2
}

// AverageHeight is the mean length of the left and right edges.
func (q Quad) AverageHeight() float64 {
	return (q.BottomLeft.Sub(q.TopLeft).Norm() + q.BottomRight.Sub(q.TopRight).Norm()) / 2
}

// AspectRatio is AverageHeight / AverageWidth.
func (q Quad) AspectRatio() float64 {
	return q.AverageHeight() / q.AverageWidth()
}

// TopCentre is the midpoint of the top edge.
func (q Quad) TopCentre() r2.Point {
	return q.TopLeft.Add(q.TopRight).Mul(0.5)
}

// BottomCentre is the midpoint of the bottom edge.
func (q Quad) BottomCentre() r2.Point {
	return q.BottomLeft.Add(q.BottomRight).Mul(0.5)
}

// HorizontalExtent returns the smallest and largest x of the quad.
func (q Quad) HorizontalExtent() (float64, float64) {
	return math.Min(q.TopLeft.X, q.BottomLeft.X), math.Max(q.TopRight.X, q.BottomRight.X)
}

// OverlapsHorizontally reports whether the horizontal extents of the quads share an open
// interval.
func (q Quad) OverlapsHorizontally(other Quad) bool {
	minA, maxA := q.HorizontalExtent()
	minB, maxB := other.HorizontalExtent()
	return minA < maxB && minB < maxA
}

// BoundingUnion widens q by other corner by corner: the left corners take the smaller x, the
// right corners the larger x, the top corners the smaller y and the bottom corners the larger y.
func (q Quad) BoundingUnion(other Quad) Quad {
	return Quad{
		BottomLeft:  r2.Point{X: math.Min(q.BottomLeft.X, other.BottomLeft.X), Y: math.Max(q.BottomLeft.Y, other.BottomLeft.Y)},
		TopLeft:     r2.Point{X: math.Min(q.TopLeft.X, other.TopLeft.X), Y: math.Min(q.TopLeft.Y, other.TopLeft.Y)},
		TopRight:    r2.Point{X: math.Max(q.TopRight.X, other.TopRight.X), Y: math.Min(q.TopRight.Y, other.TopRight.Y)},
		BottomRight: r2.Point{X: math.Max(q.BottomRight.X, other.BottomRight.X), Y: math.Max(q.BottomRight.Y, other.BottomRight.Y)},
	}
}
