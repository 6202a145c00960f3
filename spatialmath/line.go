package spatialmath

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrDegenerateLine is returned when points do not determine a line.
var ErrDegenerateLine = errors.New("points do not determine a line")

// Line is a signed line in image space: the points p with Normal·p == Distance. Normal is a unit
// vector.
type Line struct {
	Normal   r2.Point
	Distance float64
}

// NewLine returns the line n·p == d with n rescaled to unit length.
func NewLine(normal r2.Point, distance float64) Line {
	norm := normal.Norm()
	if norm < floatEpsilon {
		return Line{Normal: normal, Distance: distance}
	}
	return Line{Normal: normal.Mul(1 / norm), Distance: distance / norm}
}

// LineFromPoints returns the line through a and b. Its normal is the direction a->b given a
// quarter turn with r2.Point.Ortho.
func LineFromPoints(a, b r2.Point) (Line, error) {
	dir := b.Sub(a)
	norm := dir.Norm()
	if norm < floatEpsilon {
		return Line{}, ErrDegenerateLine
	}
	normal := r2.Point{X: -dir.Y, Y: dir.X}.Mul(1 / norm)
	return Line{Normal: normal, Distance: normal.Dot(a)}, nil
}

// FitLine returns the total least squares line through points. The normal is the eigenvector of
// the smallest eigenvalue of the point covariance, oriented so that its x component is
// non-negative.
func FitLine(points []r2.Point) (Line, error) {
	if len(points) < 2 {
		return Line{}, errors.Wrapf(ErrDegenerateLine, "need at least 2 points, got %d", len(points))
	}

	data := mat.NewDense(len(points), 2, nil)
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		data.Set(i, 0, p.X)
		data.Set(i, 1, p.Y)
		xs[i] = p.X
		ys[i] = p.Y
	}
	centroid := r2.Point{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil)}

	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, data, nil)

	var eig mat.EigenSym
	if ok := eig.Factorize(&cov, true); !ok {
		return Line{}, errors.Wrap(ErrDegenerateLine, "eigen decomposition failed")
	}
	values := eig.Values(nil)
	if values[1] < floatEpsilon {
		return Line{}, errors.Wrap(ErrDegenerateLine, "points are coincident")
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	normal := r2.Point{X: vecs.At(0, 0), Y: vecs.At(1, 0)}
	normal = normal.Mul(1 / normal.Norm())
	if normal.X < -floatEpsilon || (math.Abs(normal.X) <= floatEpsilon && normal.Y < 0) {
		normal = normal.Mul(-1)
	}
	return Line{Normal: normal, Distance: normal.Dot(centroid)}, nil
}

// DistanceToPoint is the signed perpendicular distance from the line to p.
func (l Line) DistanceToPoint(p r2.Point) float64 {
	return l.Normal.Dot(p) - l.Distance
}

// Tangent is the unit direction along the line.
func (l Line) Tangent() r2.Point {
	return l.Normal.Ortho()
}

// TangentialDistanceToPoint is the coordinate of p's projection along Tangent.
func (l Line) TangentialDistanceToPoint(p r2.Point) float64 {
	return l.Tangent().Dot(p)
}

// PointFromTangentialDistance returns the point on the line at tangential coordinate t.
func (l Line) PointFromTangentialDistance(t float64) r2.Point {
	return l.Normal.Mul(l.Distance).Add(l.Tangent().Mul(t))
}

// Project returns the closest point on the line to p.
func (l Line) Project(p r2.Point) r2.Point {
	return p.Sub(l.Normal.Mul(l.DistanceToPoint(p)))
}

// Y returns the y coordinate of the line at x. The result is infinite for vertical lines.
func (l Line) Y(x float64) float64 {
	return (l.Distance - l.Normal.X*x) / l.Normal.Y
}

// X returns the x coordinate of the line at y. The result is infinite for horizontal lines.
func (l Line) X(y float64) float64 {
	return (l.Distance - l.Normal.Y*y) / l.Normal.X
}

// IsHorizontal reports whether the line is closer to horizontal than vertical.
func (l Line) IsHorizontal() bool {
	return math.Abs(l.Normal.Y) >= math.Abs(l.Normal.X)
}

// Intersect returns the intersection of two lines. ok is false for parallel lines.
func (l Line) Intersect(other Line) (p r2.Point, ok bool) {
	det := l.Normal.X*other.Normal.Y - l.Normal.Y*other.Normal.X
	if math.Abs(det) < floatEpsilon {
		return r2.Point{}, false
	}
	return r2.Point{
		X: (l.Distance*other.Normal.Y - l.Normal.Y*other.Distance) / det,
		Y: (l.Normal.X*other.Distance - l.Distance*other.Normal.X) / det,
	}, true
}
