package ransac

import (
	"math"

	"github.com/golang/geo/r3"
)

// OriginConeModel is a circular cone with its apex at the origin, fitted to direction vectors.
// Axis is a unit vector and Angle the half angle in radians.
type OriginConeModel struct {
	Axis  r3.Vector
	Angle float64
}

// NewOriginConeModel returns an unfitted cone for FitModels.
func NewOriginConeModel() *OriginConeModel {
	return &OriginConeModel{}
}

// RequiredPoints is 3.
func (m *OriginConeModel) RequiredPoints() int {
	return 3
}

// Regenerate fits the cone whose surface contains all three directions.
func (m *OriginConeModel) Regenerate(points []r3.Vector) bool {
	if len(points) != 3 {
		return false
	}
	a, b, c := points[0].Normalize(), points[1].Normalize(), points[2].Normalize()
	axis := b.Sub(a).Cross(c.Sub(a))
	if axis.Norm() < 1e-9 {
		return false
	}
	axis = axis.Normalize()
	if axis.Dot(a) < 0 {
		axis = axis.Mul(-1)
	}
	m.Axis = axis
	m.Angle = a.Angle(axis).Radians()
	return true
}

// CalculateError is the angle between p and the cone surface.
func (m *OriginConeModel) CalculateError(p r3.Vector) float64 {
	return math.Abs(p.Angle(m.Axis).Radians() - m.Angle)
}

// Refine points the axis at the mean inlier direction and sets the angle to the mean angle from it,
// unless that fits the inliers worse than the current cone.
func (m *OriginConeModel) Refine(inliers []r3.Vector, threshold float64) {
	var sum r3.Vector
	for _, p := range inliers {
		sum = sum.Add(p.Normalize())
	}
	if sum.Norm() < 1e-9 {
		return
	}
	refined := OriginConeModel{Axis: sum.Normalize()}
	for _, p := range inliers {
		refined.Angle += p.Angle(refined.Axis).Radians()
	}
	refined.Angle /= float64(len(inliers))
	if refined.totalError(inliers) <= m.totalError(inliers) {
		*m = refined
	}
}

func (m *OriginConeModel) totalError(points []r3.Vector) float64 {
	total := 0.0
	for _, p := range points {
		total += m.CalculateError(p)
	}
	return total
}
