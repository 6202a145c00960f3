package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// ErrNoIntersection is returned when a ray is parallel to a plane or points away from it.
var ErrNoIntersection = errors.New("ray does not intersect plane")

// Plane is the set of points x with Normal·(x - Point) == 0.
type Plane struct {
	Normal r3.Vector
	Point  r3.Vector
}

// GroundPlane returns the horizontal plane at height z.
func GroundPlane(z float64) Plane {
	return Plane{Normal: r3.Vector{Z: 1}, Point: r3.Vector{Z: z}}
}

// Intersect returns origin + alpha*dir where the ray meets the plane, along with alpha.
func (p Plane) Intersect(origin, dir r3.Vector) (r3.Vector, float64, error) {
	denom := p.Normal.Dot(dir)
	if math.Abs(denom) < floatEpsilon {
		return r3.Vector{}, 0, errors.Wrap(ErrNoIntersection, "ray is parallel to plane")
	}
	alpha := p.Normal.Dot(p.Point.Sub(origin)) / denom
	if alpha <= 0 {
		return r3.Vector{}, alpha, errors.Wrapf(ErrNoIntersection, "plane is behind ray (alpha %v)", alpha)
	}
	return origin.Add(dir.Mul(alpha)), alpha, nil
}
