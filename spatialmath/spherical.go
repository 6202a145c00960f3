// Package spatialmath contains the 2D and 3D geometry shared by the vision pipeline: signed image
// lines, quads, planes, rotations and spherical coordinates.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
)

const floatEpsilon = 1e-9

// CartesianToSpherical converts a robot frame point (x forward, y left, z up) into
// (distance, bearing, elevation). Bearing is atan2(y, x) and elevation is asin(z/distance).
func CartesianToSpherical(v r3.Vector) r3.Vector {
	dist := v.Norm()
	if dist < floatEpsilon {
		return r3.Vector{}
	}
	return r3.Vector{
		X: dist,
		Y: math.Atan2(v.Y, v.X),
		Z: math.Asin(v.Z / dist),
	}
}

// SphericalToCartesian is the inverse of CartesianToSpherical.
func SphericalToCartesian(s r3.Vector) r3.Vector {
	dist, bearing, elevation := s.X, s.Y, s.Z
	cosElevation := math.Cos(elevation)
	return r3.Vector{
		X: dist * cosElevation * math.Cos(bearing),
		Y: dist * cosElevation * math.Sin(bearing),
		Z: dist * math.Sin(elevation),
	}
}
