package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// RotX returns the right handed rotation of angle radians about the x axis.
func RotX(angle float64) *mat.Dense {
	c, s := math.Cos(angle), math.Sin(angle)
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, c, -s,
		0, s, c,
	})
}

// RotY returns the right handed rotation of angle radians about the y axis.
func RotY(angle float64) *mat.Dense {
	c, s := math.Cos(angle), math.Sin(angle)
	return mat.NewDense(3, 3, []float64{
		c, 0, s,
		0, 1, 0,
		-s, 0, c,
	})
}

// RotZ returns the right handed rotation of angle radians about the z axis.
func RotZ(angle float64) *mat.Dense {
	c, s := math.Cos(angle), math.Sin(angle)
	return mat.NewDense(3, 3, []float64{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	})
}

// Compose multiplies the rotations left to right.
func Compose(rots ...mat.Matrix) *mat.Dense {
	out := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	for _, r := range rots {
		var next mat.Dense
		next.Mul(out, r)
		out = &next
	}
	return out
}

// Homogeneous builds the 4x4 transform with rotation rot and translation t.
func Homogeneous(rot mat.Matrix, t r3.Vector) *mat.Dense {
	h := mat.NewDense(4, 4, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			h.Set(i, j, rot.At(i, j))
		}
	}
	h.Set(0, 3, t.X)
	h.Set(1, 3, t.Y)
	h.Set(2, 3, t.Z)
	h.Set(3, 3, 1)
	return h
}

// Rotation returns a copy of the top left 3x3 block of m.
func Rotation(m mat.Matrix) *mat.Dense {
	out := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.Set(i, j, m.At(i, j))
		}
	}
	return out
}

// Translation returns the translation column of a 4x4 homogeneous transform.
func Translation(m mat.Matrix) r3.Vector {
	return r3.Vector{X: m.At(0, 3), Y: m.At(1, 3), Z: m.At(2, 3)}
}

// RotateVector applies the top left 3x3 block of m to v.
func RotateVector(m mat.Matrix, v r3.Vector) r3.Vector {
	return r3.Vector{
		X: m.At(0, 0)*v.X + m.At(0, 1)*v.Y + m.At(0, 2)*v.Z,
		Y: m.At(1, 0)*v.X + m.At(1, 1)*v.Y + m.At(1, 2)*v.Z,
		Z: m.At(2, 0)*v.X + m.At(2, 1)*v.Y + m.At(2, 2)*v.Z,
	}
}
