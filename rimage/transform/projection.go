package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/fieldvision/rimage"
	"go.viam.com/fieldvision/spatialmath"
)

const epsilon = 1e-9

// ScreenToRay returns the unit camera frame ray through a screen point.
func ScreenToRay(screen r2.Point, focalLength float64) r3.Vector {
	return r3.Vector{X: focalLength, Y: screen.X, Z: screen.Y}.Normalize()
}

// PixelToRay returns the unit camera frame ray through an image pixel.
func PixelToRay(lens rimage.Lens, pixel r2.Point) r3.Vector {
	return ScreenToRay(lens.ImageToScreen(pixel), lens.FocalLength)
}

// BulkPixelToRay converts many pixels at once. Row i of the result is the ray of pixels[i].
func BulkPixelToRay(lens rimage.Lens, pixels []r2.Point) *mat.Dense {
	rays := mat.NewDense(len(pixels), 3, nil)
	for i, p := range pixels {
		ray := PixelToRay(lens, p)
		rays.SetRow(i, []float64{ray.X, ray.Y, ray.Z})
	}
	return rays
}

// ProjectCamToPlane intersects a camera frame ray with a ground frame plane.
func ProjectCamToPlane(ray r3.Vector, camToGround mat.Matrix, plane spatialmath.Plane) (r3.Vector, error) {
	dir := spatialmath.RotateVector(camToGround, ray)
	point, _, err := plane.Intersect(spatialmath.Translation(camToGround), dir)
	if err != nil {
		return r3.Vector{}, errors.Wrap(ErrNumericInstability, err.Error())
	}
	return point, nil
}

// WidthBasedDistanceToCircle returns the distance from the camera to the centre of a circle of
// the given radius whose silhouette edges are seen at screen points s1 and s2.
func WidthBasedDistanceToCircle(radius float64, s1, s2 r2.Point, focalLength float64) (float64, error) {
	rayA := ScreenToRay(s1, focalLength)
	rayB := ScreenToRay(s2, focalLength)
	halfAngle := rayA.Angle(rayB).Radians() / 2
	sinHalf := math.Sin(halfAngle)
	if sinHalf < epsilon {
		return 0, errors.Wrap(ErrNumericInstability, "edges subtend no angle")
	}
	return radius / sinHalf, nil
}

// DistanceToVerticalObject returns the distance from the camera to the base of an upright object
// of height objectHeight whose top and base are seen at screen points top and base. The camera
// sits at cameraHeight above the object's base.
//
// With x the horizontal distance and theta the angle the object subtends,
// tan(theta) = h*x / (x^2 - (h-c)*c), whose positive root is solved for x.
func DistanceToVerticalObject(top, base r2.Point, objectHeight, cameraHeight, focalLength float64) (float64, error) {
	theta := ScreenToRay(top, focalLength).Angle(ScreenToRay(base, focalLength)).Radians()
	tanTheta := math.Tan(theta)
	if tanTheta <= epsilon || math.IsInf(tanTheta, 0) {
		return 0, errors.Wrapf(ErrNumericInstability, "object subtends angle %v", theta)
	}
	h, c := objectHeight, cameraHeight
	discriminant := h*h + 4*tanTheta*tanTheta*(h-c)*c
	if discriminant < 0 {
		return 0, errors.Wrap(ErrNumericInstability, "no real distance for subtended angle")
	}
	x := (h + math.Sqrt(discriminant)) / (2 * tanTheta)
	return math.Hypot(x, c), nil
}

// KinematicHorizon returns the image line whose rays are parallel to the ground. Pixels p with
// horizon.DistanceToPoint(p) < 0 look above the horizon.
func KinematicHorizon(sensors *Sensors, lens rimage.Lens) spatialmath.Line {
	rot := sensors.CameraRotation()
	r20, r21, r22 := rot.At(2, 0), rot.At(2, 1), rot.At(2, 2)
	c := lens.Centre()

	// A ray (f, cx-x, cy-y) is level when r20*f + r21*(cx-x) + r22*(cy-y) == 0.
	k := math.Hypot(r21, r22)
	if k < epsilon {
		// Camera looks straight up or down; put the horizon far outside the image.
		return spatialmath.Line{Normal: r2.Point{Y: 1}, Distance: -math.MaxFloat32}
	}
	return spatialmath.Line{
		Normal:   r2.Point{X: r21 / k, Y: r22 / k},
		Distance: (r20*lens.FocalLength + r21*c.X + r22*c.Y) / k,
	}
}

// CorrectDistortion removes first order radial distortion 1+k*r^2 from an image point, scaled so
// that the centres of the image edges stay fixed.
func CorrectDistortion(lens rimage.Lens, coefficient float64, p r2.Point) r2.Point {
	half := r2.Point{X: float64(lens.Width) / 2, Y: float64(lens.Height) / 2}
	rel := p.Sub(half)
	factor := 1 + coefficient*rel.Dot(rel)
	corrected := rel.Mul(factor)
	corrected.X /= 1 + coefficient*half.X*half.X
	corrected.Y /= 1 + coefficient*half.Y*half.Y
	return corrected.Add(half)
}
