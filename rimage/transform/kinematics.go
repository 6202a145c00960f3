package transform

import (
	"math"
	"sync"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/fieldvision/rimage"
	"go.viam.com/fieldvision/spatialmath"
)

// Calibration holds the fixed offsets between the head joints and the camera.
type Calibration struct {
	// CameraAngleOffset is (roll, pitch, yaw) of the camera relative to the head.
	CameraAngleOffset r3.Vector `json:"camera_angle_offset"`
	// CameraPositionOffset is the camera position relative to the neck in the head frame.
	CameraPositionOffset r3.Vector `json:"camera_position_offset"`
	// BodyAngleOffset is (roll, pitch) added to the measured body orientation.
	BodyAngleOffset r2.Point `json:"body_angle_offset"`
}

// CameraKinematics caches the camera pose derived from a calibration and the latest joint
// readings. Every write recomputes the cache so reads are cheap.
type CameraKinematics struct {
	mu          sync.RWMutex
	calibration Calibration

	headPitch, headYaw  float64
	bodyRoll, bodyPitch float64
	neckPosition        r3.Vector
	camVector           r3.Vector
	camV2RobotRotation  *mat.Dense
}

// NewCameraKinematics returns kinematics for a robot standing still with the given calibration.
func NewCameraKinematics(calibration Calibration) *CameraKinematics {
	ck := &CameraKinematics{calibration: calibration}
	ck.precalculate()
	return ck
}

// SetCalibration replaces the calibration.
func (ck *CameraKinematics) SetCalibration(calibration Calibration) {
	ck.mu.Lock()
	defer ck.mu.Unlock()
	ck.calibration = calibration
	ck.precalculate()
}

// Calibration returns the current calibration.
func (ck *CameraKinematics) Calibration() Calibration {
	ck.mu.RLock()
	defer ck.mu.RUnlock()
	return ck.calibration
}

// SetSensors records new joint and body readings.
func (ck *CameraKinematics) SetSensors(headPitch, headYaw, bodyRoll, bodyPitch float64, neckPosition r3.Vector) {
	ck.mu.Lock()
	defer ck.mu.Unlock()
	ck.headPitch = headPitch
	ck.headYaw = headYaw
	ck.bodyRoll = bodyRoll
	ck.bodyPitch = bodyPitch
	ck.neckPosition = neckPosition
	ck.precalculate()
}

// must hold mu.
func (ck *CameraKinematics) precalculate() {
	camAngle := ck.calibration.CameraAngleOffset
	bodyRoll := ck.calibration.BodyAngleOffset.X + ck.bodyRoll
	bodyPitch := ck.calibration.BodyAngleOffset.Y + ck.bodyPitch

	headV2Robot := spatialmath.Compose(
		spatialmath.RotX(bodyRoll),
		spatialmath.RotY(bodyPitch),
		spatialmath.RotZ(ck.headYaw),
		spatialmath.RotY(ck.headPitch),
	)
	ck.camVector = spatialmath.RotateVector(headV2Robot, ck.calibration.CameraPositionOffset).Add(ck.neckPosition)
	ck.camV2RobotRotation = spatialmath.Compose(
		headV2Robot,
		spatialmath.RotY(camAngle.Y),
		spatialmath.RotX(camAngle.X),
		spatialmath.RotZ(camAngle.Z),
	)
}

// Sensors returns an immutable snapshot of the current pose.
func (ck *CameraKinematics) Sensors() *Sensors {
	ck.mu.RLock()
	defer ck.mu.RUnlock()
	return &Sensors{
		HeadPitch:    ck.headPitch,
		HeadYaw:      ck.headYaw,
		BodyRoll:     ck.bodyRoll,
		BodyPitch:    ck.bodyPitch,
		NeckPosition: ck.neckPosition,
		CamToGround:  spatialmath.Homogeneous(ck.camV2RobotRotation, ck.camVector),
	}
}

// CameraVector is the camera position in the robot frame.
func (ck *CameraKinematics) CameraVector() r3.Vector {
	ck.mu.RLock()
	defer ck.mu.RUnlock()
	return ck.camVector
}

// DistanceToPoint returns (distance, bearing, elevation) from the camera to the point seen at
// pixel that lies knownHeight above the ground. The result is NaN when the ray never reaches
// that height.
func (ck *CameraKinematics) DistanceToPoint(lens rimage.Lens, pixel r2.Point, knownHeight float64) r3.Vector {
	ck.mu.RLock()
	defer ck.mu.RUnlock()

	screen := lens.ImageToScreen(pixel)
	dir := spatialmath.RotateVector(ck.camV2RobotRotation, r3.Vector{X: lens.FocalLength, Y: screen.X, Z: screen.Y})
	if math.Abs(dir.Z) < epsilon {
		return r3.Vector{X: math.NaN(), Y: math.NaN(), Z: math.NaN()}
	}
	dz := knownHeight - ck.camVector.Z
	alpha := dz / dir.Z
	if alpha <= 0 {
		return r3.Vector{X: math.NaN(), Y: math.NaN(), Z: math.NaN()}
	}
	fieldPoint := dir.Mul(alpha).Add(ck.camVector)

	dist := r3.Vector{X: fieldPoint.X, Y: fieldPoint.Y, Z: dz}.Norm()
	return r3.Vector{
		X: dist,
		Y: math.Atan2(fieldPoint.Y, fieldPoint.X),
		Z: math.Asin(dz / dist),
	}
}
