// Package transform turns pixels into rays and rays into metric measurements using the lens and
// the robot pose captured with each frame.
package transform

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/fieldvision/spatialmath"
)

// ErrNumericInstability is returned when a measurement divides by a vanishing quantity, such as
// a ray parallel to its target plane.
var ErrNumericInstability = errors.New("numerically unstable measurement")

// Sensors is the robot pose valid when a frame was captured. It is never modified after
// creation and may be shared between goroutines.
type Sensors struct {
	HeadPitch    float64   `json:"head_pitch"`
	HeadYaw      float64   `json:"head_yaw"`
	BodyRoll     float64   `json:"body_roll"`
	BodyPitch    float64   `json:"body_pitch"`
	NeckPosition r3.Vector `json:"neck_position"`

	// CamToGround is the 4x4 homogeneous transform from the camera frame (x forward, y left,
	// z up) to the ground frame below the robot.
	CamToGround *mat.Dense `json:"-"`
}

// NewSensors validates camToGround and returns a snapshot holding a copy of it.
func NewSensors(camToGround mat.Matrix) (*Sensors, error) {
	if camToGround == nil {
		return nil, errors.New("camera to ground transform is required")
	}
	if r, c := camToGround.Dims(); r != 4 || c != 4 {
		return nil, errors.Errorf("camera to ground transform must be 4x4, got %dx%d", r, c)
	}
	return &Sensors{CamToGround: mat.DenseCopyOf(camToGround)}, nil
}

// NewSensorsFromPose builds a snapshot for a camera at height cameraHeight above the ground,
// turned by yaw and tilted down by pitch (both radians).
func NewSensorsFromPose(cameraHeight, pitch, yaw float64) *Sensors {
	rot := spatialmath.Compose(spatialmath.RotZ(yaw), spatialmath.RotY(pitch))
	return &Sensors{
		HeadPitch:    pitch,
		HeadYaw:      yaw,
		NeckPosition: r3.Vector{Z: cameraHeight},
		CamToGround:  spatialmath.Homogeneous(rot, r3.Vector{Z: cameraHeight}),
	}
}

// CameraRotation returns the rotation part of CamToGround.
func (s *Sensors) CameraRotation() *mat.Dense {
	return spatialmath.Rotation(s.CamToGround)
}

// CameraPosition returns the camera position in the ground frame.
func (s *Sensors) CameraPosition() r3.Vector {
	return spatialmath.Translation(s.CamToGround)
}

// CameraHeight is the z component of CameraPosition.
func (s *Sensors) CameraHeight() float64 {
	return s.CamToGround.At(2, 3)
}
