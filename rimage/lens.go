package rimage

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/fieldvision/utils"
)

// Lens is a pinhole camera model. Screen coordinates put the origin at the optical centre with x
// growing to the left and y growing upwards, matching the robot frame's y (left) and z (up) axes.
type Lens struct {
	Width       int     `json:"width_px"`
	Height      int     `json:"height_px"`
	FocalLength float64 `json:"focal_length_px"`
}

// NewLensFromFOV builds a lens whose horizontal field of view is fovX radians.
func NewLensFromFOV(width, height int, fovX float64) (Lens, error) {
	if fovX <= 0 || fovX >= math.Pi {
		return Lens{}, utils.NewOutOfRangeError("horizontal field of view", fovX, 0, math.Pi)
	}
	lens := Lens{
		Width:       width,
		Height:      height,
		FocalLength: (float64(width) / 2) / math.Tan(fovX/2),
	}
	return lens, lens.CheckValid()
}

// CheckValid checks that the lens describes a usable camera.
func (l Lens) CheckValid() error {
	if l.Width <= 0 || l.Height <= 0 {
		return errors.Errorf("invalid size (%#v, %#v)", l.Width, l.Height)
	}
	if l.FocalLength <= 0 || math.IsNaN(l.FocalLength) || math.IsInf(l.FocalLength, 0) {
		return errors.Errorf("invalid focal length %v", l.FocalLength)
	}
	return nil
}

// Centre is the optical centre in image coordinates.
func (l Lens) Centre() r2.Point {
	return r2.Point{X: float64(l.Width-1) / 2, Y: float64(l.Height-1) / 2}
}

// ImageToScreen converts image coordinates (origin top left, y down) to screen coordinates.
func (l Lens) ImageToScreen(p r2.Point) r2.Point {
	c := l.Centre()
	return r2.Point{X: c.X - p.X, Y: c.Y - p.Y}
}

// ScreenToImage is the inverse of ImageToScreen.
func (l Lens) ScreenToImage(p r2.Point) r2.Point {
	c := l.Centre()
	return r2.Point{X: c.X - p.X, Y: c.Y - p.Y}
}

// FieldOfView returns the horizontal and vertical field of view in radians.
func (l Lens) FieldOfView() r2.Point {
	return r2.Point{
		X: 2 * math.Atan2(float64(l.Width)/2, l.FocalLength),
		Y: 2 * math.Atan2(float64(l.Height)/2, l.FocalLength),
	}
}
