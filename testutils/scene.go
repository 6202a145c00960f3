// Package testutils builds synthetic camera frames for tests.
package testutils

import (
	"image"
	"image/color"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/fieldvision/rimage"
	"go.viam.com/fieldvision/rimage/transform"
	"go.viam.com/fieldvision/spatialmath"
	"go.viam.com/fieldvision/vision/lut"
)

// Colours painted into synthetic scenes. NewTable classifies exactly these.
var (
	FieldGreen = color.YCbCr{Y: 120, Cb: 60, Cr: 50}
	GoalWhite  = color.YCbCr{Y: 240, Cb: 128, Cr: 128}
	LineWhite  = color.YCbCr{Y: 200, Cb: 160, Cr: 160}
	BallOrange = color.YCbCr{Y: 150, Cb: 60, Cr: 200}
	Background = color.YCbCr{Y: 0, Cb: 128, Cr: 128}
)

// Scene geometry shared by tests.
const (
	Width        = 640
	Height       = 480
	FieldOfView  = 1.0
	CameraHeight = 1.2
)

// NewTable returns a lookup table that knows the scene colours.
func NewTable() *lut.LookUpTable {
	table := lut.NewLookUpTable()
	table.Set(FieldGreen.Y, FieldGreen.Cb, FieldGreen.Cr, lut.Field)
	table.Set(GoalWhite.Y, GoalWhite.Cb, GoalWhite.Cr, lut.Goal)
	table.Set(LineWhite.Y, LineWhite.Cb, LineWhite.Cr, lut.Line)
	table.Set(BallOrange.Y, BallOrange.Cb, BallOrange.Cr, lut.Ball)
	return table
}

// NewLens returns the scene lens.
func NewLens(tb testing.TB) rimage.Lens {
	tb.Helper()
	lens, err := rimage.NewLensFromFOV(Width, Height, FieldOfView)
	test.That(tb, err, test.ShouldBeNil)
	return lens
}

// Scene is a frame plus everything needed to classify it.
type Scene struct {
	Image   *rimage.Image
	Table   *lut.LookUpTable
	Sensors *transform.Sensors
}

// NewScene paints field below row fieldTop and a goal coloured rectangle for each of goals on a
// background the table does not classify. The camera is CameraHeight above the ground, pitched
// down by pitch radians.
func NewScene(tb testing.TB, pitch float64, fieldTop int, goals ...image.Rectangle) Scene {
	tb.Helper()
	img := rimage.NewImage(Width, Height, NewLens(tb))
	img.Fill(image.Rect(0, fieldTop, Width, Height), FieldGreen)
	for _, g := range goals {
		img.Fill(g, GoalWhite)
	}
	return Scene{
		Image:   img,
		Table:   NewTable(),
		Sensors: transform.NewSensorsFromPose(CameraHeight, pitch, 0),
	}
}

// NewGoalScene is a camera looking steeply down at the field, so the horizon is above the image,
// with a single goal post in the middle of the frame.
func NewGoalScene(tb testing.TB) Scene {
	tb.Helper()
	return NewScene(tb, 0.52, 200, image.Rect(300, 100, 340, 300))
}

// ProjectToPixel returns the image position of a ground frame point.
func ProjectToPixel(sensors *transform.Sensors, lens rimage.Lens, world r3.Vector) r2.Point {
	var groundToCam mat.Dense
	groundToCam.CloneFrom(sensors.CameraRotation().T())
	cam := spatialmath.RotateVector(&groundToCam, world.Sub(sensors.CameraPosition()))
	screen := r2.Point{X: lens.FocalLength * cam.Y / cam.X, Y: lens.FocalLength * cam.Z / cam.X}
	return lens.ScreenToImage(screen)
}
