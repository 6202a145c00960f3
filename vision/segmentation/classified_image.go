// Package segmentation turns camera frames into classified colour segments, the visual horizon and
// the kinematic horizon that the object detectors work from.
package segmentation

import (
	"image"

	"github.com/google/uuid"

	"go.viam.com/fieldvision/rimage"
	"go.viam.com/fieldvision/rimage/transform"
	"go.viam.com/fieldvision/spatialmath"
	"go.viam.com/fieldvision/vision/lut"
)

// ClassifiedImage is everything the classifier learned about one frame. It is built once by
// Classifier.Classify and must not be modified afterwards; detectors share it by pointer.
type ClassifiedImage struct {
	FrameID  uuid.UUID
	CameraID int
	Image    *rimage.Image
	Table    *lut.LookUpTable
	Sensors  *transform.Sensors

	Horizontal *SegmentSet
	Vertical   *SegmentSet

	// VisualHorizon is the field boundary polyline, ordered by ascending x and spanning the image
	// width.
	VisualHorizon    []image.Point
	KinematicHorizon spatialmath.Line
	CoarsePoints     map[lut.Class][]image.Point
	// Balls are the clusters of ball runs that survived the fine rescan.
	Balls []image.Rectangle
}

// VisualHorizonAtPoint returns the y coordinate of the visual horizon at x, interpolating between
// polyline points and holding the end values outside them. Without a visual horizon it is the image
// bottom.
func (ci *ClassifiedImage) VisualHorizonAtPoint(x float64) float64 {
	return visualHorizonAt(ci.VisualHorizon, x, float64(ci.Image.Height()-1))
}

func visualHorizonAt(hull []image.Point, x, fallback float64) float64 {
	switch {
	case len(hull) == 0:
		return fallback
	case x <= float64(hull[0].X):
		return float64(hull[0].Y)
	case x >= float64(hull[len(hull)-1].X):
		return float64(hull[len(hull)-1].Y)
	}
	for i := 1; i < len(hull); i++ {
		a, b := hull[i-1], hull[i]
		if x > float64(b.X) {
			continue
		}
		if b.X == a.X {
			return float64(b.Y)
		}
		t := (x - float64(a.X)) / float64(b.X-a.X)
		return float64(a.Y) + t*float64(b.Y-a.Y)
	}
	return float64(hull[len(hull)-1].Y)
}

// upperHull returns the part of the convex hull of points that faces the top of the image, ordered
// by x. points must already be sorted by x.
func upperHull(points []image.Point) []image.Point {
	hull := make([]image.Point, 0, len(points))
	for _, p := range points {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull
}

func cross(o, a, b image.Point) int {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}
