package segmentation

import (
	"image"
	"math"

	"go.viam.com/fieldvision/rimage"
	"go.viam.com/fieldvision/spatialmath"
	"go.viam.com/fieldvision/vision/lut"
)

// CoarseScanner casts a sparse set of rays around the kinematic horizon to find where each colour
// class roughly is. Above the horizon it looks for posts with vertical rays; below it looks for
// objects on the ground with horizontal rays whose spacing shrinks as the rows get further away.
type CoarseScanner struct {
	cfg CoarseConfig
}

// NewCoarseScanner returns a scanner using cfg.
func NewCoarseScanner(cfg CoarseConfig) *CoarseScanner {
	return &CoarseScanner{cfg: cfg}
}

// FindObjects returns the start and end points of every kept run, grouped by class in ray order.
// Unclassified runs are never reported.
func (cs *CoarseScanner) FindObjects(
	img *rimage.Image,
	table *lut.LookUpTable,
	horizon spatialmath.Line,
) (map[lut.Class][]image.Point, error) {
	found := make(map[lut.Class][]image.Point)
	keep := func(segments []lut.Segment, minLength float64) {
		for _, s := range segments {
			if s.Class == lut.Unclassified || float64(s.Length()) < minLength {
				continue
			}
			found[s.Class] = append(found[s.Class], s.Start, s.End)
		}
	}

	f := img.Lens.FocalLength
	minSize := cs.cfg.MinSizePixels
	farDistance := cs.groundDistance(minSize, f)

	postSpacing := math.Max(minSize, f*cs.cfg.MinPostWidth/(2*farDistance))
	minPostLength := math.Max(minSize, f*cs.cfg.MinPostHeight/farDistance)
	for x := 0.0; x < float64(img.Width()); x += postSpacing {
		col := int(x)
		hy := horizon.Y(float64(col))
		if math.IsNaN(hy) || hy < 0 {
			continue
		}
		bottom := img.Height() - 1
		if hy < float64(bottom) {
			bottom = int(hy)
		}
		segments, err := lut.ClassifyLine(img, table, image.Pt(col, 0), image.Pt(col, bottom), 1)
		if err != nil {
			return nil, err
		}
		keep(segments, minPostLength)
	}

	centreX := img.Lens.Centre().X
	horizonCentre := horizon.Y(centreX)
	top := math.Max(horizon.Y(0), horizon.Y(float64(img.Width()-1)))
	if math.IsNaN(top) || math.IsInf(top, 0) || math.IsNaN(horizonCentre) {
		return found, nil
	}
	y := math.Max(0, math.Floor(top)+1)
	for y < float64(img.Height()) {
		groundSize := f * cs.cfg.MinGroundObjectSize / (2 * cs.groundDistance(y-horizonCentre, f))
		step := math.Max(minSize, groundSize)
		segments, err := lut.ClassifyLine(img, table, image.Pt(0, int(y)), image.Pt(img.Width()-1, int(y)), 1)
		if err != nil {
			return nil, err
		}
		keep(segments, step)
		y += step
	}
	return found, nil
}

// groundDistance is the flat ground distance seen pixelsBelowHorizon rows under the horizon.
func (cs *CoarseScanner) groundDistance(pixelsBelowHorizon, focalLength float64) float64 {
	if pixelsBelowHorizon < 1 {
		pixelsBelowHorizon = 1
	}
	return cs.cfg.CameraHeight * focalLength / pixelsBelowHorizon
}
