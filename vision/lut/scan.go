package lut

import (
	"image"
	"math"

	"github.com/pkg/errors"

	"go.viam.com/fieldvision/rimage"
)

// ErrOutOfBounds is returned when a scan starts or ends outside the image. Callers clip rays with
// ClipLine first.
var ErrOutOfBounds = errors.New("scan endpoint outside image")

// Segment is a maximal run of one class along a scan. Start and End are both inside the run.
type Segment struct {
	Class     Class
	Start     image.Point
	End       image.Point
	Subsample int
}

// Length is the number of pixels in the run along its major axis.
func (s Segment) Length() int {
	dx := s.End.X - s.Start.X
	dy := s.End.Y - s.Start.Y
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	if dx > dy {
		return dx + 1
	}
	return dy + 1
}

// Midpoint is the centre pixel of the run.
func (s Segment) Midpoint() image.Point {
	return image.Pt((s.Start.X+s.End.X)/2, (s.Start.Y+s.End.Y)/2)
}

// ClassifyLine walks the pixels from start to end inclusive and returns the runs of each class.
// Only every stratification-th pixel is looked up and it stands for itself and the pixels up to
// the next sample, so the returned segments tile the line without gaps or overlap.
func ClassifyLine(img *rimage.Image, table *LookUpTable, start, end image.Point, stratification int) ([]Segment, error) {
	if stratification < 1 {
		return nil, errors.Errorf("stratification must be at least 1, got %d", stratification)
	}
	if !img.In(start.X, start.Y) || !img.In(end.X, end.Y) {
		return nil, errors.Wrapf(ErrOutOfBounds, "scan %v -> %v in %v", start, end, img.Bounds())
	}

	points := bresenham(start, end)
	segments := make([]Segment, 0, 8)
	for i := 0; i < len(points); i += stratification {
		class := table.Classify(img.YCbCr(points[i].X, points[i].Y))
		last := i + stratification - 1
		if last >= len(points) {
			last = len(points) - 1
		}

		if n := len(segments); n > 0 && segments[n-1].Class == class {
			segments[n-1].End = points[last]
			continue
		}
		segments = append(segments, Segment{
			Class:     class,
			Start:     points[i],
			End:       points[last],
			Subsample: stratification,
		})
	}
	return segments, nil
}

func bresenham(a, b image.Point) []image.Point {
	dx := b.X - a.X
	dy := b.Y - a.Y
	sx, sy := 1, 1
	if dx < 0 {
		dx, sx = -dx, -1
	}
	if dy < 0 {
		dy, sy = -dy, -1
	}
	n := dx
	if dy > n {
		n = dy
	}

	points := make([]image.Point, 0, n+1)
	x, y := a.X, a.Y
	e := dx - dy
	for {
		points = append(points, image.Pt(x, y))
		if x == b.X && y == b.Y {
			return points
		}
		e2 := 2 * e
		if e2 > -dy {
			e -= dy
			x += sx
		}
		if e2 < dx {
			e += dx
			y += sy
		}
	}
}

// ClipLine clips the segment a-b to the pixels of bounds. ok is false when no part of the segment
// lies inside.
func ClipLine(bounds image.Rectangle, a, b image.Point) (image.Point, image.Point, bool) {
	if bounds.Empty() {
		return a, b, false
	}
	x0, y0 := float64(a.X), float64(a.Y)
	dx, dy := float64(b.X-a.X), float64(b.Y-a.Y)
	tMin, tMax := 0.0, 1.0

	clip := func(p, q float64) bool {
		if p == 0 {
			return q >= 0
		}
		r := q / p
		if p < 0 {
			if r > tMax {
				return false
			}
			if r > tMin {
				tMin = r
			}
		} else {
			if r < tMin {
				return false
			}
			if r < tMax {
				tMax = r
			}
		}
		return true
	}

	minX, maxX := float64(bounds.Min.X), float64(bounds.Max.X-1)
	minY, maxY := float64(bounds.Min.Y), float64(bounds.Max.Y-1)
	if !clip(-dx, x0-minX) || !clip(dx, maxX-x0) || !clip(-dy, y0-minY) || !clip(dy, maxY-y0) {
		return a, b, false
	}

	at := func(t float64) image.Point {
		return image.Pt(int(math.Round(x0+t*dx)), int(math.Round(y0+t*dy)))
	}
	return at(tMin), at(tMax), true
}
