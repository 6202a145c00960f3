package objectdetection

import (
	"math"

	"github.com/golang/geo/r2"
)

// Postprocessor defines a function that filters/modifies an incoming slice of goals.
type Postprocessor func([]*Goal) []*Goal

// filter keeps the goals for which keep is true.
func filter(keep func(*Goal) bool) Postprocessor {
	return func(in []*Goal) []*Goal {
		out := make([]*Goal, 0, len(in))
		for _, g := range in {
			if keep(g) {
				out = append(out, g)
			}
		}
		return out
	}
}

// NewAspectRatioFilter returns a function that filters out goals whose height/width lies outside
// [minimum, maximum]. Both bounds are accepted.
func NewAspectRatioFilter(minimum, maximum float64) Postprocessor {
	return filter(func(g *Goal) bool {
		ratio := g.Quad.AspectRatio()
		return ratio >= minimum && ratio <= maximum
	})
}

// NewHorizonFilter returns a function that filters out goals that do not reach down to the field
// or whose top is below the kinematic horizon. A bottom corner must be within buffer pixels below
// the visual horizon; each top corner must be above the kinematic horizon unless that is above the
// image.
func NewHorizonFilter(buffer float64) Postprocessor {
	return filter(func(g *Goal) bool {
		ci := g.ClassifiedImage
		q := g.Quad
		grounded := ci.VisualHorizonAtPoint(q.BottomLeft.X) < q.BottomLeft.Y+buffer ||
			ci.VisualHorizonAtPoint(q.BottomRight.X) < q.BottomRight.Y+buffer
		below := func(p r2.Point) bool {
			y := ci.KinematicHorizon.Y(p.X)
			return y > p.Y || y < 0
		}
		return grounded && below(q.TopLeft) && below(q.TopRight)
	})
}

// NewOrientationFilter returns a function that filters out goals whose sides are not upright and
// parallel. Each side must make at least minHorizonAngle with the kinematic horizon and the sides
// may differ by at most maxBetween. A positive maxPerspective also rejects sides converging
// upwards by more than maxPerspective; zero leaves that unchecked.
func NewOrientationFilter(minHorizonAngle, maxBetween, maxPerspective float64) Postprocessor {
	minHorizonCos := math.Cos(minHorizonAngle - math.Pi/2)
	maxBetweenCos := math.Cos(maxBetween)
	maxPerspectiveSin := math.Sin(-maxPerspective)
	return filter(func(g *Goal) bool {
		q := g.Quad
		lhs := q.TopLeft.Sub(q.BottomLeft).Normalize()
		rhs := q.TopRight.Sub(q.BottomRight).Normalize()
		normal := g.ClassifiedImage.KinematicHorizon.Normal
		return math.Abs(lhs.Dot(normal)) > minHorizonCos &&
			math.Abs(rhs.Dot(normal)) > minHorizonCos &&
			math.Abs(lhs.Dot(rhs)) > maxBetweenCos &&
			(maxPerspective <= 0 || lhs.Cross(rhs) > maxPerspectiveSin)
	})
}

// NewMergeFilter returns a function that merges goals whose quads overlap horizontally into the
// corner-wise union of their quads. Overlaps are judged on the quads as they were before merging,
// so a goal that only overlaps the result of an earlier merge stays separate.
func NewMergeFilter() Postprocessor {
	return func(in []*Goal) []*Goal {
		out := make([]*Goal, 0, len(in))
		merged := make([]bool, len(in))
		for i, a := range in {
			if merged[i] {
				continue
			}
			union := a.Quad
			for j := i + 1; j < len(in); j++ {
				if !merged[j] && a.Quad.OverlapsHorizontally(in[j].Quad) {
					union = union.BoundingUnion(in[j].Quad)
					merged[j] = true
				}
			}
			g := *a
			g.Quad = union
			out = append(out, &g)
		}
		return out
	}
}
