package objectdetection

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/samber/lo"

	"go.viam.com/fieldvision/spatialmath"
)

// GoalSegment is a horizontal goal coloured run reduced to its two ends.
type GoalSegment struct {
	Left  r2.Point
	Right r2.Point
}

// MarkerModel is the pair of lines along the left and right edges of a goal post.
type MarkerModel struct {
	Left  spatialmath.Line
	Right spatialmath.Line
}

// NewMarkerModel returns an unfitted model for ransac.FitModels.
func NewMarkerModel() *MarkerModel {
	return &MarkerModel{}
}

// RequiredPoints is 2: one segment per end of each edge.
func (m *MarkerModel) RequiredPoints() int {
	return 2
}

// Regenerate runs the left edge through both left ends and the right edge through both right ends.
func (m *MarkerModel) Regenerate(segments []GoalSegment) bool {
	if len(segments) != 2 {
		return false
	}
	left, err := spatialmath.LineFromPoints(segments[0].Left, segments[1].Left)
	if err != nil {
		return false
	}
	right, err := spatialmath.LineFromPoints(segments[0].Right, segments[1].Right)
	if err != nil {
		return false
	}
	m.Left, m.Right = left, right
	return true
}

// CalculateError is the larger of the two ends' distances to their nearest edge.
func (m *MarkerModel) CalculateError(s GoalSegment) float64 {
	return math.Max(m.endError(s.Left), m.endError(s.Right))
}

func (m *MarkerModel) endError(p r2.Point) float64 {
	return math.Min(math.Abs(m.Left.DistanceToPoint(p)), math.Abs(m.Right.DistanceToPoint(p)))
}

// Refine refits each edge to the matching ends of all inliers by least squares. An edge whose ends
// are degenerate keeps its sampled line.
func (m *MarkerModel) Refine(inliers []GoalSegment, threshold float64) {
	lefts := lo.Map(inliers, func(s GoalSegment, _ int) r2.Point { return s.Left })
	rights := lo.Map(inliers, func(s GoalSegment, _ int) r2.Point { return s.Right })
	if left, err := spatialmath.FitLine(lefts); err == nil {
		m.Left = left
	}
	if right, err := spatialmath.FitLine(rights); err == nil {
		m.Right = right
	}
}
