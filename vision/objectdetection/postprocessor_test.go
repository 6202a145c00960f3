package objectdetection

import (
	"image"
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"go.viam.com/fieldvision/rimage"
	"go.viam.com/fieldvision/spatialmath"
	"go.viam.com/fieldvision/testutils"
	"go.viam.com/fieldvision/vision/segmentation"
)

// fieldImage has the field starting at row 200 and the kinematic horizon at row horizonY.
func fieldImage(t *testing.T, horizonY float64) *segmentation.ClassifiedImage {
	t.Helper()
	return &segmentation.ClassifiedImage{
		Image:            rimage.NewImage(testutils.Width, testutils.Height, testutils.NewLens(t)),
		VisualHorizon:    []image.Point{{0, 200}, {testutils.Width - 1, 200}},
		KinematicHorizon: spatialmath.Line{Normal: r2.Point{Y: 1}, Distance: horizonY},
	}
}

func uprightGoal(ci *segmentation.ClassifiedImage, left, right, top, bottom float64) *Goal {
	return &Goal{
		Quad: spatialmath.NewQuad(
			r2.Point{X: left, Y: bottom},
			r2.Point{X: left, Y: top},
			r2.Point{X: right, Y: top},
			r2.Point{X: right, Y: bottom},
		),
		ClassifiedImage: ci,
	}
}

func TestAspectRatioFilter(t *testing.T) {
	ci := fieldImage(t, -100)
	filt := NewAspectRatioFilter(2.5, 15)
	goals := []*Goal{
		uprightGoal(ci, 100, 140, 100, 200), // exactly the lower bound
		uprightGoal(ci, 200, 241, 100, 200),
		uprightGoal(ci, 300, 310, 0, 150), // exactly the upper bound
		uprightGoal(ci, 400, 409, 0, 150),
	}
	kept := filt(goals)
	test.That(t, kept, test.ShouldHaveLength, 2)
	test.That(t, kept[0], test.ShouldEqual, goals[0])
	test.That(t, kept[1], test.ShouldEqual, goals[2])
	test.That(t, filt(nil), test.ShouldBeEmpty)
}

func TestHorizonFilter(t *testing.T) {
	ci := fieldImage(t, -100)
	filt := NewHorizonFilter(0)

	grounded := uprightGoal(ci, 100, 140, 50, 250)
	floating := uprightGoal(ci, 200, 240, 20, 150)
	kept := filt([]*Goal{grounded, floating})
	test.That(t, kept, test.ShouldHaveLength, 1)
	test.That(t, kept[0], test.ShouldEqual, grounded)

	// a buffer lets the base stop short of the field
	test.That(t, NewHorizonFilter(60)([]*Goal{floating}), test.ShouldHaveLength, 1)

	// with the kinematic horizon inside the image the top has to be above it
	ci = fieldImage(t, 120)
	tall := uprightGoal(ci, 100, 140, 100, 250)
	short := uprightGoal(ci, 200, 240, 150, 250)
	kept = filt([]*Goal{tall, short})
	test.That(t, kept, test.ShouldHaveLength, 1)
	test.That(t, kept[0], test.ShouldEqual, tall)
}

// leaningGoal tilts each side of an upright goal towards the other by lean radians.
func leaningGoal(ci *segmentation.ClassifiedImage, lean float64) *Goal {
	const height = 200
	shift := height * math.Tan(lean)
	return &Goal{
		Quad: spatialmath.NewQuad(
			r2.Point{X: 100, Y: 300},
			r2.Point{X: 100 + shift, Y: 100},
			r2.Point{X: 180 - shift, Y: 100},
			r2.Point{X: 180, Y: 300},
		),
		ClassifiedImage: ci,
	}
}

func TestOrientationFilter(t *testing.T) {
	ci := fieldImage(t, -100)
	cfg := DefaultGoalConfig()
	filt := NewOrientationFilter(cfg.MinimumGoalHorizonAngle, cfg.MaximumAngleBetweenGoals, cfg.MaximumVerticalGoalPerspectiveAngle)

	upright := uprightGoal(ci, 100, 140, 100, 300)
	slanted := &Goal{
		Quad: spatialmath.NewQuad(
			r2.Point{X: 100, Y: 300}, r2.Point{X: 200, Y: 100}, r2.Point{X: 240, Y: 100}, r2.Point{X: 140, Y: 300}),
		ClassifiedImage: ci,
	}
	splayed := &Goal{
		Quad: spatialmath.NewQuad(
			r2.Point{X: 100, Y: 300}, r2.Point{X: 100, Y: 100}, r2.Point{X: 200, Y: 100}, r2.Point{X: 140, Y: 300}),
		ClassifiedImage: ci,
	}
	kept := filt([]*Goal{upright, slanted, splayed})
	test.That(t, kept, test.ShouldHaveLength, 1)
	test.That(t, kept[0], test.ShouldEqual, upright)

	converging := leaningGoal(ci, 0.15)
	diverging := leaningGoal(ci, -0.15)

	// the perspective check is off unless an angle is given
	test.That(t, cfg.MaximumVerticalGoalPerspectiveAngle, test.ShouldEqual, 0.0)
	unchecked := NewOrientationFilter(1.2, 1.0, 0)
	test.That(t, unchecked([]*Goal{converging, diverging}), test.ShouldHaveLength, 2)

	// sides converging upwards fail the perspective check, diverging ones pass
	loose := NewOrientationFilter(1.2, 1.0, 0.1)
	kept = loose([]*Goal{converging, diverging})
	test.That(t, kept, test.ShouldHaveLength, 1)
	test.That(t, kept[0], test.ShouldEqual, diverging)
}

func TestMergeFilter(t *testing.T) {
	ci := fieldImage(t, -100)
	a := uprightGoal(ci, 100, 140, 100, 300)
	b := uprightGoal(ci, 130, 170, 80, 280)
	c := uprightGoal(ci, 160, 200, 100, 320)
	far := uprightGoal(ci, 400, 440, 100, 300)

	merged := NewMergeFilter()([]*Goal{a, b, c, far})
	test.That(t, merged, test.ShouldHaveLength, 3)

	union := merged[0].Quad
	test.That(t, union.TopLeft, test.ShouldResemble, r2.Point{X: 100, Y: 80})
	test.That(t, union.TopRight, test.ShouldResemble, r2.Point{X: 170, Y: 80})
	test.That(t, union.BottomLeft, test.ShouldResemble, r2.Point{X: 100, Y: 300})
	test.That(t, union.BottomRight, test.ShouldResemble, r2.Point{X: 170, Y: 300})
	// c only overlaps b, which was already merged into a
	test.That(t, merged[1].Quad, test.ShouldResemble, c.Quad)
	test.That(t, merged[2].Quad, test.ShouldResemble, far.Quad)

	// the input goals are left alone
	test.That(t, a.Quad.TopRight.X, test.ShouldEqual, 140.0)
	test.That(t, merged[0].ClassifiedImage, test.ShouldEqual, ci)

	// touching edges do not overlap
	touching := NewMergeFilter()([]*Goal{a, uprightGoal(ci, 140, 180, 100, 300)})
	test.That(t, touching, test.ShouldHaveLength, 2)
}
