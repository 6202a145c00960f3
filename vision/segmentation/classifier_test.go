package segmentation

import (
	"context"
	"image"
	"testing"

	"go.viam.com/test"

	"go.viam.com/fieldvision/logging"
	"go.viam.com/fieldvision/testutils"
	"go.viam.com/fieldvision/utils"
	"go.viam.com/fieldvision/vision/lut"
)

func classify(t *testing.T, scene testutils.Scene) *ClassifiedImage {
	t.Helper()
	return classifyWith(t, DefaultClassifierConfig(), scene)
}

func classifyWith(t *testing.T, cfg ClassifierConfig, scene testutils.Scene) *ClassifiedImage {
	t.Helper()
	classifier, err := NewClassifier(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	ci, err := classifier.Classify(context.Background(), Frame{CameraID: 1, Image: scene.Image, Sensors: scene.Sensors}, scene.Table)
	test.That(t, err, test.ShouldBeNil)
	return ci
}

func checkChains(t *testing.T, set *SegmentSet) {
	t.Helper()
	for i, s := range set.Segments {
		if s.Next == NoSegment {
			continue
		}
		next := set.Get(s.Next)
		test.That(t, next.Previous, test.ShouldEqual, i)
		// Consecutive runs of one scan are adjacent pixels.
		test.That(t, utils.AbsInt(next.Start.X-s.End.X), test.ShouldBeLessThanOrEqualTo, 1)
		test.That(t, utils.AbsInt(next.Start.Y-s.End.Y), test.ShouldBeLessThanOrEqualTo, 1)
		test.That(t, next.Start, test.ShouldNotResemble, s.End)
		test.That(t, next.Class, test.ShouldNotEqual, s.Class)
	}
}

func TestClassifyGoalScene(t *testing.T) {
	ci := classify(t, testutils.NewGoalScene(t))

	test.That(t, ci.CameraID, test.ShouldEqual, 1)
	test.That(t, ci.KinematicHorizon.Y(320), test.ShouldBeLessThan, 0)

	test.That(t, ci.VisualHorizon[0].X, test.ShouldEqual, 0)
	test.That(t, ci.VisualHorizon[len(ci.VisualHorizon)-1].X, test.ShouldEqual, testutils.Width-1)
	for _, x := range []float64{0, 100, 320, 639} {
		test.That(t, ci.VisualHorizonAtPoint(x), test.ShouldEqual, 200.0)
	}

	checkChains(t, ci.Horizontal)
	checkChains(t, ci.Vertical)

	goals := ci.Horizontal.OfClass(lut.Goal)
	test.That(t, len(goals), test.ShouldBeGreaterThan, 50)
	interior := 0
	for _, g := range goals {
		test.That(t, g.Start.X, test.ShouldEqual, 300)
		test.That(t, g.End.X, test.ShouldEqual, 339)
		test.That(t, g.Start.Y, test.ShouldBeBetweenOrEqual, 100, 299)
		if g.HasNeighbours() && g.Subsample == 1 {
			interior++
		}
	}
	test.That(t, interior, test.ShouldEqual, len(goals))

	verticalGoals := ci.Vertical.OfClass(lut.Goal)
	test.That(t, verticalGoals, test.ShouldNotBeEmpty)
	test.That(t, verticalGoals[0].Start.Y, test.ShouldEqual, 100)
	test.That(t, verticalGoals[0].End.Y, test.ShouldEqual, 299)

	test.That(t, ci.CoarsePoints[lut.Field], test.ShouldNotBeEmpty)
	test.That(t, ci.CoarsePoints[lut.Goal], test.ShouldNotBeEmpty)
}

func TestClassifyEmptyField(t *testing.T) {
	ci := classify(t, testutils.NewScene(t, 0.52, 0))
	test.That(t, ci.Horizontal.OfClass(lut.Goal), test.ShouldBeEmpty)
	for _, p := range ci.VisualHorizon {
		test.That(t, p.Y, test.ShouldEqual, 0)
	}
	checkChains(t, ci.Horizontal)
	checkChains(t, ci.Vertical)
}

func TestClassifyHorizonBelowImage(t *testing.T) {
	// Looking up at the sky: nothing is below the kinematic horizon.
	ci := classify(t, testutils.NewScene(t, -0.9, 400))
	test.That(t, ci.KinematicHorizon.Y(320), test.ShouldBeGreaterThan, float64(testutils.Height))
	test.That(t, ci.Horizontal.N(), test.ShouldEqual, 0)
	for _, p := range ci.VisualHorizon {
		test.That(t, p.Y, test.ShouldEqual, testutils.Height-1)
	}
}

func ballScene(t *testing.T) testutils.Scene {
	t.Helper()
	scene := testutils.NewScene(t, 0.52, 200)
	scene.Image.Fill(image.Rect(300, 340, 330, 370), testutils.BallOrange)
	return scene
}

func TestEnhanceBall(t *testing.T) {
	withoutRescan := DefaultClassifierConfig()
	withoutRescan.BallMinimumIntersectionsCoarse = 100
	plain := classifyWith(t, withoutRescan, ballScene(t))
	test.That(t, plain.Balls, test.ShouldBeEmpty)
	// Only the goal lines at rows 340 and 360 cross the ball.
	test.That(t, plain.Horizontal.OfClass(lut.Ball), test.ShouldHaveLength, 2)

	ci := classify(t, ballScene(t))
	test.That(t, ci.Balls, test.ShouldResemble, []image.Rectangle{image.Rect(300, 340, 321, 370)})
	balls := ci.Horizontal.OfClass(lut.Ball)
	// The circle rows 340, 345, ..., 365 add one run each.
	test.That(t, balls, test.ShouldHaveLength, 2+6)
	for _, b := range balls {
		test.That(t, b.Start.X, test.ShouldEqual, 300)
		test.That(t, b.End.X, test.ShouldEqual, 329)
		test.That(t, b.Start.Y, test.ShouldBeBetweenOrEqual, 340, 369)
	}
	checkChains(t, ci.Horizontal)

	strict := DefaultClassifierConfig()
	strict.BallMinimumIntersectionsFine = 100
	rejected := classifyWith(t, strict, ballScene(t))
	test.That(t, rejected.Balls, test.ShouldBeEmpty)
	test.That(t, rejected.Horizontal.OfClass(lut.Ball), test.ShouldHaveLength, 2)
}

func TestBallClusters(t *testing.T) {
	classifier, err := NewClassifier(DefaultClassifierConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	run := func(x, top, bottom int) Segment {
		return Segment{Segment: lut.Segment{Class: lut.Ball, Start: image.Pt(x, top), End: image.Pt(x, bottom), Subsample: 1}}
	}
	clusters := classifier.ballClusters([]Segment{
		run(110, 50, 60),
		run(100, 50, 60),
		run(100, 66, 70), // 5 pixel gap below the first run of its column
		run(300, 50, 60), // too far right
		run(120, 80, 90), // too far below
	})
	test.That(t, clusters, test.ShouldHaveLength, 3)
	test.That(t, clusters[0], test.ShouldHaveLength, 3)
	test.That(t, clusters[1], test.ShouldResemble, []Segment{run(120, 80, 90)})
	test.That(t, clusters[2], test.ShouldResemble, []Segment{run(300, 50, 60)})
	test.That(t, classifier.ballClusters(nil), test.ShouldBeEmpty)
}

func TestClassifyLinesRecoversPanics(t *testing.T) {
	classifier, err := NewClassifier(DefaultClassifierConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	scene := testutils.NewGoalScene(t)
	lines := rowLines([]int{10, 20}, 0, testutils.Width-1, 1)

	// A missing table makes every lookup fail.
	_, err = classifier.classifyLines(context.Background(), scene.Image, nil, lines)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "panic classifying")

	scans, err := classifier.classifyLines(context.Background(), scene.Image, scene.Table, lines)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, scans, test.ShouldHaveLength, 2)
}

func TestClassifyErrors(t *testing.T) {
	classifier, err := NewClassifier(DefaultClassifierConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	scene := testutils.NewGoalScene(t)

	_, err = classifier.Classify(context.Background(), Frame{Image: scene.Image, Sensors: scene.Sensors}, nil)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = classifier.Classify(context.Background(), Frame{Image: scene.Image}, scene.Table)
	test.That(t, err, test.ShouldNotBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = classifier.Classify(ctx, Frame{Image: scene.Image, Sensors: scene.Sensors}, scene.Table)
	test.That(t, err, test.ShouldBeError, context.Canceled)
}

func TestClassifierConfigValidate(t *testing.T) {
	cfg := DefaultClassifierConfig()
	test.That(t, cfg.Validate("classifier"), test.ShouldBeNil)

	cfg.GoalLineSpacing = 0
	cfg.VisualHorizonBuffer = -1
	err := cfg.Validate("classifier")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "goal_line_spacing")
	test.That(t, err.Error(), test.ShouldContainSubstring, "visual_horizon_buffer")

	cfg = DefaultClassifierConfig()
	cfg.Coarse.CameraHeight = 0
	err = cfg.Validate("classifier")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "classifier.coarse")

	_, err = NewClassifier(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)

	cfg = DefaultClassifierConfig()
	cfg.BallMinimumIntersectionsFine = 0
	cfg.BallSearchCircleScale = 0
	cfg.BallHorizontalSubsampleFactor = 0.5
	cfg.BallMaximumVerticalClusterSpacing = -1
	err = cfg.Validate("classifier")
	test.That(t, err, test.ShouldNotBeNil)
	for _, name := range []string{
		"ball_minimum_intersections_fine",
		"ball_search_circle_scale",
		"ball_horizontal_subsample_factor",
		"ball_maximum_vertical_cluster_spacing",
	} {
		test.That(t, err.Error(), test.ShouldContainSubstring, name)
	}
}

func TestCoarseScannerBelowHorizon(t *testing.T) {
	scene := testutils.NewGoalScene(t)
	ci := classify(t, scene)
	found, err := NewCoarseScanner(DefaultCoarseConfig()).FindObjects(scene.Image, scene.Table, ci.KinematicHorizon)
	test.That(t, err, test.ShouldBeNil)

	_, ok := found[lut.Unclassified]
	test.That(t, ok, test.ShouldBeFalse)
	for _, p := range found[lut.Goal] {
		test.That(t, p.X == 300 || p.X == 339, test.ShouldBeTrue)
		test.That(t, p.Y, test.ShouldBeBetweenOrEqual, 100, 299)
	}
	for _, p := range found[lut.Field] {
		test.That(t, p.Y, test.ShouldBeGreaterThanOrEqualTo, 200)
	}
}

func TestCoarseScannerAboveHorizon(t *testing.T) {
	// Level camera: the horizon crosses the middle of the image and a post rises above it.
	scene := testutils.NewScene(t, 0, 300, image.Rect(300, 0, 340, 300))
	horizon := classify(t, scene).KinematicHorizon
	test.That(t, horizon.Y(320), test.ShouldAlmostEqual, 239.5, 1e-6)

	found, err := NewCoarseScanner(DefaultCoarseConfig()).FindObjects(scene.Image, scene.Table, horizon)
	test.That(t, err, test.ShouldBeNil)
	top := 0
	for _, p := range found[lut.Goal] {
		test.That(t, p.X, test.ShouldBeBetweenOrEqual, 300, 339)
		if p.Y == 0 {
			top++
		}
	}
	test.That(t, top, test.ShouldBeGreaterThan, 0)
}
