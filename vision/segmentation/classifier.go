package segmentation

import (
	"context"
	"image"
	"math"
	"sort"
	"time"

	"github.com/golang/geo/r2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"go.viam.com/fieldvision/logging"
	"go.viam.com/fieldvision/rimage"
	"go.viam.com/fieldvision/rimage/transform"
	"go.viam.com/fieldvision/spatialmath"
	"go.viam.com/fieldvision/utils"
	"go.viam.com/fieldvision/vision/lut"
)

// Frame is one camera image together with the pose the robot was in when it was captured.
type Frame struct {
	CameraID  int
	Image     *rimage.Image
	Sensors   *transform.Sensors
	Timestamp time.Time
}

// Classifier builds ClassifiedImages. It keeps no state between frames, so one Classifier can serve
// every camera concurrently.
type Classifier struct {
	cfg    ClassifierConfig
	coarse *CoarseScanner
	logger logging.Logger
}

// NewClassifier validates cfg and returns a Classifier.
func NewClassifier(cfg ClassifierConfig, logger logging.Logger) (*Classifier, error) {
	if err := cfg.Validate("classifier"); err != nil {
		return nil, err
	}
	return &Classifier{cfg: cfg, coarse: NewCoarseScanner(cfg.Coarse), logger: logger}, nil
}

type scanLine struct {
	start, end     image.Point
	stratification int
}

// Classify scans frame with table. ctx is checked between passes.
func (c *Classifier) Classify(ctx context.Context, frame Frame, table *lut.LookUpTable) (*ClassifiedImage, error) {
	if frame.Image == nil || frame.Sensors == nil {
		return nil, errors.New("frame needs an image and a sensors snapshot")
	}
	if table == nil {
		return nil, errors.New("no lookup table loaded")
	}
	img := frame.Image
	if err := img.Lens.CheckValid(); err != nil {
		return nil, errors.Wrap(err, "bad lens")
	}

	ci := &ClassifiedImage{
		FrameID:          uuid.New(),
		CameraID:         frame.CameraID,
		Image:            img,
		Table:            table,
		Sensors:          frame.Sensors,
		Horizontal:       NewSegmentSet(),
		Vertical:         NewSegmentSet(),
		KinematicHorizon: transform.KinematicHorizon(frame.Sensors, img.Lens),
	}

	var err error
	if ci.CoarsePoints, err = c.coarse.FindObjects(img, table, ci.KinematicHorizon); err != nil {
		return nil, errors.Wrap(err, "coarse scan failed")
	}

	passes := []struct {
		name string
		run  func(context.Context, *ClassifiedImage) error
	}{
		{"visual horizon", c.findVisualHorizon},
		{"goals", c.findGoals},
		{"ball", c.findBall},
		{"ball enhancement", c.enhanceBall},
	}
	for _, pass := range passes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := pass.run(ctx, ci); err != nil {
			return nil, errors.Wrapf(err, "%s pass failed", pass.name)
		}
	}

	c.logger.Debugw("classified frame",
		"frame", ci.FrameID,
		"camera", ci.CameraID,
		"horizontal", ci.Horizontal.N(),
		"vertical", ci.Vertical.N(),
		"visual_horizon_points", len(ci.VisualHorizon))
	return ci, nil
}

// findVisualHorizon scans columns down from the kinematic horizon to the first sizeable run of
// field and takes the upper hull of those points.
func (c *Classifier) findVisualHorizon(ctx context.Context, ci *ClassifiedImage) error {
	img := ci.Image
	width, height := img.Width(), img.Height()

	columns := lo.RangeWithSteps(0, width, c.cfg.VisualHorizonSpacing)
	if columns[len(columns)-1] != width-1 {
		columns = append(columns, width-1)
	}
	lines := lo.Map(columns, func(x, _ int) scanLine {
		// A horizon below the image puts both ends outside it, leaving the column unscanned.
		row := horizonRow(ci.KinematicHorizon, x, height)
		return scanLine{
			start:          image.Pt(x, row),
			end:            image.Pt(x, max(row, height-1)),
			stratification: c.cfg.VisualHorizonSubsampling,
		}
	})
	scans, err := c.classifyLines(ctx, img, ci.Table, lines)
	if err != nil {
		return err
	}

	points := make([]image.Point, 0, len(columns))
	for i, x := range columns {
		ci.Vertical.Insert(scans[i])
		y := height - 1
		field, found := lo.Find(scans[i], func(s lut.Segment) bool {
			return s.Class == lut.Field && s.Length() >= c.cfg.VisualHorizonMinimumSegmentSize
		})
		if found {
			y = utils.ClampInt(field.Start.Y-c.cfg.VisualHorizonBuffer, 0, height-1)
		}
		points = append(points, image.Pt(x, y))
	}
	ci.VisualHorizon = upperHull(points)
	return nil
}

// findGoals scans rows below the top of the kinematic horizon, then rescans densely around every
// goal coloured run found there or by the coarse scan.
func (c *Classifier) findGoals(ctx context.Context, ci *ClassifiedImage) error {
	img := ci.Image
	width, height := img.Width(), img.Height()

	top := math.Min(
		float64(horizonRow(ci.KinematicHorizon, 0, height)),
		float64(horizonRow(ci.KinematicHorizon, width-1, height)))
	rows := lo.RangeWithSteps(int(top), height, c.cfg.GoalLineSpacing)
	scans, err := c.classifyLines(ctx, img, ci.Table, rowLines(rows, 0, width-1, 1))
	if err != nil {
		return err
	}
	seeds := make([]lut.Segment, 0, 16)
	for _, scan := range scans {
		ci.Horizontal.Insert(scan)
		seeds = append(seeds, goalRuns(scan)...)
	}

	coarseRows := lo.Uniq(lo.Map(ci.CoarsePoints[lut.Goal], func(p image.Point, _ int) int { return p.Y }))
	coarseScans, err := c.classifyLines(ctx, img, ci.Table, rowLines(coarseRows, 0, width-1, 1))
	if err != nil {
		return err
	}
	for _, scan := range coarseScans {
		seeds = append(seeds, goalRuns(scan)...)
	}
	if len(seeds) == 0 {
		return nil
	}

	boxes, err := c.goalBoxes(ctx, ci, seeds)
	if err != nil {
		return err
	}
	for _, box := range boxes {
		boxRows := lo.RangeWithSteps(box.Min.Y, box.Max.Y, c.cfg.GoalLineDensity)
		scans, err := c.classifyLines(ctx, img, ci.Table, rowLines(boxRows, box.Min.X, box.Max.X-1, c.cfg.GoalSubsampling))
		if err != nil {
			return err
		}
		for _, scan := range scans {
			ci.Horizontal.Insert(scan)
		}
	}
	return nil
}

// goalBoxes grows each seed run into the box covering the goal's vertical extent, widened on both
// sides, and merges overlapping boxes.
func (c *Classifier) goalBoxes(ctx context.Context, ci *ClassifiedImage, seeds []lut.Segment) ([]image.Rectangle, error) {
	height := ci.Image.Height()
	columns := lo.Uniq(lo.Map(seeds, func(s lut.Segment, _ int) int { return s.Midpoint().X }))
	lines := lo.Map(columns, func(x, _ int) scanLine {
		return scanLine{start: image.Pt(x, 0), end: image.Pt(x, height-1), stratification: c.cfg.GoalSubsampling}
	})
	scans, err := c.classifyLines(ctx, ci.Image, ci.Table, lines)
	if err != nil {
		return nil, err
	}
	byColumn := make(map[int][]lut.Segment, len(columns))
	for i, x := range columns {
		ci.Vertical.Insert(scans[i])
		byColumn[x] = scans[i]
	}

	boxes := make([]image.Rectangle, 0, len(seeds))
	for _, seed := range seeds {
		mid := seed.Midpoint()
		top, bottom := mid.Y, mid.Y
		if run, ok := lo.Find(byColumn[mid.X], func(s lut.Segment) bool {
			return s.Class == lut.Goal && s.Start.Y <= mid.Y && mid.Y <= s.End.Y
		}); ok {
			top, bottom = run.Start.Y, run.End.Y
		}
		left, right := seed.Start.X, seed.End.X
		if left > right {
			left, right = right, left
		}
		extension := int(math.Ceil(c.cfg.GoalExtensionScale * float64(right-left+1)))
		box := image.Rect(left-extension, top, right+extension+1, bottom+1).Intersect(ci.Image.Bounds())
		if !box.Empty() {
			boxes = append(boxes, box)
		}
	}
	return mergeBoxes(boxes), nil
}

// mergeBoxes replaces overlapping boxes by their union until none overlap.
func mergeBoxes(boxes []image.Rectangle) []image.Rectangle {
	for merged := true; merged; {
		merged = false
		for i := 0; i < len(boxes) && !merged; i++ {
			for j := i + 1; j < len(boxes); j++ {
				if boxes[i].Overlaps(boxes[j]) {
					boxes[i] = boxes[i].Union(boxes[j])
					boxes = append(boxes[:j], boxes[j+1:]...)
					merged = true
					break
				}
			}
		}
	}
	return boxes
}

// findBall scans columns from the visual horizon to the image bottom.
func (c *Classifier) findBall(ctx context.Context, ci *ClassifiedImage) error {
	height := ci.Image.Height()
	columns := lo.RangeWithSteps(0, ci.Image.Width(), c.cfg.BallLineSpacing)
	lines := lo.FilterMap(columns, func(x, _ int) (scanLine, bool) {
		y := int(math.Ceil(ci.VisualHorizonAtPoint(float64(x))))
		return scanLine{start: image.Pt(x, y), end: image.Pt(x, height-1), stratification: 1}, y < height
	})
	scans, err := c.classifyLines(ctx, ci.Image, ci.Table, lines)
	if err != nil {
		return err
	}
	for _, scan := range scans {
		ci.Vertical.Insert(scan)
	}
	return nil
}

// enhanceBall groups the vertical ball runs into clusters and rescans a circle around every
// cluster with enough runs using closer rows. Rows of a circle that finds enough ball runs go into
// the horizontal set.
func (c *Classifier) enhanceBall(ctx context.Context, ci *ClassifiedImage) error {
	for _, cluster := range c.ballClusters(ci.Vertical.OfClass(lut.Ball)) {
		if len(cluster) < c.cfg.BallMinimumIntersectionsCoarse {
			continue
		}
		box := image.Rectangle{Min: cluster[0].Start, Max: cluster[0].Start}
		for _, s := range cluster {
			box = box.Union(image.Rectangle{Min: s.Start, Max: s.End.Add(image.Pt(1, 1))})
		}

		centre := r2.Point{X: float64(box.Min.X+box.Max.X-1) / 2, Y: float64(box.Min.Y+box.Max.Y-1) / 2}
		size := float64(max(box.Dx(), box.Dy()))
		radius := math.Max(c.cfg.BallSearchCircleScale*size, c.expectedBallRadius(ci, centre.X, float64(box.Max.Y-1)))
		radius = math.Min(radius, math.Hypot(float64(ci.Image.Width()), float64(ci.Image.Height())))

		step := max(1, int(float64(c.cfg.BallLineSpacing)/c.cfg.BallHorizontalSubsampleFactor))
		last := math.Min(centre.Y+radius, float64(ci.Image.Height()-1))
		var lines []scanLine
		for y := math.Max(0, math.Ceil(centre.Y-radius)); y <= last; y += float64(step) {
			half := math.Sqrt(math.Max(0, radius*radius-(y-centre.Y)*(y-centre.Y)))
			lines = append(lines, scanLine{
				start:          image.Pt(int(math.Round(centre.X-half)), int(y)),
				end:            image.Pt(int(math.Round(centre.X+half)), int(y)),
				stratification: 1,
			})
		}
		scans, err := c.classifyLines(ctx, ci.Image, ci.Table, lines)
		if err != nil {
			return err
		}
		found := 0
		for _, scan := range scans {
			found += lo.CountBy(scan, func(s lut.Segment) bool { return s.Class == lut.Ball })
		}
		if found < c.cfg.BallMinimumIntersectionsFine {
			c.logger.Debugw("ball cluster rejected", "box", box, "fine_intersections", found)
			continue
		}
		for _, scan := range scans {
			ci.Horizontal.Insert(scan)
		}
		ci.Balls = append(ci.Balls, box)
	}
	return nil
}

// ballClusters joins ball runs from columns at most ball_line_spacing apart whose vertical extents
// are within ball_maximum_vertical_cluster_spacing of each other. Clusters come out in order of
// their leftmost run.
func (c *Classifier) ballClusters(runs []Segment) [][]Segment {
	parent := lo.Range(len(runs))
	var find func(i int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	for i := range runs {
		for j := i + 1; j < len(runs); j++ {
			a, b := runs[i], runs[j]
			if utils.AbsInt(a.Start.X-b.Start.X) > c.cfg.BallLineSpacing {
				continue
			}
			gap := max(a.Start.Y, b.Start.Y) - min(a.End.Y, b.End.Y) - 1
			if gap <= c.cfg.BallMaximumVerticalClusterSpacing {
				parent[find(j)] = find(i)
			}
		}
	}

	groups := make(map[int][]Segment)
	var roots []int
	for i, run := range runs {
		root := find(i)
		if _, ok := groups[root]; !ok {
			roots = append(roots, root)
		}
		groups[root] = append(groups[root], run)
	}
	clusters := lo.Map(roots, func(root, _ int) []Segment { return groups[root] })
	sort.SliceStable(clusters, func(i, j int) bool {
		return minX(clusters[i]) < minX(clusters[j])
	})
	return clusters
}

func minX(runs []Segment) int {
	return lo.MinBy(runs, func(a, b Segment) bool { return a.Start.X < b.Start.X }).Start.X
}

// expectedBallRadius is the pixel radius of a ball resting on flat ground at row bottom in column
// x, or 0 when that row is not below the kinematic horizon.
func (c *Classifier) expectedBallRadius(ci *ClassifiedImage, x, bottom float64) float64 {
	below := bottom - ci.KinematicHorizon.Y(x)
	height := ci.Sensors.CameraHeight()
	if math.IsNaN(below) || below < 1 || !(height > 0) {
		return 0
	}
	// At ground distance h*f/below the ball subtends f*r/distance pixels.
	return c.cfg.BallRadius * below / height
}

// classifyLines classifies every line in parallel, clipping each to the image first. Results are
// in the order of lines; a line entirely outside the image yields no segments. A panic while
// classifying a line is returned as that line's error.
func (c *Classifier) classifyLines(
	ctx context.Context,
	img *rimage.Image,
	table *lut.LookUpTable,
	lines []scanLine,
) ([][]lut.Segment, error) {
	results := make([][]lut.Segment, len(lines))
	errs := make([]error, len(lines))
	err := utils.GroupWorkParallel(
		ctx,
		len(lines),
		func(numGroups int) {},
		func(groupNum, groupSize, from, to int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
			return func(memberNum, workNum int) {
				defer func() {
					if r := recover(); r != nil {
						errs[workNum] = errors.Errorf("panic classifying %v -> %v: %v", lines[workNum].start, lines[workNum].end, r)
					}
				}()
				l := lines[workNum]
				start, end, ok := lut.ClipLine(img.Bounds(), l.start, l.end)
				if !ok {
					return
				}
				results[workNum], errs[workNum] = lut.ClassifyLine(img, table, start, end, l.stratification)
			}, nil
		},
	)
	if err != nil {
		return nil, err
	}
	return results, multierr.Combine(errs...)
}

func rowLines(rows []int, left, right, stratification int) []scanLine {
	return lo.Map(rows, func(y, _ int) scanLine {
		return scanLine{start: image.Pt(left, y), end: image.Pt(right, y), stratification: stratification}
	})
}

func goalRuns(scan []lut.Segment) []lut.Segment {
	return lo.Filter(scan, func(s lut.Segment, _ int) bool { return s.Class == lut.Goal })
}

// horizonRow is the first image row at or below the kinematic horizon in column x, clamped to
// [0, height].
func horizonRow(horizon spatialmath.Line, x, height int) int {
	y := horizon.Y(float64(x))
	switch {
	case math.IsNaN(y) || y <= 0:
		return 0
	case y >= float64(height):
		return height
	}
	return int(math.Ceil(y))
}
