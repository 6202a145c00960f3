// Package objectdetection finds goal posts in classified frames and measures where they are.
package objectdetection

import (
	"context"
	"image"
	"math"
	"math/rand"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"go.viam.com/fieldvision/logging"
	"go.viam.com/fieldvision/rimage/transform"
	"go.viam.com/fieldvision/spatialmath"
	"go.viam.com/fieldvision/vision/lut"
	"go.viam.com/fieldvision/vision/ransac"
	"go.viam.com/fieldvision/vision/segmentation"
)

// Detector finds goals in a classified frame.
type Detector func(context.Context, *segmentation.ClassifiedImage) ([]*Goal, error)

// Build chains a detector with postprocessors applied in order.
func Build(det Detector, post ...Postprocessor) (Detector, error) {
	if det == nil {
		return nil, errors.New("must have a Detector")
	}
	return func(ctx context.Context, ci *segmentation.ClassifiedImage) ([]*Goal, error) {
		goals, err := det(ctx, ci)
		if err != nil {
			return nil, err
		}
		for _, p := range post {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			goals = p(goals)
		}
		return goals, nil
	}, nil
}

// GoalDetector fits goal posts to the horizontal goal segments of a frame. It is safe for
// concurrent use; every call draws from its own random source seeded from the config, so a frame
// always gives the same goals.
type GoalDetector struct {
	cfg      GoalConfig
	detector Detector
	logger   logging.Logger
}

// NewGoalDetector validates cfg and returns a GoalDetector.
func NewGoalDetector(cfg GoalConfig, logger logging.Logger) (*GoalDetector, error) {
	if err := cfg.Validate("goals"); err != nil {
		return nil, err
	}
	gd := &GoalDetector{cfg: cfg, logger: logger}
	det, err := Build(
		gd.fitGoals,
		NewAspectRatioFilter(cfg.AspectRatioRange[0], cfg.AspectRatioRange[1]),
		NewHorizonFilter(cfg.VisualHorizonBuffer),
		NewOrientationFilter(cfg.MinimumGoalHorizonAngle, cfg.MaximumAngleBetweenGoals, cfg.MaximumVerticalGoalPerspectiveAngle),
		NewMergeFilter(),
		gd.measure,
		assignSides,
	)
	if err != nil {
		return nil, err
	}
	gd.detector = det
	return gd, nil
}

// Detect returns the goals in ci. A frame in which no posts can be fitted has no goals and is not
// an error.
func (gd *GoalDetector) Detect(ctx context.Context, ci *segmentation.ClassifiedImage) ([]*Goal, error) {
	goals, err := gd.detector(ctx, ci)
	if err != nil {
		return nil, err
	}
	gd.logger.Debugw("goals detected", "frame", ci.FrameID, "camera", ci.CameraID, "goals", len(goals))
	return goals, nil
}

// goalSegments returns the full resolution horizontal goal runs that have a transition on both
// sides.
func goalSegments(ci *segmentation.ClassifiedImage) []GoalSegment {
	return lo.FilterMap(ci.Horizontal.OfClass(lut.Goal), func(s segmentation.Segment, _ int) (GoalSegment, bool) {
		return GoalSegment{Left: toR2(s.Start), Right: toR2(s.End)}, s.Subsample == 1 && s.HasNeighbours()
	})
}

func (gd *GoalDetector) fitGoals(ctx context.Context, ci *segmentation.ClassifiedImage) ([]*Goal, error) {
	segments := goalSegments(ci)
	results, err := ransac.FitModels(NewMarkerModel, segments, gd.cfg.Ransac, rand.New(rand.NewSource(gd.cfg.RandomSeed)))
	if errors.Is(err, ransac.ErrDegenerate) {
		gd.logger.Debugw("no goal posts fitted", "frame", ci.FrameID, "segments", len(segments))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	leftovers := segments[results[len(results)-1].Last:]
	goals := make([]*Goal, 0, len(results))
	for _, res := range results {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		quad, ok := quadFromModel(res.Model, segments[res.First:res.Last], leftovers)
		if !ok {
			continue
		}
		goals = append(goals, &Goal{
			Quad:            quad,
			Side:            Unknown,
			Sensors:         ci.Sensors,
			ClassifiedImage: ci,
		})
	}
	return goals, nil
}

// midline returns the line half way between the two edges of a model.
func midline(left, right spatialmath.Line) spatialmath.Line {
	var normal r2.Point
	if left.Normal.Dot(right.Normal) > 0 {
		normal = right.Normal.Add(left.Normal).Normalize()
	} else {
		normal = right.Normal.Sub(left.Normal).Normalize()
	}
	distance := (right.Distance/right.Normal.Dot(normal) + left.Distance/left.Normal.Dot(normal)) / 2
	return spatialmath.Line{Normal: normal, Distance: distance}
}

// quadFromModel finds where the post starts and ends along its midline from the inlier ends,
// extended by leftover ends that lie close to the midline just beyond them, and projects those
// limits out onto both edges.
func quadFromModel(model *MarkerModel, inliers, leftovers []GoalSegment) (spatialmath.Quad, bool) {
	mid := midline(model.Left, model.Right)
	if math.IsNaN(mid.Distance) || math.IsInf(mid.Distance, 0) {
		return spatialmath.Quad{}, false
	}

	along := make([]float64, 0, 2*len(inliers))
	across := make([]float64, 0, 2*len(inliers))
	for _, s := range inliers {
		for _, p := range []r2.Point{s.Left, s.Right} {
			along = append(along, mid.TangentialDistanceToPoint(p))
			across = append(across, mid.DistanceToPoint(p))
		}
	}
	sd := stat.StdDev(across, nil)
	lowest, highest := floats.Min(along), floats.Max(along)

	minT, maxT := lowest, highest
	for _, s := range leftovers {
		for _, p := range []r2.Point{s.Left, s.Right} {
			t := mid.TangentialDistanceToPoint(p)
			if math.Abs(mid.DistanceToPoint(p)) < 2*sd && t > lowest-2*sd && t < highest+2*sd {
				minT = math.Min(minT, t)
				maxT = math.Max(maxT, t)
			}
		}
	}

	midA := mid.PointFromTangentialDistance(minT)
	midB := mid.PointFromTangentialDistance(maxT)
	onto := func(side spatialmath.Line, p r2.Point) r2.Point {
		return p.Sub(mid.Normal.Mul(side.DistanceToPoint(p) * side.Normal.Dot(mid.Normal)))
	}
	p1, p2 := onto(model.Left, midA), onto(model.Left, midB)
	p3, p4 := onto(model.Right, midA), onto(model.Right, midB)

	topLeft, bottomLeft := p1, p2
	if p1.Y > p2.Y {
		topLeft, bottomLeft = p2, p1
	}
	topRight, bottomRight := p3, p4
	if p3.Y > p4.Y {
		topRight, bottomRight = p4, p3
	}
	return spatialmath.NewQuad(bottomLeft, topLeft, topRight, bottomRight), true
}

// measure attaches the position measurements to each goal. A measurement whose geometry is
// degenerate is skipped without affecting the others.
func (gd *GoalDetector) measure(goals []*Goal) []*Goal {
	for _, g := range goals {
		g.Measurements, g.ScreenAngular, g.AngularSize = gd.measureQuad(g.Quad, g.ClassifiedImage)
	}
	return goals
}

func (gd *GoalDetector) measureQuad(
	quad spatialmath.Quad,
	ci *segmentation.ClassifiedImage,
) ([]Measurement, r2.Point, r2.Point) {
	lens := ci.Image.Lens
	f := lens.FocalLength
	sensors := ci.Sensors
	rot := sensors.CameraRotation()
	camPos := sensors.CameraPosition()
	height, radius := gd.cfg.GoalHeight, gd.cfg.GoalDiameter/2
	halfHeight := r3.Vector{Z: height / 2}

	tl, tr := lens.ImageToScreen(quad.TopLeft), lens.ImageToScreen(quad.TopRight)
	bl, br := lens.ImageToScreen(quad.BottomLeft), lens.ImageToScreen(quad.BottomRight)
	rays := transform.BulkPixelToRay(lens, []r2.Point{quad.TopLeft, quad.TopRight, quad.BottomLeft, quad.BottomRight})
	ray := func(i int) r3.Vector {
		return r3.Vector{X: rays.At(i, 0), Y: rays.At(i, 1), Z: rays.At(i, 2)}
	}
	topRay := ray(0).Add(ray(1)).Normalize()
	baseRay := ray(2).Add(ray(3)).Normalize()
	along := func(distance float64, camRay r3.Vector) r3.Vector {
		return spatialmath.RotateVector(rot, camRay).Mul(distance).Add(camPos)
	}

	measurements := make([]Measurement, 0, 5)
	add := func(kind MeasurementKind, position r3.Vector, err error) {
		if err != nil {
			gd.logger.Debugw("dropping goal measurement", "kind", kind, "reason", err.Error())
			return
		}
		spherical := spatialmath.CartesianToSpherical(position)
		if math.IsNaN(spherical.X) || math.IsNaN(spherical.Y) || math.IsNaN(spherical.Z) ||
			math.IsInf(spherical.X, 0) {
			gd.logger.Debugw("dropping goal measurement", "kind", kind, "reason", transform.ErrNumericInstability.Error())
			return
		}
		measurements = append(measurements, Measurement{
			Kind:     kind,
			Position: spherical,
			Covariance: mat.NewSymDense(3, []float64{
				spherical.X * gd.cfg.MeasurementDistanceCovarianceFactor, 0, 0,
				0, gd.cfg.MeasurementBearingVariance, 0,
				0, 0, gd.cfg.MeasurementElevationVariance,
			}),
		})
	}

	addAlong := func(kind MeasurementKind, distance float64, err error, camRay, offset r3.Vector) {
		if err != nil {
			add(kind, r3.Vector{}, err)
			return
		}
		add(kind, along(distance, camRay).Add(offset), nil)
	}

	d, err := transform.WidthBasedDistanceToCircle(radius, bl, br, f)
	addAlong(WidthBase, d, err, baseRay, halfHeight)
	d, err = transform.WidthBasedDistanceToCircle(radius, tl, tr, f)
	addAlong(WidthTop, d, err, topRay, halfHeight.Mul(-1))

	topMid, bottomMid := tl.Add(tr).Mul(0.5), bl.Add(br).Mul(0.5)
	margin := gd.cfg.MeasurementEdgeMargin
	halfImage := float64(lens.Height) / 2
	topVisible := topMid.Y < halfImage-margin
	bottomVisible := bottomMid.Y > -halfImage+margin

	if topVisible {
		top, err := transform.ProjectCamToPlane(topRay, sensors.CamToGround, spatialmath.GroundPlane(height))
		add(PlaneTop, top.Sub(halfHeight), err)
		if bottomVisible {
			d, err := transform.DistanceToVerticalObject(topMid, bottomMid, height, sensors.CameraHeight(), f)
			addAlong(Height, d, err, baseRay, halfHeight)
		}
	}
	if bottomVisible {
		base, err := transform.ProjectCamToPlane(baseRay, sensors.CamToGround, spatialmath.GroundPlane(0))
		add(PlaneBase, base.Add(halfHeight), err)
	}

	centre := tl.Add(tr).Add(bl).Add(br).Mul(0.25)
	screenAngular := r2.Point{X: math.Atan(centre.X / f), Y: math.Atan(centre.Y / f)}
	angularSize := r2.Point{
		X: 2 * math.Atan(quad.AverageWidth()/(2*f)),
		Y: 2 * math.Atan(quad.AverageHeight()/(2*f)),
	}
	return measurements, screenAngular, angularSize
}

// assignSides labels a pair of goals left and right by their centres. Any other number of goals
// stays Unknown.
func assignSides(goals []*Goal) []*Goal {
	if len(goals) != 2 {
		return goals
	}
	if goals[0].Quad.Centre().X < goals[1].Quad.Centre().X {
		goals[0].Side, goals[1].Side = Left, Right
	} else {
		goals[0].Side, goals[1].Side = Right, Left
	}
	return goals
}

func toR2(p image.Point) r2.Point {
	return r2.Point{X: float64(p.X), Y: float64(p.Y)}
}
