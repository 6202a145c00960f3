package objectdetection

import (
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/golang/geo/r2"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"go.viam.com/fieldvision/rimage"
	"go.viam.com/fieldvision/vision/lut"
	"go.viam.com/fieldvision/vision/segmentation"
)

// DebugSegment is a classified run drawn in a debug view.
type DebugSegment struct {
	Class lut.Class   `json:"class"`
	Start image.Point `json:"start"`
	End   image.Point `json:"end"`
}

// DebugSnapshot is what a frame looked like to the pipeline: its segments, both horizons and the
// goals found in it.
type DebugSnapshot struct {
	FrameID            uuid.UUID      `json:"frame_id"`
	CameraID           int            `json:"camera_id"`
	Width              int            `json:"width"`
	Height             int            `json:"height"`
	HorizontalSegments []DebugSegment `json:"horizontal_segments"`
	VerticalSegments   []DebugSegment `json:"vertical_segments"`
	VisualHorizon      []image.Point  `json:"visual_horizon"`
	KinematicHorizon   [2]r2.Point    `json:"kinematic_horizon"`
	Goals              []DebugGoal    `json:"goals"`
}

// DebugGoal is a goal quad and side.
type DebugGoal struct {
	Corners []r2.Point `json:"corners"`
	Side    Side       `json:"side"`
}

// NewDebugSnapshot captures ci and goals. Unclassified segments are left out.
func NewDebugSnapshot(ci *segmentation.ClassifiedImage, goals []*Goal) (*DebugSnapshot, error) {
	if ci == nil {
		return nil, errors.New("no classified image")
	}
	width := float64(ci.Image.Width() - 1)
	snap := &DebugSnapshot{
		FrameID:            ci.FrameID,
		CameraID:           ci.CameraID,
		Width:              ci.Image.Width(),
		Height:             ci.Image.Height(),
		HorizontalSegments: debugSegments(ci.Horizontal),
		VerticalSegments:   debugSegments(ci.Vertical),
		VisualHorizon:      append([]image.Point(nil), ci.VisualHorizon...),
		KinematicHorizon: [2]r2.Point{
			{X: 0, Y: ci.KinematicHorizon.Y(0)},
			{X: width, Y: ci.KinematicHorizon.Y(width)},
		},
		Goals: make([]DebugGoal, 0, len(goals)),
	}
	for _, g := range goals {
		snap.Goals = append(snap.Goals, DebugGoal{Corners: g.Quad.Corners(), Side: g.Side})
	}
	return snap, nil
}

func debugSegments(set *segmentation.SegmentSet) []DebugSegment {
	if set == nil {
		return nil
	}
	out := make([]DebugSegment, 0, set.N())
	for _, s := range set.Segments {
		if s.Class == lut.Unclassified {
			continue
		}
		out = append(out, DebugSegment{Class: s.Class, Start: s.Start, End: s.End})
	}
	return out
}

var classColors = map[lut.Class]color.Color{
	lut.Field:       color.NRGBA{0, 160, 0, 255},
	lut.Ball:        color.NRGBA{255, 128, 0, 255},
	lut.Goal:        color.NRGBA{255, 255, 0, 255},
	lut.Line:        color.NRGBA{255, 255, 255, 255},
	lut.CyanTeam:    color.NRGBA{0, 255, 255, 255},
	lut.MagentaTeam: color.NRGBA{255, 0, 255, 255},
}

// Overlay draws snap on top of img.
func Overlay(img image.Image, snap *DebugSnapshot) (image.Image, error) {
	if snap == nil {
		return nil, errors.New("no debug snapshot")
	}
	bounds := img.Bounds()
	if bounds.Dx() != snap.Width || bounds.Dy() != snap.Height {
		return nil, errors.Errorf("snapshot of a %dx%d frame cannot overlay a %dx%d image",
			snap.Width, snap.Height, bounds.Dx(), bounds.Dy())
	}
	dc := gg.NewContextForImage(img)

	for _, segments := range [][]DebugSegment{snap.HorizontalSegments, snap.VerticalSegments} {
		for _, s := range segments {
			rimage.DrawSegment(dc, s.Start, s.End, classColors[s.Class], 1)
		}
	}

	horizon := make([]r2.Point, 0, len(snap.VisualHorizon))
	for _, p := range snap.VisualHorizon {
		horizon = append(horizon, r2.Point{X: float64(p.X), Y: float64(p.Y)})
	}
	rimage.DrawPolyline(dc, horizon, color.NRGBA{0, 0, 255, 255}, 2)
	rimage.DrawPolyline(dc, snap.KinematicHorizon[:], color.NRGBA{255, 0, 0, 255}, 1)

	for i, g := range snap.Goals {
		rimage.DrawPolygonEmpty(dc, g.Corners, color.NRGBA{255, 0, 255, 255}, 2)
		top := g.Corners[1]
		rimage.DrawString(dc, fmt.Sprintf("goal %d %s", i, g.Side), image.Pt(int(top.X), int(top.Y)-14),
			color.NRGBA{255, 0, 255, 255}, 12)
	}
	return dc.Image(), nil
}
