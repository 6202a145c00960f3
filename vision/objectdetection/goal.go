package objectdetection

import (
	"encoding/json"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/fieldvision/rimage/transform"
	"go.viam.com/fieldvision/spatialmath"
	"go.viam.com/fieldvision/vision/segmentation"
)

// Side says which post of a goal a detection is.
type Side int

// The possible sides. A side is only known when two posts are seen together.
const (
	Unknown Side = iota
	Left
	Right
)

func (s Side) String() string {
	switch s {
	case Left:
		return "left"
	case Right:
		return "right"
	case Unknown:
		fallthrough
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// MeasurementKind names the method a measurement came from.
type MeasurementKind string

// The measurement methods.
const (
	// WidthBase uses the apparent width of the bottom edge.
	WidthBase MeasurementKind = "width_base"
	// WidthTop uses the apparent width of the top edge.
	WidthTop MeasurementKind = "width_top"
	// PlaneTop projects the top edge onto the plane at goal height.
	PlaneTop MeasurementKind = "plane_top"
	// PlaneBase projects the bottom edge onto the ground.
	PlaneBase MeasurementKind = "plane_base"
	// Height uses the apparent height of the post.
	Height MeasurementKind = "height"
)

// Measurement is one estimate of the position of a goal post's centre, as (distance, bearing,
// elevation) from the robot, with a diagonal covariance in the same order.
type Measurement struct {
	Kind       MeasurementKind
	Position   r3.Vector
	Covariance *mat.SymDense
}

// MarshalJSON writes the covariance as its three rows.
func (m Measurement) MarshalJSON() ([]byte, error) {
	rows := make([][]float64, 3)
	for i := range rows {
		rows[i] = make([]float64, 3)
		if m.Covariance == nil {
			continue
		}
		for j := range rows[i] {
			rows[i][j] = m.Covariance.At(i, j)
		}
	}
	return json.Marshal(struct {
		Kind       MeasurementKind `json:"kind"`
		Position   [3]float64      `json:"position"`
		Covariance [][]float64     `json:"covariance"`
	}{m.Kind, [3]float64{m.Position.X, m.Position.Y, m.Position.Z}, rows})
}

// Goal is a detected goal post. Goals are not modified once the detector returns them.
type Goal struct {
	Quad         spatialmath.Quad `json:"quad"`
	Side         Side             `json:"side"`
	Measurements []Measurement    `json:"measurements"`
	// ScreenAngular is the angle of the quad centre from the optical axis, horizontally and
	// vertically.
	ScreenAngular r2.Point `json:"screen_angular"`
	// AngularSize is the angle subtended by the quad's width and height.
	AngularSize r2.Point `json:"angular_size"`

	Sensors         *transform.Sensors            `json:"-"`
	ClassifiedImage *segmentation.ClassifiedImage `json:"-"`
}

// MeasurementSink consumes position measurements, such as a localisation filter. The returned
// value is the quality of the update as judged by the sink.
type MeasurementSink interface {
	MeasurementUpdate(measurement r3.Vector, covariance *mat.SymDense) float64
}

// Forward hands every measurement of the goal to sink in order and returns what sink reported for
// each.
func (g *Goal) Forward(sink MeasurementSink) ([]float64, error) {
	if sink == nil {
		return nil, errors.New("no measurement sink")
	}
	out := make([]float64, 0, len(g.Measurements))
	for _, m := range g.Measurements {
		out = append(out, sink.MeasurementUpdate(m.Position, m.Covariance))
	}
	return out, nil
}
