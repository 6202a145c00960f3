package objectdetection

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/fieldvision/utils"
	"go.viam.com/fieldvision/vision/ransac"
)

// GoalConfig tunes goal fitting, filtering and measurement. Angles are radians, lengths metres.
type GoalConfig struct {
	Ransac ransac.Config `json:"ransac"`

	// AspectRatioRange bounds height/width of a goal quad, both ends included.
	AspectRatioRange         [2]float64 `json:"aspect_ratio_range"`
	VisualHorizonBuffer      float64    `json:"visual_horizon_buffer"`
	MinimumGoalHorizonAngle  float64    `json:"minimum_goal_horizon_angle"`
	MaximumAngleBetweenGoals float64    `json:"maximum_angle_between_goals"`
	// MaximumVerticalGoalPerspectiveAngle limits how far the sides may converge upwards. Zero
	// turns the check off.
	MaximumVerticalGoalPerspectiveAngle float64 `json:"maximum_vertical_goal_perspective_angle"`

	MeasurementDistanceCovarianceFactor float64 `json:"measurement_distance_covariance_factor"`
	MeasurementBearingVariance          float64 `json:"measurement_bearing_variance"`
	MeasurementElevationVariance        float64 `json:"measurement_elevation_variance"`
	// MeasurementEdgeMargin is how close, in pixels, the top or bottom of a goal may come to the
	// image border before the measurements relying on that edge are skipped.
	MeasurementEdgeMargin float64 `json:"measurement_edge_margin"`

	GoalHeight   float64 `json:"goal_height"`
	GoalDiameter float64 `json:"goal_diameter"`

	RandomSeed int64 `json:"random_seed"`
}

// DefaultGoalConfig returns the goal detector defaults.
func DefaultGoalConfig() GoalConfig {
	return GoalConfig{
		Ransac:                              ransac.DefaultConfig(),
		AspectRatioRange:                    [2]float64{2.5, 15},
		VisualHorizonBuffer:                 0,
		MinimumGoalHorizonAngle:             1.2,
		MaximumAngleBetweenGoals:            0.2,
		MaximumVerticalGoalPerspectiveAngle: 0,
		MeasurementDistanceCovarianceFactor: 0.4,
		MeasurementBearingVariance:          0.01,
		MeasurementElevationVariance:        0.01,
		MeasurementEdgeMargin:               10,
		GoalHeight:                          0.9906,
		GoalDiameter:                        0.4826,
		RandomSeed:                          1,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *GoalConfig) Validate(path string) error {
	var err error
	if lo, hi := cfg.AspectRatioRange[0], cfg.AspectRatioRange[1]; !(lo > 0) || hi < lo {
		err = multierr.Append(err, errors.Errorf("aspect_ratio_range must be [min, max] with 0 < min <= max, got %v", cfg.AspectRatioRange))
	}
	for _, angle := range []struct {
		name  string
		value float64
	}{
		{"minimum_goal_horizon_angle", cfg.MinimumGoalHorizonAngle},
		{"maximum_angle_between_goals", cfg.MaximumAngleBetweenGoals},
		{"maximum_vertical_goal_perspective_angle", cfg.MaximumVerticalGoalPerspectiveAngle},
	} {
		if angle.value < 0 || angle.value > math.Pi/2 {
			err = multierr.Append(err, utils.NewOutOfRangeError(angle.name, angle.value, 0, math.Pi/2))
		}
	}
	for _, positive := range []struct {
		name  string
		value float64
	}{
		{"measurement_distance_covariance_factor", cfg.MeasurementDistanceCovarianceFactor},
		{"measurement_bearing_variance", cfg.MeasurementBearingVariance},
		{"measurement_elevation_variance", cfg.MeasurementElevationVariance},
		{"goal_height", cfg.GoalHeight},
		{"goal_diameter", cfg.GoalDiameter},
	} {
		if !(positive.value > 0) {
			err = multierr.Append(err, errors.Errorf("%s must be positive, got %v", positive.name, positive.value))
		}
	}
	if cfg.MeasurementEdgeMargin < 0 {
		err = multierr.Append(err, errors.Errorf("measurement_edge_margin cannot be negative, got %v", cfg.MeasurementEdgeMargin))
	}
	if err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	return cfg.Ransac.Validate(path + ".ransac")
}
