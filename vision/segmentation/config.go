package segmentation

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
)

// CoarseConfig tunes which runs the coarse scanner keeps. Sizes are metres unless named pixels.
type CoarseConfig struct {
	MinSizePixels       float64 `json:"min_size_pixels"`
	CameraHeight        float64 `json:"camera_height"`
	MinPostWidth        float64 `json:"min_post_width"`
	MinPostHeight       float64 `json:"min_post_height"`
	MinGroundObjectSize float64 `json:"min_ground_object_size"`
}

// DefaultCoarseConfig returns the coarse scanner defaults.
func DefaultCoarseConfig() CoarseConfig {
	return CoarseConfig{
		MinSizePixels:       3,
		CameraHeight:        1.2,
		MinPostWidth:        0.1,
		MinPostHeight:       0.8,
		MinGroundObjectSize: 0.3,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *CoarseConfig) Validate(path string) error {
	var err error
	for _, v := range []struct {
		name  string
		value float64
	}{
		{"min_size_pixels", cfg.MinSizePixels},
		{"camera_height", cfg.CameraHeight},
		{"min_post_width", cfg.MinPostWidth},
		{"min_post_height", cfg.MinPostHeight},
		{"min_ground_object_size", cfg.MinGroundObjectSize},
	} {
		if !(v.value > 0) {
			err = multierr.Append(err, errors.Errorf("%s must be positive, got %v", v.name, v.value))
		}
	}
	if err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	return nil
}

// ClassifierConfig controls where the classifier scans. Spacings and sizes are in pixels.
type ClassifierConfig struct {
	VisualHorizonSpacing            int `json:"visual_horizon_spacing"`
	VisualHorizonBuffer             int `json:"visual_horizon_buffer"`
	VisualHorizonMinimumSegmentSize int `json:"visual_horizon_minimum_segment_size"`
	VisualHorizonSubsampling        int `json:"visual_horizon_subsampling"`

	GoalLineSpacing    int     `json:"goal_line_spacing"`
	GoalSubsampling    int     `json:"goal_subsampling"`
	GoalExtensionScale float64 `json:"goal_extension_scale"`
	GoalLineDensity    int     `json:"goal_line_density"`

	BallLineSpacing int `json:"ball_line_spacing"`
	// A cluster of ball runs is rescanned when it holds at least BallMinimumIntersectionsCoarse
	// runs, and kept when the rescan finds at least BallMinimumIntersectionsFine ball runs.
	BallMinimumIntersectionsCoarse int `json:"ball_minimum_intersections_coarse"`
	BallMinimumIntersectionsFine   int `json:"ball_minimum_intersections_fine"`
	// BallSearchCircleScale sets the rescan circle radius as a multiple of the cluster size.
	BallSearchCircleScale float64 `json:"ball_search_circle_scale"`
	// BallMaximumVerticalClusterSpacing is the largest vertical gap between two ball runs of one
	// cluster.
	BallMaximumVerticalClusterSpacing int `json:"ball_maximum_vertical_cluster_spacing"`
	// Rescan rows are ball_line_spacing / BallHorizontalSubsampleFactor apart.
	BallHorizontalSubsampleFactor float64 `json:"ball_horizontal_subsample_factor"`
	// BallRadius in metres gives the smallest search circle for a cluster at its ground distance.
	BallRadius float64 `json:"ball_radius"`

	Coarse CoarseConfig `json:"coarse"`
}

// DefaultClassifierConfig returns the classifier defaults.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		VisualHorizonSpacing:            20,
		VisualHorizonBuffer:             0,
		VisualHorizonMinimumSegmentSize: 4,
		VisualHorizonSubsampling:        1,
		GoalLineSpacing:                 20,
		GoalSubsampling:                 1,
		GoalExtensionScale:              2.0,
		GoalLineDensity:                 2,
		BallLineSpacing:                 10,

		BallMinimumIntersectionsCoarse:    2,
		BallMinimumIntersectionsFine:      2,
		BallSearchCircleScale:             1.0,
		BallMaximumVerticalClusterSpacing: 5,
		BallHorizontalSubsampleFactor:     2,
		BallRadius:                        0.05,

		Coarse: DefaultCoarseConfig(),
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *ClassifierConfig) Validate(path string) error {
	var err error
	for _, v := range []struct {
		name  string
		value int
	}{
		{"visual_horizon_spacing", cfg.VisualHorizonSpacing},
		{"visual_horizon_subsampling", cfg.VisualHorizonSubsampling},
		{"goal_line_spacing", cfg.GoalLineSpacing},
		{"goal_subsampling", cfg.GoalSubsampling},
		{"goal_line_density", cfg.GoalLineDensity},
		{"ball_line_spacing", cfg.BallLineSpacing},
		{"ball_minimum_intersections_coarse", cfg.BallMinimumIntersectionsCoarse},
		{"ball_minimum_intersections_fine", cfg.BallMinimumIntersectionsFine},
	} {
		if v.value < 1 {
			err = multierr.Append(err, errors.Errorf("%s must be at least 1, got %d", v.name, v.value))
		}
	}
	if cfg.VisualHorizonBuffer < 0 {
		err = multierr.Append(err, errors.Errorf("visual_horizon_buffer cannot be negative, got %d", cfg.VisualHorizonBuffer))
	}
	if cfg.VisualHorizonMinimumSegmentSize < 0 {
		err = multierr.Append(err, errors.Errorf(
			"visual_horizon_minimum_segment_size cannot be negative, got %d", cfg.VisualHorizonMinimumSegmentSize))
	}
	if cfg.BallMaximumVerticalClusterSpacing < 0 {
		err = multierr.Append(err, errors.Errorf(
			"ball_maximum_vertical_cluster_spacing cannot be negative, got %d", cfg.BallMaximumVerticalClusterSpacing))
	}
	for _, v := range []struct {
		name  string
		value float64
	}{
		{"ball_search_circle_scale", cfg.BallSearchCircleScale},
		{"ball_radius", cfg.BallRadius},
	} {
		if !(v.value > 0) {
			err = multierr.Append(err, errors.Errorf("%s must be positive, got %v", v.name, v.value))
		}
	}
	if !(cfg.BallHorizontalSubsampleFactor >= 1) {
		err = multierr.Append(err, errors.Errorf(
			"ball_horizontal_subsample_factor must be at least 1, got %v", cfg.BallHorizontalSubsampleFactor))
	}
	if cfg.GoalExtensionScale < 0 {
		err = multierr.Append(err, errors.Errorf("goal_extension_scale cannot be negative, got %v", cfg.GoalExtensionScale))
	}
	if err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	return cfg.Coarse.Validate(path + ".coarse")
}
