// Package ransac fits several instances of a model to noisy samples with random sample consensus.
package ransac

import (
	"math/rand"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/fieldvision/utils"
)

// ErrDegenerate means no model could be fitted to the samples.
var ErrDegenerate = errors.New("no model could be fitted")

// Model is a shape that can be fitted to samples of type T.
type Model[T any] interface {
	// RequiredPoints is how many samples Regenerate needs.
	RequiredPoints() int
	// Regenerate fits the model exactly to the given samples. It returns false when they are
	// degenerate.
	Regenerate(points []T) bool
	CalculateError(p T) float64
	// Refine improves the model using its consensus set.
	Refine(inliers []T, threshold float64)
}

// Config controls a fit.
type Config struct {
	MinimumPointsForConsensus   int     `json:"minimum_points_for_consensus"`
	ConsensusErrorThreshold     float64 `json:"consensus_error_threshold"`
	MaximumIterationsPerFitting int     `json:"maximum_iterations_per_fitting"`
	MaximumFittedModels         int     `json:"maximum_fitted_models"`
}

// DefaultConfig returns the defaults used for goal fitting.
func DefaultConfig() Config {
	return Config{
		MinimumPointsForConsensus:   6,
		ConsensusErrorThreshold:     3,
		MaximumIterationsPerFitting: 500,
		MaximumFittedModels:         5,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	var err error
	if cfg.MinimumPointsForConsensus < 1 {
		err = multierr.Append(err, errors.Errorf(
			"minimum_points_for_consensus must be at least 1, got %d", cfg.MinimumPointsForConsensus))
	}
	if !(cfg.ConsensusErrorThreshold > 0) {
		err = multierr.Append(err, errors.Errorf(
			"consensus_error_threshold must be positive, got %v", cfg.ConsensusErrorThreshold))
	}
	if cfg.MaximumIterationsPerFitting < 1 {
		err = multierr.Append(err, errors.Errorf(
			"maximum_iterations_per_fitting must be at least 1, got %d", cfg.MaximumIterationsPerFitting))
	}
	if cfg.MaximumFittedModels < 1 {
		err = multierr.Append(err, errors.Errorf(
			"maximum_fitted_models must be at least 1, got %d", cfg.MaximumFittedModels))
	}
	if err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	return nil
}

// Result is one fitted model. Its consensus set is points[First:Last] of the slice passed to
// FitModels.
type Result[M any] struct {
	Model M
	First int
	Last  int
}

// FitModels repeatedly fits a model to the samples not yet claimed by an earlier model. points is
// reordered so that each model's inliers are contiguous, in the order the models were found.
// Fitting stops after cfg.MaximumFittedModels models or when no model reaches consensus. With the
// same rand source and input order the results are identical. ErrDegenerate is returned when no
// model at all could be fitted.
func FitModels[T any, M Model[T]](newModel func() M, points []T, cfg Config, r *rand.Rand) ([]Result[M], error) {
	required := newModel().RequiredPoints()
	minimum := cfg.MinimumPointsForConsensus
	if minimum < required {
		minimum = required
	}

	results := make([]Result[M], 0, cfg.MaximumFittedModels)
	first := 0
	for len(results) < cfg.MaximumFittedModels && len(points)-first >= minimum {
		model, consensus, ok := findModel(newModel, points[first:], required, cfg, r)
		if !ok || consensus < minimum {
			break
		}
		remaining := points[first:]
		inliers := partition(remaining, func(p T) bool {
			return model.CalculateError(p) < cfg.ConsensusErrorThreshold
		})
		model.Refine(remaining[:inliers], cfg.ConsensusErrorThreshold)
		results = append(results, Result[M]{Model: model, First: first, Last: first + inliers})
		first += inliers
	}
	if len(results) == 0 {
		return nil, ErrDegenerate
	}
	return results, nil
}

// findModel returns the model with the largest consensus over a number of random trials.
func findModel[T any, M Model[T]](
	newModel func() M,
	points []T,
	required int,
	cfg Config,
	r *rand.Rand,
) (best M, bestConsensus int, found bool) {
	sample := make([]T, required)
	indices := make([]int, 0, required)
	for i := 0; i < cfg.MaximumIterationsPerFitting; i++ {
		indices = indices[:0]
		for len(indices) < required {
			candidate := utils.SampleRandomIntRange(0, len(points)-1, r)
			if !lo.Contains(indices, candidate) {
				indices = append(indices, candidate)
			}
		}
		for j, index := range indices {
			sample[j] = points[index]
		}

		model := newModel()
		if !model.Regenerate(sample) {
			continue
		}
		consensus := 0
		for _, p := range points {
			if model.CalculateError(p) < cfg.ConsensusErrorThreshold {
				consensus++
			}
		}
		if !found || consensus > bestConsensus {
			best, bestConsensus, found = model, consensus, true
		}
	}
	return best, bestConsensus, found
}

// partition moves the points satisfying pred to the front, keeping the relative order of both
// groups, and returns how many there were.
func partition[T any](points []T, pred func(T) bool) int {
	rest := make([]T, 0, len(points))
	n := 0
	for _, p := range points {
		if pred(p) {
			points[n] = p
			n++
		} else {
			rest = append(rest, p)
		}
	}
	copy(points[n:], rest)
	return n
}
