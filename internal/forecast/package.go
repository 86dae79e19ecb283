package forecast

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/marweda/water-level-forecast/internal/domain"
)

// Package wraps a prediction into the immutable result persisted for a gauge.
// Every call gets a fresh run ID; slices and maps are copied so the result
// does not alias the prediction.
func Package(p Prediction, entityID string, generatedAt time.Time) domain.ForecastResult {
	regressors := slices.Clone(p.Regressors)
	if regressors == nil {
		regressors = []string{}
	}
	hp := maps.Clone(p.Hyperparameters)
	if hp == nil {
		hp = map[string]float64{}
	}
	return domain.ForecastResult{
		RunID:           uuid.NewString(),
		EntityID:        entityID,
		GeneratedAt:     generatedAt.UTC(),
		Unit:            p.Unit,
		ConfidenceLevel: p.ConfidenceLevel,
		Regressors:      regressors,
		Hyperparameters: hp,
		LogLikelihood:   p.LogLikelihood,
		Iterations:      p.Iterations,
		TrainingWindow:  p.TrainingWindow,
		Steps:           slices.Clone(p.Steps),
	}
}
