package domain

import (
	"errors"
	"time"
)

// ErrForecastNotFound is returned when no forecast is stored for a gauge.
var ErrForecastNotFound = errors.New("forecast not found")

// ForecastStep is the prediction for one horizon timestamp.
type ForecastStep struct {
	Timestamp  time.Time `json:"timestamp"`
	Mean       float64   `json:"mean"`
	LowerBound float64   `json:"lower_bound"`
	UpperBound float64   `json:"upper_bound"`
	// TrendOnly is set when no regressor value was available for the step and
	// the prediction falls back to the trend component.
	TrendOnly bool    `json:"trend_only"`
	Quality   Quality `json:"quality"`
}

// TrainingWindow bounds the observations a model was fitted on.
type TrainingWindow struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Points int       `json:"points"`
}

// ForecastResult is the immutable output of one forecasting run for one gauge.
// A later run supersedes it with a new result; it is never updated in place.
type ForecastResult struct {
	RunID           string             `json:"run_id"`
	EntityID        string             `json:"entity_id"`
	GeneratedAt     time.Time          `json:"generated_at"`
	Unit            Unit               `json:"unit"`
	ConfidenceLevel float64            `json:"confidence_level"`
	Regressors      []string           `json:"regressors"`
	Hyperparameters map[string]float64 `json:"hyperparameters"`
	LogLikelihood   float64            `json:"log_marginal_likelihood"`
	Iterations      int                `json:"iterations"`
	TrainingWindow  TrainingWindow     `json:"training_window"`
	Steps           []ForecastStep     `json:"steps"`
}
