// Package forecast fits a Gaussian Process to an aligned dataset and predicts
// the horizon rows with confidence bounds.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/marweda/water-level-forecast/internal/domain"
	"github.com/marweda/water-level-forecast/internal/gp"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Config holds per-gauge forecasting options.
type Config struct {
	ConfidenceLevel   float64
	MinTrainingPoints int
	// MaxTrainingPoints keeps only the most recent rows. Zero means no cap.
	MaxTrainingPoints int
	// MaxIterations caps the hyperparameter search. Zero uses the model default.
	MaxIterations int
}

// Validate checks the options.
func (c Config) Validate() error {
	if !(c.ConfidenceLevel > 0 && c.ConfidenceLevel < 1) {
		return fmt.Errorf("confidence level must be in (0, 1), got %g", c.ConfidenceLevel)
	}
	if c.MinTrainingPoints < 2 {
		return fmt.Errorf("min training points must be at least 2, got %d", c.MinTrainingPoints)
	}
	if c.MaxTrainingPoints != 0 && c.MaxTrainingPoints < c.MinTrainingPoints {
		return fmt.Errorf("max training points %d below min %d", c.MaxTrainingPoints, c.MinTrainingPoints)
	}
	if c.MaxIterations < 0 {
		return fmt.Errorf("negative max iterations %d", c.MaxIterations)
	}
	return nil
}

// Prediction is the model output for one dataset before packaging.
type Prediction struct {
	Unit            domain.Unit
	ConfidenceLevel float64
	Regressors      []string
	Hyperparameters map[string]float64
	LogLikelihood   float64
	Iterations      int
	TrainingWindow  domain.TrainingWindow
	Steps           []domain.ForecastStep
}

// Forecaster turns aligned datasets into horizon predictions.
type Forecaster struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Forecaster.
func New(cfg Config, logger *slog.Logger) (*Forecaster, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Forecaster{cfg: cfg, logger: logger}, nil
}

// column scales one regressor to zero mean and unit variance over the
// training rows.
type column struct {
	index     int
	name      string
	mean, std float64
}

// Forecast fits the model on the dataset's training rows and predicts its
// prediction rows. Steps whose regressors are all missing use the trend
// component only, and their interval never narrows relative to the step
// before.
func (f *Forecaster) Forecast(ctx context.Context, ds domain.AlignedDataset) (Prediction, error) {
	train := ds.TrainingRows()
	if len(train) < f.cfg.MinTrainingPoints {
		return Prediction{}, &domain.InsufficientDataError{EntityID: ds.EntityID, Have: len(train), Need: f.cfg.MinTrainingPoints}
	}
	if limit := f.cfg.MaxTrainingPoints; limit > 0 && len(train) > limit {
		train = train[len(train)-limit:]
	}
	horizon := ds.PredictionRows()
	if len(horizon) == 0 {
		return Prediction{}, fmt.Errorf("entity %q: dataset has no horizon rows", ds.EntityID)
	}

	origin := train[0].Timestamp
	cols := scaleColumns(ds.Columns, train)

	x := mat.NewDense(len(train), 1+len(cols), nil)
	y := make([]float64, len(train))
	for i, row := range train {
		x.Set(i, 0, days(row.Timestamp.Sub(origin)))
		for k, c := range cols {
			x.Set(i, k+1, c.scale(row.Regressors[c.index]))
		}
		y[i] = row.Target.Value
	}

	span := days(train[len(train)-1].Timestamp.Sub(origin))
	interval := days(ds.Interval)
	if interval <= 0 || interval > span {
		interval = span / float64(len(train)-1)
	}
	gcfg := gp.DefaultConfig(span, interval)
	if f.cfg.MaxIterations > 0 {
		gcfg.MaxIterations = f.cfg.MaxIterations
	}

	start := time.Now()
	model, err := gp.Fit(ctx, x, y, gcfg)
	if err != nil {
		var de *domain.FitDivergenceError
		if errors.As(err, &de) {
			de.EntityID = ds.EntityID
		}
		return Prediction{}, err
	}
	f.logger.Debug("gp fitted",
		"entity_id", ds.EntityID,
		"training_points", len(train),
		"regressors", len(cols),
		"iterations", model.Iterations(),
		"duration", time.Since(start),
	)

	z := distuv.UnitNormal.Quantile(0.5 + f.cfg.ConfidenceLevel/2)
	steps := make([]domain.ForecastStep, 0, len(horizon))
	prevVar := 0.0
	for i, row := range horizon {
		t := days(row.Timestamp.Sub(origin))
		var regs []float64
		trendOnly := true
		for _, c := range cols {
			if !row.Regressors[c.index].Missing {
				trendOnly = false
				break
			}
		}
		if !trendOnly {
			regs = make([]float64, len(cols))
			for k, c := range cols {
				regs[k] = c.scale(row.Regressors[c.index])
			}
		}

		mean, variance, err := model.Predict(t, regs)
		if err != nil {
			return Prediction{}, fmt.Errorf("entity %q: predict %s: %w", ds.EntityID, row.Timestamp.Format(time.RFC3339), err)
		}
		if trendOnly && i > 0 && variance < prevVar {
			variance = prevVar
		}
		prevVar = variance

		half := z * math.Sqrt(variance)
		steps = append(steps, domain.ForecastStep{
			Timestamp:  row.Timestamp,
			Mean:       mean,
			LowerBound: mean - half,
			UpperBound: mean + half,
			TrendOnly:  trendOnly,
			Quality:    domain.QualityForecast,
		})
	}

	names := make([]string, len(cols))
	for k, c := range cols {
		names[k] = c.name
	}
	return Prediction{
		Unit:            ds.Unit,
		ConfidenceLevel: f.cfg.ConfidenceLevel,
		Regressors:      names,
		Hyperparameters: hyperparameters(model, names),
		LogLikelihood:   model.LogLikelihood(),
		Iterations:      model.Iterations(),
		TrainingWindow: domain.TrainingWindow{
			Start:  origin,
			End:    train[len(train)-1].Timestamp,
			Points: len(train),
		},
		Steps: steps,
	}, nil
}

// scaleColumns keeps the regressor columns with at least one value in the
// training rows and computes their scaling.
func scaleColumns(names []string, train []domain.Row) []column {
	var cols []column
	for j, name := range names {
		var vals []float64
		for _, row := range train {
			if c := row.Regressors[j]; !c.Missing {
				vals = append(vals, c.Value)
			}
		}
		if len(vals) == 0 {
			continue
		}
		mean, std := stat.MeanStdDev(vals, nil)
		if !(std > 0) {
			std = 1
		}
		cols = append(cols, column{index: j, name: name, mean: mean, std: std})
	}
	return cols
}

// scale standardizes a cell. Missing cells take the column mean, which is
// zero after scaling.
func (c column) scale(cell domain.Cell) float64 {
	if cell.Missing {
		return 0
	}
	return (cell.Value - c.mean) / c.std
}

func hyperparameters(m *gp.Model, regressors []string) map[string]float64 {
	h := m.Hyperparameters()
	_, std := m.TargetScale()
	out := map[string]float64{
		"trend_signal_std":   h.TrendSignal * std,
		"trend_length_scale": h.TrendLength,
		"short_signal_std":   h.ShortSignal * std,
		"short_length_scale": h.ShortLength,
		"noise_std":          h.Noise * std,
	}
	for k, name := range regressors {
		out["length_scale_"+name] = h.RegressorLengths[k]
	}
	return out
}

func days(d time.Duration) float64 { return d.Hours() / 24 }
