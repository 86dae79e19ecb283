package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Measurement names of the time-series store schema.
const (
	MeasurementForecast      = "water_level_forecast"
	MeasurementForecastModel = "water_level_forecast_model"
)

const hyperparameterPrefix = "hp_"

// Point is one row of the time-series store: measurement, tags, value fields
// and a timestamp.
type Point struct {
	Measurement string             `json:"measurement"`
	Tags        map[string]string  `json:"tags"`
	Fields      map[string]float64 `json:"fields"`
	Time        time.Time          `json:"time"`
}

// SeriesPoints maps a TimeSeries onto store points, one per record. The
// measurement is the series kind.
func SeriesPoints(ts TimeSeries) []Point {
	points := make([]Point, len(ts.Records))
	for i, r := range ts.Records {
		points[i] = Point{
			Measurement: string(ts.Kind),
			Tags: map[string]string{
				"entity_id": r.EntityID,
				"quality":   string(r.Quality),
				"unit":      string(r.Unit),
			},
			Fields: map[string]float64{"value": r.Value},
			Time:   r.Timestamp,
		}
	}
	return points
}

// ForecastPoints maps a ForecastResult onto store points: one model point at
// GeneratedAt carrying provenance, followed by one point per horizon step.
func ForecastPoints(res ForecastResult) []Point {
	generatedAt := res.GeneratedAt.UTC().Format(time.RFC3339Nano)

	modelFields := map[string]float64{
		"confidence_level":        res.ConfidenceLevel,
		"training_points":         float64(res.TrainingWindow.Points),
		"log_marginal_likelihood": res.LogLikelihood,
		"iterations":              float64(res.Iterations),
	}
	for k, v := range res.Hyperparameters {
		modelFields[hyperparameterPrefix+k] = v
	}

	points := make([]Point, 0, len(res.Steps)+1)
	points = append(points, Point{
		Measurement: MeasurementForecastModel,
		Tags: map[string]string{
			"entity_id":      res.EntityID,
			"run_id":         res.RunID,
			"generated_at":   generatedAt,
			"unit":           string(res.Unit),
			"regressors":     strings.Join(res.Regressors, ","),
			"training_start": res.TrainingWindow.Start.UTC().Format(time.RFC3339Nano),
			"training_end":   res.TrainingWindow.End.UTC().Format(time.RFC3339Nano),
		},
		Fields: modelFields,
		Time:   res.GeneratedAt,
	})

	for _, s := range res.Steps {
		trendOnly := 0.0
		if s.TrendOnly {
			trendOnly = 1
		}
		points = append(points, Point{
			Measurement: MeasurementForecast,
			Tags: map[string]string{
				"entity_id":    res.EntityID,
				"run_id":       res.RunID,
				"generated_at": generatedAt,
				"quality":      string(s.Quality),
			},
			Fields: map[string]float64{
				"mean":        s.Mean,
				"lower_bound": s.LowerBound,
				"upper_bound": s.UpperBound,
				"trend_only":  trendOnly,
			},
			Time: s.Timestamp,
		})
	}
	return points
}

// ForecastFromPoints rebuilds a ForecastResult from the points written by
// ForecastPoints. Points may arrive in any order.
func ForecastFromPoints(points []Point) (ForecastResult, error) {
	var (
		res   ForecastResult
		model *Point
	)
	steps := make([]ForecastStep, 0, len(points))

	for i := range points {
		p := points[i]
		switch p.Measurement {
		case MeasurementForecastModel:
			if model != nil {
				return ForecastResult{}, errors.New("more than one forecast model point")
			}
			model = &points[i]
		case MeasurementForecast:
			steps = append(steps, ForecastStep{
				Timestamp:  p.Time,
				Mean:       p.Fields["mean"],
				LowerBound: p.Fields["lower_bound"],
				UpperBound: p.Fields["upper_bound"],
				TrendOnly:  p.Fields["trend_only"] != 0,
				Quality:    Quality(p.Tags["quality"]),
			})
		default:
			return ForecastResult{}, fmt.Errorf("unexpected measurement %q", p.Measurement)
		}
	}
	if model == nil {
		return ForecastResult{}, errors.New("missing forecast model point")
	}

	generatedAt, err := time.Parse(time.RFC3339Nano, model.Tags["generated_at"])
	if err != nil {
		return ForecastResult{}, fmt.Errorf("generated_at tag: %w", err)
	}
	start, err := time.Parse(time.RFC3339Nano, model.Tags["training_start"])
	if err != nil {
		return ForecastResult{}, fmt.Errorf("training_start tag: %w", err)
	}
	end, err := time.Parse(time.RFC3339Nano, model.Tags["training_end"])
	if err != nil {
		return ForecastResult{}, fmt.Errorf("training_end tag: %w", err)
	}

	hp := make(map[string]float64)
	for k, v := range model.Fields {
		if name, ok := strings.CutPrefix(k, hyperparameterPrefix); ok {
			hp[name] = v
		}
	}

	regressors := []string{}
	if r := model.Tags["regressors"]; r != "" {
		regressors = strings.Split(r, ",")
	}

	sort.Slice(steps, func(i, j int) bool { return steps[i].Timestamp.Before(steps[j].Timestamp) })

	res = ForecastResult{
		RunID:           model.Tags["run_id"],
		EntityID:        model.Tags["entity_id"],
		GeneratedAt:     generatedAt,
		Unit:            Unit(model.Tags["unit"]),
		ConfidenceLevel: model.Fields["confidence_level"],
		Regressors:      regressors,
		Hyperparameters: hp,
		LogLikelihood:   model.Fields["log_marginal_likelihood"],
		Iterations:      int(model.Fields["iterations"]),
		TrainingWindow: TrainingWindow{
			Start:  start,
			End:    end,
			Points: int(model.Fields["training_points"]),
		},
		Steps: steps,
	}
	return res, nil
}
