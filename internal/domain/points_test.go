package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testForecastResult() ForecastResult {
	generated := time.Date(2024, 5, 1, 6, 0, 0, 123456789, time.UTC)
	return ForecastResult{
		RunID:           "6f1c1c1e-5d0a-4a5e-9c7e-1d6f3b2a9e10",
		EntityID:        "593647aa-9fea-43ec-a7d6-6476a76ae868",
		GeneratedAt:     generated,
		Unit:            UnitCentimeter,
		ConfidenceLevel: 0.95,
		Regressors:      []string{"rain", "rain_lag6h"},
		Hyperparameters: map[string]float64{
			"trend_signal_std":   0.8123456789,
			"trend_length_scale": 12.5,
			"noise_std":          0.0314159,
		},
		LogLikelihood: -12.345678901234,
		Iterations:    37,
		TrainingWindow: TrainingWindow{
			Start:  time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
			End:    time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			Points: 721,
		},
		Steps: []ForecastStep{
			{Timestamp: time.Date(2024, 5, 1, 1, 0, 0, 0, time.UTC), Mean: 201.123456789, LowerBound: 198.1, UpperBound: 204.146913578, Quality: QualityForecast},
			{Timestamp: time.Date(2024, 5, 1, 2, 0, 0, 0, time.UTC), Mean: 201.5, LowerBound: 197.7, UpperBound: 205.3, TrendOnly: true, Quality: QualityForecast},
		},
	}
}

func TestForecastPoints_Schema(t *testing.T) {
	res := testForecastResult()
	points := ForecastPoints(res)

	require.Len(t, points, 3)
	model := points[0]
	assert.Equal(t, MeasurementForecastModel, model.Measurement)
	assert.Equal(t, res.EntityID, model.Tags["entity_id"])
	assert.Equal(t, "2024-05-01T06:00:00.123456789Z", model.Tags["generated_at"])
	assert.Equal(t, "rain,rain_lag6h", model.Tags["regressors"])
	assert.Equal(t, 12.5, model.Fields["hp_trend_length_scale"])
	assert.Equal(t, 721.0, model.Fields["training_points"])

	step := points[2]
	assert.Equal(t, MeasurementForecast, step.Measurement)
	assert.Equal(t, "forecast", step.Tags["quality"])
	assert.Equal(t, 1.0, step.Fields["trend_only"])
	assert.Equal(t, res.Steps[1].Timestamp, step.Time)
}

func TestForecastFromPoints_RoundTrip(t *testing.T) {
	res := testForecastResult()
	points := ForecastPoints(res)
	// Stores return rows in time order, not write order.
	points[0], points[2] = points[2], points[0]

	got, err := ForecastFromPoints(points)
	require.NoError(t, err)
	assert.Equal(t, res, got)
}

func TestForecastFromPoints_NoRegressors(t *testing.T) {
	res := testForecastResult()
	res.Regressors = []string{}

	got, err := ForecastFromPoints(ForecastPoints(res))
	require.NoError(t, err)
	assert.Empty(t, got.Regressors)
}

func TestForecastFromPoints_Errors(t *testing.T) {
	points := ForecastPoints(testForecastResult())

	t.Run("missing model point", func(t *testing.T) {
		_, err := ForecastFromPoints(points[1:])
		assert.ErrorContains(t, err, "missing forecast model point")
	})

	t.Run("duplicate model point", func(t *testing.T) {
		_, err := ForecastFromPoints(append([]Point{points[0]}, points...))
		assert.ErrorContains(t, err, "more than one")
	})

	t.Run("foreign measurement", func(t *testing.T) {
		_, err := ForecastFromPoints(append(points, Point{Measurement: "water_level"}))
		assert.ErrorContains(t, err, "unexpected measurement")
	})
}

func TestSeriesPoints(t *testing.T) {
	ts := TimeSeries{
		EntityID: "dwd:01048",
		Kind:     KindPrecipitation,
		Unit:     UnitMillimeter,
		Interval: time.Hour,
		Records: []ValidatedRecord{
			{EntityID: "dwd:01048", Kind: KindPrecipitation, Timestamp: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), Value: 0.4, Unit: UnitMillimeter, Quality: QualityMeasured},
		},
	}

	points := SeriesPoints(ts)
	require.Len(t, points, 1)
	assert.Equal(t, "precipitation", points[0].Measurement)
	assert.Equal(t, "measured", points[0].Tags["quality"])
	assert.Equal(t, 0.4, points[0].Fields["value"])
}
