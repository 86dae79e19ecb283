package forecast

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/marweda/water-level-forecast/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

func testConfig() Config {
	return Config{ConfidenceLevel: 0.95, MinTrainingPoints: 5}
}

func newForecaster(t *testing.T, cfg Config) *Forecaster {
	t.Helper()
	f, err := New(cfg, slog.Default())
	require.NoError(t, err)
	return f
}

// dailyDataset builds len(values) daily training rows followed by horizon
// rows without a target. regs, when set, supplies one regressor column per
// row index; NaN marks a missing cell.
func dailyDataset(values []float64, horizon int, columns []string, regs func(i int) []float64) domain.AlignedDataset {
	ds := domain.AlignedDataset{
		EntityID: "gauge-1",
		Unit:     domain.UnitMeter,
		Interval: day,
		Columns:  columns,
	}
	for i := 0; i < len(values)+horizon; i++ {
		row := domain.Row{Timestamp: day0.Add(time.Duration(i) * day), Target: domain.MissingCell()}
		if i < len(values) {
			row.Target = domain.Cell{Value: values[i], Quality: domain.QualityMeasured}
		}
		for k := range columns {
			v := math.NaN()
			if regs != nil {
				v = regs(i)[k]
			}
			if math.IsNaN(v) {
				row.Regressors = append(row.Regressors, domain.MissingCell())
				continue
			}
			row.Regressors = append(row.Regressors, domain.Cell{Value: v, Quality: domain.QualityMeasured})
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestForecast_ConstantLevelIsTighterThanNoisyLevel(t *testing.T) {
	f := newForecaster(t, testConfig())

	flat, err := f.Forecast(context.Background(), dailyDataset(constant(30, 2.00), 7, nil, nil))
	require.NoError(t, err)
	require.Len(t, flat.Steps, 7)
	for _, s := range flat.Steps {
		assert.InDelta(t, 2.00, s.Mean, 0.05)
		assert.True(t, s.TrendOnly)
		assert.Equal(t, domain.QualityForecast, s.Quality)
	}

	rng := rand.New(rand.NewSource(11))
	values := make([]float64, 30)
	for i := range values {
		values[i] = 2.00 + 0.3*(2*rng.Float64()-1)
	}
	noisy, err := f.Forecast(context.Background(), dailyDataset(values, 7, nil, nil))
	require.NoError(t, err)

	last := len(flat.Steps) - 1
	flatWidth := flat.Steps[last].UpperBound - flat.Steps[last].LowerBound
	noisyWidth := noisy.Steps[last].UpperBound - noisy.Steps[last].LowerBound
	assert.Less(t, flatWidth, noisyWidth)
	assert.Equal(t, 30, flat.TrainingWindow.Points)
	assert.Equal(t, day0, flat.TrainingWindow.Start)
	assert.Equal(t, day0.Add(29*day), flat.TrainingWindow.End)
}

func TestForecast_WidthNeverShrinksWithoutRegressors(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	n, horizon := 40, 10
	rain := make([]float64, n+horizon)
	values := make([]float64, n)
	for i := range rain {
		rain[i] = math.Max(0, 3*rng.NormFloat64())
	}
	for i := range values {
		values[i] = 1.5 + 0.01*float64(i) + 0.02*rain[i] + 0.02*rng.NormFloat64()
	}
	// Regressor forecasts exist for the first two horizon steps only.
	regs := func(i int) []float64 {
		if i < n+2 {
			return []float64{rain[i]}
		}
		return []float64{math.NaN()}
	}

	f := newForecaster(t, testConfig())
	p, err := f.Forecast(context.Background(), dailyDataset(values, horizon, []string{"rain"}, regs))
	require.NoError(t, err)
	require.Len(t, p.Steps, horizon)

	assert.False(t, p.Steps[0].TrendOnly)
	assert.False(t, p.Steps[1].TrendOnly)
	for i := 1; i < len(p.Steps); i++ {
		s := p.Steps[i]
		assert.LessOrEqual(t, s.LowerBound, s.Mean)
		assert.GreaterOrEqual(t, s.UpperBound, s.Mean)
		if !s.TrendOnly {
			continue
		}
		prev := p.Steps[i-1]
		assert.GreaterOrEqual(t, s.UpperBound-s.LowerBound, prev.UpperBound-prev.LowerBound, "step %d", i)
	}
	assert.Equal(t, []string{"rain"}, p.Regressors)
	assert.Contains(t, p.Hyperparameters, "length_scale_rain")
	assert.Contains(t, p.Hyperparameters, "noise_std")
}

// Sixty days of level driven by rain fit within the default iteration cap
// across several noise realizations.
func TestForecast_LevelWithRainConvergesUnderDefaultCap(t *testing.T) {
	f := newForecaster(t, Config{ConfidenceLevel: 0.95, MinTrainingPoints: 5})
	for _, seed := range []int64{1, 2, 3, 4, 5} {
		rng := rand.New(rand.NewSource(seed))
		n, horizon := 60, 5
		rain := make([]float64, n+horizon)
		for i := range rain {
			rain[i] = math.Max(0, 4*rng.NormFloat64())
		}
		values := make([]float64, n)
		level := 2.0
		for i := range values {
			level = 0.9*level + 0.2 + 0.03*rain[i]
			values[i] = level + 0.02*rng.NormFloat64()
		}
		regs := func(i int) []float64 { return []float64{rain[i]} }

		p, err := f.Forecast(context.Background(), dailyDataset(values, horizon, []string{"rain"}, regs))
		require.NoError(t, err, "seed %d", seed)
		require.Len(t, p.Steps, horizon)
		for _, s := range p.Steps {
			assert.False(t, s.TrendOnly)
			assert.LessOrEqual(t, s.LowerBound, s.Mean)
			assert.GreaterOrEqual(t, s.UpperBound, s.Mean)
		}
	}
}

func TestForecast_InsufficientData(t *testing.T) {
	f := newForecaster(t, testConfig())
	ds := dailyDataset([]float64{2, 2.1, 2.2}, 2, nil, nil)

	_, err := f.Forecast(context.Background(), ds)
	var ie *domain.InsufficientDataError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "gauge-1", ie.EntityID)
	assert.Equal(t, 3, ie.Have)
	assert.Equal(t, 5, ie.Need)
}

func TestForecast_SparseRegressorKeepsTrainingRows(t *testing.T) {
	n := 30
	values := make([]float64, n)
	for i := range values {
		values[i] = 2 + 0.1*math.Sin(float64(i)/4)
	}
	// 40% of the rows have no regressor value; a second column never has one.
	regs := func(i int) []float64 {
		v := float64(i % 7)
		if i%5 >= 3 {
			v = math.NaN()
		}
		return []float64{math.NaN(), v}
	}

	f := newForecaster(t, testConfig())
	p, err := f.Forecast(context.Background(), dailyDataset(values, 3, []string{"ghost", "rain"}, regs))
	require.NoError(t, err)

	assert.Equal(t, n, p.TrainingWindow.Points)
	assert.Equal(t, []string{"rain"}, p.Regressors)
	assert.NotContains(t, p.Hyperparameters, "length_scale_ghost")
	assert.Len(t, p.Steps, 3)
}

func TestForecast_MaxTrainingPointsKeepsRecentRows(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTrainingPoints = 10
	f := newForecaster(t, cfg)

	p, err := f.Forecast(context.Background(), dailyDataset(constant(30, 1.2), 2, nil, nil))
	require.NoError(t, err)
	assert.Equal(t, 10, p.TrainingWindow.Points)
	assert.Equal(t, day0.Add(20*day), p.TrainingWindow.Start)
}

func TestForecast_DivergenceCarriesEntity(t *testing.T) {
	cfg := testConfig()
	cfg.MaxIterations = 1
	f := newForecaster(t, cfg)

	values := make([]float64, 40)
	for i := range values {
		values[i] = math.Sin(float64(i) / 3)
	}
	_, err := f.Forecast(context.Background(), dailyDataset(values, 3, nil, nil))
	var de *domain.FitDivergenceError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "gauge-1", de.EntityID)
}

func TestForecast_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newForecaster(t, testConfig())
	_, err := f.Forecast(ctx, dailyDataset(constant(10, 1), 2, nil, nil))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestForecast_NoHorizon(t *testing.T) {
	f := newForecaster(t, testConfig())
	_, err := f.Forecast(context.Background(), dailyDataset(constant(10, 1), 0, nil, nil))
	assert.ErrorContains(t, err, "no horizon rows")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"confidence zero", Config{ConfidenceLevel: 0, MinTrainingPoints: 5}},
		{"confidence one", Config{ConfidenceLevel: 1, MinTrainingPoints: 5}},
		{"min below two", Config{ConfidenceLevel: 0.9, MinTrainingPoints: 1}},
		{"max below min", Config{ConfidenceLevel: 0.9, MinTrainingPoints: 5, MaxTrainingPoints: 3}},
		{"negative iterations", Config{ConfidenceLevel: 0.9, MinTrainingPoints: 5, MaxIterations: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, slog.Default())
			assert.Error(t, err)
		})
	}
}
