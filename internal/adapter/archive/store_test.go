package archive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/marweda/water-level-forecast/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("", 3, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var base = time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)

func result(entity string, run int) domain.ForecastResult {
	at := base.Add(time.Duration(run) * time.Hour)
	return domain.ForecastResult{
		RunID:           fmt.Sprintf("run-%d", run),
		EntityID:        entity,
		GeneratedAt:     at,
		Unit:            domain.UnitMeter,
		ConfidenceLevel: 0.9,
		Regressors:      []string{},
		Hyperparameters: map[string]float64{"noise_std": 0.02},
		Steps: []domain.ForecastStep{
			{Timestamp: at.Add(time.Hour), Mean: float64(run), LowerBound: float64(run) - 0.1, UpperBound: float64(run) + 0.1, Quality: domain.QualityForecast},
		},
	}
}

func TestStore_LatestReturnsNewestRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Insert out of order; keys sort by generation time.
	require.NoError(t, s.Put(result("gauge-1", 2)))
	require.NoError(t, s.Put(result("gauge-1", 5)))
	require.NoError(t, s.Put(result("gauge-1", 3)))
	require.NoError(t, s.Put(result("gauge-10", 9)))

	got, err := s.Latest(ctx, "gauge-1")
	require.NoError(t, err)
	assert.Equal(t, "run-5", got.RunID)
	assert.Equal(t, 5.0, got.Steps[0].Mean)
	assert.True(t, got.GeneratedAt.Equal(base.Add(5*time.Hour)))
}

func TestStore_LatestNotFound(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Put(result("gauge-10", 1)))

	_, err := s.Latest(context.Background(), "gauge-1")
	assert.ErrorIs(t, err, domain.ErrForecastNotFound)
}

func TestStore_WriteOnce(t *testing.T) {
	s := openTestStore(t)
	first := result("gauge-1", 1)
	require.NoError(t, s.Put(first))

	second := first
	second.Steps = []domain.ForecastStep{{Mean: 99}}
	err := s.Put(second)
	assert.ErrorIs(t, err, ErrExists)

	got, err := s.Latest(context.Background(), "gauge-1")
	require.NoError(t, err)
	assert.Equal(t, first.Steps[0].Mean, got.Steps[0].Mean)
}

func TestStore_History(t *testing.T) {
	s := openTestStore(t)
	for run := 1; run <= 4; run++ {
		require.NoError(t, s.LoadForecast(context.Background(), result("gauge-1", run)))
	}

	got, err := s.History(context.Background(), "gauge-1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "run-4", got[0].RunID)
	assert.Equal(t, "run-3", got[1].RunID)

	all, err := s.History(context.Background(), "gauge-1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := Open(dir, 1, logger)
	require.NoError(t, err)
	require.NoError(t, s.Put(result("gauge-1", 1)))
	require.NoError(t, s.Close())

	s, err = Open(dir, 1, logger)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Latest(context.Background(), "gauge-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
}

func TestRunKeyOrdersByGenerationTime(t *testing.T) {
	early := string(runKey(result("g", 1)))
	late := string(runKey(result("g", 2)))
	assert.Less(t, early, late)
	assert.Less(t, late, string(seekLast(entityPrefix("g"))))
}
