package normalize

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/marweda/water-level-forecast/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func level(minutes int, cm float64) domain.ValidatedRecord {
	return domain.ValidatedRecord{
		EntityID:  "gauge-1",
		Kind:      domain.KindWaterLevel,
		Timestamp: t0.Add(time.Duration(minutes) * time.Minute),
		Value:     cm,
		Unit:      domain.UnitCentimeter,
		Quality:   domain.QualityMeasured,
	}
}

func rain(minutes int, mm float64) domain.ValidatedRecord {
	return domain.ValidatedRecord{
		EntityID:  "dwd:01048",
		Kind:      domain.KindPrecipitation,
		Timestamp: t0.Add(time.Duration(minutes) * time.Minute),
		Value:     mm,
		Unit:      domain.UnitMillimeter,
		Quality:   domain.QualityMeasured,
	}
}

func TestNormalize_MeanAndUnitConversion(t *testing.T) {
	records := []domain.ValidatedRecord{level(0, 200), level(15, 202), level(30, 204), level(45, 206), level(60, 210)}

	ts, err := Normalize(records, Options{Unit: domain.UnitMeter, Cadence: time.Hour})
	require.NoError(t, err)

	require.Len(t, ts.Records, 2)
	assert.Equal(t, domain.UnitMeter, ts.Unit)
	assert.Equal(t, time.Hour, ts.Interval)
	assert.Equal(t, t0, ts.Records[0].Timestamp)
	assert.InDelta(t, 2.03, ts.Records[0].Value, 1e-12)
	assert.InDelta(t, 2.10, ts.Records[1].Value, 1e-12)
	assert.Equal(t, domain.UnitMeter, ts.Records[0].Unit)
}

func TestNormalize_SumsCompleteAccumulations(t *testing.T) {
	var records []domain.ValidatedRecord
	for i := 0; i < 6; i++ {
		records = append(records, rain(i*10, 0.5))
	}
	// Second hour has only three of six intervals.
	records = append(records, rain(60, 1), rain(70, 1), rain(80, 1))

	ts, err := Normalize(records, Options{Cadence: time.Hour})
	require.NoError(t, err)

	require.Len(t, ts.Records, 1)
	assert.InDelta(t, 3.0, ts.Records[0].Value, 1e-12)
	assert.Equal(t, domain.UnitMillimeter, ts.Unit)
}

func TestNormalize_MissingRecordsBecomeGaps(t *testing.T) {
	missing := level(60, 0)
	missing.Quality = domain.QualityMissing

	ts, err := Normalize([]domain.ValidatedRecord{level(0, 200), missing, level(120, 204)}, Options{Cadence: time.Hour})
	require.NoError(t, err)

	require.Len(t, ts.Records, 2)
	assert.Equal(t, []time.Time{t0.Add(time.Hour)}, ts.Gaps())
	for _, r := range ts.Records {
		assert.NotZero(t, r.Value, "gaps must not be filled with zeros")
	}
}

func TestNormalize_RefiningLeavesGaps(t *testing.T) {
	records := []domain.ValidatedRecord{level(0, 200), level(60, 210)}

	ts, err := Normalize(records, Options{Cadence: 15 * time.Minute})
	require.NoError(t, err)

	require.Len(t, ts.Records, 2)
	assert.Len(t, ts.Gaps(), 3)
}

func TestNormalize_RefiningAccumulationFails(t *testing.T) {
	_, err := Normalize([]domain.ValidatedRecord{rain(0, 1), rain(60, 2)}, Options{Cadence: 10 * time.Minute})
	assert.ErrorContains(t, err, "cannot disaggregate")
}

func TestNormalize_ForecastQualityWins(t *testing.T) {
	fc := level(30, 204)
	fc.Quality = domain.QualityForecast

	ts, err := Normalize([]domain.ValidatedRecord{level(0, 200), fc}, Options{Cadence: time.Hour})
	require.NoError(t, err)
	require.Len(t, ts.Records, 1)
	assert.Equal(t, domain.QualityForecast, ts.Records[0].Quality)
}

func TestNormalize_NativeCadence(t *testing.T) {
	ts, err := Normalize([]domain.ValidatedRecord{level(30, 1), level(0, 2), level(45, 3)}, Options{})
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, ts.Interval)
	require.Len(t, ts.Records, 3)
	assert.Equal(t, t0, ts.Records[0].Timestamp)
}

func TestNormalize_Errors(t *testing.T) {
	other := level(15, 1)
	other.EntityID = "gauge-2"

	mosmix := rain(0, 1)
	mosmix.EntityID = "gauge-1"
	mosmix.Kind = domain.KindPrecipitation

	tests := []struct {
		name    string
		records []domain.ValidatedRecord
		opts    Options
	}{
		{"empty", nil, Options{}},
		{"mixed entities", []domain.ValidatedRecord{level(0, 1), other}, Options{}},
		{"mixed kinds", []domain.ValidatedRecord{level(0, 1), mosmix}, Options{}},
		{"unconvertible unit", []domain.ValidatedRecord{level(0, 1)}, Options{Unit: domain.UnitKilogramPerSquareMeter}},
		{"negative cadence", []domain.ValidatedRecord{level(0, 1)}, Options{Cadence: -time.Hour}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.records, tt.opts)
			assert.Error(t, err)
		})
	}
}

func TestNormalize_DuplicateTimestampRaises(t *testing.T) {
	_, err := Normalize([]domain.ValidatedRecord{level(0, 200), level(15, 201), level(0, 205)}, Options{Cadence: time.Hour})

	var oe *domain.TimeOrderError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, t0, oe.Timestamp)
}

func TestNormalize_Idempotent(t *testing.T) {
	var records []domain.ValidatedRecord
	for i := 0; i < 48; i++ {
		records = append(records, level(i*10, 200+float64(i%7)*0.3))
	}

	first, err := Normalize(records, Options{Unit: domain.UnitMeter, Cadence: time.Hour})
	require.NoError(t, err)
	second, err := Normalize(records, Options{Unit: domain.UnitMeter, Cadence: time.Hour})
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, 200.0, records[0].Value, "input must not be mutated")
}
