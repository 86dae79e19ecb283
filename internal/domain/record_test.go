package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hourly(entity string, hours ...int) TimeSeries {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	ts := TimeSeries{EntityID: entity, Kind: KindWaterLevel, Unit: UnitCentimeter, Interval: time.Hour}
	for _, h := range hours {
		ts.Records = append(ts.Records, ValidatedRecord{
			EntityID:  entity,
			Timestamp: base.Add(time.Duration(h) * time.Hour),
			Value:     float64(100 + h),
			Quality:   QualityMeasured,
		})
	}
	return ts
}

func TestTimeSeries_Bounds(t *testing.T) {
	ts := hourly("g", 0, 1, 5)
	assert.Equal(t, 3, ts.Len())
	assert.Equal(t, 0, ts.Start().Hour())
	assert.Equal(t, 5, ts.End().Hour())

	empty := TimeSeries{}
	assert.True(t, empty.Start().IsZero())
	assert.True(t, empty.End().IsZero())
}

func TestTimeSeries_LastAtOrBefore(t *testing.T) {
	ts := hourly("g", 0, 2, 4)
	base := ts.Start()

	_, ok := ts.LastAtOrBefore(base.Add(-time.Minute))
	assert.False(t, ok)

	r, ok := ts.LastAtOrBefore(base.Add(2 * time.Hour))
	require.True(t, ok)
	assert.Equal(t, 102.0, r.Value)

	r, ok = ts.LastAtOrBefore(base.Add(3*time.Hour + 59*time.Minute))
	require.True(t, ok)
	assert.Equal(t, 102.0, r.Value)
}

func TestTimeSeries_Gaps(t *testing.T) {
	ts := hourly("g", 0, 1, 4, 5)
	gaps := ts.Gaps()
	require.Len(t, gaps, 2)
	assert.Equal(t, 2, gaps[0].Hour())
	assert.Equal(t, 3, gaps[1].Hour())

	assert.Empty(t, hourly("g", 0, 1, 2).Gaps())
}

func TestConversionFactor(t *testing.T) {
	f, err := ConversionFactor(UnitCentimeter, UnitMeter)
	require.NoError(t, err)
	assert.InDelta(t, 0.01, f, 1e-12)

	f, err = ConversionFactor(UnitKilogramPerSquareMeter, UnitMillimeter)
	require.NoError(t, err)
	assert.Equal(t, 1.0, f)

	f, err = ConversionFactor(UnitMeter, UnitMeter)
	require.NoError(t, err)
	assert.Equal(t, 1.0, f)

	_, err = ConversionFactor(UnitKilogramPerSquareMeter, UnitMeter)
	assert.Error(t, err)
}

func TestParseUnitAndQuality(t *testing.T) {
	u, err := ParseUnit("cm")
	require.NoError(t, err)
	assert.Equal(t, UnitCentimeter, u)

	_, err = ParseUnit("ft")
	assert.Error(t, err)

	q, err := ParseQuality("forecast")
	require.NoError(t, err)
	assert.Equal(t, QualityForecast, q)

	_, err = ParseQuality("estimated")
	assert.Error(t, err)
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&ParseError{Source: SourceDWDPrecipitation, Msg: "bad"}, "parse"},
		{fmt.Errorf("wrapped: %w", &SchemaError{Field: "value"}), "schema"},
		{&RangeError{}, "range"},
		{&TimeOrderError{}, "time_order"},
		{&InsufficientDataError{}, "insufficient_data"},
		{&FitDivergenceError{}, "fit_divergence"},
		{fmt.Errorf("fit: %w", context.DeadlineExceeded), "timeout"},
		{context.Canceled, "canceled"},
		{errors.New("boom"), "other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorKind(tt.err))
	}
}

func TestParseError_Message(t *testing.T) {
	err := &ParseError{Source: SourceDWDPrecipitation, Line: 3, Msg: "expected 5 fields, got 4", Err: errors.New("short row")}
	assert.Equal(t, "parse dwd_precipitation line 3: expected 5 fields, got 4: short row", err.Error())
}

func TestTimeOrderError_Message(t *testing.T) {
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	dup := &TimeOrderError{EntityID: "g", Timestamp: ts, Previous: ts}
	assert.Contains(t, dup.Error(), "duplicate timestamp 2024-05-01T00:00:00Z")

	back := &TimeOrderError{EntityID: "g", Timestamp: ts, Previous: ts.Add(time.Hour)}
	assert.Contains(t, back.Error(), "does not follow")
}
