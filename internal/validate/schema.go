// Package validate checks candidate records against the canonical schema of
// their source type. Validation is pure: every failure is returned.
package validate

import (
	"time"

	"github.com/marweda/water-level-forecast/internal/domain"
)

// FieldType is the expected kind of an optional field.
type FieldType int

const (
	TypeString FieldType = iota
	TypeTime
)

// Schema declares the accepted shape of one source type's records. The
// fields entity_id, timestamp, value and unit are always required; quality is
// always optional.
type Schema struct {
	Source domain.SourceType
	Kind   domain.Kind
	// Units lists the unit declarations a record may carry.
	Units []domain.Unit
	// Min and Max bound the physically plausible value band, inclusive.
	Min, Max float64
	// TimeLayouts are tried in order when parsing timestamps.
	TimeLayouts []string
	// RequireTZ rejects timestamps without an explicit UTC offset. When false
	// timestamps are naive and interpreted as UTC.
	RequireTZ bool
	// Optional lists further accepted fields. Any other field is rejected.
	Optional map[string]FieldType
	// DefaultQuality applies when a record carries no quality field.
	DefaultQuality domain.Quality
}

const (
	layoutDWDTenMinute = "200601021504"
	layoutDWDHourly    = "2006010215"
)

var pegelonlineStates = map[string]FieldType{
	"state_mnw_mhw": TypeString,
	"state_nsw_hsw": TypeString,
}

// Water levels at German federal gauges are given relative to the gauge
// datum; a few gauges report slightly negative values at low water.
const (
	waterLevelMinCM = -200
	waterLevelMaxCM = 2500
)

var schemas = map[domain.SourceType]Schema{
	domain.SourcePegelonlineMeasurements: {
		Source:         domain.SourcePegelonlineMeasurements,
		Kind:           domain.KindWaterLevel,
		Units:          []domain.Unit{domain.UnitCentimeter},
		Min:            waterLevelMinCM,
		Max:            waterLevelMaxCM,
		TimeLayouts:    []string{time.RFC3339},
		RequireTZ:      true,
		DefaultQuality: domain.QualityMeasured,
	},
	domain.SourcePegelonlineForecast: {
		Source:         domain.SourcePegelonlineForecast,
		Kind:           domain.KindWaterLevel,
		Units:          []domain.Unit{domain.UnitCentimeter},
		Min:            waterLevelMinCM,
		Max:            waterLevelMaxCM,
		TimeLayouts:    []string{time.RFC3339},
		RequireTZ:      true,
		Optional:       map[string]FieldType{"initialized": TypeTime},
		DefaultQuality: domain.QualityForecast,
	},
	domain.SourcePegelonlineCurrent: {
		Source:         domain.SourcePegelonlineCurrent,
		Kind:           domain.KindWaterLevel,
		Units:          []domain.Unit{domain.UnitCentimeter},
		Min:            waterLevelMinCM,
		Max:            waterLevelMaxCM,
		TimeLayouts:    []string{time.RFC3339},
		RequireTZ:      true,
		Optional:       pegelonlineStates,
		DefaultQuality: domain.QualityMeasured,
	},
	domain.SourcePegelonlineStations: {
		Source:         domain.SourcePegelonlineStations,
		Kind:           domain.KindWaterLevel,
		Units:          []domain.Unit{domain.UnitCentimeter},
		Min:            waterLevelMinCM,
		Max:            waterLevelMaxCM,
		TimeLayouts:    []string{time.RFC3339},
		RequireTZ:      true,
		Optional:       pegelonlineStates,
		DefaultQuality: domain.QualityMeasured,
	},
	domain.SourceDWDPrecipitation: {
		Source:         domain.SourceDWDPrecipitation,
		Kind:           domain.KindPrecipitation,
		Units:          []domain.Unit{domain.UnitMillimeter},
		Min:            0,
		Max:            100,
		TimeLayouts:    []string{layoutDWDTenMinute},
		DefaultQuality: domain.QualityMeasured,
	},
	domain.SourceDWDPrecipitationHourly: {
		Source:         domain.SourceDWDPrecipitationHourly,
		Kind:           domain.KindPrecipitation,
		Units:          []domain.Unit{domain.UnitMillimeter},
		Min:            0,
		Max:            300,
		TimeLayouts:    []string{layoutDWDHourly},
		DefaultQuality: domain.QualityMeasured,
	},
	domain.SourceDWDMosmix: {
		Source:         domain.SourceDWDMosmix,
		Kind:           domain.KindPrecipitation,
		Units:          []domain.Unit{domain.UnitKilogramPerSquareMeter},
		Min:            0,
		Max:            300,
		TimeLayouts:    []string{time.RFC3339},
		RequireTZ:      true,
		Optional:       map[string]FieldType{"issue_time": TypeTime},
		DefaultQuality: domain.QualityForecast,
	},
}

// SchemaFor returns the declared schema of a source type.
func SchemaFor(source domain.SourceType) (Schema, bool) {
	s, ok := schemas[source]
	return s, ok
}
