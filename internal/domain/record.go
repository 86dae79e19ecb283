package domain

import (
	"fmt"
	"sort"
	"time"
)

// SourceType tags a raw payload with the upstream format it was fetched in.
type SourceType string

const (
	SourcePegelonlineMeasurements SourceType = "pegelonline_measurements"
	SourcePegelonlineForecast     SourceType = "pegelonline_forecast"
	SourcePegelonlineCurrent      SourceType = "pegelonline_current"
	SourcePegelonlineStations     SourceType = "pegelonline_stations"
	SourceDWDPrecipitation        SourceType = "dwd_precipitation"
	SourceDWDPrecipitationHourly  SourceType = "dwd_precipitation_hourly"
	SourceDWDMosmix               SourceType = "dwd_mosmix"
)

// Station listing tags. Their payloads describe stations, not observations.
const (
	SourcePegelonlineStationCatalog SourceType = "pegelonline_station_catalog"
	SourceDWDMosmixStations         SourceType = "dwd_mosmix_stations"
	SourceDWDStationDescription     SourceType = "dwd_station_description"
)

// Valid reports whether s is one of the known source tags.
func (s SourceType) Valid() bool {
	switch s {
	case SourcePegelonlineMeasurements, SourcePegelonlineForecast, SourcePegelonlineCurrent,
		SourcePegelonlineStations, SourceDWDPrecipitation, SourceDWDPrecipitationHourly, SourceDWDMosmix:
		return true
	}
	return false
}

// StationCatalog reports whether s tags a station listing.
func (s SourceType) StationCatalog() bool {
	switch s {
	case SourcePegelonlineStationCatalog, SourceDWDMosmixStations, SourceDWDStationDescription:
		return true
	}
	return false
}

// Quality classifies where a value came from.
type Quality string

const (
	QualityMeasured     Quality = "measured"
	QualityForecast     Quality = "forecast"
	QualityInterpolated Quality = "interpolated"
	QualityMissing      Quality = "missing"
)

// ParseQuality returns the Quality named by s.
func ParseQuality(s string) (Quality, error) {
	switch q := Quality(s); q {
	case QualityMeasured, QualityForecast, QualityInterpolated, QualityMissing:
		return q, nil
	default:
		return "", fmt.Errorf("unknown quality %q", s)
	}
}

// Kind is the physical quantity a series measures. It decides how values are
// aggregated when the cadence is coarsened.
type Kind string

const (
	// KindWaterLevel is an instantaneous reading; buckets are averaged.
	KindWaterLevel Kind = "water_level"
	// KindPrecipitation is an accumulation over the sampling interval; buckets are summed.
	KindPrecipitation Kind = "precipitation"
)

// RawPayload is an upstream response body as fetched. It is never mutated.
type RawPayload struct {
	Source      SourceType
	// EntityID is the station the payload was requested for. Formats that do
	// not name the station inside the body (flat PEGELONLINE arrays) rely on it.
	EntityID    string
	// Element selects one variable of multi-element formats (MOSMIX RR1c, RR3c).
	Element     string
	// Waters restricts PEGELONLINE station listings to the named waters.
	Waters      []string
	Body        []byte
	RetrievedAt time.Time
}

// RawRecord is a candidate observation produced by a parser. Field values keep
// their upstream representation (strings, json.Number, nil for missing);
// the validator decides whether they satisfy the canonical schema.
type RawRecord struct {
	Source SourceType
	Fields map[string]any
}

// Canonical field names shared by parsers and schemas.
const (
	FieldEntityID  = "entity_id"
	FieldTimestamp = "timestamp"
	FieldValue     = "value"
	FieldUnit      = "unit"
	FieldQuality   = "quality"
)

// ValidatedRecord is a single observation that passed schema validation.
type ValidatedRecord struct {
	EntityID  string    `json:"entity_id"`
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Unit      Unit      `json:"unit"`
	Quality   Quality   `json:"quality"`
}

// TimeSeries is an ordered, gap-explicit sequence of records for one entity.
// No two records share a timestamp; a missing slot is simply absent.
type TimeSeries struct {
	EntityID string            `json:"entity_id"`
	Kind     Kind              `json:"kind"`
	Unit     Unit              `json:"unit"`
	Interval time.Duration     `json:"interval"`
	Records  []ValidatedRecord `json:"records"`
}

// Len returns the number of records.
func (ts TimeSeries) Len() int { return len(ts.Records) }

// Start returns the first timestamp, or the zero time for an empty series.
func (ts TimeSeries) Start() time.Time {
	if len(ts.Records) == 0 {
		return time.Time{}
	}
	return ts.Records[0].Timestamp
}

// End returns the last timestamp, or the zero time for an empty series.
func (ts TimeSeries) End() time.Time {
	if len(ts.Records) == 0 {
		return time.Time{}
	}
	return ts.Records[len(ts.Records)-1].Timestamp
}

// LastAtOrBefore returns the most recent record whose timestamp is not after t.
func (ts TimeSeries) LastAtOrBefore(t time.Time) (ValidatedRecord, bool) {
	i := sort.Search(len(ts.Records), func(i int) bool {
		return ts.Records[i].Timestamp.After(t)
	})
	if i == 0 {
		return ValidatedRecord{}, false
	}
	return ts.Records[i-1], true
}

// Gaps lists the nominal slots between Start and End that hold no record.
func (ts TimeSeries) Gaps() []time.Time {
	if ts.Interval <= 0 || len(ts.Records) < 2 {
		return nil
	}
	var gaps []time.Time
	next := ts.Records[0].Timestamp.Add(ts.Interval)
	for _, r := range ts.Records[1:] {
		for next.Before(r.Timestamp) {
			gaps = append(gaps, next)
			next = next.Add(ts.Interval)
		}
		next = r.Timestamp.Add(ts.Interval)
	}
	return gaps
}
