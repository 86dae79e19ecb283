package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/marweda/water-level-forecast/internal/domain"
)

// PEGELONLINE reports water levels (W, WV) in centimeters.
const pegelonlineUnit = "cm"

// pegelonlineFields renames upstream keys onto canonical record fields.
// Keys not listed pass through unchanged so the schema can reject them.
var pegelonlineFields = map[string]string{
	"timestamp":   domain.FieldTimestamp,
	"value":       domain.FieldValue,
	"initialized": "initialized",
	"stateMnwMhw": "state_mnw_mhw",
	"stateNswHsw": "state_nsw_hsw",
}

// pegelonlineQuality maps the forecast `type` discriminator onto quality.
var pegelonlineQuality = map[string]domain.Quality{
	"forecast": domain.QualityForecast,
	"estimate": domain.QualityForecast,
}

type pegelonlineStation struct {
	UUID       string `json:"uuid"`
	Shortname  string `json:"shortname"`
	Timeseries []struct {
		Shortname          string         `json:"shortname"`
		Unit               string         `json:"unit"`
		CurrentMeasurement map[string]any `json:"currentMeasurement"`
	} `json:"timeseries"`
}

// parsePegelonlineSeries handles the flat measurement and forecast arrays.
// They do not name the station, so the payload's EntityID is attached.
func parsePegelonlineSeries(p domain.RawPayload) ([]domain.RawRecord, error) {
	entity, err := pegelonlineEntity(p)
	if err != nil {
		return nil, err
	}
	var items []map[string]any
	if err := decodeJSON(p.Body, &items); err != nil {
		return nil, parseErr(p, "decode measurement array", err)
	}
	records := make([]domain.RawRecord, 0, len(items))
	for i, item := range items {
		if item == nil {
			return nil, parseErr(p, fmt.Sprintf("element %d is not an object", i), nil)
		}
		records = append(records, newRecord(p.Source, mapPegelonline(item, entity, pegelonlineUnit)))
	}
	return records, nil
}

// parsePegelonlineCurrent handles the single current-measurement object.
func parsePegelonlineCurrent(p domain.RawPayload) ([]domain.RawRecord, error) {
	entity, err := pegelonlineEntity(p)
	if err != nil {
		return nil, err
	}
	var item map[string]any
	if err := decodeJSON(p.Body, &item); err != nil {
		return nil, parseErr(p, "decode current measurement", err)
	}
	if item == nil {
		return nil, parseErr(p, "current measurement is null", nil)
	}
	return []domain.RawRecord{newRecord(p.Source, mapPegelonline(item, entity, pegelonlineUnit))}, nil
}

// parsePegelonlineStations handles stations.json with includeTimeseries and
// includeCurrentMeasurement. Only the water level (W) series is kept.
func parsePegelonlineStations(p domain.RawPayload) ([]domain.RawRecord, error) {
	var stations []pegelonlineStation
	if err := decodeJSON(p.Body, &stations); err != nil {
		return nil, parseErr(p, "decode stations", err)
	}
	var records []domain.RawRecord
	for i, st := range stations {
		if st.UUID == "" {
			return nil, parseErr(p, fmt.Sprintf("station %d has no uuid", i), nil)
		}
		for _, ts := range st.Timeseries {
			if ts.Shortname != "W" || ts.CurrentMeasurement == nil {
				continue
			}
			fields := mapPegelonline(ts.CurrentMeasurement, strings.ToLower(st.UUID), ts.Unit)
			records = append(records, newRecord(p.Source, fields))
		}
	}
	return records, nil
}

func pegelonlineEntity(p domain.RawPayload) (string, error) {
	if p.EntityID == "" {
		return "", parseErr(p, "payload carries no station identifier", nil)
	}
	return strings.ToLower(p.EntityID), nil
}

func mapPegelonline(item map[string]any, entity, unit string) map[string]any {
	fields := make(map[string]any, len(item)+2)
	for k, v := range item {
		if k == "type" {
			fields[domain.FieldQuality] = pegelonlineTypeQuality(v)
			continue
		}
		if name, ok := pegelonlineFields[k]; ok {
			fields[name] = v
			continue
		}
		fields[k] = v
	}
	fields[domain.FieldEntityID] = entity
	fields[domain.FieldUnit] = unit
	return fields
}

// pegelonlineTypeQuality returns the quality for a known type. Unknown values
// are passed on verbatim for the validator to reject.
func pegelonlineTypeQuality(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if q, ok := pegelonlineQuality[s]; ok {
		return string(q)
	}
	return s
}

// decodeJSON decodes exactly one JSON value, keeping numbers as json.Number.
func decodeJSON(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after JSON value")
	}
	return nil
}
