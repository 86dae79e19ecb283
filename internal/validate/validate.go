package validate

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/marweda/water-level-forecast/internal/domain"
)

var requiredFields = []string{
	domain.FieldEntityID,
	domain.FieldTimestamp,
	domain.FieldValue,
	domain.FieldUnit,
}

// Validate checks a single record against s. A null value yields a record
// with quality missing rather than an error.
func Validate(raw domain.RawRecord, s Schema) (domain.ValidatedRecord, error) {
	entity, _ := raw.Fields[domain.FieldEntityID].(string)
	schemaErr := func(field, format string, args ...any) error {
		return &domain.SchemaError{Source: s.Source, EntityID: entity, Field: field, Msg: fmt.Sprintf(format, args...)}
	}

	if raw.Source != s.Source {
		return domain.ValidatedRecord{}, schemaErr("", "record from %s checked against %s schema", raw.Source, s.Source)
	}
	for _, f := range requiredFields {
		if _, ok := raw.Fields[f]; !ok {
			return domain.ValidatedRecord{}, schemaErr(f, "missing required field")
		}
	}
	for _, f := range sortedKeys(raw.Fields) {
		if slices.Contains(requiredFields, f) || f == domain.FieldQuality {
			continue
		}
		v := raw.Fields[f]
		typ, ok := s.Optional[f]
		if !ok {
			return domain.ValidatedRecord{}, schemaErr(f, "undeclared field")
		}
		if err := checkOptional(v, typ, s); err != nil {
			return domain.ValidatedRecord{}, schemaErr(f, "%v", err)
		}
	}

	if strings.TrimSpace(entity) == "" {
		return domain.ValidatedRecord{}, schemaErr(domain.FieldEntityID, "want non-empty string, got %T", raw.Fields[domain.FieldEntityID])
	}

	tsRaw, ok := raw.Fields[domain.FieldTimestamp].(string)
	if !ok {
		return domain.ValidatedRecord{}, schemaErr(domain.FieldTimestamp, "want string, got %T", raw.Fields[domain.FieldTimestamp])
	}
	ts, err := parseTime(tsRaw, s)
	if err != nil {
		return domain.ValidatedRecord{}, schemaErr(domain.FieldTimestamp, "%v", err)
	}

	unitRaw, ok := raw.Fields[domain.FieldUnit].(string)
	if !ok {
		return domain.ValidatedRecord{}, schemaErr(domain.FieldUnit, "want string, got %T", raw.Fields[domain.FieldUnit])
	}
	unit, err := domain.ParseUnit(unitRaw)
	if err != nil || !slices.Contains(s.Units, unit) {
		return domain.ValidatedRecord{}, schemaErr(domain.FieldUnit, "unit %q not declared for source, want one of %v", unitRaw, s.Units)
	}

	quality := s.DefaultQuality
	if q, present := raw.Fields[domain.FieldQuality]; present {
		qs, ok := q.(string)
		if !ok {
			return domain.ValidatedRecord{}, schemaErr(domain.FieldQuality, "want string, got %T", q)
		}
		if quality, err = domain.ParseQuality(qs); err != nil {
			return domain.ValidatedRecord{}, schemaErr(domain.FieldQuality, "%v", err)
		}
	}

	rec := domain.ValidatedRecord{
		EntityID:  entity,
		Kind:      s.Kind,
		Timestamp: ts,
		Unit:      unit,
		Quality:   quality,
	}

	rawValue := raw.Fields[domain.FieldValue]
	if rawValue == nil {
		rec.Quality = domain.QualityMissing
		return rec, nil
	}
	value, err := toFloat(rawValue)
	if err != nil {
		return domain.ValidatedRecord{}, schemaErr(domain.FieldValue, "%v", err)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) || value < s.Min || value > s.Max {
		return domain.ValidatedRecord{}, &domain.RangeError{
			Source:    s.Source,
			EntityID:  entity,
			Timestamp: ts,
			Value:     value,
			Min:       s.Min,
			Max:       s.Max,
		}
	}
	rec.Value = value
	return rec, nil
}

// Batch validates records in order and enforces strictly increasing
// timestamps per entity. The first failure rejects the whole batch.
func Batch(records []domain.RawRecord, s Schema) ([]domain.ValidatedRecord, error) {
	out := make([]domain.ValidatedRecord, 0, len(records))
	last := make(map[string]time.Time)
	for _, raw := range records {
		rec, err := Validate(raw, s)
		if err != nil {
			return nil, err
		}
		if prev, ok := last[rec.EntityID]; ok && !rec.Timestamp.After(prev) {
			return nil, &domain.TimeOrderError{EntityID: rec.EntityID, Timestamp: rec.Timestamp, Previous: prev}
		}
		last[rec.EntityID] = rec.Timestamp
		out = append(out, rec)
	}
	return out, nil
}

func parseTime(raw string, s Schema) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range s.TimeLayouts {
		var (
			t   time.Time
			err error
		)
		if s.RequireTZ {
			t, err = time.Parse(layout, raw)
		} else {
			t, err = time.ParseInLocation(layout, raw, time.UTC)
		}
		if err == nil {
			return t.UTC(), nil
		}
	}
	if s.RequireTZ {
		return time.Time{}, fmt.Errorf("timestamp %q does not match %v with explicit offset", raw, s.TimeLayouts)
	}
	return time.Time{}, fmt.Errorf("timestamp %q does not match %v", raw, s.TimeLayouts)
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case json.Number:
		return x.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("value %q is not numeric", x)
		}
		return f, nil
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	default:
		return 0, fmt.Errorf("want number, got %T", v)
	}
}

func checkOptional(v any, typ FieldType, s Schema) error {
	if v == nil {
		return nil
	}
	str, ok := v.(string)
	if !ok {
		return fmt.Errorf("want string, got %T", v)
	}
	if typ == TypeTime {
		_, err := parseTime(str, s)
		return err
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
