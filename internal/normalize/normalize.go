// Package normalize turns validated records of one entity into a TimeSeries
// with a declared unit and cadence. It converts units, aggregates when the
// cadence coarsens and leaves gaps when it refines. It never interpolates.
package normalize

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/marweda/water-level-forecast/internal/domain"
)

// Aggregation combines the records that fall into one cadence bucket.
type Aggregation string

const (
	// AggregateAuto picks AggregateSum for accumulations and AggregateMean otherwise.
	AggregateAuto Aggregation = ""
	AggregateMean Aggregation = "mean"
	AggregateSum  Aggregation = "sum"
)

// Options controls normalization.
type Options struct {
	// Unit is the target unit. Empty keeps the records' unit.
	Unit domain.Unit
	// Cadence is the target sampling interval. Zero keeps native timestamps.
	Cadence     time.Duration
	Aggregation Aggregation
}

// ErrEmpty is returned when there is nothing to normalize.
var ErrEmpty = errors.New("no records to normalize")

type bucket struct {
	start   time.Time
	sum     float64
	count   int
	quality domain.Quality
}

// Normalize converts records of a single entity into a TimeSeries. Records
// with quality missing are dropped and become gaps. Duplicate timestamps are
// an error.
func Normalize(records []domain.ValidatedRecord, opts Options) (domain.TimeSeries, error) {
	if len(records) == 0 {
		return domain.TimeSeries{}, ErrEmpty
	}
	if opts.Cadence < 0 {
		return domain.TimeSeries{}, fmt.Errorf("negative cadence %s", opts.Cadence)
	}

	first := records[0]
	unit := opts.Unit
	if unit == "" {
		unit = first.Unit
	}

	sorted := make([]domain.ValidatedRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	present := make([]domain.ValidatedRecord, 0, len(sorted))
	for i, r := range sorted {
		if r.EntityID != first.EntityID {
			return domain.TimeSeries{}, fmt.Errorf("mixed entities %q and %q", first.EntityID, r.EntityID)
		}
		if r.Kind != first.Kind {
			return domain.TimeSeries{}, fmt.Errorf("entity %q: mixed kinds %q and %q", r.EntityID, first.Kind, r.Kind)
		}
		if i > 0 && r.Timestamp.Equal(sorted[i-1].Timestamp) {
			return domain.TimeSeries{}, &domain.TimeOrderError{EntityID: r.EntityID, Timestamp: r.Timestamp, Previous: sorted[i-1].Timestamp}
		}
		if r.Quality == domain.QualityMissing {
			continue
		}
		factor, err := domain.ConversionFactor(r.Unit, unit)
		if err != nil {
			return domain.TimeSeries{}, fmt.Errorf("entity %q: %w", r.EntityID, err)
		}
		r.Value *= factor
		r.Unit = unit
		present = append(present, r)
	}

	ts := domain.TimeSeries{
		EntityID: first.EntityID,
		Kind:     first.Kind,
		Unit:     unit,
		Interval: opts.Cadence,
	}

	sourceInterval := minSpacing(present)
	if opts.Cadence == 0 {
		ts.Interval = sourceInterval
		ts.Records = present
		return ts, nil
	}

	agg := opts.Aggregation
	if agg == AggregateAuto {
		agg = AggregateMean
		if first.Kind == domain.KindPrecipitation {
			agg = AggregateSum
		}
	}

	// An accumulation cannot be split into finer buckets without inventing values.
	if agg == AggregateSum && sourceInterval > opts.Cadence {
		return domain.TimeSeries{}, fmt.Errorf("entity %q: cannot disaggregate %s accumulations into %s cadence",
			first.EntityID, sourceInterval, opts.Cadence)
	}

	buckets := aggregate(present, opts.Cadence)
	needed := 1
	if agg == AggregateSum && sourceInterval > 0 {
		needed = int(opts.Cadence / sourceInterval)
	}

	ts.Records = make([]domain.ValidatedRecord, 0, len(buckets))
	for _, b := range buckets {
		// An incomplete accumulation would understate the total; leave a gap.
		if b.count < needed {
			continue
		}
		value := b.sum
		if agg == AggregateMean {
			value = b.sum / float64(b.count)
		}
		ts.Records = append(ts.Records, domain.ValidatedRecord{
			EntityID:  first.EntityID,
			Kind:      first.Kind,
			Timestamp: b.start,
			Value:     value,
			Unit:      unit,
			Quality:   b.quality,
		})
	}
	return ts, nil
}

// aggregate groups sorted records into buckets starting at multiples of cadence.
func aggregate(records []domain.ValidatedRecord, cadence time.Duration) []bucket {
	var out []bucket
	for _, r := range records {
		start := r.Timestamp.Truncate(cadence)
		if n := len(out); n > 0 && out[n-1].start.Equal(start) {
			out[n-1].sum += r.Value
			out[n-1].count++
			out[n-1].quality = mergeQuality(out[n-1].quality, r.Quality)
			continue
		}
		out = append(out, bucket{start: start, sum: r.Value, count: 1, quality: r.Quality})
	}
	return out
}

// mergeQuality keeps the weakest provenance of a bucket: forecast over
// interpolated over measured.
func mergeQuality(a, b domain.Quality) domain.Quality {
	rank := func(q domain.Quality) int {
		switch q {
		case domain.QualityForecast:
			return 2
		case domain.QualityInterpolated:
			return 1
		default:
			return 0
		}
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}

// minSpacing returns the smallest distance between consecutive records, or
// zero for fewer than two records.
func minSpacing(records []domain.ValidatedRecord) time.Duration {
	var spacing time.Duration
	for i := 1; i < len(records); i++ {
		d := records[i].Timestamp.Sub(records[i-1].Timestamp)
		if spacing == 0 || d < spacing {
			spacing = d
		}
	}
	return spacing
}
