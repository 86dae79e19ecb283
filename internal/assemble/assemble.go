// Package assemble joins a target series and its regressors on the target's
// time axis using last-observation-carried-forward within a tolerance.
package assemble

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/marweda/water-level-forecast/internal/domain"
)

// Options controls alignment.
type Options struct {
	// Tolerance bounds how old a carried-forward regressor value may be.
	Tolerance time.Duration
	// Lags adds shifted copies of a regressor, keyed by regressor name.
	Lags map[string][]time.Duration
	// Horizon extends the axis past the last target observation with rows
	// whose target is missing. These rows are the forecast input.
	Horizon time.Duration
	// Interval is the step of the horizon rows. Zero uses the target's interval.
	Interval time.Duration
}

type column struct {
	name   string
	series domain.TimeSeries
	lag    time.Duration
}

// Assemble builds the aligned dataset. Regressor cells with no observation
// within the tolerance are marked missing; rows are never dropped for it.
func Assemble(target domain.TimeSeries, regressors map[string]domain.TimeSeries, opts Options) (domain.AlignedDataset, error) {
	if target.Len() == 0 {
		return domain.AlignedDataset{}, errors.New("target series is empty")
	}
	if opts.Tolerance < 0 {
		return domain.AlignedDataset{}, fmt.Errorf("negative alignment tolerance %s", opts.Tolerance)
	}
	if opts.Horizon < 0 {
		return domain.AlignedDataset{}, fmt.Errorf("negative horizon %s", opts.Horizon)
	}
	step := opts.Interval
	if step == 0 {
		step = target.Interval
	}
	if opts.Horizon > 0 && step <= 0 {
		return domain.AlignedDataset{}, errors.New("horizon rows need a positive interval")
	}
	for name := range opts.Lags {
		if _, ok := regressors[name]; !ok {
			return domain.AlignedDataset{}, fmt.Errorf("lag configured for unknown regressor %q", name)
		}
	}

	cols := columns(regressors, opts.Lags)
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}

	ds := domain.AlignedDataset{
		EntityID:  target.EntityID,
		Unit:      target.Unit,
		Interval:  step,
		Tolerance: opts.Tolerance,
		Columns:   names,
		Rows:      make([]domain.Row, 0, target.Len()),
	}

	for _, r := range target.Records {
		ds.Rows = append(ds.Rows, domain.Row{
			Timestamp:  r.Timestamp,
			Target:     domain.Cell{Value: r.Value, Quality: r.Quality},
			Regressors: alignRow(r.Timestamp, cols, opts.Tolerance),
		})
	}

	if opts.Horizon > 0 {
		origin := target.End()
		end := origin.Add(opts.Horizon)
		for t := origin.Add(step); !t.After(end); t = t.Add(step) {
			ds.Rows = append(ds.Rows, domain.Row{
				Timestamp:  t,
				Target:     domain.MissingCell(),
				Regressors: alignHorizonRow(t, origin, cols, opts.Tolerance),
			})
		}
	}
	return ds, nil
}

// columns lists regressors in name order, each followed by its lags in
// ascending order.
func columns(regressors map[string]domain.TimeSeries, lags map[string][]time.Duration) []column {
	names := make([]string, 0, len(regressors))
	for name := range regressors {
		names = append(names, name)
	}
	sort.Strings(names)

	var cols []column
	for _, name := range names {
		cols = append(cols, column{name: name, series: regressors[name]})
		ls := append([]time.Duration(nil), lags[name]...)
		sort.Slice(ls, func(i, j int) bool { return ls[i] < ls[j] })
		for _, lag := range ls {
			if lag <= 0 {
				continue
			}
			cols = append(cols, column{name: LagColumn(name, lag), series: regressors[name], lag: lag})
		}
	}
	return cols
}

func alignRow(t time.Time, cols []column, tolerance time.Duration) []domain.Cell {
	cells := make([]domain.Cell, len(cols))
	for i, c := range cols {
		at := t.Add(-c.lag)
		rec, ok := c.series.LastAtOrBefore(at)
		if !ok || at.Sub(rec.Timestamp) > tolerance {
			cells[i] = domain.MissingCell()
			continue
		}
		cells[i] = domain.Cell{Value: rec.Value, Quality: rec.Quality}
	}
	return cells
}

// alignHorizonRow aligns a row after the forecast origin. Measured values
// are not carried forward past the origin: a cell keeps a measured value only
// when its lookup instant lies at or before the origin (lagged columns) or
// the observation sits exactly on the lookup instant. Forecast values are
// carried within the tolerance as usual.
func alignHorizonRow(t, origin time.Time, cols []column, tolerance time.Duration) []domain.Cell {
	cells := alignRow(t, cols, tolerance)
	for i, c := range cols {
		if cells[i].Missing || cells[i].Quality == domain.QualityForecast {
			continue
		}
		at := t.Add(-c.lag)
		if at.After(origin) {
			if rec, ok := c.series.LastAtOrBefore(at); !ok || !rec.Timestamp.Equal(at) {
				cells[i] = domain.MissingCell()
			}
		}
	}
	return cells
}

// LagColumn names the column holding name shifted by lag, e.g. "rain_lag6h".
func LagColumn(name string, lag time.Duration) string {
	s := lag.String()
	if strings.HasSuffix(s, "m0s") {
		s = strings.TrimSuffix(s, "0s")
	}
	if strings.HasSuffix(s, "h0m") {
		s = strings.TrimSuffix(s, "0m")
	}
	return name + "_lag" + s
}
