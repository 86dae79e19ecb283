package domain

import "time"

// Cell is one value of an aligned table. Missing cells carry no value.
type Cell struct {
	Value   float64 `json:"value"`
	Missing bool    `json:"missing"`
	Quality Quality `json:"quality"`
}

// MissingCell returns a cell marked missing.
func MissingCell() Cell {
	return Cell{Missing: true, Quality: QualityMissing}
}

// Row is one timestamp of an AlignedDataset. Regressors are ordered like
// AlignedDataset.Columns.
type Row struct {
	Timestamp  time.Time `json:"timestamp"`
	Target     Cell      `json:"target"`
	Regressors []Cell    `json:"regressors"`
}

// HasRegressors reports whether at least one regressor cell holds a value.
func (r Row) HasRegressors() bool {
	for _, c := range r.Regressors {
		if !c.Missing {
			return true
		}
	}
	return false
}

// AlignedDataset joins a target series and its regressors on a shared time axis.
type AlignedDataset struct {
	EntityID  string        `json:"entity_id"`
	Unit      Unit          `json:"unit"`
	Interval  time.Duration `json:"interval"`
	Tolerance time.Duration `json:"tolerance"`
	Columns   []string      `json:"columns"`
	Rows      []Row         `json:"rows"`
}

// TrainingRows returns the rows with a measured target value.
func (d AlignedDataset) TrainingRows() []Row {
	out := make([]Row, 0, len(d.Rows))
	for _, r := range d.Rows {
		if !r.Target.Missing {
			out = append(out, r)
		}
	}
	return out
}

// PredictionRows returns the rows after the last non-missing target. These
// are the forecast horizon.
func (d AlignedDataset) PredictionRows() []Row {
	last := -1
	for i, r := range d.Rows {
		if !r.Target.Missing {
			last = i
		}
	}
	return d.Rows[last+1:]
}
