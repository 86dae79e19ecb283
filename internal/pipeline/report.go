package pipeline

import (
	"time"

	"github.com/marweda/water-level-forecast/internal/domain"
)

// SourceReport is the ingest outcome of one catalog source.
type SourceReport struct {
	Name     string
	Source   domain.SourceType
	EntityID string
	Records  int
	Err      error
}

// GaugeReport is the forecast outcome of one gauge. Err is set when the gauge
// was skipped; its previous forecast stays the last-known-good output.
type GaugeReport struct {
	EntityID   string
	RunID      string
	Regressors []string
	Steps      int
	SinkErrors int
	Err        error
}

// RunReport summarizes one pipeline run.
type RunReport struct {
	StartedAt time.Time
	Duration  time.Duration
	Sources   []SourceReport
	Gauges    []GaugeReport
}

// Forecasts counts the gauges that produced a forecast.
func (r RunReport) Forecasts() int {
	n := 0
	for _, g := range r.Gauges {
		if g.Err == nil {
			n++
		}
	}
	return n
}

// GaugeFailures counts the skipped gauges.
func (r RunReport) GaugeFailures() int {
	return len(r.Gauges) - r.Forecasts()
}

// SourceFailures counts the sources that could not be ingested.
func (r RunReport) SourceFailures() int {
	n := 0
	for _, s := range r.Sources {
		if s.Err != nil {
			n++
		}
	}
	return n
}
