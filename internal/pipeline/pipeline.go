package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/marweda/water-level-forecast/internal/assemble"
	"github.com/marweda/water-level-forecast/internal/config"
	"github.com/marweda/water-level-forecast/internal/domain"
	"github.com/marweda/water-level-forecast/internal/forecast"
	"github.com/marweda/water-level-forecast/internal/normalize"
	"github.com/marweda/water-level-forecast/internal/observability"
	"github.com/marweda/water-level-forecast/internal/parser"
	"github.com/marweda/water-level-forecast/internal/validate"
	"golang.org/x/sync/errgroup"
)

// Fetcher retrieves the raw payload of a configured source.
type Fetcher interface {
	Fetch(ctx context.Context, src config.Source) (domain.RawPayload, error)
}

// Sink receives validated series and packaged forecasts. Writes are
// write-once; a sink never updates a previously loaded forecast.
type Sink interface {
	Name() string
	LoadSeries(ctx context.Context, ts domain.TimeSeries) error
	LoadForecast(ctx context.Context, res domain.ForecastResult) error
}

// Options bounds the work of one run.
type Options struct {
	WorkerCount  int
	FetchTimeout time.Duration
	FitTimeout   time.Duration
}

// Pipeline runs the fetch, parse, validate, normalize, assemble, forecast and
// load stages for every gauge in a catalog.
type Pipeline struct {
	catalog *config.Catalog
	fetcher Fetcher
	parsers *parser.Registry
	lookup  domain.StationLookup
	sinks   []Sink
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool
}

// New creates a Pipeline. lookup may be nil, in which case every configured
// regressor is used.
func New(cat *config.Catalog, fetcher Fetcher, parsers *parser.Registry, lookup domain.StationLookup, sinks []Sink, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if opts.WorkerCount < 1 {
		opts.WorkerCount = 1
	}
	return &Pipeline{
		catalog: cat,
		fetcher: fetcher,
		parsers: parsers,
		lookup:  lookup,
		sinks:   sinks,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once a run has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// Run executes a run immediately and then every interval until the context
// is cancelled.
func (p *Pipeline) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("run interval must be positive, got %s", interval)
	}
	p.logger.Info("pipeline started", "interval", interval, "gauges", len(p.catalog.Gauges))
	for {
		if _, err := p.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				p.logger.Info("pipeline stopping", "reason", ctx.Err())
				return nil
			}
			return err
		}
		if !sleepWithContext(ctx, interval) {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// RunOnce executes one complete run. Failures of single sources and gauges
// are recorded in the report and do not fail the run; only cancellation of
// ctx is returned as an error.
func (p *Pipeline) RunOnce(ctx context.Context) (RunReport, error) {
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	report := RunReport{StartedAt: domain.Now()}
	start := time.Now()

	series, sources := p.ingest(ctx)
	report.Sources = sources
	if err := ctx.Err(); err != nil {
		return report, err
	}

	report.Gauges = p.forecastAll(ctx, series, sources)
	if err := ctx.Err(); err != nil {
		return report, err
	}

	report.Duration = time.Since(start)
	p.metrics.RunDuration.Observe(report.Duration.Seconds())
	if report.Forecasts() > 0 {
		p.metrics.LastSuccess.Set(float64(domain.Now().Unix()))
	}
	p.ready.Store(true)

	p.logger.Info("run complete",
		"duration", report.Duration,
		"sources", len(report.Sources),
		"source_failures", report.SourceFailures(),
		"forecasts", report.Forecasts(),
		"gauge_failures", report.GaugeFailures(),
	)
	return report, nil
}

// ingest turns every catalog source into a TimeSeries. Sources are processed
// concurrently; each worker writes only its own slot.
func (p *Pipeline) ingest(ctx context.Context) (map[string]domain.TimeSeries, []SourceReport) {
	reports := make([]SourceReport, len(p.catalog.Sources))
	results := make([]domain.TimeSeries, len(p.catalog.Sources))

	var g errgroup.Group
	g.SetLimit(p.opts.WorkerCount)
	for i, src := range p.catalog.Sources {
		g.Go(func() error {
			reports[i] = SourceReport{Name: src.Name, Source: src.Type, EntityID: src.EntityID}
			if err := ctx.Err(); err != nil {
				reports[i].Err = err
				return nil
			}
			ts, err := p.ingestSource(ctx, src)
			if err != nil {
				reports[i].Err = err
				kind := domain.ErrorKind(err)
				p.metrics.SourceFailures.WithLabelValues(string(src.Type), kind).Inc()
				p.logger.Warn("source failed, skipping",
					"source", src.Name,
					"entity_id", src.EntityID,
					"kind", kind,
					"error", err,
				)
				return nil
			}
			results[i] = ts
			reports[i].Records = ts.Len()
			p.loadSeries(ctx, ts)
			return nil
		})
	}
	_ = g.Wait()

	series := make(map[string]domain.TimeSeries, len(results))
	for i, src := range p.catalog.Sources {
		if reports[i].Err == nil {
			series[src.Name] = results[i]
		}
	}
	return series, reports
}

func (p *Pipeline) ingestSource(ctx context.Context, src config.Source) (domain.TimeSeries, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.opts.FetchTimeout)
	defer cancel()

	payload, err := p.fetcher.Fetch(fetchCtx, src)
	if err != nil {
		return domain.TimeSeries{}, err
	}
	p.metrics.PayloadsFetched.WithLabelValues(string(src.Type)).Inc()

	raw, err := p.parsers.Parse(payload)
	if err != nil {
		return domain.TimeSeries{}, err
	}
	schema, ok := validate.SchemaFor(src.Type)
	if !ok {
		return domain.TimeSeries{}, fmt.Errorf("source %q: no schema for type %q", src.Name, src.Type)
	}
	records, err := validate.Batch(raw, schema)
	if err != nil {
		return domain.TimeSeries{}, err
	}
	p.metrics.RecordsValidated.WithLabelValues(string(src.Type)).Add(float64(len(records)))

	records = recordsFor(records, src.EntityID)
	if len(records) == 0 {
		return domain.TimeSeries{}, fmt.Errorf("source %q: payload holds no records for entity %q", src.Name, src.EntityID)
	}
	ts, err := normalize.Normalize(records, normalize.Options{Unit: src.Unit, Cadence: src.Cadence})
	if err != nil {
		return domain.TimeSeries{}, fmt.Errorf("source %q: %w", src.Name, err)
	}
	return ts, nil
}

// recordsFor keeps the records of one entity. Multi-station payloads carry
// other stations too.
func recordsFor(records []domain.ValidatedRecord, entityID string) []domain.ValidatedRecord {
	out := records[:0:0]
	for _, r := range records {
		if strings.EqualFold(r.EntityID, entityID) {
			out = append(out, r)
		}
	}
	return out
}

// forecastAll fits every gauge concurrently.
func (p *Pipeline) forecastAll(ctx context.Context, series map[string]domain.TimeSeries, sources []SourceReport) []GaugeReport {
	failed := make(map[string]error, len(sources))
	for _, s := range sources {
		if s.Err != nil {
			failed[s.Name] = s.Err
		}
	}

	reports := make([]GaugeReport, len(p.catalog.Gauges))
	var g errgroup.Group
	g.SetLimit(p.opts.WorkerCount)
	for i, gauge := range p.catalog.Gauges {
		g.Go(func() error {
			reports[i] = GaugeReport{EntityID: gauge.EntityID}
			if err := ctx.Err(); err != nil {
				reports[i].Err = err
				return nil
			}
			res, err := p.forecastGauge(ctx, gauge, series, failed)
			if err != nil {
				reports[i].Err = err
				kind := domain.ErrorKind(err)
				p.metrics.ForecastFailures.WithLabelValues(kind).Inc()
				p.logger.Warn("forecast skipped, keeping last-known-good",
					"entity_id", gauge.EntityID,
					"kind", kind,
					"error", err,
				)
				return nil
			}
			reports[i].RunID = res.RunID
			reports[i].Regressors = res.Regressors
			reports[i].Steps = len(res.Steps)
			reports[i].SinkErrors = p.loadForecast(ctx, res)
			p.metrics.ForecastsProduced.Inc()
			return nil
		})
	}
	_ = g.Wait()
	return reports
}

func (p *Pipeline) forecastGauge(ctx context.Context, gauge config.Gauge, series map[string]domain.TimeSeries, failed map[string]error) (domain.ForecastResult, error) {
	target, ok := series[gauge.Target]
	if !ok {
		return domain.ForecastResult{}, fmt.Errorf("target series %q unavailable: %w", gauge.Target, failed[gauge.Target])
	}

	candidates := make([]domain.RegressorCandidate, 0, len(gauge.Regressors))
	lags := make(map[string][]time.Duration)
	for _, r := range gauge.Regressors {
		if err, bad := failed[r.Series]; bad {
			p.logger.Warn("regressor unavailable, fitting without it",
				"entity_id", gauge.EntityID,
				"regressor", r.Series,
				"error", err,
			)
			continue
		}
		ts, ok := series[r.Series]
		if !ok {
			continue
		}
		candidates = append(candidates, domain.RegressorCandidate{Name: r.Series, EntityID: ts.EntityID})
		if len(r.Lags) > 0 {
			lags[r.Series] = r.Lags
		}
	}

	selected := domain.SelectRegressors(ctx, gauge.EntityID, candidates, p.lookup, p.logger)
	regressors := make(map[string]domain.TimeSeries, len(selected))
	for _, c := range selected {
		regressors[c.Name] = series[c.Name]
	}
	for name := range lags {
		if _, ok := regressors[name]; !ok {
			delete(lags, name)
		}
	}

	ds, err := assemble.Assemble(target, regressors, assemble.Options{
		Tolerance: gauge.AlignmentTolerance,
		Lags:      lags,
		Horizon:   gauge.Horizon,
	})
	if err != nil {
		return domain.ForecastResult{}, fmt.Errorf("assemble: %w", err)
	}
	ds.EntityID = gauge.EntityID

	fc, err := forecast.New(forecast.Config{
		ConfidenceLevel:   gauge.ConfidenceLevel,
		MinTrainingPoints: gauge.MinTrainingPoints,
		MaxTrainingPoints: gauge.MaxTrainingPoints,
		MaxIterations:     gauge.MaxIterations,
	}, p.logger)
	if err != nil {
		return domain.ForecastResult{}, err
	}

	fitCtx, cancel := context.WithTimeout(ctx, p.opts.FitTimeout)
	defer cancel()

	fitStart := time.Now()
	pred, err := fc.Forecast(fitCtx, ds)
	p.metrics.FitDuration.Observe(time.Since(fitStart).Seconds())
	if err != nil {
		return domain.ForecastResult{}, err
	}
	return forecast.Package(pred, gauge.EntityID, domain.Now()), nil
}

func (p *Pipeline) loadSeries(ctx context.Context, ts domain.TimeSeries) {
	for _, s := range p.sinks {
		if err := s.LoadSeries(ctx, ts); err != nil {
			p.metrics.SinkErrors.WithLabelValues(s.Name()).Inc()
			p.logger.Error("load series failed", "sink", s.Name(), "entity_id", ts.EntityID, "error", err)
		}
	}
}

// loadForecast writes res to every sink and returns the number of failed
// writes. A cancelled run writes nothing.
func (p *Pipeline) loadForecast(ctx context.Context, res domain.ForecastResult) int {
	if ctx.Err() != nil {
		return 0
	}
	failures := 0
	for _, s := range p.sinks {
		if err := s.LoadForecast(ctx, res); err != nil {
			failures++
			p.metrics.SinkErrors.WithLabelValues(s.Name()).Inc()
			p.logger.Error("load forecast failed",
				"sink", s.Name(),
				"entity_id", res.EntityID,
				"run_id", res.RunID,
				"error", err,
			)
		}
	}
	return failures
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
