package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hydro"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// forecasting pipeline.
type Metrics struct {
	PayloadsFetched  *prometheus.CounterVec // labels: source
	RecordsValidated *prometheus.CounterVec // labels: source
	SourceFailures   *prometheus.CounterVec // labels: source, kind
	PipelineRunning  prometheus.Gauge

	ForecastsProduced prometheus.Counter
	ForecastFailures  *prometheus.CounterVec // labels: kind
	FitDuration       prometheus.Histogram
	RunDuration       prometheus.Histogram
	LastSuccess       prometheus.Gauge
	SinkErrors        *prometheus.CounterVec // labels: sink

	// Station metadata lookups.
	StationCache        *prometheus.CounterVec // labels: result={hit,miss}
	StationLookupErrors prometheus.Counter
}

var (
	fitBuckets = []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120}
	runBuckets = []float64{1, 5, 10, 30, 60, 120, 300, 600}
)

func newMetrics() *Metrics {
	return &Metrics{
		PayloadsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payloads_fetched_total",
			Help:      "Raw payloads retrieved per source type.",
		}, []string{"source"}),
		RecordsValidated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_validated_total",
			Help:      "Records accepted by the schema validator per source type.",
		}, []string{"source"}),
		SourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_failures_total",
			Help:      "Sources skipped in a run, by source type and error kind.",
		}, []string{"source", "kind"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a forecasting run is in progress.",
		}),
		ForecastsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecasts_produced_total",
			Help:      "Forecast results packaged and loaded.",
		}),
		ForecastFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecast_failures_total",
			Help:      "Gauges skipped in a run, by error kind.",
		}, []string{"kind"}),
		FitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fit_duration_seconds",
			Help:      "Duration of one Gaussian Process fit and prediction.",
			Buckets:   fitBuckets,
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete fetch-to-load run.",
			Buckets:   runBuckets,
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that produced at least one forecast.",
		}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Failed writes per output sink.",
		}, []string{"sink"}),
		StationCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "station_cache_total",
			Help:      "Station metadata cache lookups by result.",
		}, []string{"result"}),
		StationLookupErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "station_lookup_errors_total",
			Help:      "Failed station metadata lookups.",
		}),
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.PayloadsFetched,
		m.RecordsValidated,
		m.SourceFailures,
		m.PipelineRunning,
		m.ForecastsProduced,
		m.ForecastFailures,
		m.FitDuration,
		m.RunDuration,
		m.LastSuccess,
		m.SinkErrors,
		m.StationCache,
		m.StationLookupErrors,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
