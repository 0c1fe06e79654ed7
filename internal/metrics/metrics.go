// Package metrics exposes Prometheus instrumentation for pipeline runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"medreport/pkg/models"
)

const (
	namespace = "medreport"
	subsystem = "pipeline"
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Recorder records pipeline metrics on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	runsTotal       *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	inFlight        prometheus.Gauge
	imagesGenerated prometheus.Counter
}

// NewRecorder creates a recorder registered on a fresh registry.
func NewRecorder() *Recorder {
	return NewRecorderWithRegistry(prometheus.NewRegistry())
}

// NewRecorderWithRegistry creates a recorder registered on registry.
func NewRecorderWithRegistry(registry *prometheus.Registry) *Recorder {
	r := &Recorder{
		registry: registry,
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "runs_total",
			Help:      "Total number of report processing runs, labeled by result and failed stage.",
		}, []string{"result", "failed_stage"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 60, 120, 300},
		}, []string{"stage", "result"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "in_flight",
			Help:      "Current number of reports being processed.",
		}),
		imagesGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "images_generated_total",
			Help:      "Total number of illustrations persisted.",
		}),
	}

	registry.MustRegister(r.runsTotal, r.stageDuration, r.inFlight, r.imagesGenerated)
	return r
}

// RunStarted marks a run as in flight. Call the returned func when it ends.
func (r *Recorder) RunStarted() func() {
	r.inFlight.Inc()
	return r.inFlight.Dec
}

// ObserveRun counts a finished run.
func (r *Recorder) ObserveRun(result *models.ProcessingResult) {
	if result.Success {
		r.runsTotal.WithLabelValues(ResultSuccess, "").Inc()
		return
	}
	r.runsTotal.WithLabelValues(ResultFailure, string(result.FailedStage)).Inc()
}

// ObserveStage records the duration of one stage.
func (r *Recorder) ObserveStage(stage models.Stage, d time.Duration, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	r.stageDuration.WithLabelValues(string(stage), result).Observe(d.Seconds())
}

// ImagesGenerated adds n persisted illustrations.
func (r *Recorder) ImagesGenerated(n int) {
	r.imagesGenerated.Add(float64(n))
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
