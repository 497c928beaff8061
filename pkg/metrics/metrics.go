// Package metrics exposes Prometheus instruments for template compilation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OperationCreate    = "create"
	OperationRecompile = "recompile"
	OperationPreview   = "preview"

	ResultSuccess = "success"
	ResultError   = "error"
)

type Metrics struct {
	registry     *prometheus.Registry
	compilations *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	tasks        prometheus.Histogram
}

// New registers the compilation instruments, plus the Go and process collectors, on a
// dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		compilations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goobi_template_compilations_total",
				Help: "Total number of diagram compilations by operation and result",
			},
			[]string{"operation", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "goobi_template_compile_duration_seconds",
				Help:    "Duration of diagram compilations",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"operation"},
		),
		tasks: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "goobi_compiled_tasks",
				Help:    "Number of tasks produced per compilation",
				Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
			},
		),
	}

	m.registry.MustRegister(
		m.compilations,
		m.duration,
		m.tasks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveCompilation records one compilation. The task histogram only counts successful runs.
func (m *Metrics) ObserveCompilation(operation string, started time.Time, taskCount int, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}

	m.compilations.WithLabelValues(operation, result).Inc()
	m.duration.WithLabelValues(operation).Observe(time.Since(started).Seconds())

	if err == nil {
		m.tasks.Observe(float64(taskCount))
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
