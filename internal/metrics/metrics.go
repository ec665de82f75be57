// Package metrics exposes the pipeline's Prometheus collectors.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	buildDuration   *prometheus.HistogramVec
	deployResults   *prometheus.CounterVec
}

// New registers the collectors with reg. Collectors that are already
// registered are reused, so New may be called more than once per process.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pagecraft",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pagecraft",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"}),
		buildDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pagecraft",
			Subsystem: "pipeline",
			Name:      "build_duration_seconds",
			Help:      "Time spent materializing project build directories",
			Buckets:   histogramBuckets,
		}, []string{"outcome"}),
		deployResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pagecraft",
			Subsystem: "pipeline",
			Name:      "deploy_results_total",
			Help:      "Number of deployment attempts by target and outcome",
		}, []string{"target", "outcome"}),
	}

	m.requestTotal = register(reg, m.requestTotal)
	m.requestDuration = register(reg, m.requestDuration)
	m.buildDuration = register(reg, m.buildDuration)
	m.deployResults = register(reg, m.deployResults)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{"method": method, "route": route, "status": strconv.Itoa(status)}
	m.requestTotal.With(labels).Inc()
	m.requestDuration.With(labels).Observe(d.Seconds())
}

// ObserveBuild records a BuildProject run.
func (m *Metrics) ObserveBuild(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.buildDuration.WithLabelValues(outcome(err)).Observe(d.Seconds())
}

// DeployResult counts a finished deployment attempt.
func (m *Metrics) DeployResult(target string, err error) {
	if m == nil {
		return
	}
	m.deployResults.WithLabelValues(target, outcome(err)).Inc()
}
