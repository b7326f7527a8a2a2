// Package metrics records per-run pipeline metrics on a private Prometheus
// registry that can be written out in textfile-collector format.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Recorder holds the run's metric vectors. A nil Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	composeTotal   *prometheus.CounterVec
	gateWait       *prometheus.HistogramVec
	gateResult     *prometheus.CounterVec
	objectsEmitted *prometheus.CounterVec
	applyTotal     *prometheus.CounterVec
}

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		composeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "exposer",
				Name:      "compose_total",
				Help:      "Total number of workload compositions by result",
			},
			[]string{"result"},
		),
		gateWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "exposer",
				Name:      "gate_wait_seconds",
				Help:      "Time spent waiting for a subsystem readiness gate",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
			},
			[]string{"subsystem"},
		),
		gateResult: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "exposer",
				Name:      "gate_resolutions_total",
				Help:      "Readiness gate resolutions by subsystem and result",
			},
			[]string{"subsystem", "result"},
		),
		objectsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "exposer",
				Name:      "objects_emitted_total",
				Help:      "Managed objects emitted by kind",
			},
			[]string{"kind"},
		),
		applyTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "exposer",
				Name:      "apply_total",
				Help:      "Server-side apply calls by result",
			},
			[]string{"result"},
		),
	}

	r.registry.MustRegister(
		r.composeTotal,
		r.gateWait,
		r.gateResult,
		r.objectsEmitted,
		r.applyTotal,
	)
	return r
}

// Registry returns the recorder's registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// RecordCompose records one composition result.
func (r *Recorder) RecordCompose(result string) {
	if r == nil {
		return
	}
	r.composeTotal.WithLabelValues(result).Inc()
}

// RecordGate records how long a gate took to resolve and whether it became ready.
func (r *Recorder) RecordGate(subsystem string, seconds float64, ready bool) {
	if r == nil {
		return
	}
	r.gateWait.WithLabelValues(subsystem).Observe(seconds)
	result := ResultSuccess
	if !ready {
		result = ResultFailure
	}
	r.gateResult.WithLabelValues(subsystem, result).Inc()
}

// RecordObject records one emitted object.
func (r *Recorder) RecordObject(kind string) {
	if r == nil {
		return
	}
	r.objectsEmitted.WithLabelValues(kind).Inc()
}

// RecordApply records one apply call.
func (r *Recorder) RecordApply(result string) {
	if r == nil {
		return
	}
	r.applyTotal.WithLabelValues(result).Inc()
}

// WriteTextfile writes all metrics to path in textfile-collector format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
