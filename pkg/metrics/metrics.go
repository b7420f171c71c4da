// Package metrics exposes Prometheus collectors for the validators and the
// storage-encoding optimizer.
//
// All metrics are registered through promauto at package load. Validation
// metrics are labelled with the node's type tag so a slow or failing handler
// family is visible without log archaeology.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ObjectsValidated tracks objects checked by the current-format validator.
	// Labels: type (registered type tag), status (success/failure)
	ObjectsValidated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alabaster_objects_validated_total",
			Help: "Total number of saved objects validated",
		},
		[]string{"type", "status"},
	)

	// ValidationFailures tracks failures by error category.
	// Labels: kind (error taxonomy value)
	ValidationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alabaster_validation_failures_total",
			Help: "Total number of validation failures by error kind",
		},
		[]string{"kind"},
	)

	// ValidationLatency tracks the duration of whole-tree validation calls
	// in nanoseconds. Buckets cover single-node checks up to deep trees.
	ValidationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "alabaster_validation_latency_nanoseconds",
			Help: "Directory validation latency in nanoseconds",
			Buckets: []float64{
				10000,  // 10μs - single metadata read
				100000, // 100μs - small object
				1e6,    // 1ms - typical object
				1e7,    // 10ms - nested tree
				1e8,    // 100ms - wide tree
				1e9,    // 1s - very large tree
			},
		},
		[]string{"format"},
	)

	// OptimizerRuns tracks storage-encoding optimizer invocations.
	// Labels: kind (integer/float/string/boolean)
	OptimizerRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alabaster_optimizer_runs_total",
			Help: "Total number of storage-encoding optimizer invocations",
		},
		[]string{"kind"},
	)
)

// Timer measures one validation call and observes it on completion.
type Timer struct {
	format string
	start  time.Time
}

// NewTimer starts a latency timer for the given validator format
// ("object" or "legacy").
func NewTimer(format string) *Timer {
	return &Timer{format: format, start: time.Now()}
}

// Stop records the elapsed time and returns it.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	ValidationLatency.WithLabelValues(t.format).Observe(float64(elapsed.Nanoseconds()))
	return elapsed
}
