package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsRecorder exports service operations as a counter of
// outcomes and a latency histogram.
type PrometheusMetricsRecorder struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// NewPrometheusMetricsRecorder creates the collectors and registers them with
// reg. A nil registerer leaves them unregistered.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	r := &PrometheusMetricsRecorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "yojana",
			Subsystem: "service",
			Name:      "operations_total",
			Help:      "Service operations by name and outcome.",
		}, []string{"operation", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "yojana",
			Subsystem: "service",
			Name:      "operation_duration_seconds",
			Help:      "Service operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{r.operations, r.latency} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

// Observe implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	status := string(AuditStatusSuccess)
	if !success {
		status = string(AuditStatusError)
	}
	r.operations.WithLabelValues(operation, status).Inc()
	r.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// Collectors exposes the underlying collectors for tests and custom registries.
func (r *PrometheusMetricsRecorder) Collectors() (*prometheus.CounterVec, *prometheus.HistogramVec) {
	return r.operations, r.latency
}
