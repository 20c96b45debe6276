package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/skyops/aerodrome/core/metrics"
)

// PromSink records dispatch outcomes in Prometheus metrics.
type PromSink struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	gate       *prometheus.GaugeVec
	lanes      prometheus.Gauge
}

// NewPromSink registers dispatch metrics on the default Prometheus
// registerer. The Prometheus server is started separately.
func NewPromSink(cfg coremetrics.Config) (*PromSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(cfg coremetrics.Config, reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "runway_operations_total",
		Help: "Total number of single-shot runway dispatch attempts",
	}, []string{"operation", "success"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "runway_operation_duration_seconds",
		Help:    "Duration of a runway operation including cooldown",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "success"})
	gate := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "airport_gate_state",
		Help: "Current airport gate state (1 for the active state)",
	}, []string{"state"})
	lanes := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "airport_lanes_available",
		Help: "Number of lanes currently available",
	})

	if err := reg.Register(operations); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			operations = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(latency); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			latency = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(gate); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			gate = are.ExistingCollector.(*prometheus.GaugeVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(lanes); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			lanes = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}

	return &PromSink{operations: operations, latency: latency, gate: gate, lanes: lanes}, nil
}

// RecordOperationResult increments the counter and observes the latency for
// each result.
func (s *PromSink) RecordOperationResult(res []coremetrics.OperationResult) error {
	for _, r := range res {
		ok := strconv.FormatBool(r.Success)
		s.operations.WithLabelValues(r.Operation.String(), ok).Inc()
		s.latency.WithLabelValues(r.Operation.String(), ok).Observe(r.Duration.Seconds())
	}
	return nil
}

// RecordGateTransition marks the new gate state active and clears the old.
func (s *PromSink) RecordGateTransition(t coremetrics.GateTransition) error {
	s.gate.WithLabelValues(t.From).Set(0)
	s.gate.WithLabelValues(t.To).Set(1)
	return nil
}

// RecordLanesAvailable sets the available-lane gauge.
func (s *PromSink) RecordLanesAvailable(n int) error {
	s.lanes.Set(float64(n))
	return nil
}
