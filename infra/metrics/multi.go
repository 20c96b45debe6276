package metrics

import coremetrics "github.com/skyops/aerodrome/core/metrics"

// MultiSink fans dispatch records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordOperationResult forwards the record to all sinks, returning the
// first error encountered.
func (m *MultiSink) RecordOperationResult(res []coremetrics.OperationResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordOperationResult(res); err != nil {
			return err
		}
	}
	return nil
}

// RecordGateTransition forwards gate transitions to capable sinks.
func (m *MultiSink) RecordGateTransition(t coremetrics.GateTransition) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.GateRecorder); ok {
			if err := rec.RecordGateTransition(t); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordLanesAvailable forwards lane snapshots to capable sinks.
func (m *MultiSink) RecordLanesAvailable(n int) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.LaneRecorder); ok {
			if err := rec.RecordLanesAvailable(n); err != nil {
				return err
			}
		}
	}
	return nil
}
