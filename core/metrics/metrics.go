package metrics

import (
	"time"

	"github.com/skyops/aerodrome/core/model"
)

// OperationResult represents one single-shot dispatch attempt for an
// airplane: either a lane ran the operation or every lane was busy.
type OperationResult struct {
	AirplaneID string
	Operation  model.OperationKind
	LaneNumber int // 0 when no lane accepted
	LanesTried int
	Success    bool
	Duration   time.Duration
	Time       time.Time
}

// GateTransition captures an airport-wide gate state change.
type GateTransition struct {
	From   string
	To     string
	Reason string
	Time   time.Time
}

// MetricsSink records dispatch outcomes for observability purposes.
type MetricsSink interface {
	RecordOperationResult(results []OperationResult) error
}

// GateRecorder records airport gate transitions. Sinks implement it in
// addition to MetricsSink when they can represent gate state.
type GateRecorder interface {
	RecordGateTransition(t GateTransition) error
}

// LaneRecorder receives lane availability snapshots.
type LaneRecorder interface {
	RecordLanesAvailable(n int) error
}

// NopSink ignores all recorded values.
type NopSink struct{}

func (NopSink) RecordOperationResult([]OperationResult) error { return nil }
func (NopSink) RecordGateTransition(GateTransition) error     { return nil }
func (NopSink) RecordLanesAvailable(int) error                { return nil }
