package logger

import "github.com/skyops/aerodrome/core/events"

// FlightLog records flight events through a component logger. It is the
// default events.Recorder subscriber and is safe for concurrent use.
type FlightLog struct {
	log Logger
}

// NewFlightLog creates a FlightLog writing under the "flightlog" component.
func NewFlightLog() *FlightLog {
	return &FlightLog{log: New("flightlog")}
}

// NewFlightLogWith uses the provided logger. Tests pass a NopLogger.
func NewFlightLogWith(log Logger) *FlightLog {
	return &FlightLog{log: log}
}

// Record writes the event at a level matching its severity.
func (f *FlightLog) Record(e events.Event) {
	switch e.Level {
	case events.LevelEmergency:
		f.log.Errorf("[%s] %s", e.Entity, e.Message)
	case events.LevelWarning:
		f.log.Warnf("[%s] %s", e.Entity, e.Message)
	default:
		f.log.Infof("[%s] %s", e.Entity, e.Message)
	}
}
