// Package events defines the flight event log shared by every component.
// Events describe state transitions and dispatch decisions; recording them
// is best-effort and must never block or fail a dispatch operation.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Level classifies the severity of a flight event.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelEmergency
)

// String returns the log-friendly name of the level.
func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelEmergency:
		return "EMERGENCY"
	default:
		return "UNKNOWN"
	}
}

// SystemEntity identifies events not attributable to a single airplane.
const SystemEntity = "SYSTEM"

// Event is a single entry in the flight event log.
type Event struct {
	ID      string    `json:"id"`
	Entity  string    `json:"entity"`
	Message string    `json:"message"`
	Level   Level     `json:"level"`
	Time    time.Time `json:"time"`
}

// New builds an event with a fresh ID and the current timestamp.
func New(entity, message string, level Level) Event {
	return Event{
		ID:      uuid.NewString(),
		Entity:  entity,
		Message: message,
		Level:   level,
		Time:    time.Now(),
	}
}

// Recorder receives flight events. Implementations must be safe for
// concurrent use from every component.
type Recorder interface {
	Record(Event)
}

// NopRecorder discards all events.
type NopRecorder struct{}

func (NopRecorder) Record(Event) {}
