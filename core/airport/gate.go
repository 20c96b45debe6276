package airport

import "sync"

// GateState is the airport-wide admission state. Dispatch requests are
// honored only while the gate is Operational.
type GateState int

const (
	GateOperational GateState = iota
	GateWeatherAlert
	GateEmergency
)

func (g GateState) String() string {
	switch g {
	case GateOperational:
		return "operational"
	case GateWeatherAlert:
		return "weather_alert"
	case GateEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// gateHolder guards the gate state. All reads go through Get so every
// admission decision sees the current value.
type gateHolder struct {
	mu    sync.Mutex
	state GateState
}

func (g *gateHolder) Get() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Set unconditionally stores next and returns the previous state.
func (g *gateHolder) Set(next GateState) GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	prev := g.state
	g.state = next
	return prev
}

// CompareAndSwap stores next only when the current state is old. Recovery
// paths use it so a weather clear never overwrites an emergency declared
// in the interim.
func (g *gateHolder) CompareAndSwap(old, next GateState) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != old {
		return false
	}
	g.state = next
	return true
}
