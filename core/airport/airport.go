// Package airport implements the coordinator: the lane registry, the
// in-range flight registry, the airport-wide gate and the background
// processes that alter it.
package airport

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/skyops/aerodrome/core/events"
	"github.com/skyops/aerodrome/core/lane"
	"github.com/skyops/aerodrome/core/logger"
	"github.com/skyops/aerodrome/core/metrics"
	"github.com/skyops/aerodrome/core/model"
	"github.com/skyops/aerodrome/internal/timeutil"
)

// Config defines the airport parameters.
type Config struct {
	Name  string `json:"name"`
	Lanes int    `json:"lanes"`

	LaneTimings lane.Timings `json:"-"`

	MaintenanceInterval time.Duration `json:"-"`
	MaintenanceDuration time.Duration `json:"-"`
	WeatherInterval     time.Duration `json:"-"`
	WeatherChance       float64       `json:"weather_chance"`
	WeatherDuration     time.Duration `json:"-"`
	EmergencyDuration   time.Duration `json:"-"`
	FollowUpMin         time.Duration `json:"-"`
	FollowUpMax         time.Duration `json:"-"`
}

// SetDefaults fills unset fields with the simulation defaults.
func (c *Config) SetDefaults() {
	if c.Name == "" {
		c.Name = "aerodrome"
	}
	if c.LaneTimings == (lane.Timings{}) {
		c.LaneTimings = lane.DefaultTimings()
	}
	if c.MaintenanceInterval <= 0 {
		c.MaintenanceInterval = 20 * time.Second
	}
	if c.MaintenanceDuration <= 0 {
		c.MaintenanceDuration = 5 * time.Second
	}
	if c.WeatherInterval <= 0 {
		c.WeatherInterval = 15 * time.Second
	}
	if c.WeatherChance <= 0 {
		c.WeatherChance = 0.2
	}
	if c.WeatherDuration <= 0 {
		c.WeatherDuration = 5 * time.Second
	}
	if c.EmergencyDuration <= 0 {
		c.EmergencyDuration = 10 * time.Second
	}
	if c.FollowUpMin <= 0 {
		c.FollowUpMin = time.Second
	}
	if c.FollowUpMax <= c.FollowUpMin {
		c.FollowUpMax = c.FollowUpMin + 2*time.Second
	}
}

// Validate rejects configurations the airport cannot start with.
func (c Config) Validate() error {
	if c.Lanes < 1 {
		return fmt.Errorf("airport: lane count must be at least 1, got %d", c.Lanes)
	}
	return nil
}

// EmergencyHandler receives airport-wide emergency broadcasts. Controllers
// implement it.
type EmergencyHandler interface {
	Name() string
	HandleEmergency(reason string)
}

// flight is a registry entry for an airplane currently in range.
type flight struct {
	plane  model.Airplane
	status model.Status
}

// Airport coordinates lanes, controllers and the global gate.
type Airport struct {
	cfg   Config
	lanes []*lane.Lane
	gate  gateHolder

	mu          sync.RWMutex
	flights     map[string]*flight
	controllers []EmergencyHandler

	rec  events.Recorder
	log  logger.Logger
	sink metrics.MetricsSink

	rng   *rand.Rand
	rngMu sync.Mutex

	wg sync.WaitGroup
}

// New creates an airport with cfg.Lanes lanes numbered from 1. A nil sink
// disables metrics.
func New(cfg Config, rec events.Recorder, log logger.Logger, sink metrics.MetricsSink) (*Airport, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	a := &Airport{
		cfg:     cfg,
		flights: make(map[string]*flight),
		rec:     rec,
		log:     log,
		sink:    sink,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for i := 1; i <= cfg.Lanes; i++ {
		a.lanes = append(a.lanes, lane.New(i, cfg.LaneTimings, rec, log))
	}
	a.record(events.SystemEntity,
		fmt.Sprintf("airport %s ready with %d lanes", cfg.Name, cfg.Lanes), events.LevelInfo)
	return a, nil
}

// Name returns the airport identity.
func (a *Airport) Name() string { return a.cfg.Name }

// Gate returns the current gate state.
func (a *Airport) Gate() GateState { return a.gate.Get() }

// Lanes exposes the lane set for tests and metrics snapshots.
func (a *Airport) Lanes() []*lane.Lane { return a.lanes }

// LanesAvailable counts lanes currently in the Available state.
func (a *Airport) LanesAvailable() int {
	n := 0
	for _, l := range a.lanes {
		if s, _ := l.Status(); s == lane.StateAvailable {
			n++
		}
	}
	return n
}

// RegisterController adds a controller to the emergency broadcast list.
func (a *Airport) RegisterController(h EmergencyHandler) {
	a.mu.Lock()
	a.controllers = append(a.controllers, h)
	a.mu.Unlock()
	a.record(events.SystemEntity,
		fmt.Sprintf("controller %s registered with airport %s", h.Name(), a.cfg.Name), events.LevelInfo)
}

// RegisterAirplane adds the airplane to the in-range registry. Registering
// a known airplane is a no-op.
func (a *Airport) RegisterAirplane(plane model.Airplane) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.flights[plane.ID]; ok {
		return
	}
	status := model.StatusScheduled
	if plane.Operation == model.OperationLanding {
		status = model.StatusApproaching
	}
	a.flights[plane.ID] = &flight{plane: plane, status: status}
	a.record(plane.ID, fmt.Sprintf("entered %s airspace (%s)", a.cfg.Name, status), events.LevelInfo)
}

// DeregisterAirplane removes the airplane from the registry. Unknown IDs
// are ignored.
func (a *Airport) DeregisterAirplane(airplaneID string) {
	a.mu.Lock()
	_, known := a.flights[airplaneID]
	delete(a.flights, airplaneID)
	a.mu.Unlock()
	if known {
		a.record(airplaneID, fmt.Sprintf("left %s airspace", a.cfg.Name), events.LevelInfo)
	}
}

// DivertAirplane records the diverted terminal status for a landing that
// exhausted its attempts and removes the airplane from the registry.
func (a *Airport) DivertAirplane(airplaneID string) {
	a.setStatus(airplaneID, model.StatusDiverted)
	a.DeregisterAirplane(airplaneID)
}

// FlightStatus returns the observed status of a registered airplane.
func (a *Airport) FlightStatus(airplaneID string) (model.Status, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	f, ok := a.flights[airplaneID]
	if !ok {
		return 0, false
	}
	return f.status, true
}

// FlightsInRange reports the number of registered airplanes.
func (a *Airport) FlightsInRange() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.flights)
}

func (a *Airport) setStatus(airplaneID string, status model.Status) {
	a.mu.Lock()
	f, ok := a.flights[airplaneID]
	if ok {
		f.status = status
	}
	a.mu.Unlock()
	if ok {
		a.record(airplaneID, fmt.Sprintf("status is now %s", status), events.LevelInfo)
	}
}

// RequestOperation makes a single non-blocking pass over the lanes in a
// randomized order. It returns false when the gate is closed, the airplane
// is unknown or every lane is busy; the caller owns the retry policy.
func (a *Airport) RequestOperation(ctx context.Context, airplaneID string, op model.OperationKind) bool {
	if gate := a.gate.Get(); gate != GateOperational {
		a.record(airplaneID,
			fmt.Sprintf("request rejected: airport %s is %s", a.cfg.Name, gate), events.LevelWarning)
		return false
	}
	a.mu.RLock()
	_, known := a.flights[airplaneID]
	a.mu.RUnlock()
	if !known {
		a.record(airplaneID, "request rejected: not registered with the airport", events.LevelWarning)
		return false
	}

	if op == model.OperationLanding {
		a.setStatus(airplaneID, model.StatusLanding)
	} else {
		a.setStatus(airplaneID, model.StatusDeparting)
	}

	start := time.Now()
	order := a.perm(len(a.lanes))
	for tried, idx := range order {
		l := a.lanes[idx]
		if !l.TryAcquireAndRun(ctx, airplaneID, op) {
			continue
		}
		if op == model.OperationLanding {
			a.setStatus(airplaneID, model.StatusLanded)
		} else {
			a.setStatus(airplaneID, model.StatusInAir)
		}
		a.recordOperation(metrics.OperationResult{
			AirplaneID: airplaneID,
			Operation:  op,
			LaneNumber: l.Number(),
			LanesTried: tried + 1,
			Success:    true,
			Duration:   time.Since(start),
			Time:       start,
		})
		a.scheduleFollowUp(ctx, airplaneID, op)
		return true
	}

	a.recordOperation(metrics.OperationResult{
		AirplaneID: airplaneID,
		Operation:  op,
		LanesTried: len(order),
		Success:    false,
		Duration:   time.Since(start),
		Time:       start,
	})
	return false
}

// scheduleFollowUp runs the post-operation movement (taxi to gate after a
// landing, fly-away after a departure) after a bounded random delay. The
// goroutine is tracked so Shutdown can wait for it; cancelling ctx only
// shortens the delay.
func (a *Airport) scheduleFollowUp(ctx context.Context, airplaneID string, op model.OperationKind) {
	a.rngMu.Lock()
	delay := a.cfg.FollowUpMin +
		time.Duration(a.rng.Int63n(int64(a.cfg.FollowUpMax-a.cfg.FollowUpMin)))
	a.rngMu.Unlock()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if op == model.OperationLanding {
			a.setStatus(airplaneID, model.StatusTaxiing)
			timeutil.Sleep(ctx, delay)
			a.setStatus(airplaneID, model.StatusAtGate)
			return
		}
		timeutil.Sleep(ctx, delay)
		a.DeregisterAirplane(airplaneID)
	}()
}

// DeclareEmergency closes the gate, broadcasts to every registered
// controller and schedules the timed recovery.
func (a *Airport) DeclareEmergency(ctx context.Context, reason string) {
	prev := a.gate.Set(GateEmergency)
	a.recordGate(prev, GateEmergency, reason)

	a.mu.RLock()
	handlers := make([]EmergencyHandler, len(a.controllers))
	copy(handlers, a.controllers)
	a.mu.RUnlock()
	for _, h := range handlers {
		h.HandleEmergency(reason)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		timeutil.Sleep(ctx, a.cfg.EmergencyDuration)
		if a.gate.CompareAndSwap(GateEmergency, GateOperational) {
			a.recordGate(GateEmergency, GateOperational, "emergency resolved")
		}
	}()
}

// Start launches the background maintenance and weather processes. They
// stop when ctx is cancelled.
func (a *Airport) Start(ctx context.Context) {
	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		a.maintenanceLoop(ctx)
	}()
	go func() {
		defer a.wg.Done()
		a.weatherLoop(ctx)
	}()
}

// Shutdown waits for background loops, follow-ups and lane maintenance
// timers to unwind. Callers cancel the run context first.
func (a *Airport) Shutdown() {
	a.wg.Wait()
	for _, l := range a.lanes {
		l.Wait()
	}
	a.record(events.SystemEntity, fmt.Sprintf("airport %s shut down", a.cfg.Name), events.LevelInfo)
}

// maintenanceLoop periodically sends one random lane into maintenance.
// A busy lane simply declines; maintenance is opportunistic.
func (a *Airport) maintenanceLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.MaintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if a.gate.Get() != GateOperational {
			continue
		}
		a.rngMu.Lock()
		idx := a.rng.Intn(len(a.lanes))
		a.rngMu.Unlock()
		a.lanes[idx].StartMaintenance(ctx, a.cfg.MaintenanceDuration)
	}
}

// weatherLoop periodically raises a weather alert with the configured
// probability, holds it, then clears it unless an emergency took over.
func (a *Airport) weatherLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.WeatherInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		a.rngMu.Lock()
		hit := a.rng.Float64() < a.cfg.WeatherChance
		a.rngMu.Unlock()
		if !hit {
			continue
		}
		if !a.gate.CompareAndSwap(GateOperational, GateWeatherAlert) {
			continue
		}
		a.recordGate(GateOperational, GateWeatherAlert, "adverse weather conditions")
		timeutil.Sleep(ctx, a.cfg.WeatherDuration)
		if a.gate.CompareAndSwap(GateWeatherAlert, GateOperational) {
			a.recordGate(GateWeatherAlert, GateOperational, "weather cleared")
		}
	}
}

func (a *Airport) perm(n int) []int {
	a.rngMu.Lock()
	defer a.rngMu.Unlock()
	return a.rng.Perm(n)
}

func (a *Airport) recordOperation(res metrics.OperationResult) {
	if err := a.sink.RecordOperationResult([]metrics.OperationResult{res}); err != nil && a.log != nil {
		a.log.Errorf("metrics error: %v", err)
	}
	if lr, ok := a.sink.(metrics.LaneRecorder); ok {
		if err := lr.RecordLanesAvailable(a.LanesAvailable()); err != nil && a.log != nil {
			a.log.Errorf("lane metrics error: %v", err)
		}
	}
}

func (a *Airport) recordGate(from, to GateState, reason string) {
	level := events.LevelWarning
	if to == GateEmergency {
		level = events.LevelEmergency
	} else if to == GateOperational {
		level = events.LevelInfo
	}
	a.record(events.SystemEntity,
		fmt.Sprintf("airport %s gate changed from %s to %s: %s", a.cfg.Name, from, to, reason), level)
	if gr, ok := a.sink.(metrics.GateRecorder); ok {
		t := metrics.GateTransition{From: from.String(), To: to.String(), Reason: reason, Time: time.Now()}
		if err := gr.RecordGateTransition(t); err != nil && a.log != nil {
			a.log.Errorf("gate metrics error: %v", err)
		}
	}
}

func (a *Airport) record(entity, msg string, level events.Level) {
	if a.rec != nil {
		a.rec.Record(events.New(entity, msg, level))
	}
	if a.log != nil {
		a.log.Debugw(msg, map[string]any{"entity": entity, "airport": a.cfg.Name})
	}
}
