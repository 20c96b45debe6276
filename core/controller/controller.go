// Package controller implements the air traffic controller worker. Each
// controller owns a normal and an emergency queue and converts queued
// airplanes into lane-acquisition attempts against the tower, retrying
// under a bounded backoff.
package controller

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skyops/aerodrome/core/events"
	"github.com/skyops/aerodrome/core/logger"
	"github.com/skyops/aerodrome/core/model"
	"github.com/skyops/aerodrome/internal/timeutil"
)

// DutyState is the controller's duty state.
type DutyState int

const (
	DutyOnDuty DutyState = iota
	DutyOnBreak
	DutyHandlingEmergency
)

func (d DutyState) String() string {
	switch d {
	case DutyOnDuty:
		return "on_duty"
	case DutyOnBreak:
		return "on_break"
	case DutyHandlingEmergency:
		return "handling_emergency"
	default:
		return "unknown"
	}
}

// Tower is the subset of the airport a controller dispatches against.
type Tower interface {
	// RegisterAirplane adds the airplane to the in-range registry.
	// Registering a known airplane is a no-op.
	RegisterAirplane(plane model.Airplane)
	// DeregisterAirplane drops the airplane from the registry.
	DeregisterAirplane(airplaneID string)
	// DivertAirplane marks a failed landing as diverted and drops the
	// airplane from the registry.
	DivertAirplane(airplaneID string)
	// RequestOperation makes a single non-blocking pass over the lanes.
	RequestOperation(ctx context.Context, airplaneID string, op model.OperationKind) bool
}

// Config defines the controller loop parameters.
type Config struct {
	MaxConcurrent int           `json:"max_concurrent"`
	MaxAttempts   int           `json:"max_attempts"`
	RetryBackoff  time.Duration `json:"-"`
	MaxRequeues   int           `json:"max_requeues"`
	BreakChance   float64       `json:"break_chance"`
	BreakMin      time.Duration `json:"-"`
	BreakMax      time.Duration `json:"-"`
	EmergencyHold time.Duration `json:"-"`
	PollInterval  time.Duration `json:"-"`
}

// SetDefaults fills unset fields with the simulation defaults.
func (c *Config) SetDefaults() {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 3
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 2 * time.Second
	}
	if c.MaxRequeues <= 0 {
		c.MaxRequeues = 3
	}
	if c.BreakChance <= 0 {
		c.BreakChance = 0.05
	}
	if c.BreakMin <= 0 {
		c.BreakMin = 3 * time.Second
	}
	if c.BreakMax <= c.BreakMin {
		c.BreakMax = c.BreakMin + 7*time.Second
	}
	if c.EmergencyHold <= 0 {
		c.EmergencyHold = 3 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
}

// Controller pulls airplanes from its queues and dispatches them against
// the tower. One Run goroutine per controller; Assign and HandleEmergency
// may be called from any goroutine.
type Controller struct {
	name  string
	tower Tower
	cfg   Config

	normal    airplaneQueue
	emergency airplaneQueue

	mu   sync.Mutex
	duty DutyState

	active atomic.Int32

	rec events.Recorder
	log logger.Logger
	rng *rand.Rand
}

// New creates a controller. The tower must not be nil.
func New(name string, tower Tower, cfg Config, rec events.Recorder, log logger.Logger) (*Controller, error) {
	if tower == nil {
		return nil, fmt.Errorf("controller: nil tower provided to New")
	}
	cfg.SetDefaults()
	c := &Controller{
		name:  name,
		tower: tower,
		cfg:   cfg,
		rec:   rec,
		log:   log,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	c.record(events.SystemEntity,
		fmt.Sprintf("controller %s initialized with capacity for %d concurrent airplanes", name, cfg.MaxConcurrent),
		events.LevelInfo)
	return c, nil
}

// Name returns the controller identity.
func (c *Controller) Name() string { return c.name }

// Duty returns the current duty state.
func (c *Controller) Duty() DutyState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duty
}

func (c *Controller) setDuty(next DutyState) {
	c.mu.Lock()
	prev := c.duty
	c.duty = next
	c.mu.Unlock()
	if prev != next {
		c.record(events.SystemEntity,
			fmt.Sprintf("controller %s status changed from %s to %s", c.name, prev, next), events.LevelInfo)
	}
}

// setDutyIf transitions only when the current state matches expect. The
// break path uses it so an emergency broadcast arriving mid-break is not
// overwritten when the break ends.
func (c *Controller) setDutyIf(expect, next DutyState) bool {
	c.mu.Lock()
	if c.duty != expect {
		c.mu.Unlock()
		return false
	}
	c.duty = next
	c.mu.Unlock()
	if expect != next {
		c.record(events.SystemEntity,
			fmt.Sprintf("controller %s status changed from %s to %s", c.name, expect, next), events.LevelInfo)
	}
	return true
}

// Load reports queued plus in-flight airplanes. The generator uses it to
// pick the least-loaded controller.
func (c *Controller) Load() int {
	return c.normal.len() + c.emergency.len() + int(c.active.Load())
}

// CanAccept reports whether the controller is on duty with spare capacity.
func (c *Controller) CanAccept() bool {
	return c.Duty() == DutyOnDuty && int(c.active.Load()) < c.cfg.MaxConcurrent
}

// Assign registers the airplane with the tower and places it on the
// matching queue. It never blocks.
func (c *Controller) Assign(plane model.Airplane) {
	c.tower.RegisterAirplane(plane)
	if plane.IsEmergency() {
		c.emergency.push(queued{plane: plane})
		c.record(plane.ID, fmt.Sprintf("EMERGENCY aircraft assigned to controller %s", c.name), events.LevelEmergency)
		return
	}
	c.normal.push(queued{plane: plane})
	c.record(plane.ID, fmt.Sprintf("assigned to controller %s", c.name), events.LevelInfo)
}

// HandleEmergency puts the controller into the emergency super-state. The
// run loop holds there for the configured delay before resuming duty.
func (c *Controller) HandleEmergency(reason string) {
	c.record(events.SystemEntity,
		fmt.Sprintf("controller %s switching to emergency procedures: %s", c.name, reason), events.LevelEmergency)
	c.setDuty(DutyHandlingEmergency)
}

// Run processes queued airplanes until ctx is cancelled. An in-flight
// dispatch finishes before the loop observes the cancellation.
func (c *Controller) Run(ctx context.Context) {
	for ctx.Err() == nil {
		if c.Duty() == DutyHandlingEmergency {
			c.record(events.SystemEntity,
				fmt.Sprintf("controller %s handling emergency situation", c.name), events.LevelWarning)
			timeutil.Sleep(ctx, c.cfg.EmergencyHold)
			c.setDuty(DutyOnDuty)
		}

		item, ok := c.emergency.pop()
		if !ok {
			item, ok = c.normal.pop()
		}
		if !ok {
			// Idle: bounded wait so stop and emergency signals are
			// observed even with empty queues.
			timeutil.Sleep(ctx, c.cfg.PollInterval)
			continue
		}

		c.handle(ctx, item)

		if c.rng.Float64() < c.cfg.BreakChance && c.Duty() == DutyOnDuty {
			c.takeBreak(ctx)
		}
	}
	c.record(events.SystemEntity, fmt.Sprintf("controller %s has ended shift", c.name), events.LevelInfo)
}

func (c *Controller) handle(ctx context.Context, item queued) {
	if int(c.active.Add(1)) > c.cfg.MaxConcurrent {
		c.record(events.SystemEntity,
			fmt.Sprintf("controller %s exceeded concurrent capacity", c.name), events.LevelWarning)
	}
	defer c.active.Add(-1)

	plane := item.plane
	c.record(plane.ID,
		fmt.Sprintf("cleared by controller %s for %s operation", c.name, plane.Operation), events.LevelInfo)

	success := false
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if c.tower.RequestOperation(ctx, plane.ID, plane.Operation) {
			success = true
			break
		}
		c.record(plane.ID,
			fmt.Sprintf("no lanes free for %s. Attempt %d/%d. Retrying soon",
				plane.Operation, attempt, c.cfg.MaxAttempts), events.LevelWarning)
		if attempt < c.cfg.MaxAttempts && !timeutil.Sleep(ctx, c.cfg.RetryBackoff) {
			break
		}
	}

	switch {
	case success:
		c.record(plane.ID,
			fmt.Sprintf("completed %s operation via controller %s", plane.Operation, c.name), events.LevelInfo)
	case ctx.Err() != nil:
		c.record(plane.ID,
			fmt.Sprintf("operation handling interrupted by controller %s", c.name), events.LevelWarning)
	case plane.Operation == model.OperationLanding:
		c.record(plane.ID, "diverted to another airport after failed landing attempts", events.LevelWarning)
		c.tower.DivertAirplane(plane.ID)
	default:
		c.postponeDeparture(item)
	}
}

// postponeDeparture requeues a departure that found no lane, up to the
// configured cap; past the cap the departure is cancelled so a saturated
// airport cannot recycle the same airplane forever.
func (c *Controller) postponeDeparture(item queued) {
	if item.requeues >= c.cfg.MaxRequeues {
		c.record(item.plane.ID,
			fmt.Sprintf("departure cancelled after %d postponements", item.requeues), events.LevelWarning)
		c.tower.DeregisterAirplane(item.plane.ID)
		return
	}
	item.requeues++
	c.record(item.plane.ID,
		fmt.Sprintf("operation postponed due to unavailable lanes (%d/%d)", item.requeues, c.cfg.MaxRequeues),
		events.LevelWarning)
	c.normal.push(item)
}

func (c *Controller) takeBreak(ctx context.Context) {
	c.setDuty(DutyOnBreak)
	d := c.cfg.BreakMin + time.Duration(c.rng.Int63n(int64(c.cfg.BreakMax-c.cfg.BreakMin)))
	c.record(events.SystemEntity,
		fmt.Sprintf("controller %s taking a %.0f second break", c.name, d.Seconds()), events.LevelInfo)
	timeutil.Sleep(ctx, d)
	c.setDutyIf(DutyOnBreak, DutyOnDuty)
}

func (c *Controller) record(entity, msg string, level events.Level) {
	if c.rec != nil {
		c.rec.Record(events.New(entity, msg, level))
	}
	if c.log != nil {
		c.log.Debugw(msg, map[string]any{"entity": entity, "controller": c.name})
	}
}
