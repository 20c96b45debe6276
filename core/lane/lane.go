// Package lane implements the exclusive-access runway lane state machine.
// Acquisition is strictly non-blocking: a caller that finds the lane busy
// gets false immediately and must try another lane or give up.
package lane

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/skyops/aerodrome/core/events"
	"github.com/skyops/aerodrome/core/logger"
	"github.com/skyops/aerodrome/core/model"
	"github.com/skyops/aerodrome/internal/timeutil"
)

// State is the availability state of a lane.
type State int

const (
	StateAvailable State = iota
	StateOccupied
	StateCooldown
	StateMaintenance
)

func (s State) String() string {
	switch s {
	case StateAvailable:
		return "available"
	case StateOccupied:
		return "occupied"
	case StateCooldown:
		return "cooldown"
	case StateMaintenance:
		return "maintenance"
	default:
		return "unknown"
	}
}

// Timings defines the simulated operation durations. Each operation takes
// its base duration plus a uniform jitter in [-Jitter, +Jitter]; the
// cooldown takes CooldownBase plus a uniform jitter in [0, Jitter].
type Timings struct {
	LandingBase  time.Duration
	TakeoffBase  time.Duration
	CooldownBase time.Duration
	Jitter       time.Duration
}

// DefaultTimings mirrors the simulation defaults: seconds-scale operations
// with one second of variation.
func DefaultTimings() Timings {
	return Timings{
		LandingBase:  3 * time.Second,
		TakeoffBase:  2 * time.Second,
		CooldownBase: time.Second,
		Jitter:       time.Second,
	}
}

// Lane is a single exclusive-access runway lane. At most one airplane is
// bound to a lane at any instant; the occupant survives through the
// cooldown that follows its operation.
type Lane struct {
	number  int
	timings Timings

	mu       sync.Mutex
	state    State
	occupant string

	rec events.Recorder
	log logger.Logger
	wg  sync.WaitGroup
}

// New creates a lane in the Available state.
func New(number int, timings Timings, rec events.Recorder, log logger.Logger) *Lane {
	l := &Lane{number: number, timings: timings, rec: rec, log: log}
	l.record(events.SystemEntity, fmt.Sprintf("lane %d is now %s", number, StateAvailable), events.LevelInfo)
	return l
}

// Number returns the lane's immutable identity.
func (l *Lane) Number() int { return l.number }

// Status returns the current state and occupant under the lane lock.
func (l *Lane) Status() (State, string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state, l.occupant
}

// TryAcquireAndRun attempts to take the lane for the given operation. It
// returns false immediately when the lane is not Available. On success it
// runs the timed operation and cooldown, returns the lane to Available and
// reports true. Cancelling ctx cuts every wait short; the lane still ends
// Available.
func (l *Lane) TryAcquireAndRun(ctx context.Context, airplaneID string, op model.OperationKind) bool {
	l.mu.Lock()
	if l.state != StateAvailable {
		l.mu.Unlock()
		return false
	}
	l.setStateLocked(StateOccupied, airplaneID)
	l.mu.Unlock()

	l.record(airplaneID, fmt.Sprintf("is using lane %d for %s", l.number, op), events.LevelInfo)
	l.performOperation(ctx, airplaneID, op)
	l.applyCooldown(ctx)

	l.mu.Lock()
	l.setStateLocked(StateAvailable, "")
	l.mu.Unlock()
	return true
}

// StartMaintenance puts an Available lane into Maintenance and schedules
// the asynchronous return to Available after the given duration. It
// returns false when the lane is busy; maintenance is opportunistic and
// callers do not retry.
func (l *Lane) StartMaintenance(ctx context.Context, duration time.Duration) bool {
	l.mu.Lock()
	if l.state != StateAvailable {
		l.mu.Unlock()
		return false
	}
	l.setStateLocked(StateMaintenance, "")
	l.mu.Unlock()

	l.record(events.SystemEntity,
		fmt.Sprintf("lane %d is under maintenance for %s", l.number, duration), events.LevelInfo)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if !timeutil.Sleep(ctx, duration) {
			l.record(events.SystemEntity,
				fmt.Sprintf("maintenance interrupted on lane %d", l.number), events.LevelWarning)
		}
		l.mu.Lock()
		l.setStateLocked(StateAvailable, "")
		l.mu.Unlock()
		l.record(events.SystemEntity,
			fmt.Sprintf("lane %d maintenance completed", l.number), events.LevelInfo)
	}()
	return true
}

// Wait blocks until pending maintenance timers have finished. Used during
// shutdown after the shared context is cancelled.
func (l *Lane) Wait() { l.wg.Wait() }

func (l *Lane) performOperation(ctx context.Context, airplaneID string, op model.OperationKind) {
	base := l.timings.LandingBase
	verb := "landing on"
	done := "has successfully landed on"
	if op == model.OperationDeparture {
		base = l.timings.TakeoffBase
		verb = "takeoff from"
		done = "has successfully taken off from"
	}
	d := jittered(base, l.timings.Jitter)
	l.record(airplaneID,
		fmt.Sprintf("beginning %s lane %d (estimated time: %.1fs)", verb, l.number, d.Seconds()),
		events.LevelInfo)
	if !timeutil.Sleep(ctx, d) {
		l.record(airplaneID,
			fmt.Sprintf("%s was interrupted on lane %d", op, l.number), events.LevelWarning)
		return
	}
	l.record(airplaneID, fmt.Sprintf("%s lane %d", done, l.number), events.LevelInfo)
}

func (l *Lane) applyCooldown(ctx context.Context) {
	d := l.timings.CooldownBase
	if l.timings.Jitter > 0 {
		u := distuv.Uniform{Min: 0, Max: float64(l.timings.Jitter)}
		d += time.Duration(u.Rand())
	}
	l.mu.Lock()
	l.setStateLocked(StateCooldown, l.occupant)
	l.mu.Unlock()
	l.record(events.SystemEntity,
		fmt.Sprintf("lane %d cooling down for turbulence safety (%.1fs)", l.number, d.Seconds()),
		events.LevelInfo)
	if !timeutil.Sleep(ctx, d) {
		l.record(events.SystemEntity,
			fmt.Sprintf("turbulence cooldown interrupted on lane %d", l.number), events.LevelWarning)
	}
}

// setStateLocked mutates state and occupant; callers hold l.mu.
func (l *Lane) setStateLocked(next State, airplaneID string) {
	prev, prevOccupant := l.state, l.occupant
	l.state = next
	l.occupant = airplaneID

	switch {
	case prevOccupant == "" && airplaneID != "":
		l.record(airplaneID, fmt.Sprintf("lane %d is now assigned and %s", l.number, next), events.LevelInfo)
	case prevOccupant != "" && airplaneID == "":
		l.record(prevOccupant, fmt.Sprintf("lane %d is now released and %s", l.number, next), events.LevelInfo)
	default:
		entity := events.SystemEntity
		if airplaneID != "" {
			entity = airplaneID
		}
		l.record(entity, fmt.Sprintf("lane %d changed from %s to %s", l.number, prev, next), events.LevelInfo)
	}
}

func (l *Lane) record(entity, msg string, level events.Level) {
	if l.rec != nil {
		l.rec.Record(events.New(entity, msg, level))
	}
	if l.log != nil {
		l.log.Debugw(msg, map[string]any{"entity": entity, "lane": l.number})
	}
}

// jittered returns base plus a uniform variation in [-jitter, +jitter].
func jittered(base, jitter time.Duration) time.Duration {
	if jitter <= 0 {
		return base
	}
	u := distuv.Uniform{Min: -float64(jitter), Max: float64(jitter)}
	d := base + time.Duration(u.Rand())
	if d < 0 {
		return 0
	}
	return d
}

