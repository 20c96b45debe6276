package controller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyops/aerodrome/core/events"
	"github.com/skyops/aerodrome/core/model"
)

// fakeTower records dispatch calls and answers from a scripted response.
type fakeTower struct {
	mu           sync.Mutex
	registered   map[string]bool
	deregistered []string
	diverted     []string
	calls        []string
	respond      func(airplaneID string) bool
}

func newFakeTower(respond func(string) bool) *fakeTower {
	if respond == nil {
		respond = func(string) bool { return true }
	}
	return &fakeTower{registered: make(map[string]bool), respond: respond}
}

func (f *fakeTower) RegisterAirplane(plane model.Airplane) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered[plane.ID] = true
}

func (f *fakeTower) DeregisterAirplane(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deregistered = append(f.deregistered, id)
}

func (f *fakeTower) DivertAirplane(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.diverted = append(f.diverted, id)
}

func (f *fakeTower) RequestOperation(_ context.Context, id string, _ model.OperationKind) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	return f.respond(id)
}

func (f *fakeTower) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeTower) firstCall() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[0]
}

func (f *fakeTower) dropped() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.deregistered))
	copy(out, f.deregistered)
	return out
}

func (f *fakeTower) divertedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.diverted))
	copy(out, f.diverted)
	return out
}

func fastConfig() Config {
	return Config{
		MaxConcurrent: 3,
		MaxAttempts:   3,
		RetryBackoff:  time.Millisecond,
		MaxRequeues:   2,
		BreakChance:   0.0001,
		BreakMin:      time.Millisecond,
		BreakMax:      2 * time.Millisecond,
		EmergencyHold: 5 * time.Millisecond,
		PollInterval:  time.Millisecond,
	}
}

func TestNew_NilTower(t *testing.T) {
	_, err := New("CTRL-1", nil, Config{}, events.NopRecorder{}, nil)
	require.Error(t, err)
}

func TestAssign_RegistersAndRoutes(t *testing.T) {
	tower := newFakeTower(nil)
	c, err := New("CTRL-1", tower, fastConfig(), events.NopRecorder{}, nil)
	require.NoError(t, err)

	c.Assign(model.Airplane{ID: "AA1000", Operation: model.OperationLanding})
	c.Assign(model.Airplane{ID: "BA2000", Operation: model.OperationLanding, Priority: model.PriorityEmergency})

	assert.True(t, tower.registered["AA1000"])
	assert.True(t, tower.registered["BA2000"])
	assert.Equal(t, 1, c.normal.len())
	assert.Equal(t, 1, c.emergency.len())
	assert.Equal(t, 2, c.Load())
}

func TestRun_EmergencyQueueFirst(t *testing.T) {
	tower := newFakeTower(nil)
	c, err := New("CTRL-1", tower, fastConfig(), events.NopRecorder{}, nil)
	require.NoError(t, err)

	// Both queues populated before the loop starts: the emergency airplane
	// must be dispatched first.
	c.Assign(model.Airplane{ID: "NORMAL", Operation: model.OperationLanding})
	c.Assign(model.Airplane{ID: "URGENT", Operation: model.OperationLanding, Priority: model.PriorityEmergency})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	waitFor(t, func() bool { return tower.callCount() >= 2 })
	cancel()
	<-done

	assert.Equal(t, "URGENT", tower.firstCall())
}

func TestRun_LandingDivertedAfterRetries(t *testing.T) {
	tower := newFakeTower(func(string) bool { return false })
	cfg := fastConfig()
	c, err := New("CTRL-1", tower, cfg, events.NopRecorder{}, nil)
	require.NoError(t, err)

	c.Assign(model.Airplane{ID: "AA1000", Operation: model.OperationLanding})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	waitFor(t, func() bool { return len(tower.divertedIDs()) == 1 })
	cancel()
	<-done

	assert.Equal(t, cfg.MaxAttempts, tower.callCount(), "landing retried exactly MaxAttempts times")
	assert.Equal(t, []string{"AA1000"}, tower.divertedIDs())
	assert.Empty(t, tower.dropped(), "divert goes through the divert path, not a plain deregister")
}

func TestRun_DepartureRequeuedThenCancelled(t *testing.T) {
	tower := newFakeTower(func(string) bool { return false })
	cfg := fastConfig()
	c, err := New("CTRL-1", tower, cfg, events.NopRecorder{}, nil)
	require.NoError(t, err)

	c.Assign(model.Airplane{ID: "BA2000", Operation: model.OperationDeparture})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	waitFor(t, func() bool { return len(tower.dropped()) == 1 })
	cancel()
	<-done

	// Initial pass plus MaxRequeues requeues, each of MaxAttempts tries.
	want := cfg.MaxAttempts * (cfg.MaxRequeues + 1)
	assert.Equal(t, want, tower.callCount())
	assert.Equal(t, []string{"BA2000"}, tower.dropped())
	assert.Equal(t, 0, c.normal.len(), "cancelled departure must not stay queued")
}

func TestRun_DepartureStaysQueuedBeforeCap(t *testing.T) {
	tower := newFakeTower(func(string) bool { return false })
	cfg := fastConfig()
	c, err := New("CTRL-1", tower, cfg, events.NopRecorder{}, nil)
	require.NoError(t, err)

	// One manual pass: the departure fails every attempt and is requeued,
	// not dropped.
	c.Assign(model.Airplane{ID: "BA2000", Operation: model.OperationDeparture})
	item, ok := c.normal.pop()
	require.True(t, ok)
	c.handle(context.Background(), item)

	assert.Empty(t, tower.dropped())
	assert.Equal(t, 1, c.normal.len())
	requeued, ok := c.normal.pop()
	require.True(t, ok)
	assert.Equal(t, 1, requeued.requeues)
}

func TestHandleEmergency_HoldsThenResumes(t *testing.T) {
	tower := newFakeTower(nil)
	c, err := New("CTRL-1", tower, fastConfig(), events.NopRecorder{}, nil)
	require.NoError(t, err)

	c.HandleEmergency("runway intrusion")
	assert.Equal(t, DutyHandlingEmergency, c.Duty())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	waitFor(t, func() bool { return c.Duty() == DutyOnDuty })
	cancel()
	<-done
}

func TestTakeBreak_EmergencyDuringBreakSurvives(t *testing.T) {
	tower := newFakeTower(nil)
	cfg := fastConfig()
	cfg.BreakMin = 50 * time.Millisecond
	cfg.BreakMax = 60 * time.Millisecond
	c, err := New("CTRL-1", tower, cfg, events.NopRecorder{}, nil)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		c.takeBreak(context.Background())
		close(done)
	}()
	waitFor(t, func() bool { return c.Duty() == DutyOnBreak })
	c.HandleEmergency("runway intrusion")
	<-done

	// The end of the break must not clear the emergency state.
	assert.Equal(t, DutyHandlingEmergency, c.Duty())
}

func TestCanAccept(t *testing.T) {
	tower := newFakeTower(nil)
	cfg := fastConfig()
	cfg.MaxConcurrent = 1
	c, err := New("CTRL-1", tower, cfg, events.NopRecorder{}, nil)
	require.NoError(t, err)

	assert.True(t, c.CanAccept())
	c.active.Add(1)
	assert.False(t, c.CanAccept())
	c.active.Add(-1)
	c.setDuty(DutyOnBreak)
	assert.False(t, c.CanAccept())
}

func TestQueueFIFO(t *testing.T) {
	var q airplaneQueue
	q.push(queued{plane: model.Airplane{ID: "A"}})
	q.push(queued{plane: model.Airplane{ID: "B"}})
	first, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, "A", first.plane.ID)
	second, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, "B", second.plane.ID)
	_, ok = q.pop()
	assert.False(t, ok)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never met")
}
