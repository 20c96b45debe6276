package lane

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

func fastTimings() Timings {
	return Timings{
		LandingBase:  20 * time.Millisecond,
		TakeoffBase:  10 * time.Millisecond,
		CooldownBase: 5 * time.Millisecond,
		Jitter:       time.Millisecond,
	}
}

func TestTryAcquireAndRun_FullCycle(t *testing.T) {
	l := New(1, fastTimings(), events.NopRecorder{}, nil)
	ok := l.TryAcquireAndRun(context.Background(), "AA1000", model.OperationLanding)
	require.True(t, ok)
	state, occupant := l.Status()
	assert.Equal(t, StateAvailable, state)
	assert.Empty(t, occupant)
}

func TestTryAcquireAndRun_BusyLaneFailsFast(t *testing.T) {
	timings := fastTimings()
	timings.LandingBase = 200 * time.Millisecond
	l := New(1, timings, events.NopRecorder{}, nil)

	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		close(started)
		l.TryAcquireAndRun(context.Background(), "AA1000", model.OperationLanding)
		close(done)
	}()
	<-started
	// Give the first caller time to take the lane.
	waitForState(t, l, StateOccupied, time.Second)

	begin := time.Now()
	ok := l.TryAcquireAndRun(context.Background(), "BA2000", model.OperationLanding)
	assert.False(t, ok)
	assert.Less(t, time.Since(begin), 100*time.Millisecond, "busy lane must reject without waiting")
	<-done
}

func TestTryAcquireAndRun_MutualExclusion(t *testing.T) {
	timings := fastTimings()
	timings.LandingBase = 100 * time.Millisecond
	l := New(1, timings, events.NopRecorder{}, nil)

	var wg sync.WaitGroup
	results := make([]bool, 2)
	start := make(chan struct{})
	for i, id := range []string{"AA1000", "BA2000"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			<-start
			results[i] = l.TryAcquireAndRun(context.Background(), id, model.OperationLanding)
		}(i, id)
	}
	close(start)
	wg.Wait()
	assert.NotEqual(t, results[0], results[1], "exactly one of two simultaneous attempts must win")
}

func TestStartMaintenance_Window(t *testing.T) {
	l := New(1, fastTimings(), events.NopRecorder{}, nil)
	ctx := context.Background()

	require.True(t, l.StartMaintenance(ctx, 50*time.Millisecond))
	state, _ := l.Status()
	assert.Equal(t, StateMaintenance, state)

	assert.False(t, l.TryAcquireAndRun(ctx, "AA1000", model.OperationLanding))
	assert.False(t, l.StartMaintenance(ctx, time.Millisecond), "maintenance on a busy lane must fail")

	waitForState(t, l, StateAvailable, time.Second)
	assert.True(t, l.TryAcquireAndRun(ctx, "AA1000", model.OperationLanding))
	l.Wait()
}

func TestTryAcquireAndRun_CancelledMidOperation(t *testing.T) {
	timings := fastTimings()
	timings.LandingBase = time.Minute
	l := New(1, timings, events.NopRecorder{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool, 1)
	go func() {
		done <- l.TryAcquireAndRun(ctx, "AA1000", model.OperationLanding)
	}()
	waitForState(t, l, StateOccupied, time.Second)
	cancel()

	select {
	case ok := <-done:
		assert.True(t, ok, "interrupted operation still completes the cycle")
	case <-time.After(time.Second):
		t.Fatal("lane stuck after cancellation")
	}
	state, occupant := l.Status()
	assert.Equal(t, StateAvailable, state)
	assert.Empty(t, occupant)
}

func TestStartMaintenance_CancelledReturnsAvailable(t *testing.T) {
	l := New(1, fastTimings(), events.NopRecorder{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, l.StartMaintenance(ctx, time.Minute))
	cancel()
	waitForState(t, l, StateAvailable, time.Second)
	l.Wait()
}

func waitForState(t *testing.T, l *Lane, want State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if state, _ := l.Status(); state == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	state, _ := l.Status()
	t.Fatalf("lane never reached %s, still %s", want, state)
}
