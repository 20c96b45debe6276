package mqtt

import (
	"fmt"
	"sync"

	"github.com/skyops/aerodrome/core/events"
)

// MockPublisher is a simple publisher used in tests.
type MockPublisher struct {
	mu     sync.Mutex
	Events []events.Event
	Fail   bool
	closed bool
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher { return &MockPublisher{} }

// PublishEvent records the event or returns an error if configured to fail.
func (m *MockPublisher) PublishEvent(e events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return fmt.Errorf("publish failed")
	}
	m.Events = append(m.Events, e)
	return nil
}

// Close marks the publisher closed.
func (m *MockPublisher) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

// Published returns a copy of the recorded events.
func (m *MockPublisher) Published() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]events.Event, len(m.Events))
	copy(out, m.Events)
	return out
}
