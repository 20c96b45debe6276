package controller

import (
	"sync"

	"github.com/skyops/aerodrome/core/model"
)

// queued wraps an airplane waiting in a controller queue together with the
// number of times its departure has been postponed.
type queued struct {
	plane    model.Airplane
	requeues int
}

// airplaneQueue is an unbounded FIFO queue. Producers never block; the
// owning controller loop is the single consumer.
type airplaneQueue struct {
	mu    sync.Mutex
	items []queued
}

func (q *airplaneQueue) push(item queued) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
}

func (q *airplaneQueue) pop() (queued, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return queued{}, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

func (q *airplaneQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
