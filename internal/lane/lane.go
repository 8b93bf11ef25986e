// Package lane serializes event handling per conversation identity.
//
// Two private events from the same requester race on the session store
// if handled concurrently: the handler suspends on downstream API
// calls, and there is no lock across those suspension points. Each
// identity therefore gets its own lane that processes events FIFO,
// while events for different identities interleave freely.
package lane

import (
	"context"
	"sync"
	"time"

	"github.com/zomco/hubot-heyodo/internal/bus"
)

// Handler processes a single inbound event.
type Handler func(ctx context.Context, ev bus.Event)

const (
	queueSize = 100
	idleExit  = 5 * time.Minute
)

type lane struct {
	key   string
	queue chan bus.Event
}

// Manager owns the per-identity lanes.
type Manager struct {
	mu      sync.Mutex
	lanes   map[string]*lane
	handler Handler
	stopCh  chan struct{}
}

// NewManager creates a lane manager dispatching to handler.
func NewManager(handler Handler) *Manager {
	return &Manager{
		lanes:   make(map[string]*lane),
		handler: handler,
		stopCh:  make(chan struct{}),
	}
}

// Submit queues an event on its identity's lane, creating the lane
// (and its worker) on first use. The fast-path enqueue happens under
// the manager lock so an idle worker cannot reap the lane between
// lookup and enqueue.
func (m *Manager) Submit(ctx context.Context, ev bus.Event) error {
	key := ev.SessionKey()

	m.mu.Lock()
	l, ok := m.lanes[key]
	if !ok {
		l = &lane{key: key, queue: make(chan bus.Event, queueSize)}
		m.lanes[key] = l
		go m.runWorker(l)
	}
	select {
	case l.queue <- ev:
		m.mu.Unlock()
		return nil
	default:
	}
	m.mu.Unlock()

	// Queue full: the worker won't exit while it has work, so
	// blocking outside the lock is safe.
	select {
	case l.queue <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runWorker drains one lane FIFO. Idle lanes release their goroutine.
func (m *Manager) runWorker(l *lane) {
	for {
		select {
		case ev := <-l.queue:
			m.handler(context.Background(), ev)
		case <-time.After(idleExit):
			m.mu.Lock()
			// A submitter may have raced an enqueue; keep draining if so.
			if len(l.queue) > 0 {
				m.mu.Unlock()
				continue
			}
			delete(m.lanes, l.key)
			m.mu.Unlock()
			return
		case <-m.stopCh:
			return
		}
	}
}

// LaneCount returns the number of live lanes.
func (m *Manager) LaneCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lanes)
}

// Stop shuts down all lane workers.
func (m *Manager) Stop() {
	close(m.stopCh)
}
