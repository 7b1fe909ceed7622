package relay

import (
	"sync"

	"github.com/satwatch-io/satwatch/pkg/models"
)

// mailbox is an unbounded, ordered, in-process queue decoupling the broker
// pump from the stream producer: a slow stream consumer never blocks broker
// consumption.
type mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []models.Event
	closed bool
}

func newMailbox() *mailbox {
	m := &mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Put appends an event. Events put after Close are dropped.
func (m *mailbox) Put(evt models.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.items = append(m.items, evt)
	m.cond.Signal()
}

// Take blocks until an event is available or the mailbox is closed and
// drained. Events are returned in the exact order they were put.
func (m *mailbox) Take() (models.Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.items) == 0 && !m.closed {
		m.cond.Wait()
	}
	if len(m.items) == 0 {
		return models.Event{}, false
	}
	evt := m.items[0]
	m.items = m.items[1:]
	return evt, true
}

// Close wakes all blocked takers. Pending events remain takeable.
func (m *mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.cond.Broadcast()
}
