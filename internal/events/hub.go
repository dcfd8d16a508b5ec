package events

import (
	"context"
	"sync"
)

const defaultSubscriberBuffer = 32

// Hub fans events out to in-process subscribers of a session. Slow
// subscribers lose events rather than block publishers.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*subscription]struct{}
	buffer int
	onDrop func()
}

type subscription struct {
	ch   chan Event
	once sync.Once
}

func (s *subscription) close() {
	s.once.Do(func() { close(s.ch) })
}

// NewHub creates a hub. onDrop, when set, is called for every event a full
// subscriber could not take.
func NewHub(buffer int, onDrop func()) *Hub {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Hub{
		subs:   make(map[string]map[*subscription]struct{}),
		buffer: buffer,
		onDrop: onDrop,
	}
}

// Subscribe returns a channel of events for sessionID. The channel is closed
// after the session's stop event or when cancel is called.
func (h *Hub) Subscribe(sessionID string) (<-chan Event, func()) {
	sub := &subscription{ch: make(chan Event, h.buffer)}

	h.mu.Lock()
	set, ok := h.subs[sessionID]
	if !ok {
		set = make(map[*subscription]struct{})
		h.subs[sessionID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if set, ok := h.subs[sessionID]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(h.subs, sessionID)
			}
		}
		sub.close()
	}
	return sub.ch, cancel
}

func (h *Hub) Publish(_ context.Context, e Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.subs[e.SessionID]
	for sub := range set {
		select {
		case sub.ch <- e:
		default:
			if h.onDrop != nil {
				h.onDrop()
			}
		}
	}
	if e.Type == TypeStopped {
		for sub := range set {
			sub.close()
		}
		delete(h.subs, e.SessionID)
	}
	return nil
}

// Subscribers reports the number of live subscriptions for sessionID.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionID])
}
