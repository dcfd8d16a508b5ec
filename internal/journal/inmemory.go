package journal

import (
	"context"
	"sync"

	"github.com/ABHI-11949/avatar/internal/events"
)

// InMemoryStore is a simple in-process journal for local/dev use.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string][]events.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string][]events.Event)}
}

func (s *InMemoryStore) Publish(_ context.Context, e events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[e.SessionID] = append(s.records[e.SessionID], e)
	return nil
}

// History returns the newest limit events for sessionID in chronological order.
func (s *InMemoryStore) History(_ context.Context, sessionID string, limit int) ([]events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.records[sessionID]
	if len(arr) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > len(arr) {
		limit = len(arr)
	}
	out := make([]events.Event, 0, limit)
	out = append(out, arr[len(arr)-limit:]...)
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }
