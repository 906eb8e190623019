package audit

import (
	"context"
	"sync"

	id "healthexchange/pkg/domain"
)

// InMemoryStore keeps the trail in process. Events are held in arrival order;
// the secondary indexes only hold positions into the main slice.
type InMemoryStore struct {
	mu        sync.RWMutex
	events    []Event
	byActor   map[id.Principal][]int
	bySubject map[id.ShortID][]int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byActor:   make(map[id.Principal][]int),
		bySubject: make(map[id.ShortID][]int),
	}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos := len(s.events)
	s.events = append(s.events, event)
	s.byActor[event.Actor] = append(s.byActor[event.Actor], pos)
	s.bySubject[event.SubjectShortID] = append(s.bySubject[event.SubjectShortID], pos)
	return nil
}

func (s *InMemoryStore) ListByActor(_ context.Context, actor id.Principal) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byActor[actor]), nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subject id.ShortID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.bySubject[subject]), nil
}

// ListAll returns the full trail in append order.
func (s *InMemoryStore) ListAll() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event{}, s.events...)
}

func (s *InMemoryStore) collect(positions []int) []Event {
	out := make([]Event, 0, len(positions))
	for _, pos := range positions {
		out = append(out, s.events[pos])
	}
	return out
}
