package store

import (
	"context"
	"sort"
	"sync"
	"time"

	id "healthexchange/pkg/domain"
)

// InMemory holds the consent table as a forward and a reverse index kept in
// sync under one lock.
type InMemory struct {
	mu sync.RWMutex
	// grants: patient short id -> grantee principals currently authorized
	grants map[id.ShortID]map[id.Principal]time.Time
	// patients: grantee principal -> patient short ids reachable
	patients map[id.Principal]map[id.ShortID]struct{}
}

func NewInMemory() *InMemory {
	return &InMemory{
		grants:   make(map[id.ShortID]map[id.Principal]time.Time),
		patients: make(map[id.Principal]map[id.ShortID]struct{}),
	}
}

// Add inserts the grant and reports whether it was newly added. Re-adding an
// existing grant is a no-op.
func (s *InMemory) Add(_ context.Context, patient id.ShortID, grantee id.Principal, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.grants[patient]
	if !ok {
		set = make(map[id.Principal]time.Time)
		s.grants[patient] = set
	}
	if _, exists := set[grantee]; exists {
		return false, nil
	}
	set[grantee] = at

	rev, ok := s.patients[grantee]
	if !ok {
		rev = make(map[id.ShortID]struct{})
		s.patients[grantee] = rev
	}
	rev[patient] = struct{}{}
	return true, nil
}

// Remove deletes the grant and reports whether it existed.
func (s *InMemory) Remove(_ context.Context, patient id.ShortID, grantee id.Principal) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.grants[patient]
	if !ok {
		return false, nil
	}
	if _, exists := set[grantee]; !exists {
		return false, nil
	}
	delete(set, grantee)
	if rev, ok := s.patients[grantee]; ok {
		delete(rev, patient)
	}
	return true, nil
}

// Has is the membership test behind every permission check.
func (s *InMemory) Has(_ context.Context, patient id.ShortID, grantee id.Principal) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.grants[patient]
	if !ok {
		return false, nil
	}
	_, exists := set[grantee]
	return exists, nil
}

// ListGrantees returns the principals currently granted for a patient,
// ordered by grant time for stable output.
func (s *InMemory) ListGrantees(_ context.Context, patient id.ShortID) ([]id.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.grants[patient]
	type entry struct {
		p  id.Principal
		at time.Time
	}
	entries := make([]entry, 0, len(set))
	for p, at := range set {
		entries = append(entries, entry{p, at})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].at.Equal(entries[j].at) {
			return entries[i].p.String() < entries[j].p.String()
		}
		return entries[i].at.Before(entries[j].at)
	})
	out := make([]id.Principal, len(entries))
	for i, e := range entries {
		out[i] = e.p
	}
	return out, nil
}

// ListPatients returns the patient short ids a grantee can currently reach.
func (s *InMemory) ListPatients(_ context.Context, grantee id.Principal) ([]id.ShortID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rev := s.patients[grantee]
	out := make([]id.ShortID, 0, len(rev))
	for patient := range rev {
		out = append(out, patient)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
