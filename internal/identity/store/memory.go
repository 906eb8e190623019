package store

import (
	"context"
	"sync"

	"healthexchange/internal/identity/models"
	id "healthexchange/pkg/domain"
	"healthexchange/pkg/platform/sentinel"
)

// InMemory keeps the registry in process maps. Both unique keys are checked
// under one lock so a registration is all-or-nothing.
type InMemory struct {
	mu          sync.RWMutex
	byPrincipal map[id.Principal]*models.User
	byShortID   map[id.ShortID]*models.User
}

func NewInMemory() *InMemory {
	return &InMemory{
		byPrincipal: make(map[id.Principal]*models.User),
		byShortID:   make(map[id.ShortID]*models.User),
	}
}

// Create inserts the user iff neither the principal nor the short id is
// taken. Returns sentinel.ErrAlreadyExists otherwise with no partial write.
func (s *InMemory) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byPrincipal[user.Principal]; ok {
		return sentinel.ErrAlreadyExists
	}
	if _, ok := s.byShortID[user.ShortID]; ok {
		return sentinel.ErrAlreadyExists
	}
	copied := *user
	s.byPrincipal[user.Principal] = &copied
	s.byShortID[user.ShortID] = &copied
	return nil
}

func (s *InMemory) FindByPrincipal(_ context.Context, principal id.Principal) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.byPrincipal[principal]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) FindByShortID(_ context.Context, shortID id.ShortID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.byShortID[shortID]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, sentinel.ErrNotFound
}
