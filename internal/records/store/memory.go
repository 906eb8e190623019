package store

import (
	"context"
	"sync"

	"healthexchange/internal/records/models"
	id "healthexchange/pkg/domain"
)

// InMemory keeps each patient's record list in upload order. Append is the
// only mutation.
type InMemory struct {
	mu      sync.RWMutex
	reports map[id.ShortID][]models.Report
}

func NewInMemory() *InMemory {
	return &InMemory{reports: make(map[id.ShortID][]models.Report)}
}

func (s *InMemory) Append(_ context.Context, patient id.ShortID, report models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[patient] = append(s.reports[patient], report)
	return nil
}

func (s *InMemory) ListByPatient(_ context.Context, patient id.ShortID) ([]models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Report{}, s.reports[patient]...), nil
}
