package store

import (
	"context"
	"sort"
	"sync"

	"portfolio/internal/portfolio/models"
	id "portfolio/pkg/domain"
	"portfolio/pkg/platform/sentinel"
)

var (
	ErrNotFound = sentinel.ErrNotFound
	ErrConflict = sentinel.ErrConflict
)

// InMemoryStore keeps instances in a map. Returned values are clones.
type InMemoryStore struct {
	mu        sync.RWMutex
	instances map[id.InstanceID]models.EvidenceInstance
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{instances: make(map[id.InstanceID]models.EvidenceInstance)}
}

func (s *InMemoryStore) Create(_ context.Context, inst models.EvidenceInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.instances[inst.ID]; ok {
		return ErrConflict
	}
	s.instances[inst.ID] = inst.Clone()
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, inst models.EvidenceInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.instances[inst.ID]; !ok {
		return ErrNotFound
	}
	s.instances[inst.ID] = inst.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, instanceID id.InstanceID) (models.EvidenceInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.instances[instanceID]
	if !ok {
		return models.EvidenceInstance{}, ErrNotFound
	}
	return inst.Clone(), nil
}

// ListByUser returns the user's instances ordered by creation time.
func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID) ([]models.EvidenceInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.EvidenceInstance
	for _, inst := range s.instances {
		if inst.UserID == userID {
			out = append(out, inst.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) Delete(_ context.Context, instanceID id.InstanceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.instances[instanceID]; !ok {
		return ErrNotFound
	}
	delete(s.instances, instanceID)
	return nil
}
