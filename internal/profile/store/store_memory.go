package store

import (
	"context"
	"sync"

	"portfolio/internal/portfolio/models"
	id "portfolio/pkg/domain"
	"portfolio/pkg/platform/sentinel"
)

var ErrNotFound = sentinel.ErrNotFound

type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[id.UserID]models.UserProfile
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{profiles: make(map[id.UserID]models.UserProfile)}
}

func (s *InMemoryStore) Upsert(_ context.Context, p models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Subjects = append([]string(nil), p.Subjects...)
	s.profiles[p.UserID] = p
	return nil
}

func (s *InMemoryStore) FindByUser(_ context.Context, userID id.UserID) (models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return models.UserProfile{}, ErrNotFound
	}
	p.Subjects = append([]string(nil), p.Subjects...)
	return p, nil
}
