package store

import (
	"context"
	"sync"

	"portfolio/internal/verification/models"
	id "portfolio/pkg/domain"
	"portfolio/pkg/platform/sentinel"
)

var (
	ErrNotFound    = sentinel.ErrNotFound
	ErrAlreadyUsed = sentinel.ErrAlreadyUsed
)

type InMemoryStore struct {
	mu         sync.RWMutex
	byToken    map[string]models.Record
	byInstance map[id.InstanceID]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byToken:    make(map[string]models.Record),
		byInstance: make(map[id.InstanceID]string),
	}
}

// Create stores a record once; a second record for the same instance or token
// returns ErrAlreadyUsed.
func (s *InMemoryStore) Create(_ context.Context, rec models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byInstance[rec.InstanceID]; ok {
		return ErrAlreadyUsed
	}
	if _, ok := s.byToken[rec.Token]; ok {
		return ErrAlreadyUsed
	}
	s.byToken[rec.Token] = rec
	s.byInstance[rec.InstanceID] = rec.Token
	return nil
}

func (s *InMemoryStore) FindByToken(_ context.Context, token string) (models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.byToken[token]; ok {
		return rec, nil
	}
	return models.Record{}, ErrNotFound
}

func (s *InMemoryStore) FindByInstance(_ context.Context, instanceID id.InstanceID) (models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.byInstance[instanceID]
	if !ok {
		return models.Record{}, ErrNotFound
	}
	return s.byToken[token], nil
}

func (s *InMemoryStore) DeleteByInstance(_ context.Context, instanceID id.InstanceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.byInstance[instanceID]
	if !ok {
		return ErrNotFound
	}
	delete(s.byInstance, instanceID)
	delete(s.byToken, token)
	return nil
}
