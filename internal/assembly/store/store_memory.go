package store

import (
	"context"
	"slices"
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

// InMemoryStore keeps completed documents and per-user generation counters.
type InMemoryStore struct {
	mu          sync.RWMutex
	documents   map[id.DocumentID]models.Document
	generations map[id.UserID]int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		documents:   make(map[id.DocumentID]models.Document),
		generations: make(map[id.UserID]int64),
	}
}

func (s *InMemoryStore) Save(_ context.Context, doc models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[doc.ID]; ok {
		return ErrConflict
	}
	s.documents[doc.ID] = cloneDocument(doc, true)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, documentID id.DocumentID) (models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[documentID]
	if !ok {
		return models.Document{}, ErrNotFound
	}
	return cloneDocument(doc, true), nil
}

// ListByUser returns the user's documents newest first, without content.
func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID) ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Document
	for _, doc := range s.documents {
		if doc.UserID == userID {
			out = append(out, cloneDocument(doc, false))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() > out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) IsReferenced(_ context.Context, instanceID id.InstanceID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, doc := range s.documents {
		if slices.Contains(doc.InstanceIDs, instanceID) {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) IncrementGenerations(_ context.Context, userID id.UserID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[userID]++
	return s.generations[userID], nil
}

func (s *InMemoryStore) Generations(_ context.Context, userID id.UserID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generations[userID], nil
}

func cloneDocument(doc models.Document, withContent bool) models.Document {
	out := doc
	out.Pages = slices.Clone(doc.Pages)
	out.InstanceIDs = slices.Clone(doc.InstanceIDs)
	if withContent {
		out.Content = slices.Clone(doc.Content)
	} else {
		out.Content = nil
	}
	return out
}
