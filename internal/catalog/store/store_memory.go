package store

import (
	"context"
	"slices"
	"sync"

	"portfolio/internal/portfolio/models"
	id "portfolio/pkg/domain"
	"portfolio/pkg/platform/sentinel"
)

// ErrNotFound is returned when a catalog entry does not exist.
var ErrNotFound = sentinel.ErrNotFound

// InMemoryStore keeps the catalog in maps. Put* methods exist for seeding
// development servers and tests.
type InMemoryStore struct {
	mu           sync.RWMutex
	standards    map[int]models.Standard
	templates    map[id.TemplateID]models.EvidenceTemplate
	subTemplates map[id.SubTemplateID]models.EvidenceSubTemplate
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		standards:    make(map[int]models.Standard),
		templates:    make(map[id.TemplateID]models.EvidenceTemplate),
		subTemplates: make(map[id.SubTemplateID]models.EvidenceSubTemplate),
	}
}

func (s *InMemoryStore) PutStandard(st models.Standard) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.standards[st.Number] = st
}

func (s *InMemoryStore) PutTemplate(t models.EvidenceTemplate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.ID] = t
}

func (s *InMemoryStore) PutSubTemplate(st models.EvidenceSubTemplate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subTemplates[st.ID] = st
}

func (s *InMemoryStore) ListStandards(_ context.Context) ([]models.Standard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Standard, 0, len(s.standards))
	for _, st := range s.standards {
		out = append(out, st)
	}
	slices.SortFunc(out, func(a, b models.Standard) int { return a.Number - b.Number })
	return out, nil
}

func (s *InMemoryStore) GetStandard(_ context.Context, number int) (models.Standard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.standards[number]; ok {
		return st, nil
	}
	return models.Standard{}, ErrNotFound
}

func (s *InMemoryStore) GetTemplate(_ context.Context, templateID id.TemplateID) (models.EvidenceTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.templates[templateID]; ok {
		return t, nil
	}
	return models.EvidenceTemplate{}, ErrNotFound
}

func (s *InMemoryStore) GetSubTemplate(_ context.Context, subID id.SubTemplateID) (models.EvidenceSubTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.subTemplates[subID]; ok {
		return st, nil
	}
	return models.EvidenceSubTemplate{}, ErrNotFound
}

func (s *InMemoryStore) ListTemplates(_ context.Context) ([]models.EvidenceTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.EvidenceTemplate, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, t)
	}
	slices.SortFunc(out, compareTemplates)
	return out, nil
}

func (s *InMemoryStore) ListTemplatesByStandard(ctx context.Context, number int) ([]models.EvidenceTemplate, error) {
	all, err := s.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(t models.EvidenceTemplate) bool {
		return t.StandardNumber != number
	}), nil
}

func (s *InMemoryStore) ListSubTemplates(_ context.Context) ([]models.EvidenceSubTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.EvidenceSubTemplate, 0, len(s.subTemplates))
	for _, st := range s.subTemplates {
		out = append(out, st)
	}
	slices.SortFunc(out, func(a, b models.EvidenceSubTemplate) int {
		return compareStrings(a.ID.String(), b.ID.String())
	})
	return out, nil
}

func compareTemplates(a, b models.EvidenceTemplate) int {
	if a.StandardNumber != b.StandardNumber {
		return a.StandardNumber - b.StandardNumber
	}
	if a.Title != b.Title {
		return compareStrings(a.Title, b.Title)
	}
	return compareStrings(a.ID.String(), b.ID.String())
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
