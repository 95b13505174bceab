// Package catalog serves the read-only standards and evidence template hierarchy.
package catalog

import (
	"context"
	"errors"

	"portfolio/internal/catalog/store"
	"portfolio/internal/portfolio/models"
	id "portfolio/pkg/domain"
	dErrors "portfolio/pkg/domain-errors"
)

// Store is the catalog persistence port.
type Store interface {
	ListStandards(ctx context.Context) ([]models.Standard, error)
	GetStandard(ctx context.Context, number int) (models.Standard, error)
	GetTemplate(ctx context.Context, templateID id.TemplateID) (models.EvidenceTemplate, error)
	GetSubTemplate(ctx context.Context, subID id.SubTemplateID) (models.EvidenceSubTemplate, error)
	ListTemplates(ctx context.Context) ([]models.EvidenceTemplate, error)
	ListTemplatesByStandard(ctx context.Context, number int) ([]models.EvidenceTemplate, error)
	ListSubTemplates(ctx context.Context) ([]models.EvidenceSubTemplate, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) ListStandards(ctx context.Context) ([]models.Standard, error) {
	standards, err := s.store.ListStandards(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list standards")
	}
	return standards, nil
}

// TemplatesForStandard lists the evidence templates under a standard.
func (s *Service) TemplatesForStandard(ctx context.Context, number int) ([]models.EvidenceTemplate, error) {
	if _, err := s.store.GetStandard(ctx, number); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "standard #%d not found", number)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load standard")
	}
	templates, err := s.store.ListTemplatesByStandard(ctx, number)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list templates")
	}
	return templates, nil
}

func (s *Service) GetTemplate(ctx context.Context, templateID id.TemplateID) (models.EvidenceTemplate, error) {
	t, err := s.store.GetTemplate(ctx, templateID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.EvidenceTemplate{}, dErrors.New(dErrors.CodeNotFound, "template not found")
		}
		return models.EvidenceTemplate{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load template")
	}
	return t, nil
}
