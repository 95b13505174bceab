package resolver

import (
	"context"
	"errors"
	"fmt"

	"portfolio/internal/portfolio/models"
	id "portfolio/pkg/domain"
	"portfolio/pkg/platform/sentinel"
	txcontext "portfolio/pkg/platform/tx"
)

// Snapshot is everything one generation reads, loaded once.
type Snapshot struct {
	Profile      models.UserProfile
	Standards    []models.Standard
	Templates    map[id.TemplateID]models.EvidenceTemplate
	SubTemplates []models.EvidenceSubTemplate
	Instances    []models.EvidenceInstance
}

// SnapshotSource loads a consistent view of a user's content. ErrUserNotFound
// signals that the user has no profile.
type SnapshotSource interface {
	LoadSnapshot(ctx context.Context, userID id.UserID) (*Snapshot, error)
}

var ErrUserNotFound = errors.New("user profile not found")

type CatalogReader interface {
	ListStandards(ctx context.Context) ([]models.Standard, error)
	ListTemplates(ctx context.Context) ([]models.EvidenceTemplate, error)
	ListSubTemplates(ctx context.Context) ([]models.EvidenceSubTemplate, error)
}

type ProfileReader interface {
	FindByUser(ctx context.Context, userID id.UserID) (models.UserProfile, error)
}

type EvidenceReader interface {
	ListByUser(ctx context.Context, userID id.UserID) ([]models.EvidenceInstance, error)
}

// StoreSnapshotSource reads the snapshot from the module stores inside one
// transaction. With a snapshot runner every read sees the same committed state,
// so an edit racing the generation is either fully in or fully out.
type StoreSnapshotSource struct {
	catalog  CatalogReader
	profiles ProfileReader
	evidence EvidenceReader
	tx       txcontext.Runner
}

func NewStoreSnapshotSource(catalog CatalogReader, profiles ProfileReader, evidence EvidenceReader, tx txcontext.Runner) *StoreSnapshotSource {
	if tx == nil {
		tx = txcontext.NoopRunner{}
	}
	return &StoreSnapshotSource{catalog: catalog, profiles: profiles, evidence: evidence, tx: tx}
}

func (s *StoreSnapshotSource) LoadSnapshot(ctx context.Context, userID id.UserID) (*Snapshot, error) {
	snap := &Snapshot{Templates: make(map[id.TemplateID]models.EvidenceTemplate)}
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		profile, err := s.profiles.FindByUser(ctx, userID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("load profile: %w", err)
		}
		snap.Profile = profile

		if snap.Standards, err = s.catalog.ListStandards(ctx); err != nil {
			return fmt.Errorf("load standards: %w", err)
		}
		templates, err := s.catalog.ListTemplates(ctx)
		if err != nil {
			return fmt.Errorf("load templates: %w", err)
		}
		for _, t := range templates {
			snap.Templates[t.ID] = t
		}
		if snap.SubTemplates, err = s.catalog.ListSubTemplates(ctx); err != nil {
			return fmt.Errorf("load sub-templates: %w", err)
		}
		if snap.Instances, err = s.evidence.ListByUser(ctx, userID); err != nil {
			return fmt.Errorf("load evidence: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}
