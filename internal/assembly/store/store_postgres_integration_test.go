//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"portfolio/internal/assembly/store"
	"portfolio/internal/portfolio/models"
	id "portfolio/pkg/domain"
	txcontext "portfolio/pkg/platform/tx"
	"portfolio/pkg/testutil/containers"
)

type PostgresDocumentSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	owner    id.UserID
	instance id.InstanceID
}

func TestPostgresDocumentSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresDocumentSuite))
}

func (s *PostgresDocumentSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresDocumentSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx,
		"generation_counters", "documents", "evidence_instances", "evidence_templates", "standards"))

	s.owner = id.UserID(uuid.New())
	s.instance = id.NewInstanceID()
	templateID := uuid.New()
	_, err := s.postgres.Exec(ctx, `INSERT INTO standards (number, title) VALUES (1, 'Standard 1')`)
	s.Require().NoError(err)
	_, err = s.postgres.Exec(ctx,
		`INSERT INTO evidence_templates (id, standard_number, title) VALUES ($1, 1, 'Lesson study')`, templateID)
	s.Require().NoError(err)
	_, err = s.postgres.Exec(ctx, `
		INSERT INTO evidence_instances (id, user_id, template_id, blocks, created_at, updated_at)
		VALUES ($1, $2, $3, '[]', now(), now())
	`, uuid.UUID(s.instance), uuid.UUID(s.owner), templateID)
	s.Require().NoError(err)
}

func (s *PostgresDocumentSuite) document(at time.Time, instances ...id.InstanceID) models.Document {
	return models.Document{
		ID:        id.NewDocumentID(),
		UserID:    s.owner,
		Scope:     models.SingleStandard(1),
		ThemeID:   "classic",
		PageCount: 2,
		Pages: []models.PageRef{
			{Index: 1, Kind: models.PageDivider, Standard: 1},
			{Index: 2, Kind: models.PageEvidenceDetail, Standard: 1},
		},
		InstanceIDs: instances,
		Content:     []byte("%PDF-1.7 test"),
		CreatedAt:   at,
	}
}

// =============================================================================
// Document Tests
// =============================================================================

func (s *PostgresDocumentSuite) TestSaveAndFind() {
	ctx := context.Background()
	doc := s.document(time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC), s.instance)
	s.Require().NoError(s.store.Save(ctx, doc))

	got, err := s.store.FindByID(ctx, doc.ID)
	s.Require().NoError(err)
	s.Equal(doc.Pages, got.Pages)
	s.Equal(doc.Content, got.Content)
	s.Equal([]id.InstanceID{s.instance}, got.InstanceIDs)
	s.Equal(models.SingleStandard(1), got.Scope)

	s.ErrorIs(s.store.Save(ctx, doc), store.ErrConflict)

	_, err = s.store.FindByID(ctx, id.NewDocumentID())
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *PostgresDocumentSuite) TestListByUserOmitsContent() {
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	older := s.document(base)
	newer := s.document(base.Add(time.Hour))
	s.Require().NoError(s.store.Save(ctx, older))
	s.Require().NoError(s.store.Save(ctx, newer))

	got, err := s.store.ListByUser(ctx, s.owner)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(newer.ID, got[0].ID)
	s.Nil(got[0].Content)
}

func (s *PostgresDocumentSuite) TestReferences() {
	ctx := context.Background()
	referenced, err := s.store.IsReferenced(ctx, s.instance)
	s.Require().NoError(err)
	s.False(referenced)

	s.Require().NoError(s.store.Save(ctx, s.document(time.Now().UTC(), s.instance)))
	referenced, err = s.store.IsReferenced(ctx, s.instance)
	s.Require().NoError(err)
	s.True(referenced)
}

func (s *PostgresDocumentSuite) TestUnknownInstanceRollsBackDocument() {
	ctx := context.Background()
	doc := s.document(time.Now().UTC(), id.NewInstanceID())
	tx := txcontext.NewPostgresRunner(s.postgres.DB)

	err := tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.store.Save(ctx, doc)
	})
	s.ErrorIs(err, store.ErrConflict)

	_, err = s.store.FindByID(ctx, doc.ID)
	s.ErrorIs(err, store.ErrNotFound)
}

// =============================================================================
// Generation Counter Tests
// =============================================================================

func (s *PostgresDocumentSuite) TestGenerationCounter() {
	ctx := context.Background()
	count, err := s.store.Generations(ctx, s.owner)
	s.Require().NoError(err)
	s.Zero(count)

	for want := int64(1); want <= 3; want++ {
		got, err := s.store.IncrementGenerations(ctx, s.owner)
		s.Require().NoError(err)
		s.Equal(want, got)
	}

	count, err = s.store.Generations(ctx, id.UserID(uuid.New()))
	s.Require().NoError(err)
	s.Zero(count)
}
