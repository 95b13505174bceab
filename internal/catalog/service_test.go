package catalog_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio/internal/catalog"
	"portfolio/internal/portfolio/fixtures"
	id "portfolio/pkg/domain"
	dErrors "portfolio/pkg/domain-errors"
)

func TestCatalogService(t *testing.T) {
	ctx := context.Background()
	svc := catalog.NewService(fixtures.Catalog(3))

	t.Run("standards are ordered by number", func(t *testing.T) {
		standards, err := svc.ListStandards(ctx)
		require.NoError(t, err)
		require.Len(t, standards, 3)
		for i, st := range standards {
			assert.Equal(t, i+1, st.Number)
		}
	})

	t.Run("templates are listed per standard", func(t *testing.T) {
		templates, err := svc.TemplatesForStandard(ctx, 2)
		require.NoError(t, err)
		require.Len(t, templates, 1)
		assert.Equal(t, fixtures.TemplateID(2), templates[0].ID)
	})

	t.Run("unknown standard is not found", func(t *testing.T) {
		_, err := svc.TemplatesForStandard(ctx, 9)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("template lookup", func(t *testing.T) {
		tmpl, err := svc.GetTemplate(ctx, fixtures.TemplateID(1))
		require.NoError(t, err)
		assert.Equal(t, 1, tmpl.StandardNumber)

		_, err = svc.GetTemplate(ctx, id.TemplateID(uuid.New()))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
