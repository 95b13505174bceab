package render

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"portfolio/internal/portfolio/models"
	"portfolio/internal/render/engine/mocks"
	"portfolio/internal/theme"
	id "portfolio/pkg/domain"
)

// =============================================================================
// Page Renderer Test Suite
// =============================================================================

type fixedTokens struct{}

func (fixedTokens) TokenFor(instanceID id.InstanceID) string {
	return "TOKEN" + strings.ToUpper(instanceID.String()[:8])
}

type stubFetcher struct {
	uris map[string]string
}

func (f stubFetcher) Fetch(_ context.Context, ref string) (string, error) {
	if uri, ok := f.uris[ref]; ok {
		return uri, nil
	}
	return "", errors.New("unreachable")
}

type RendererSuite struct {
	suite.Suite
	renderer *Renderer
	theme    models.Theme
	evidence *models.ResolvedEvidence
}

func TestRendererSuite(t *testing.T) {
	suite.Run(t, new(RendererSuite))
}

func (s *RendererSuite) SetupTest() {
	catalog, err := theme.Load()
	s.Require().NoError(err)
	s.theme = catalog.Default()

	fetcher := stubFetcher{uris: map[string]string{
		"https://images.example/ok.png":   "data:image/png;base64,AAAA",
		"https://images.example/evil.png": "javascript:alert(1)",
	}}
	s.renderer, err = New(fixedTokens{}, fetcher, "https://portfolio.example/")
	s.Require().NoError(err)

	s.evidence = &models.ResolvedEvidence{
		InstanceID:  id.NewInstanceID(),
		Title:       "Lesson study",
		Description: "Evidence of a collaborative lesson study cycle",
		Fields: []models.FieldValue{
			{Label: "Teacher", Value: "Huda Salem"},
			{Label: "Activity", Value: ""},
		},
	}
	for i := range s.evidence.Blocks {
		s.evidence.Blocks[i] = models.ContentBlock{Label: "Label", Text: "Paragraph text", Layout: models.LayoutParagraph}
	}
}

func (s *RendererSuite) spec(kind models.PageKind) PageSpec {
	return PageSpec{
		Kind:       kind,
		PageNumber: 7,
		Profile:    models.UserProfile{Name: "Huda Salem", School: "Al Noor", Subjects: []string{"math", "science"}},
		Standard:   models.Standard{Number: 4, Title: "Planning", Description: "Plans lessons"},
		Evidence:   s.evidence,
		Theme:      s.theme,
	}
}

// =============================================================================
// HTML Tests
// =============================================================================

func (s *RendererSuite) TestBuildHTML_PageKinds() {
	ctx := context.Background()
	for _, kind := range []models.PageKind{
		models.PageCover, models.PageFiller, models.PageDivider,
		models.PagePlaceholder, models.PageEvidenceDetail,
	} {
		s.Run(string(kind), func() {
			html, err := s.renderer.BuildHTML(ctx, s.spec(kind))
			s.Require().NoError(err)
			s.Contains(html, "@page { size: A4; margin: 0; }")
			s.Contains(html, "--primary: "+s.theme.Primary)
			s.Equal(1, strings.Count(html, `<section class="page`))
		})
	}

	s.Run("unknown kind fails", func() {
		_, err := s.renderer.BuildHTML(ctx, s.spec("poster"))
		s.Error(err)
	})

	s.Run("detail without evidence fails", func() {
		spec := s.spec(models.PageEvidenceDetail)
		spec.Evidence = nil
		_, err := s.renderer.BuildHTML(ctx, spec)
		s.Error(err)
	})

	s.Run("cover shows the profile", func() {
		html, err := s.renderer.BuildHTML(ctx, s.spec(models.PageCover))
		s.Require().NoError(err)
		s.Contains(html, "Huda Salem")
		s.Contains(html, "math، science")
	})

	s.Run("detail shows title and description before the fields", func() {
		html, err := s.renderer.BuildHTML(ctx, s.spec(models.PageEvidenceDetail))
		s.Require().NoError(err)
		title := strings.Index(html, "Lesson study")
		desc := strings.Index(html, `<p class="description">Evidence of a collaborative lesson study cycle</p>`)
		fields := strings.Index(html, `<dl class="fields">`)
		s.Require().True(title >= 0 && desc >= 0 && fields >= 0)
		s.Less(title, desc)
		s.Less(desc, fields)
	})

	s.Run("detail without description omits the paragraph", func() {
		spec := s.spec(models.PageEvidenceDetail)
		ev := *s.evidence
		ev.Description = ""
		spec.Evidence = &ev
		html, err := s.renderer.BuildHTML(ctx, spec)
		s.Require().NoError(err)
		s.NotContains(html, `class="description"`)
	})

	s.Run("divider shows the standard", func() {
		html, err := s.renderer.BuildHTML(ctx, s.spec(models.PageDivider))
		s.Require().NoError(err)
		s.Contains(html, "Planning")
		s.Contains(html, "Plans lessons")
	})
}

func (s *RendererSuite) TestBuildHTML_Blocks() {
	ctx := context.Background()

	s.Run("list-shaped default renders as a bulleted list", func() {
		s.evidence.Blocks[0] = models.ContentBlock{Label: "Steps", Text: "A; B; C", Source: models.SourceDefault}
		s.evidence.Blocks[1] = models.ContentBlock{Label: "Notes", Text: "X", Source: models.SourceOverride, Layout: models.LayoutParagraph}

		html, err := s.renderer.BuildHTML(ctx, s.spec(models.PageEvidenceDetail))
		s.Require().NoError(err)
		s.Contains(html, "<ul><li>A</li><li>B</li><li>C</li></ul>")
		s.Contains(html, "<p>X</p>")
	})

	s.Run("explicit paragraph flag wins over delimiters", func() {
		s.evidence.Blocks[0] = models.ContentBlock{Label: "Ratio", Text: "3;4", Layout: models.LayoutParagraph}
		html, err := s.renderer.BuildHTML(ctx, s.spec(models.PageEvidenceDetail))
		s.Require().NoError(err)
		s.Contains(html, "<p>3;4</p>")
	})

	s.Run("user content is escaped", func() {
		s.evidence.Blocks[0] = models.ContentBlock{Label: "<b>x</b>", Text: "<script>alert(1)</script>", Layout: models.LayoutParagraph}
		html, err := s.renderer.BuildHTML(ctx, s.spec(models.PageEvidenceDetail))
		s.Require().NoError(err)
		s.NotContains(html, "<script>alert(1)</script>")
		s.Contains(html, "&lt;script&gt;")
	})

	s.Run("empty field values are omitted from the grid", func() {
		html, err := s.renderer.BuildHTML(ctx, s.spec(models.PageEvidenceDetail))
		s.Require().NoError(err)
		s.Contains(html, "Teacher")
		s.NotContains(html, "Activity")
	})
}

func (s *RendererSuite) TestBuildHTML_Images() {
	ctx := context.Background()

	s.Run("failed slot renders empty while the other slot renders", func() {
		s.evidence.Images = [models.MaxImages]string{"https://images.example/missing.png", "https://images.example/ok.png"}
		html, err := s.renderer.BuildHTML(ctx, s.spec(models.PageEvidenceDetail))
		s.Require().NoError(err)
		s.Equal(1, strings.Count(html, `data:image/png;base64,AAAA`))
		s.Equal(2, strings.Count(html, `<div class="slot">`))
	})

	s.Run("non image data is never inlined", func() {
		s.evidence.Images = [models.MaxImages]string{"https://images.example/evil.png"}
		html, err := s.renderer.BuildHTML(ctx, s.spec(models.PageEvidenceDetail))
		s.Require().NoError(err)
		s.NotContains(html, "javascript:")
	})
}

// =============================================================================
// Verification Code Tests
// =============================================================================

func (s *RendererSuite) TestVerificationCode() {
	ctx := context.Background()

	s.Run("url points at the public lookup", func() {
		url := s.renderer.VerificationURL(s.evidence.InstanceID)
		s.Equal("https://portfolio.example/verify/"+fixedTokens{}.TokenFor(s.evidence.InstanceID), url)
	})

	s.Run("re-rendering yields the same code", func() {
		first, err := s.renderer.BuildHTML(ctx, s.spec(models.PageEvidenceDetail))
		s.Require().NoError(err)
		fresh, err := New(fixedTokens{}, stubFetcher{}, "https://portfolio.example")
		s.Require().NoError(err)
		second, err := fresh.BuildHTML(ctx, s.spec(models.PageEvidenceDetail))
		s.Require().NoError(err)
		s.Equal(qrSrc(first), qrSrc(second))
		s.NotEmpty(qrSrc(first))
	})

	s.Run("qr encoding is deterministic", func() {
		a, err := QRCode("https://portfolio.example/verify/ABC")
		s.Require().NoError(err)
		b, err := QRCode("https://portfolio.example/verify/ABC")
		s.Require().NoError(err)
		s.True(bytes.Equal(a, b))
	})
}

func qrSrc(html string) string {
	start := strings.Index(html, `<span class="qr"><img src="`)
	if start < 0 {
		return ""
	}
	rest := html[start+len(`<span class="qr"><img src="`):]
	return rest[:strings.Index(rest, `"`)]
}

// =============================================================================
// RenderPage Tests
// =============================================================================

func (s *RendererSuite) TestRenderPage() {
	ctx := context.Background()

	s.Run("prints the page html through the session", func() {
		ctrl := gomock.NewController(s.T())
		session := mocks.NewMockSession(ctrl)
		session.EXPECT().PrintPDF(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, html string) ([]byte, error) {
				s.Contains(html, "Planning")
				return []byte("%PDF-1.7"), nil
			})

		page, err := s.renderer.RenderPage(ctx, session, s.spec(models.PageDivider))
		s.Require().NoError(err)
		s.Equal(models.PageDivider, page.Kind)
		s.Equal(4, page.Standard)
		s.Equal([]byte("%PDF-1.7"), page.PDF)
	})

	s.Run("engine failure is returned", func() {
		ctrl := gomock.NewController(s.T())
		session := mocks.NewMockSession(ctrl)
		session.EXPECT().PrintPDF(gomock.Any(), gomock.Any()).Return(nil, errors.New("target crashed"))

		_, err := s.renderer.RenderPage(ctx, session, s.spec(models.PagePlaceholder))
		s.Require().Error(err)
		s.Contains(err.Error(), "target crashed")
	})
}
