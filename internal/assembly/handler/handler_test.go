package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio/internal/assembly"
	"portfolio/internal/portfolio/models"
	id "portfolio/pkg/domain"
	dErrors "portfolio/pkg/domain-errors"
	"portfolio/pkg/requestcontext"
)

type stubService struct {
	doc       *models.Document
	generated []assembly.GenerateRequest
	planScope models.Scope
	err       error
}

func (s *stubService) Plan(_ context.Context, _ id.UserID, scope models.Scope) (*assembly.Plan, error) {
	s.planScope = scope
	return &assembly.Plan{Scope: scope, PageCount: 2}, nil
}

func (s *stubService) Generate(_ context.Context, req assembly.GenerateRequest) (*models.Document, error) {
	s.generated = append(s.generated, req)
	if s.err != nil {
		return nil, s.err
	}
	return s.doc, nil
}

func (s *stubService) Document(_ context.Context, userID id.UserID, documentID id.DocumentID) (*models.Document, error) {
	if s.doc == nil || s.doc.ID != documentID || s.doc.UserID != userID {
		return nil, dErrors.New(dErrors.CodeNotFound, "document not found")
	}
	return s.doc, nil
}

func (s *stubService) Documents(context.Context, id.UserID) ([]models.Document, error) {
	return []models.Document{*s.doc}, nil
}

func newRouter(svc *stubService) chi.Router {
	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func asUser(req *http.Request, userID id.UserID) *http.Request {
	return req.WithContext(requestcontext.WithUserID(req.Context(), userID))
}

func TestHandlers(t *testing.T) {
	owner := id.UserID(uuid.New())
	doc := &models.Document{
		ID:        id.NewDocumentID(),
		UserID:    owner,
		PageCount: 2,
		Content:   []byte("%PDF-1.7 merged"),
	}

	t.Run("generate passes scope and theme", func(t *testing.T) {
		svc := &stubService{doc: doc}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/portfolio/documents", strings.NewReader(`{"standard":3,"theme_id":"sand"}`))
		newRouter(svc).ServeHTTP(rec, asUser(req, owner))

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "/portfolio/documents/"+doc.ID.String(), rec.Header().Get("Location"))
		require.Len(t, svc.generated, 1)
		assert.Equal(t, assembly.GenerateRequest{UserID: owner, Scope: models.SingleStandard(3), ThemeID: "sand"}, svc.generated[0])

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.NotContains(t, body, "content")
	})

	t.Run("retryable failure advertises retry", func(t *testing.T) {
		svc := &stubService{err: dErrors.New(dErrors.CodeResourceExhausted, "all rendering slots are busy")}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/portfolio/documents", strings.NewReader(`{}`))
		newRouter(svc).ServeHTTP(rec, asUser(req, owner))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	})

	t.Run("render failure names the standard", func(t *testing.T) {
		svc := &stubService{err: dErrors.New(dErrors.CodeRenderFailed, "Standard #4 failed to render")}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/portfolio/documents", strings.NewReader(`{}`))
		newRouter(svc).ServeHTTP(rec, asUser(req, owner))

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, rec.Body.String(), "Standard #4")
	})

	t.Run("download is a pdf for the owner only", func(t *testing.T) {
		svc := &stubService{doc: doc}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/portfolio/documents/"+doc.ID.String(), nil)
		newRouter(svc).ServeHTTP(rec, asUser(req, owner))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
		assert.Equal(t, doc.Content, rec.Body.Bytes())

		rec = httptest.NewRecorder()
		newRouter(svc).ServeHTTP(rec, asUser(req, id.UserID(uuid.New())))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("plan scope from query", func(t *testing.T) {
		svc := &stubService{doc: doc}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/portfolio/plan?standard=2", nil)
		newRouter(svc).ServeHTTP(rec, asUser(req, owner))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, models.SingleStandard(2), svc.planScope)

		rec = httptest.NewRecorder()
		req = httptest.NewRequest(http.MethodGet, "/portfolio/plan?standard=zero", nil)
		newRouter(svc).ServeHTTP(rec, asUser(req, owner))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("anonymous requests are rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newRouter(&stubService{doc: doc}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/portfolio/documents", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
