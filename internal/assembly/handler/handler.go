package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"portfolio/internal/assembly"
	"portfolio/internal/portfolio/models"
	id "portfolio/pkg/domain"
	dErrors "portfolio/pkg/domain-errors"
	"portfolio/pkg/platform/httputil"
	"portfolio/pkg/requestcontext"
)

type Service interface {
	Plan(ctx context.Context, userID id.UserID, scope models.Scope) (*assembly.Plan, error)
	Generate(ctx context.Context, req assembly.GenerateRequest) (*models.Document, error)
	Document(ctx context.Context, userID id.UserID, documentID id.DocumentID) (*models.Document, error)
	Documents(ctx context.Context, userID id.UserID) ([]models.Document, error)
}

// GenerateRequest selects the document to build. Standard zero means all
// standards with front matter.
type GenerateRequest struct {
	Standard int    `json:"standard,omitempty"`
	ThemeID  string `json:"theme_id,omitempty"`
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts document endpoints; the router must apply RequireAuth.
func (h *Handler) Register(r chi.Router) {
	r.Post("/portfolio/documents", h.HandleGenerate)
	r.Get("/portfolio/documents", h.HandleList)
	r.Get("/portfolio/documents/{id}", h.HandleDownload)
	r.Get("/portfolio/plan", h.HandlePlan)
}

func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[GenerateRequest](w, r, h.logger)
	if !ok {
		return
	}
	doc, err := h.service.Generate(ctx, assembly.GenerateRequest{
		UserID:  userID,
		Scope:   models.Scope{Standard: req.Standard},
		ThemeID: req.ThemeID,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "document generation request failed",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.Header().Set("Location", "/portfolio/documents/"+doc.ID.String())
	httputil.WriteJSON(w, http.StatusCreated, doc)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	docs, err := h.service.Documents(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	documentID, err := id.ParseDocumentID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	doc, err := h.service.Document(r.Context(), userID, documentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Content)))
	w.Header().Set("Content-Disposition", `attachment; filename="portfolio-`+doc.ID.String()+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Content)
}

func (h *Handler) HandlePlan(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	scope := models.AllStandards()
	if raw := r.URL.Query().Get("standard"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "standard must be a positive number"))
			return
		}
		scope = models.SingleStandard(n)
	}
	plan, err := h.service.Plan(r.Context(), userID, scope)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, plan)
}

func requireUser(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	userID := requestcontext.UserID(r.Context())
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.UserID{}, false
	}
	return userID, true
}
