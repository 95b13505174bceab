package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"portfolio/internal/portfolio/models"
	dErrors "portfolio/pkg/domain-errors"
	"portfolio/pkg/platform/httputil"
	"portfolio/pkg/requestcontext"
)

// Service defines the catalog reads exposed over HTTP.
type Service interface {
	ListStandards(ctx context.Context) ([]models.Standard, error)
	TemplatesForStandard(ctx context.Context, number int) ([]models.EvidenceTemplate, error)
}

// Handler exposes the standards catalog.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts catalog endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/standards", h.HandleListStandards)
	r.Get("/standards/{number}/templates", h.HandleListTemplates)
}

func (h *Handler) HandleListStandards(w http.ResponseWriter, r *http.Request) {
	standards, err := h.service.ListStandards(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list standards failed",
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"standards": standards})
}

func (h *Handler) HandleListTemplates(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || number <= 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid standard number"))
		return
	}
	templates, err := h.service.TemplatesForStandard(r.Context(), number)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"templates": templates})
}
