package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"portfolio/internal/portfolio/models"
	"portfolio/internal/profile"
	id "portfolio/pkg/domain"
	dErrors "portfolio/pkg/domain-errors"
	"portfolio/pkg/platform/httputil"
	"portfolio/pkg/requestcontext"
)

type Service interface {
	Upsert(ctx context.Context, userID id.UserID, req profile.UpsertRequest) (models.UserProfile, error)
	Get(ctx context.Context, userID id.UserID) (models.UserProfile, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts profile endpoints; the router must apply RequireAuth.
func (h *Handler) Register(r chi.Router) {
	r.Get("/profile", h.HandleGet)
	r.Put("/profile", h.HandleUpsert)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID := requestcontext.UserID(r.Context())
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	p, err := h.service.Get(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) HandleUpsert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	req, ok := httputil.DecodeJSON[profile.UpsertRequest](w, r, h.logger)
	if !ok {
		return
	}
	p, err := h.service.Upsert(ctx, userID, *req)
	if err != nil {
		h.logger.WarnContext(ctx, "profile upsert failed",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}
