package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"portfolio/internal/evidence"
	"portfolio/internal/portfolio/models"
	id "portfolio/pkg/domain"
	dErrors "portfolio/pkg/domain-errors"
	"portfolio/pkg/platform/httputil"
	"portfolio/pkg/requestcontext"
)

type Service interface {
	Create(ctx context.Context, userID id.UserID, req evidence.CreateRequest) (*models.EvidenceInstance, error)
	Update(ctx context.Context, userID id.UserID, instanceID id.InstanceID, req evidence.UpdateRequest) (*models.EvidenceInstance, error)
	Get(ctx context.Context, userID id.UserID, instanceID id.InstanceID) (*models.EvidenceInstance, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]models.EvidenceInstance, error)
	Delete(ctx context.Context, userID id.UserID, instanceID id.InstanceID) error
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts evidence endpoints; the router must apply RequireAuth.
func (h *Handler) Register(r chi.Router) {
	r.Post("/evidence", h.HandleCreate)
	r.Get("/evidence", h.HandleList)
	r.Get("/evidence/{id}", h.HandleGet)
	r.Put("/evidence/{id}", h.HandleUpdate)
	r.Delete("/evidence/{id}", h.HandleDelete)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[evidence.CreateRequest](w, r, h.logger)
	if !ok {
		return
	}
	inst, err := h.service.Create(ctx, userID, *req)
	if err != nil {
		h.logFailure(ctx, "evidence create failed", userID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, inst)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	list, err := h.service.ListByUser(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"evidence": list})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	instanceID, err := id.ParseInstanceID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	inst, err := h.service.Get(r.Context(), userID, instanceID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, inst)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	instanceID, err := id.ParseInstanceID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeJSON[evidence.UpdateRequest](w, r, h.logger)
	if !ok {
		return
	}
	inst, err := h.service.Update(ctx, userID, instanceID, *req)
	if err != nil {
		h.logFailure(ctx, "evidence update failed", userID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, inst)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	instanceID, err := id.ParseInstanceID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.Delete(ctx, userID, instanceID); err != nil {
		h.logFailure(ctx, "evidence delete failed", userID, err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	userID := requestcontext.UserID(r.Context())
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.UserID{}, false
	}
	return userID, true
}

func (h *Handler) logFailure(ctx context.Context, msg string, userID id.UserID, err error) {
	h.logger.WarnContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID,
		"error", err,
	)
}
