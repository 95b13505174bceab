package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"portfolio/internal/verification/models"
	"portfolio/pkg/platform/httputil"
	"portfolio/pkg/platform/middleware/metadata"
	"portfolio/pkg/requestcontext"
)

type Service interface {
	Resolve(ctx context.Context, token string) (*models.Summary, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the public lookup. It must not sit behind RequireAuth.
func (h *Handler) Register(r chi.Router) {
	r.Get("/verify/{token}", h.HandleVerify)
}

// HandleVerify serves QR scans and logs the scanning client.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	client := metadata.ParseUserAgent(requestcontext.UserAgent(ctx))
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"client_ip", requestcontext.ClientIP(ctx),
		"browser", client.Browser,
		"mobile", client.Mobile,
		"bot", client.Bot,
	}

	summary, err := h.service.Resolve(ctx, chi.URLParam(r, "token"))
	if err != nil {
		h.logger.InfoContext(ctx, "verification lookup failed", append(attrs, "error", err)...)
		httputil.WriteError(w, err)
		return
	}
	h.logger.DebugContext(ctx, "verification lookup", attrs...)
	httputil.WriteJSON(w, http.StatusOK, summary)
}
