package theme

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"portfolio/pkg/platform/httputil"
)

type Handler struct {
	catalog *Catalog
}

func NewHandler(catalog *Catalog) *Handler {
	return &Handler{catalog: catalog}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/themes", h.HandleList)
}

func (h *Handler) HandleList(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"default": h.catalog.Default().ID,
		"themes":  h.catalog.List(),
	})
}
