package guest

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/georgemunganga/minprice-backend/internal/platform/httpx"
)

// Handler issues guest identities.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/guest", h.issue)
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.Issue()
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, err)
		return
	}
	httpx.Respond(w, http.StatusCreated, t)
}
