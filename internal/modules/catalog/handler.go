package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/georgemunganga/minprice-backend/internal/platform/httpx"
)

// Handler exposes catalog HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/catalog", func(r chi.Router) {
		r.Get("/products/{id}", h.getProduct)
		r.Get("/products/{id}/offers", h.listOffers)
	})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, statusFor(err), err)
		return
	}
	httpx.Respond(w, http.StatusOK, p)
}

func (h *Handler) listOffers(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, statusFor(err), err)
		return
	}
	offers := p.Offers
	if offers == nil {
		offers = []Offer{}
	}
	httpx.Respond(w, http.StatusOK, offers)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
