package cart

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/georgemunganga/minprice-backend/internal/modules/catalog"
	"github.com/georgemunganga/minprice-backend/internal/modules/guest"
	"github.com/georgemunganga/minprice-backend/internal/modules/optimizer"
	"github.com/georgemunganga/minprice-backend/internal/platform/httpx"
)

var errNoGuest = errors.New("guest token required")

// Handler exposes cart HTTP endpoints. Routes expect guest.Middleware upstream.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/carts", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/active", h.active)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.summary)
			r.Patch("/", h.rename)
			r.Delete("/", h.delete)
			r.Post("/archive", h.archive)
			r.Post("/active", h.setActive)

			r.Post("/items", h.addItem)
			r.Delete("/items", h.clear)
			r.Patch("/items/{product_id}", h.updateQuantity)
			r.Delete("/items/{product_id}", h.removeItem)
			r.Put("/items/{product_id}/store", h.setLineStore)

			r.Put("/preference", h.setPreference)
			r.Post("/strategy", h.applyStrategy)
		})
	})
}

// RegisterSharedRoutes mounts the read-only share view. It needs no guest token.
func (h *Handler) RegisterSharedRoutes(r chi.Router) {
	r.Get("/api/v1/shared/carts/{id}", h.shared)
}

// unavailableResponse is returned with 422 when an added product has no allowed offer.
// The cart still changed, so the new summary is included.
type unavailableResponse struct {
	Error   string       `json:"error"`
	Summary *CartSummary `json:"summary"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}
	var req CreateCartRequest
	if r.ContentLength != 0 {
		if err := httpx.Decode(r, &req); err != nil {
			httpx.Error(w, http.StatusBadRequest, err)
			return
		}
	}
	rec, err := h.service.CreateCart(r.Context(), owner, req)
	if err != nil {
		httpx.Error(w, statusFor(err), err)
		return
	}
	httpx.Respond(w, http.StatusCreated, rec)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}
	carts, err := h.service.ListCarts(r.Context(), owner)
	if err != nil {
		httpx.Error(w, statusFor(err), err)
		return
	}
	if carts == nil {
		carts = []*Record{}
	}
	httpx.Respond(w, http.StatusOK, carts)
}

func (h *Handler) active(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}
	s, err := h.service.ActiveSummary(r.Context(), owner)
	h.respondSummary(w, s, err)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}
	s, err := h.service.GetSummary(r.Context(), owner, chi.URLParam(r, "id"))
	h.respondSummary(w, s, err)
}

func (h *Handler) shared(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.SharedSummary(r.Context(), chi.URLParam(r, "id"))
	h.respondSummary(w, s, err)
}

func (h *Handler) rename(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}
	var req RenameRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err)
		return
	}
	rec, err := h.service.Rename(r.Context(), owner, chi.URLParam(r, "id"), req)
	if err != nil {
		httpx.Error(w, statusFor(err), err)
		return
	}
	httpx.Respond(w, http.StatusOK, rec)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), owner, chi.URLParam(r, "id")); err != nil {
		httpx.Error(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) archive(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}
	if err := h.service.Archive(r.Context(), owner, chi.URLParam(r, "id")); err != nil {
		httpx.Error(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}
	if err := h.service.SetActive(r.Context(), owner, chi.URLParam(r, "id")); err != nil {
		httpx.Error(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}
	var req AddItemRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err)
		return
	}
	s, err := h.service.AddItem(r.Context(), owner, chi.URLParam(r, "id"), req)
	h.respondSummary(w, s, err)
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}
	s, err := h.service.Clear(r.Context(), owner, chi.URLParam(r, "id"))
	h.respondSummary(w, s, err)
}

func (h *Handler) updateQuantity(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}
	var req UpdateQuantityRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err)
		return
	}
	s, err := h.service.UpdateQuantity(r.Context(), owner, chi.URLParam(r, "id"), productParam(r), req.Quantity)
	h.respondSummary(w, s, err)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}
	s, err := h.service.RemoveItem(r.Context(), owner, chi.URLParam(r, "id"), productParam(r))
	h.respondSummary(w, s, err)
}

func (h *Handler) setLineStore(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}
	var req SetLineStoreRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err)
		return
	}
	s, err := h.service.SetLineStore(r.Context(), owner, chi.URLParam(r, "id"), productParam(r), req.StoreID)
	h.respondSummary(w, s, err)
}

func (h *Handler) setPreference(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}
	var req SetPreferenceRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err)
		return
	}
	s, err := h.service.SetPreference(r.Context(), owner, chi.URLParam(r, "id"), req)
	h.respondSummary(w, s, err)
}

func (h *Handler) applyStrategy(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}
	var req ApplyStrategyRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err)
		return
	}
	s, err := h.service.ApplyStrategy(r.Context(), owner, chi.URLParam(r, "id"), req)
	h.respondSummary(w, s, err)
}

func (h *Handler) respondSummary(w http.ResponseWriter, s *CartSummary, err error) {
	switch {
	case err == nil:
		httpx.Respond(w, http.StatusOK, s)
	case errors.Is(err, ErrProductUnavailable) && s != nil:
		httpx.Respond(w, http.StatusUnprocessableEntity, unavailableResponse{Error: err.Error(), Summary: s})
	default:
		httpx.Error(w, statusFor(err), err)
	}
}

// productParam decodes the product id, which clients path-escape.
func productParam(r *http.Request) string {
	raw := chi.URLParam(r, "product_id")
	if id, err := url.PathUnescape(raw); err == nil {
		return id
	}
	return raw
}

func ownerFrom(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := guest.FromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, errNoGuest)
	}
	return id, ok
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrCartNotFound), errors.Is(err, ErrNotFound), errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrProductUnavailable), errors.Is(err, ErrOfferNotFound),
		errors.Is(err, ErrStrategyInfeasible), errors.Is(err, ErrArchived):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrInvalidQuantity), errors.Is(err, optimizer.ErrUnknownStrategy):
		return http.StatusBadRequest
	case errors.Is(err, catalog.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
