package directory

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/georgemunganga/minprice-backend/internal/modules/catalog"
	"github.com/georgemunganga/minprice-backend/internal/platform/httpx"
)

// Handler exposes chain and store listings.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/v1/chains", h.listChains)
	r.Get("/api/v1/stores", h.listStores) // ?chain_id=&city=
	r.Get("/api/v1/stores/{id}", h.getStore)
}

func (h *Handler) listChains(w http.ResponseWriter, r *http.Request) {
	chains, err := h.service.ListChains(r.Context())
	if err != nil {
		httpx.Error(w, statusFor(err), err)
		return
	}
	if chains == nil {
		chains = []*Chain{}
	}
	httpx.Respond(w, http.StatusOK, chains)
}

func (h *Handler) listStores(w http.ResponseWriter, r *http.Request) {
	var f StoreFilter
	if v := r.URL.Query().Get("chain_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, errors.Errorf("invalid chain_id %q", v))
			return
		}
		f.ChainID = id
	}
	f.City = r.URL.Query().Get("city")

	stores, err := h.service.ListStores(r.Context(), f)
	if err != nil {
		httpx.Error(w, statusFor(err), err)
		return
	}
	if stores == nil {
		stores = []*Store{}
	}
	httpx.Respond(w, http.StatusOK, stores)
}

func (h *Handler) getStore(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, errors.New("invalid store id"))
		return
	}
	s, err := h.service.GetStore(r.Context(), catalog.StoreID(id))
	if err != nil {
		httpx.Error(w, statusFor(err), err)
		return
	}
	httpx.Respond(w, http.StatusOK, s)
}

func statusFor(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
