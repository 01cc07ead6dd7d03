package unit

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/georgemunganga/wayfinder-backend/internal/modules/auth"
	"github.com/georgemunganga/wayfinder-backend/internal/platform/apperr"
)

// Handler exposes unit HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(public, protected chi.Router) {
	public.Get("/api/v1/venues/{id}/units", h.listUnits)
	public.Get("/api/v1/venues/{id}/units/{room_id}", h.getUnit)

	protected.Post("/api/v1/venues/{id}/units", h.upsertUnit)
}

func (h *Handler) listUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.service.ListUnits(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	if units == nil {
		units = []*Unit{}
	}
	respond(w, http.StatusOK, units)
}

func (h *Handler) getUnit(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.GetUnit(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "room_id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, u)
}

func (h *Handler) upsertUnit(w http.ResponseWriter, r *http.Request) {
	var req UpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	p, _ := auth.FromContext(r.Context())
	u, err := h.service.UpsertUnit(r.Context(), p, chi.URLParam(r, "id"), req)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, u)
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, err error) {
	respond(w, apperr.HTTPStatus(err), map[string]string{"error": err.Error()})
}
