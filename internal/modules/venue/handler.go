package venue

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/georgemunganga/wayfinder-backend/internal/modules/auth"
	"github.com/georgemunganga/wayfinder-backend/internal/platform/apperr"
)

// Handler exposes venue HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

// RegisterRoutes mounts the public read endpoints on public and the write
// endpoints on protected, which must carry auth.Middleware.
func (h *Handler) RegisterRoutes(public, protected chi.Router) {
	public.Get("/api/v1/venues", h.listVenues)
	public.Get("/api/v1/venues/{id}", h.getVenue)

	protected.Post("/api/v1/venues", h.upsertVenue)
	protected.Put("/api/v1/venues/{id}/status", h.setStatus)
}

func (h *Handler) listVenues(w http.ResponseWriter, r *http.Request) {
	publishedOnly := r.URL.Query().Get("all") != "true"
	venues, err := h.service.ListVenues(r.Context(), publishedOnly)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, venues)
}

// getVenue accepts either the venue id or its slug.
func (h *Handler) getVenue(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "id")
	var v *Venue
	var err error
	if _, perr := uuid.Parse(key); perr == nil {
		v, err = h.service.GetVenue(r.Context(), key)
	} else {
		v, err = h.service.GetVenueBySlug(r.Context(), key)
	}
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, v)
}

func (h *Handler) upsertVenue(w http.ResponseWriter, r *http.Request) {
	var req UpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	p, _ := auth.FromContext(r.Context())
	v, err := h.service.UpsertVenue(r.Context(), p, req)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, v)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	p, _ := auth.FromContext(r.Context())
	v, err := h.service.SetStatus(r.Context(), p, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, v)
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, err error) {
	respond(w, apperr.HTTPStatus(err), map[string]string{"error": err.Error()})
}
