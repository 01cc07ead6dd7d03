package floormap

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/georgemunganga/wayfinder-backend/internal/geojson"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/auth"
	"github.com/georgemunganga/wayfinder-backend/internal/platform/apperr"
)

type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

// RegisterRoutes mounts artifact reads on public, journal writes and recenter
// on protected, and rebuilds on admin.
func (h *Handler) RegisterRoutes(public, protected, admin chi.Router) {
	public.Get("/api/v1/maps/{slug}/floors/{floor}", h.artifact(TierFinal))
	public.Get("/api/v1/maps/{slug}/floors/{floor}/base", h.artifact(TierBase))

	protected.Post("/api/v1/maps/{slug}/floors/{floor}/journal", h.appendJournal)
	protected.Post("/api/v1/maps/{slug}/recenter", h.recenter)

	admin.Post("/api/v1/maps/{slug}/rebuild", h.rebuild)
}

func (h *Handler) artifact(tier Tier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		floor, err := floorParam(r)
		if err != nil {
			respondError(w, err)
			return
		}
		fc, err := h.service.Artifact(r.Context(), tier, chi.URLParam(r, "slug"), floor)
		if err != nil {
			respondError(w, err)
			return
		}
		data, err := geojson.Encode(fc)
		if err != nil {
			respondError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

func (h *Handler) appendJournal(w http.ResponseWriter, r *http.Request) {
	floor, err := floorParam(r)
	if err != nil {
		respondError(w, err)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	entry, err := geojson.DecodeFeature(body)
	if err != nil {
		respondError(w, err)
		return
	}
	p, _ := auth.FromContext(r.Context())
	if err := h.service.AppendJournal(r.Context(), p, chi.URLParam(r, "slug"), floor, entry); err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (h *Handler) rebuild(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.RebuildVenue(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		respondError(w, err)
		return
	}
	status := http.StatusOK
	if report.Failed() {
		status = http.StatusInternalServerError
	}
	respond(w, status, report)
}

func (h *Handler) recenter(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	v, err := h.service.Recenter(r.Context(), p, chi.URLParam(r, "slug"))
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, v)
}

func floorParam(r *http.Request) (int, error) {
	floor, err := strconv.Atoi(chi.URLParam(r, "floor"))
	if err != nil {
		return 0, fmt.Errorf("%w: floor must be an integer", apperr.ErrInvalidInput)
	}
	return floor, nil
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, err error) {
	respond(w, apperr.HTTPStatus(err), map[string]string{"error": err.Error()})
}
