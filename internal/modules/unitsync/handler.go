package unitsync

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/georgemunganga/wayfinder-backend/internal/modules/auth"
	"github.com/georgemunganga/wayfinder-backend/internal/platform/apperr"
)

type Handler struct{ coordinator *Coordinator }

func NewHandler(coordinator *Coordinator) *Handler { return &Handler{coordinator: coordinator} }

func (h *Handler) RegisterRoutes(protected, admin chi.Router) {
	protected.Patch("/api/v1/venues/{id}/units/{room_id}", h.editUnit)
	admin.Post("/api/v1/sync/reconcile", h.reconcile)
}

type editRequest struct {
	Floor   *int           `json:"floor"`
	Changes map[string]any `json:"changes"`
}

func (h *Handler) editUnit(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Floor == nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "floor is required"})
		return
	}
	p, _ := auth.FromContext(r.Context())
	res, err := h.coordinator.ApplyUnitEdit(r.Context(), p,
		chi.URLParam(r, "id"), chi.URLParam(r, "room_id"), *req.Floor, req.Changes)
	if err != nil {
		respond(w, apperr.HTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, res)
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.coordinator.ReconcilePending(r.Context())
	if err != nil {
		respond(w, apperr.HTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, report)
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
