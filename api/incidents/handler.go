// Package incidents exposes the emergency lifecycle over HTTP.
package incidents

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prapanjan22-hub/garazzo/core/emergency"
	"github.com/prapanjan22-hub/garazzo/core/model"
)

// NewHandler returns an HTTP handler serving the emergency endpoints under
// /api/emergency. Requests must include an Authorization header with
// "Bearer <token>" when token is non-empty.
func NewHandler(svc *emergency.Service, token string) http.Handler {
	h := &handler{svc: svc}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/emergency/alert", h.createAlert)
	mux.HandleFunc("GET /api/emergency/active", h.listActive)
	mux.HandleFunc("GET /api/emergency/stats", h.stats)
	mux.HandleFunc("GET /api/emergency/{id}", h.get)
	mux.HandleFunc("POST /api/emergency/{id}/status", h.updateStatus)
	mux.HandleFunc("POST /api/emergency/{id}/respond", h.respond)
	return withBearerAuth(mux, token)
}

func withBearerAuth(next http.Handler, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token != "" {
			auth := r.Header.Get("Authorization")
			if auth != "Bearer "+token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

type handler struct {
	svc *emergency.Service
}

func (h *handler) createAlert(w http.ResponseWriter, r *http.Request) {
	var alert emergency.Alert
	if err := json.NewDecoder(r.Body).Decode(&alert); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	inc, err := h.svc.HandleAlert(r.Context(), alert)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, inc)
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	inc, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

func (h *handler) listActive(w http.ResponseWriter, r *http.Request) {
	incs, err := h.svc.Active(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if incs == nil {
		incs = []model.Incident{}
	}
	writeJSON(w, http.StatusOK, incs)
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type statusRequest struct {
	Status      model.Status `json:"status"`
	ResponderID string       `json:"responder_id,omitempty"`
}

func (h *handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	inc, err := h.svc.UpdateStatus(r.Context(), r.PathValue("id"), req.Status, req.ResponderID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

type respondRequest struct {
	ResponderID string `json:"responder_id"`
}

func (h *handler) respond(w http.ResponseWriter, r *http.Request) {
	var req respondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	inc, err := h.svc.Respond(r.Context(), r.PathValue("id"), req.ResponderID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, emergency.ErrNotFound):
		http.Error(w, "incident not found", http.StatusNotFound)
	case errors.Is(err, emergency.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
