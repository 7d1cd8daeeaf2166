// Package notifications exposes the notification dispatcher over HTTP.
package notifications

import (
	"encoding/json"
	"net/http"

	"github.com/prapanjan22-hub/garazzo/core/notify"
)

// NewHandler returns an HTTP handler serving /api/notifications. Requests
// must include an Authorization header with "Bearer <token>" when token is
// non-empty.
func NewHandler(d *notify.Dispatcher, token string) http.Handler {
	h := &handler{dispatcher: d}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/notifications/push", h.sendPush)
	mux.HandleFunc("POST /api/notifications/push/bulk", h.sendBulkPush)
	mux.HandleFunc("POST /api/notifications/sms", h.sendSMS)
	mux.HandleFunc("GET /api/notifications/cache/stats", h.cacheStats)
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
	dispatcher *notify.Dispatcher
}

func (h *handler) sendPush(w http.ResponseWriter, r *http.Request) {
	var msg notify.PushMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	out := h.dispatcher.SendPush(r.Context(), msg)
	writeJSON(w, outcomeStatusCode(out), out)
}

type bulkPushRequest struct {
	Messages []notify.PushMessage `json:"messages"`
}

func (h *handler) sendBulkPush(w http.ResponseWriter, r *http.Request) {
	var req bulkPushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Messages) == 0 {
		http.Error(w, "messages are required", http.StatusBadRequest)
		return
	}
	res := h.dispatcher.SendBulkPush(r.Context(), req.Messages)
	writeJSON(w, http.StatusOK, res)
}

type smsRequest struct {
	To       string            `json:"to"`
	Body     string            `json:"body,omitempty"`
	Template string            `json:"template,omitempty"`
	Data     map[string]string `json:"data,omitempty"`
}

func (h *handler) sendSMS(w http.ResponseWriter, r *http.Request) {
	var req smsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	msg := notify.SMSMessage{To: req.To, Body: req.Body}
	out := h.dispatcher.SendSMS(r.Context(), msg, req.Template, req.Data)
	writeJSON(w, outcomeStatusCode(out), out)
}

func (h *handler) cacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.dispatcher.Renderer().CacheStats())
}

func outcomeStatusCode(out notify.Outcome) int {
	switch out.Status {
	case notify.OutcomeSent:
		return http.StatusOK
	case notify.OutcomeRejected:
		return http.StatusBadRequest
	case notify.OutcomeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
