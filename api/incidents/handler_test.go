package incidents

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/prapanjan22-hub/garazzo/core/emergency"
	"github.com/prapanjan22-hub/garazzo/core/match"
	"github.com/prapanjan22-hub/garazzo/core/model"
	"github.com/prapanjan22-hub/garazzo/core/notify"
	"github.com/prapanjan22-hub/garazzo/infra/channels"
	"github.com/prapanjan22-hub/garazzo/infra/logger"
	"github.com/prapanjan22-hub/garazzo/internal/eventbus"
)

type noResponders struct{}

func (noResponders) EligibleResponders(context.Context, model.Location, float64) ([]model.Responder, error) {
	return nil, nil
}

func newTestHandler(t *testing.T, token string) http.Handler {
	t.Helper()
	emergency.ResetMetrics(prometheus.NewRegistry())
	notify.ResetMetrics(prometheus.NewRegistry())

	dispatcher, err := notify.NewDispatcher(
		&channels.RecordingPushSender{}, &channels.RecordingSMSSender{},
		nil, notify.Config{}, logger.NopLogger{})
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	matcher, err := match.New(noResponders{})
	if err != nil {
		t.Fatalf("matcher: %v", err)
	}
	events := eventbus.NewTyped[emergency.IncidentEvent]()
	t.Cleanup(events.Close)
	svc, err := emergency.NewService(emergency.NewMemoryStore(), emergency.NewMemoryLiveStore(),
		matcher, dispatcher, events, emergency.Config{}, logger.NopLogger{})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return NewHandler(svc, token)
}

func postAlert(t *testing.T, h http.Handler, token string) model.Incident {
	t.Helper()
	body := `{"device_id": "dev-1", "location": {"latitude": 12.97, "longitude": 77.59}, "category": "breakdown"}`
	req := httptest.NewRequest(http.MethodPost, "/api/emergency/alert", strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create alert: status %d: %s", rec.Code, rec.Body.String())
	}
	var inc model.Incident
	if err := json.Unmarshal(rec.Body.Bytes(), &inc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return inc
}

func TestCreateAlert(t *testing.T) {
	h := newTestHandler(t, "")
	inc := postAlert(t, h, "")
	if inc.ID == "" || inc.Status != model.StatusActive {
		t.Errorf("incident = %+v", inc)
	}
	if inc.Category != "breakdown" {
		t.Errorf("category = %s", inc.Category)
	}
	if inc.Severity != model.SeverityHigh {
		t.Errorf("severity = %s, want high when the request omits it", inc.Severity)
	}
}

func TestCreateAlertRejectsInvalidBody(t *testing.T) {
	h := newTestHandler(t, "")
	req := httptest.NewRequest(http.MethodPost, "/api/emergency/alert", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetIncident(t *testing.T) {
	h := newTestHandler(t, "")
	inc := postAlert(t, h, "")

	req := httptest.NewRequest(http.MethodGet, "/api/emergency/"+inc.ID, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/emergency/missing", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing incident: status = %d, want 404", rec.Code)
	}
}

func TestRespondAndStatusConflict(t *testing.T) {
	h := newTestHandler(t, "")
	inc := postAlert(t, h, "")

	req := httptest.NewRequest(http.MethodPost, "/api/emergency/"+inc.ID+"/respond",
		strings.NewReader(`{"responder_id": "resp-1"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("respond: status %d: %s", rec.Code, rec.Body.String())
	}
	var got model.Incident
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Status != model.StatusResponded || got.ResponderID != "resp-1" {
		t.Errorf("incident = %+v", got)
	}

	// Cancelling a responded incident is an illegal transition.
	req = httptest.NewRequest(http.MethodPost, "/api/emergency/"+inc.ID+"/status",
		strings.NewReader(`{"status": "cancelled"}`))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("illegal transition: status = %d, want 409", rec.Code)
	}
}

func TestListActive(t *testing.T) {
	h := newTestHandler(t, "")
	postAlert(t, h, "")
	postAlert(t, h, "")

	req := httptest.NewRequest(http.MethodGet, "/api/emergency/active", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var incs []model.Incident
	if err := json.Unmarshal(rec.Body.Bytes(), &incs); err != nil {
		t.Fatal(err)
	}
	if len(incs) != 2 {
		t.Errorf("active = %d, want 2", len(incs))
	}
}

func TestStatsEndpoint(t *testing.T) {
	h := newTestHandler(t, "")
	postAlert(t, h, "")

	req := httptest.NewRequest(http.MethodGet, "/api/emergency/stats", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var st emergency.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.Total != 1 || st.Active != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestBearerTokenEnforced(t *testing.T) {
	h := newTestHandler(t, "secret")

	req := httptest.NewRequest(http.MethodGet, "/api/emergency/active", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/emergency/active", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("authenticated: status = %d, want 200", rec.Code)
	}
}
