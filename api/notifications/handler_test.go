package notifications

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/prapanjan22-hub/garazzo/core/notify"
	"github.com/prapanjan22-hub/garazzo/infra/channels"
	"github.com/prapanjan22-hub/garazzo/infra/logger"
)

const validToken = "test-device-token-00000000000000000000000000"

func newTestHandler(t *testing.T, cfg notify.Config) (http.Handler, *channels.RecordingPushSender, *channels.RecordingSMSSender) {
	t.Helper()
	notify.ResetMetrics(prometheus.NewRegistry())
	push := &channels.RecordingPushSender{}
	sms := &channels.RecordingSMSSender{}
	d, err := notify.NewDispatcher(push, sms, nil, cfg, logger.NopLogger{})
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	return NewHandler(d, ""), push, sms
}

func TestSendPushEndpoint(t *testing.T) {
	h, push, _ := newTestHandler(t, notify.Config{})
	body := `{"token": "` + validToken + `", "title": "hello", "body": "world"}`
	req := httptest.NewRequest(http.MethodPost, "/api/notifications/push", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var out notify.Outcome
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Status != notify.OutcomeSent || out.MessageID == "" {
		t.Errorf("outcome = %+v", out)
	}
	if push.Count() != 1 {
		t.Errorf("sent = %d", push.Count())
	}
}

func TestSendPushRejectedMapsTo400(t *testing.T) {
	h, _, _ := newTestHandler(t, notify.Config{})
	body := `{"token": "short", "title": "t", "body": "b"}`
	req := httptest.NewRequest(http.MethodPost, "/api/notifications/push", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSendPushRateLimitMapsTo429(t *testing.T) {
	h, _, _ := newTestHandler(t, notify.Config{PushPerWindow: 1})
	body := `{"token": "` + validToken + `", "title": "t", "body": "b"}`
	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/api/notifications/push", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("request %d: status = %d, want %d", i, rec.Code, want)
		}
	}
}

func TestSendSMSTemplateEndpoint(t *testing.T) {
	h, _, sms := newTestHandler(t, notify.Config{})
	body := `{"to": "+15550100001", "template": "emergency_alert_sms",
		"data": {"location": "MG Road", "category": "breakdown", "severity": "high"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/notifications/sms", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if sms.Count() != 1 {
		t.Fatalf("sent = %d", sms.Count())
	}
	if !strings.Contains(sms.Sent[0].Body, "MG Road") {
		t.Errorf("body = %q", sms.Sent[0].Body)
	}
}

func TestSendBulkPushEndpoint(t *testing.T) {
	h, push, _ := newTestHandler(t, notify.Config{})
	body := `{"messages": [
		{"token": "` + validToken + `-0", "title": "t", "body": "b"},
		{"token": "short", "title": "t", "body": "b"}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/api/notifications/push/bulk", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var res notify.BulkResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Total != 2 || res.SuccessCount != 1 || res.FailureCount != 1 {
		t.Errorf("result = %+v", res)
	}
	if push.Count() != 1 {
		t.Errorf("sent = %d", push.Count())
	}
}

func TestBulkPushRequiresMessages(t *testing.T) {
	h, _, _ := newTestHandler(t, notify.Config{})
	req := httptest.NewRequest(http.MethodPost, "/api/notifications/push/bulk", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCacheStatsEndpoint(t *testing.T) {
	h, _, _ := newTestHandler(t, notify.Config{})
	body := `{"to": "+15550100001", "template": "emergency_alert_sms",
		"data": {"location": "MG Road", "category": "breakdown", "severity": "high"}}`
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/notifications/sms", strings.NewReader(body))
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/notifications/cache/stats", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var st notify.CacheStats
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.Hits != 1 || st.Entries != 1 {
		t.Errorf("stats = %+v", st)
	}
}
