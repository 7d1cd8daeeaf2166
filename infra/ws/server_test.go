package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/prapanjan22-hub/garazzo/core/model"
	"github.com/prapanjan22-hub/garazzo/core/realtime"
	"github.com/prapanjan22-hub/garazzo/infra/logger"
)

func newTestServer(t *testing.T, token string) (*httptest.Server, *realtime.Hub) {
	t.Helper()
	realtime.ResetMetrics(prometheus.NewRegistry())
	hub := realtime.NewHub(logger.NopLogger{})
	srv, err := NewServer(hub, TokenAuth(token), logger.NopLogger{})
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts, hub
}

func wsURL(ts *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/?" + query
}

func TestUpgradeRequiresAuth(t *testing.T) {
	ts, _ := newTestServer(t, "secret")

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "user_id=u1&token=wrong"), nil)
	if err == nil {
		t.Fatal("dial succeeded with bad token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("response = %+v", resp)
	}

	_, resp, err = websocket.DefaultDialer.Dial(wsURL(ts, "token=secret"), nil)
	if err == nil {
		t.Fatal("dial succeeded without user_id")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("response = %+v", resp)
	}
}

func TestConnectedClientReceivesPersonalEvents(t *testing.T) {
	ts, hub := newTestServer(t, "")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "user_id=u1&role=driver"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	waitForMembers(t, hub, realtime.UserChannel("u1"), 1)
	hub.PublishUser("u1", realtime.EventStatusUpdate, map[string]string{"status": "responded"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev realtime.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.Name != realtime.EventStatusUpdate {
		t.Errorf("event = %+v", ev)
	}
}

func TestClientCommandsReachHub(t *testing.T) {
	ts, hub := newTestServer(t, "")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "user_id=u1&role=driver"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitForMembers(t, hub, realtime.UserChannel("u1"), 1)

	if err := conn.WriteJSON(map[string]any{"action": "join_emergency", "incident_id": "inc-1"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitForMembers(t, hub, realtime.IncidentChannel("inc-1"), 1)

	if err := conn.WriteJSON(map[string]any{
		"action":   "update_location",
		"location": model.Location{Latitude: 12.97, Longitude: 77.59},
	}); err != nil {
		t.Fatalf("write: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		if loc, ok := hub.LastLocation("u1"); ok {
			if loc.Latitude != 12.97 {
				t.Errorf("location = %+v", loc)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("location update never reached the hub")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func waitForMembers(t *testing.T, hub *realtime.Hub, channel string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Members(channel) != want {
		if time.Now().After(deadline) {
			t.Fatalf("channel %s has %d members, want %d", channel, hub.Members(channel), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
