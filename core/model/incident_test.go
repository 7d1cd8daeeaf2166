package model

import (
	"encoding/json"
	"math"
	"testing"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusActive, StatusResponded, true},
		{StatusActive, StatusResolved, false},
		{StatusActive, StatusCancelled, true},
		{StatusActive, StatusExpired, true},
		{StatusResponded, StatusResolved, true},
		{StatusResponded, StatusCancelled, false},
		{StatusResponded, StatusExpired, false},
		{StatusResolved, StatusActive, false},
		{StatusResolved, StatusResponded, false},
		{StatusCancelled, StatusResolved, false},
		{StatusExpired, StatusResponded, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransition(c.to); got != c.ok {
			t.Errorf("%s -> %s = %v, want %v", c.from, c.to, got, c.ok)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusResolved, StatusCancelled, StatusExpired} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{StatusActive, StatusResponded} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestParseSeverity(t *testing.T) {
	cases := map[string]Severity{
		"low":      SeverityLow,
		"medium":   SeverityMedium,
		"high":     SeverityHigh,
		"critical": SeverityCritical,
		"":         SeverityHigh,
		"bogus":    SeverityHigh,
	}
	for in, want := range cases {
		if got := ParseSeverity(in); got != want {
			t.Errorf("ParseSeverity(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSeverityJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(SeverityCritical)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"critical"` {
		t.Errorf("encoded = %s", data)
	}
	var s Severity
	if err := json.Unmarshal([]byte(`"medium"`), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s != SeverityMedium {
		t.Errorf("decoded = %v", s)
	}
}

func TestLocationValidate(t *testing.T) {
	good := Location{Latitude: 12.97, Longitude: 77.59}
	if err := good.Validate(); err != nil {
		t.Errorf("valid location rejected: %v", err)
	}
	bad := []Location{
		{Latitude: 91, Longitude: 0},
		{Latitude: -91, Longitude: 0},
		{Latitude: 0, Longitude: 181},
		{Latitude: 0, Longitude: -181},
		{Latitude: math.NaN(), Longitude: 0},
		{Latitude: 0, Longitude: math.Inf(1)},
	}
	for _, l := range bad {
		if err := l.Validate(); err == nil {
			t.Errorf("location %+v accepted", l)
		}
	}
}

func TestIncidentValidate(t *testing.T) {
	inc := Incident{Location: Location{Latitude: 1, Longitude: 2}}
	if err := inc.Validate(); err == nil {
		t.Error("incident without device or user accepted")
	}
	inc.DeviceID = "d1"
	if err := inc.Validate(); err != nil {
		t.Errorf("valid incident rejected: %v", err)
	}
}
