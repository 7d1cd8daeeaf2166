package model

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Severity orders how urgent an incident is.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns the wire representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseSeverity maps a wire string to a Severity. Unknown values default to
// high, matching the behaviour of devices that omit the field.
func ParseSeverity(s string) Severity {
	switch s {
	case "low":
		return SeverityLow
	case "medium":
		return SeverityMedium
	case "critical":
		return SeverityCritical
	default:
		return SeverityHigh
	}
}

// MarshalJSON encodes the severity as its wire string.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes the wire string, defaulting unknown values to high.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = ParseSeverity(str)
	return nil
}

// Status is the incident lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusResponded Status = "responded"
	StatusResolved  Status = "resolved"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Terminal reports whether no further automatic transition may leave the state.
func (s Status) Terminal() bool {
	switch s {
	case StatusResolved, StatusCancelled, StatusExpired:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from s to next is a legal transition.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusActive:
		return next == StatusResponded || next == StatusCancelled ||
			next == StatusExpired
	case StatusResponded:
		return next == StatusResolved
	default:
		return false
	}
}

// Location is a reported geographic position.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// Validate checks that both coordinates are finite and within range.
func (l Location) Validate() error {
	if math.IsNaN(l.Latitude) || math.IsInf(l.Latitude, 0) ||
		math.IsNaN(l.Longitude) || math.IsInf(l.Longitude, 0) {
		return fmt.Errorf("location coordinates must be finite")
	}
	if l.Latitude < -90 || l.Latitude > 90 {
		return fmt.Errorf("latitude %f out of range", l.Latitude)
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return fmt.Errorf("longitude %f out of range", l.Longitude)
	}
	return nil
}

// Incident is one tracked emergency event from creation to resolution.
type Incident struct {
	ID          string            `json:"id"`
	DeviceID    string            `json:"device_id,omitempty"`
	UserID      string            `json:"user_id,omitempty"`
	Location    Location          `json:"location"`
	Category    string            `json:"category"`
	Severity    Severity          `json:"severity"`
	Description string            `json:"description,omitempty"`
	Status      Status            `json:"status"`
	ResponderID string            `json:"responder_id,omitempty"`
	VehicleData map[string]string `json:"vehicle_data,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Validate checks the invariants required before an incident is persisted.
func (i Incident) Validate() error {
	if i.DeviceID == "" && i.UserID == "" {
		return fmt.Errorf("incident requires a device or user id")
	}
	return i.Location.Validate()
}
