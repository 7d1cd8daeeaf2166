package emergency

import (
	"time"

	"github.com/prapanjan22-hub/garazzo/core/model"
)

// Event names broadcast to connected clients and IoT consumers.
const (
	EventEmergencyAlert = "emergency_alert"
	EventStatusUpdate   = "booking_status_update"
)

// IncidentEvent is published on the internal bus for every incident
// lifecycle change. The realtime hub and the MQTT status publisher subscribe
// to it.
type IncidentEvent struct {
	Name      string         `json:"name"`
	Incident  model.Incident `json:"incident"`
	Final     bool           `json:"final"`
	Timestamp time.Time      `json:"timestamp"`
}
