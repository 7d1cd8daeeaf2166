package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// MessageKind discriminates the payload carried by a device message.
type MessageKind int

const (
	KindTelemetry MessageKind = iota
	KindEmergency
	KindDiagnostic
)

// String returns the topic segment for the kind.
func (k MessageKind) String() string {
	switch k {
	case KindTelemetry:
		return "data"
	case KindEmergency:
		return "emergency"
	case KindDiagnostic:
		return "diagnostic"
	default:
		return "unknown"
	}
}

// TelemetryPayload carries a periodic vehicle snapshot.
type TelemetryPayload struct {
	Location          *Location `json:"location,omitempty"`
	SpeedKmh          float64   `json:"speed"`
	FuelLevel         float64   `json:"fuel_level"`
	EngineTemperature float64   `json:"engine_temperature"`
	BatteryVoltage    float64   `json:"battery_voltage"`
	OdometerKm        float64   `json:"odometer"`
	EngineStatus      string    `json:"engine_status"`
}

// EmergencyPayload carries a distress signal from a device.
type EmergencyPayload struct {
	Location    Location          `json:"location"`
	Category    string            `json:"emergency_type"`
	Severity    string            `json:"severity"`
	Description string            `json:"description"`
	VehicleData map[string]string `json:"vehicle_data,omitempty"`
}

// DiagnosticPayload carries fault and maintenance information.
type DiagnosticPayload struct {
	ErrorCodes        []string `json:"error_codes"`
	Warnings          []string `json:"warnings"`
	MaintenanceAlerts []string `json:"maintenance_alerts"`
}

// DeviceMessage is the decoded form of one bus message. Exactly one payload
// field matching Kind is populated.
type DeviceMessage struct {
	Kind       MessageKind
	DeviceID   string
	ReceivedAt time.Time

	Telemetry  *TelemetryPayload
	Emergency  *EmergencyPayload
	Diagnostic *DiagnosticPayload
}

// DecodeDeviceMessage parses a bus topic of the form device/{id}/{kind} and
// its JSON payload into a tagged DeviceMessage. Decoding happens once at the
// ingestion boundary; downstream code switches on Kind only.
func DecodeDeviceMessage(topic string, payload []byte, now time.Time) (DeviceMessage, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "device" || parts[1] == "" {
		return DeviceMessage{}, fmt.Errorf("malformed device topic %q", topic)
	}
	msg := DeviceMessage{DeviceID: parts[1], ReceivedAt: now}
	switch parts[2] {
	case "data":
		msg.Kind = KindTelemetry
		var p TelemetryPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return DeviceMessage{}, fmt.Errorf("decode telemetry payload: %w", err)
		}
		msg.Telemetry = &p
	case "emergency":
		msg.Kind = KindEmergency
		var p EmergencyPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return DeviceMessage{}, fmt.Errorf("decode emergency payload: %w", err)
		}
		msg.Emergency = &p
	case "diagnostic":
		msg.Kind = KindDiagnostic
		var p DiagnosticPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return DeviceMessage{}, fmt.Errorf("decode diagnostic payload: %w", err)
		}
		msg.Diagnostic = &p
	default:
		return DeviceMessage{}, fmt.Errorf("unknown message kind %q", parts[2])
	}
	return msg, nil
}
