// Package ingest routes device-origin bus messages into the dispatch
// pipeline and the storage collaborators.
package ingest

import (
	"context"
	"time"

	"github.com/prapanjan22-hub/garazzo/core/emergency"
	"github.com/prapanjan22-hub/garazzo/core/logger"
	"github.com/prapanjan22-hub/garazzo/core/model"
)

// Topics returns the bus topic patterns the adapter subscribes to.
func Topics() []string {
	return []string{"device/+/data", "device/+/emergency", "device/+/diagnostic"}
}

// TelemetrySink stores periodic vehicle snapshots (external collaborator).
type TelemetrySink interface {
	RecordVehicleState(ctx context.Context, deviceID string, p model.TelemetryPayload, at time.Time) error
}

// DiagnosticSink stores diagnostic reports (external collaborator).
type DiagnosticSink interface {
	RecordDiagnostics(ctx context.Context, deviceID string, p model.DiagnosticPayload, at time.Time) error
}

// AlertHandler receives classified emergency messages.
type AlertHandler interface {
	HandleAlert(ctx context.Context, alert emergency.Alert) (model.Incident, error)
}

// Adapter decodes bus messages once at the boundary and dispatches on the
// message kind. A malformed message is logged and dropped; the subscription
// itself never fails.
type Adapter struct {
	alerts      AlertHandler
	telemetry   TelemetrySink
	diagnostics DiagnosticSink
	log         logger.Logger
	now         func() time.Time
}

// NewAdapter creates an Adapter. Telemetry and diagnostic sinks may be nil,
// in which case those kinds are dropped after decoding.
func NewAdapter(alerts AlertHandler, telemetry TelemetrySink, diagnostics DiagnosticSink, log logger.Logger) *Adapter {
	return &Adapter{
		alerts:      alerts,
		telemetry:   telemetry,
		diagnostics: diagnostics,
		log:         log,
		now:         time.Now,
	}
}

// HandleMessage processes one raw bus message. Each successfully classified
// emergency message triggers the dispatch pipeline exactly once.
func (a *Adapter) HandleMessage(ctx context.Context, topic string, payload []byte) {
	msg, err := model.DecodeDeviceMessage(topic, payload, a.now().UTC())
	if err != nil {
		messagesTotal.WithLabelValues("unknown", "malformed").Inc()
		a.log.Errorf("dropping malformed bus message on %s: %v", topic, err)
		return
	}

	switch msg.Kind {
	case model.KindTelemetry:
		a.handleTelemetry(ctx, msg)
	case model.KindEmergency:
		a.handleEmergency(ctx, msg)
	case model.KindDiagnostic:
		a.handleDiagnostic(ctx, msg)
	}
}

func (a *Adapter) handleTelemetry(ctx context.Context, msg model.DeviceMessage) {
	if a.telemetry == nil {
		messagesTotal.WithLabelValues(msg.Kind.String(), "dropped").Inc()
		return
	}
	if err := a.telemetry.RecordVehicleState(ctx, msg.DeviceID, *msg.Telemetry, msg.ReceivedAt); err != nil {
		messagesTotal.WithLabelValues(msg.Kind.String(), "error").Inc()
		a.log.Errorf("vehicle state for device %s not stored: %v", msg.DeviceID, err)
		return
	}
	messagesTotal.WithLabelValues(msg.Kind.String(), "ok").Inc()
}

func (a *Adapter) handleEmergency(ctx context.Context, msg model.DeviceMessage) {
	p := msg.Emergency
	alert := emergency.Alert{
		DeviceID:    msg.DeviceID,
		Location:    p.Location,
		Category:    p.Category,
		Severity:    p.Severity,
		Description: p.Description,
		VehicleData: p.VehicleData,
	}
	a.log.Warnf("emergency alert from device %s", msg.DeviceID)
	if _, err := a.alerts.HandleAlert(ctx, alert); err != nil {
		messagesTotal.WithLabelValues(msg.Kind.String(), "error").Inc()
		a.log.Errorf("emergency from device %s not processed: %v", msg.DeviceID, err)
		return
	}
	messagesTotal.WithLabelValues(msg.Kind.String(), "ok").Inc()
}

func (a *Adapter) handleDiagnostic(ctx context.Context, msg model.DeviceMessage) {
	if a.diagnostics == nil {
		messagesTotal.WithLabelValues(msg.Kind.String(), "dropped").Inc()
		return
	}
	if err := a.diagnostics.RecordDiagnostics(ctx, msg.DeviceID, *msg.Diagnostic, msg.ReceivedAt); err != nil {
		messagesTotal.WithLabelValues(msg.Kind.String(), "error").Inc()
		a.log.Errorf("diagnostics for device %s not stored: %v", msg.DeviceID, err)
		return
	}
	messagesTotal.WithLabelValues(msg.Kind.String(), "ok").Inc()
}
