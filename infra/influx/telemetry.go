// Package influx persists vehicle telemetry and diagnostics to InfluxDB
// using the official client.
package influx

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/prapanjan22-hub/garazzo/core/model"
	"github.com/prapanjan22-hub/garazzo/infra/logger"
)

// Config defines the InfluxDB connection parameters.
type Config struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// Sink writes device telemetry as line protocol points.
type Sink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewSink creates a sink for the given InfluxDB endpoint.
func NewSink(cfg Config) *Sink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &Sink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewSinkWithFallback pings the InfluxDB instance and returns a NopSink when
// the health check fails, so telemetry storage never blocks ingestion.
func NewSinkWithFallback(cfg Config) TelemetryStore {
	sink := NewSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return NopSink{}
	}
	return sink
}

// TelemetryStore accepts both telemetry and diagnostic records.
type TelemetryStore interface {
	RecordVehicleState(ctx context.Context, deviceID string, p model.TelemetryPayload, at time.Time) error
	RecordDiagnostics(ctx context.Context, deviceID string, p model.DiagnosticPayload, at time.Time) error
}

// Close releases the underlying client.
func (s *Sink) Close() { s.client.Close() }

// RecordVehicleState writes a snapshot of a vehicle.
func (s *Sink) RecordVehicleState(ctx context.Context, deviceID string, p model.TelemetryPayload, at time.Time) error {
	point := write.NewPointWithMeasurement("vehicle_state").
		AddTag("device_id", deviceID).
		AddTag("engine_status", p.EngineStatus).
		AddField("speed_kmh", round3(p.SpeedKmh)).
		AddField("fuel_level", round3(p.FuelLevel)).
		AddField("engine_temperature", round3(p.EngineTemperature)).
		AddField("battery_voltage", round3(p.BatteryVoltage)).
		AddField("odometer_km", round3(p.OdometerKm)).
		SetTime(at)
	if p.Location != nil {
		point.AddField("latitude", p.Location.Latitude).
			AddField("longitude", p.Location.Longitude)
	}
	if err := s.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("write vehicle state: %w", err)
	}
	return nil
}

// RecordDiagnostics writes a diagnostic report summary.
func (s *Sink) RecordDiagnostics(ctx context.Context, deviceID string, p model.DiagnosticPayload, at time.Time) error {
	point := write.NewPointWithMeasurement("vehicle_diagnostics").
		AddTag("device_id", deviceID).
		AddTag("has_errors", strconv.FormatBool(len(p.ErrorCodes) > 0)).
		AddField("error_codes", strings.Join(p.ErrorCodes, ",")).
		AddField("warnings", strings.Join(p.Warnings, ",")).
		AddField("maintenance_alerts", strings.Join(p.MaintenanceAlerts, ",")).
		SetTime(at)
	if err := s.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("write diagnostics: %w", err)
	}
	return nil
}

// NopSink discards all records.
type NopSink struct{}

func (NopSink) RecordVehicleState(context.Context, string, model.TelemetryPayload, time.Time) error {
	return nil
}

func (NopSink) RecordDiagnostics(context.Context, string, model.DiagnosticPayload, time.Time) error {
	return nil
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
