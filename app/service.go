// Package app wires the configured components into a runnable service.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prapanjan22-hub/garazzo/api/incidents"
	"github.com/prapanjan22-hub/garazzo/api/notifications"
	"github.com/prapanjan22-hub/garazzo/config"
	"github.com/prapanjan22-hub/garazzo/core/emergency"
	"github.com/prapanjan22-hub/garazzo/core/ingest"
	"github.com/prapanjan22-hub/garazzo/core/match"
	"github.com/prapanjan22-hub/garazzo/core/notify"
	"github.com/prapanjan22-hub/garazzo/core/realtime"
	"github.com/prapanjan22-hub/garazzo/infra/channels"
	"github.com/prapanjan22-hub/garazzo/infra/influx"
	"github.com/prapanjan22-hub/garazzo/infra/logger"
	"github.com/prapanjan22-hub/garazzo/infra/metrics"
	"github.com/prapanjan22-hub/garazzo/infra/mqtt"
	"github.com/prapanjan22-hub/garazzo/infra/postgres"
	"github.com/prapanjan22-hub/garazzo/infra/redis"
	"github.com/prapanjan22-hub/garazzo/infra/ws"
	"github.com/prapanjan22-hub/garazzo/internal/eventbus"
)

// incidentPublisher pushes lifecycle events back onto the device bus.
type incidentPublisher interface {
	PublishIncidentEvent(incidentID string, event any) error
}

// Service orchestrates ingestion, dispatch and the public surfaces.
type Service struct {
	Emergency *emergency.Service
	Hub       *realtime.Hub

	cfg    *config.Config
	store  *postgres.Store
	mirror *redis.Mirror
	bus    *mqtt.PahoClient
	pub    incidentPublisher
	events *eventbus.TypedBus[emergency.IncidentEvent]
	api    http.Handler
	log    logger.Logger
}

// New creates a Service from the configuration. The context bounds the
// startup connection attempts.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	store, err := postgres.Connect(ctx, cfg.Database, logger.New("postgres"))
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	mirror, err := redis.Connect(ctx, cfg.Redis, logger.New("redis"))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}

	var telemetry influx.TelemetryStore = influx.NopSink{}
	if cfg.Influx.URL != "" {
		telemetry = influx.NewSinkWithFallback(cfg.Influx)
	}

	cache := notify.NewTemplateCache(time.Duration(cfg.Notify.CacheTTLSec) * time.Second)
	renderer := notify.NewRenderer(notify.DefaultTemplates(), cache,
		time.Duration(cfg.Notify.CacheTTLSec)*time.Second)
	dispatcher, err := notify.NewDispatcher(
		channels.NewDevPushSender(logger.New("push")),
		channels.NewDevSMSSender(logger.New("sms")),
		renderer, cfg.Notify, logger.New("notify"))
	if err != nil {
		store.Close()
		_ = mirror.Close()
		return nil, fmt.Errorf("dispatcher: %w", err)
	}

	matcher, err := match.New(store)
	if err != nil {
		store.Close()
		_ = mirror.Close()
		return nil, fmt.Errorf("matcher: %w", err)
	}

	events := eventbus.NewTyped[emergency.IncidentEvent]()
	svc, err := emergency.NewService(store, mirror, matcher, dispatcher, events,
		cfg.Emergency, logger.New("emergency"))
	if err != nil {
		store.Close()
		_ = mirror.Close()
		return nil, fmt.Errorf("emergency service: %w", err)
	}

	hub := realtime.NewHub(logger.New("realtime"))
	wsServer, err := ws.NewServer(hub, ws.TokenAuth(cfg.Realtime.Token), logger.New("ws"))
	if err != nil {
		store.Close()
		_ = mirror.Close()
		return nil, fmt.Errorf("ws server: %w", err)
	}

	adapter := ingest.NewAdapter(svc, telemetry, telemetry, logger.New("ingest"))
	bus, err := mqtt.NewPahoClient(cfg.MQTT, ingest.Topics(), func(topic string, payload []byte) {
		adapter.HandleMessage(context.Background(), topic, payload)
	})
	if err != nil {
		store.Close()
		_ = mirror.Close()
		return nil, fmt.Errorf("mqtt client: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/emergency/", incidents.NewHandler(svc, cfg.API.Token))
	mux.Handle("/api/notifications/", notifications.NewHandler(dispatcher, cfg.API.Token))
	mux.Handle("/ws", wsServer)

	return &Service{
		Emergency: svc,
		Hub:       hub,
		cfg:       cfg,
		store:     store,
		mirror:    mirror,
		bus:       bus,
		pub:       bus,
		events:    events,
		api:       mux,
		log:       logg,
	}, nil
}

// Handler returns the HTTP surface, mainly for tests.
func (s *Service) Handler() http.Handler { return s.api }

// Run starts the service and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	go s.bridgeEvents(ctx)

	if s.cfg.Metrics.Enabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.Addr, logger.New("metrics")); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	srv := &http.Server{Addr: s.cfg.API.Addr, Handler: s.api}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("api shutdown: %v", err)
		}
	}()
	s.log.Infof("api listening on %s", s.cfg.API.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// bridgeEvents forwards incident lifecycle events to websocket subscribers
// and back onto the device bus.
func (s *Service) bridgeEvents(ctx context.Context) {
	sub := s.events.Subscribe()
	defer s.events.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			inc := ev.Incident
			s.Hub.Publish(realtime.IncidentChannel(inc.ID), ev.Name, inc)
			if inc.UserID != "" {
				s.Hub.PublishUser(inc.UserID, ev.Name, inc)
			}
			if ev.Name == emergency.EventEmergencyAlert {
				s.Hub.Publish(realtime.ResponderChannel, ev.Name, inc)
			}
			if err := s.pub.PublishIncidentEvent(inc.ID, ev); err != nil {
				s.log.Errorf("bus publish for incident %s: %v", inc.ID, err)
			}
		}
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.bus.Disconnect()
	s.events.Close()
	s.store.Close()
	return s.mirror.Close()
}
