package emergency

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/prapanjan22-hub/garazzo/core/logger"
	"github.com/prapanjan22-hub/garazzo/core/match"
	"github.com/prapanjan22-hub/garazzo/core/model"
	"github.com/prapanjan22-hub/garazzo/core/notify"
	"github.com/prapanjan22-hub/garazzo/internal/eventbus"
)

// Config tunes the dispatch pipeline.
type Config struct {
	// RadiusKm bounds the responder search around the incident location.
	RadiusKm float64 `json:"radius_km"`
	// MaxResponders caps how many matched responders are alerted via push.
	MaxResponders int `json:"max_responders"`
	// SMSLimit caps how many of the nearest responders also receive an SMS.
	SMSLimit int `json:"sms_limit"`
	// LiveTTLSeconds is the ephemeral mirror TTL; an active incident older
	// than this expires on its next read.
	LiveTTLSeconds      int `json:"live_ttl_seconds"`
	StoreTimeoutSeconds int `json:"store_timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.RadiusKm <= 0 {
		c.RadiusKm = 10
	}
	if c.MaxResponders <= 0 {
		c.MaxResponders = match.DefaultLimit
	}
	if c.SMSLimit <= 0 {
		c.SMSLimit = 5
	}
	if c.LiveTTLSeconds <= 0 {
		c.LiveTTLSeconds = 3600
	}
	if c.StoreTimeoutSeconds <= 0 {
		c.StoreTimeoutSeconds = 5
	}
}

// Alert is an inbound distress signal, from a device or an application
// client.
type Alert struct {
	DeviceID    string            `json:"device_id,omitempty"`
	UserID      string            `json:"user_id,omitempty"`
	Location    model.Location    `json:"location"`
	Category    string            `json:"category"`
	// Severity carries the caller's wire string; absent or unknown values
	// are treated as high.
	Severity    string            `json:"severity"`
	Description string            `json:"description,omitempty"`
	VehicleData map[string]string `json:"vehicle_data,omitempty"`
}

// Service coordinates incident creation, responder matching, notification
// fan-out and live-state mirroring.
type Service struct {
	store      IncidentStore
	live       LiveStore
	matcher    *match.Matcher
	dispatcher *notify.Dispatcher
	events     *eventbus.TypedBus[IncidentEvent]
	cfg        Config
	log        logger.Logger
	now        func() time.Time
}

// NewService wires the emergency service. The live store may be nil, in
// which case mirroring is skipped.
func NewService(store IncidentStore, live LiveStore, matcher *match.Matcher, dispatcher *notify.Dispatcher, events *eventbus.TypedBus[IncidentEvent], cfg Config, log logger.Logger) (*Service, error) {
	if store == nil || matcher == nil || dispatcher == nil {
		return nil, fmt.Errorf("emergency: nil parameter provided to NewService")
	}
	cfg.SetDefaults()
	return &Service{
		store:      store,
		live:       live,
		matcher:    matcher,
		dispatcher: dispatcher,
		events:     events,
		cfg:        cfg,
		log:        log,
		now:        time.Now,
	}, nil
}

// Events exposes the incident event bus for subscribers.
func (s *Service) Events() *eventbus.TypedBus[IncidentEvent] { return s.events }

func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(s.cfg.StoreTimeoutSeconds)*time.Second)
}

func (s *Service) liveTTL() time.Duration {
	return time.Duration(s.cfg.LiveTTLSeconds) * time.Second
}

// HandleAlert records a new incident and fans the alert out to nearby
// responders. Notification failures are logged and counted but never block
// incident creation.
func (s *Service) HandleAlert(ctx context.Context, alert Alert) (model.Incident, error) {
	inc := model.Incident{
		ID:          uuid.NewString(),
		DeviceID:    alert.DeviceID,
		UserID:      alert.UserID,
		Location:    alert.Location,
		Category:    alert.Category,
		Severity:    model.ParseSeverity(alert.Severity),
		Description: alert.Description,
		Status:      model.StatusActive,
		VehicleData: alert.VehicleData,
		CreatedAt:   s.now().UTC(),
		UpdatedAt:   s.now().UTC(),
	}
	if inc.Category == "" {
		inc.Category = "general"
	}
	if err := inc.Validate(); err != nil {
		return model.Incident{}, fmt.Errorf("emergency: %w", err)
	}

	cctx, cancel := s.storeCtx(ctx)
	err := s.store.Create(cctx, &inc)
	cancel()
	if err != nil {
		return model.Incident{}, fmt.Errorf("emergency: create incident: %w", err)
	}
	incidentsCreated.Inc()
	s.mirror(ctx, inc)
	s.publish(EventEmergencyAlert, inc, false)
	s.log.Infof("emergency alert processed: %s", inc.ID)

	responders, err := s.matcher.FindNearby(ctx, inc.Location, s.cfg.RadiusKm, s.cfg.MaxResponders)
	if err != nil {
		s.log.Errorf("responder matching for %s failed: %v", inc.ID, err)
		return inc, nil
	}
	respondersMatched.Observe(float64(len(responders)))
	if len(responders) == 0 {
		s.log.Warnf("no responders available within %.1f km of incident %s", s.cfg.RadiusKm, inc.ID)
		return inc, nil
	}
	s.fanOut(ctx, inc, responders)
	return inc, nil
}

// fanOut alerts the matched responders: push to everyone with a token, SMS
// to the nearest few with a phone number.
func (s *Service) fanOut(ctx context.Context, inc model.Incident, responders []model.Responder) {
	place := inc.Location.Address
	if place == "" {
		place = "your location"
	}

	var pushes []notify.PushMessage
	for _, r := range responders {
		if r.PushToken == "" {
			continue
		}
		loc, _ := json.Marshal(inc.Location)
		pushes = append(pushes, notify.PushMessage{
			Token: r.PushToken,
			Title: "Emergency Alert",
			Body:  fmt.Sprintf("Emergency near %s", place),
			Data: map[string]string{
				"incident_id": inc.ID,
				"type":        EventEmergencyAlert,
				"severity":    inc.Severity.String(),
				"location":    string(loc),
			},
		})
	}
	if len(pushes) > 0 {
		res := s.dispatcher.SendBulkPush(ctx, pushes)
		s.log.Infof("incident %s: push fan-out %d sent, %d failed", inc.ID, res.SuccessCount, res.FailureCount)
	}

	smsData := map[string]string{
		"location": place,
		"category": inc.Category,
		"severity": inc.Severity.String(),
	}
	sent := 0
	for _, r := range responders {
		if sent >= s.cfg.SMSLimit {
			break
		}
		if r.Phone == "" {
			continue
		}
		out := s.dispatcher.SendSMS(ctx, notify.SMSMessage{To: r.Phone}, "emergency_alert_sms", smsData)
		if out.Status != notify.OutcomeSent {
			s.log.Warnf("incident %s: sms to responder %s not delivered: %s", inc.ID, r.ID, out.Reason)
		}
		sent++
	}
}

// UpdateStatus transitions an incident to the target status. It enforces the
// state machine and relies on the store's conditional update so concurrent
// transitions yield exactly one winner.
func (s *Service) UpdateStatus(ctx context.Context, id string, target model.Status, responderID string) (model.Incident, error) {
	cctx, cancel := s.storeCtx(ctx)
	current, err := s.store.Get(cctx, id)
	cancel()
	if err != nil {
		return model.Incident{}, err
	}
	if !current.Status.CanTransition(target) {
		return model.Incident{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, target)
	}
	if target == model.StatusResponded && responderID == "" {
		return model.Incident{}, fmt.Errorf("%w: transition to responded requires a responder id", ErrInvalidTransition)
	}

	cctx, cancel = s.storeCtx(ctx)
	updated, err := s.store.UpdateStatus(cctx, id, current.Status, target, responderID)
	cancel()
	if err != nil {
		return model.Incident{}, err
	}
	incidentTransitions.WithLabelValues(string(target)).Inc()
	s.mirror(ctx, updated)
	s.publish(EventStatusUpdate, updated, target.Terminal())
	return updated, nil
}

// Respond is a responder accepting an incident.
func (s *Service) Respond(ctx context.Context, id, responderID string) (model.Incident, error) {
	return s.UpdateStatus(ctx, id, model.StatusResponded, responderID)
}

// Get returns the incident, preferring the live mirror. An active incident
// whose TTL has lapsed is lazily transitioned to expired.
func (s *Service) Get(ctx context.Context, id string) (model.Incident, error) {
	if s.live != nil {
		if inc, ok, err := s.live.Get(ctx, id); err == nil && ok {
			return inc, nil
		}
	}
	cctx, cancel := s.storeCtx(ctx)
	inc, err := s.store.Get(cctx, id)
	cancel()
	if err != nil {
		return model.Incident{}, err
	}
	return s.expireIfStale(ctx, inc), nil
}

// Active returns all active incidents, newest first, lazily expiring any
// whose TTL has lapsed.
func (s *Service) Active(ctx context.Context) ([]model.Incident, error) {
	cctx, cancel := s.storeCtx(ctx)
	incs, err := s.store.Active(cctx)
	cancel()
	if err != nil {
		return nil, err
	}
	out := incs[:0]
	for _, inc := range incs {
		inc = s.expireIfStale(ctx, inc)
		if inc.Status == model.StatusActive {
			out = append(out, inc)
		}
	}
	return out, nil
}

// Stats reports incident statistics over the trailing 30 days.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	cctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.store.Stats(cctx, s.now().UTC().AddDate(0, 0, -30))
}

func (s *Service) expireIfStale(ctx context.Context, inc model.Incident) model.Incident {
	if inc.Status != model.StatusActive {
		return inc
	}
	if s.now().Before(inc.UpdatedAt.Add(s.liveTTL())) {
		return inc
	}
	cctx, cancel := s.storeCtx(ctx)
	expired, err := s.store.UpdateStatus(cctx, inc.ID, model.StatusActive, model.StatusExpired, "")
	cancel()
	if err != nil {
		// Lost the race to another writer; the stored state wins.
		s.log.Debugf("lazy expiry of %s skipped: %v", inc.ID, err)
		return inc
	}
	incidentTransitions.WithLabelValues(string(model.StatusExpired)).Inc()
	s.mirror(ctx, expired)
	s.publish(EventStatusUpdate, expired, true)
	return expired
}

func (s *Service) mirror(ctx context.Context, inc model.Incident) {
	if s.live == nil {
		return
	}
	if inc.Status.Terminal() {
		if err := s.live.Delete(ctx, inc.ID); err != nil {
			s.log.Errorf("live mirror removal of %s failed: %v", inc.ID, err)
		}
		return
	}
	if err := s.live.Put(ctx, inc, s.liveTTL()); err != nil {
		s.log.Errorf("live mirror of %s failed: %v", inc.ID, err)
	}
}

func (s *Service) publish(name string, inc model.Incident, final bool) {
	if s.events == nil {
		return
	}
	s.events.Publish(IncidentEvent{Name: name, Incident: inc, Final: final, Timestamp: s.now().UTC()})
}
