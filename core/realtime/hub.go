// Package realtime maintains logical broadcast channels over persistent
// client sessions and pushes live incident, chat and location events.
package realtime

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prapanjan22-hub/garazzo/core/logger"
	"github.com/prapanjan22-hub/garazzo/core/model"
)

// Event names pushed to connected clients.
const (
	EventEmergencyAlert     = "emergency_alert"
	EventStatusUpdate       = "booking_status_update"
	EventNewMessage         = "new_message"
	EventUserLocationUpdate = "user_location_update"
)

// Roles whose sessions join the shared responder channel.
const (
	RoleMechanic = "mechanic"
	RoleGarage   = "garage"
)

// ResponderChannel is the role-scoped channel all eligible responders join.
const ResponderChannel = "responders"

// UserChannel returns the personal channel key for a user.
func UserChannel(userID string) string { return "user_" + userID }

// IncidentChannel returns the per-incident channel key.
func IncidentChannel(incidentID string) string { return "incident_" + incidentID }

// Event is one message pushed to a session.
type Event struct {
	Name      string    `json:"event"`
	Channel   string    `json:"channel,omitempty"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

const sessionQueueSize = 64

var sessionIDCounter atomic.Uint64

// Session is one connected client. Its outbound queue is independent: a slow
// session only drops its own events.
type Session struct {
	id     uint64
	UserID string
	Role   string
	send   chan Event
}

// Events is the session's outbound queue, consumed by the transport's write
// loop. It is closed when the session disconnects.
func (s *Session) Events() <-chan Event { return s.send }

// Hub tracks sessions and their channel memberships.
type Hub struct {
	log logger.Logger
	now func() time.Time

	mu           sync.RWMutex
	channels     map[string]map[*Session]bool
	memberships  map[*Session]map[string]bool
	userSessions map[string]int
	lastLocation map[string]model.Location
}

// NewHub creates an empty hub.
func NewHub(log logger.Logger) *Hub {
	return &Hub{
		log:          log,
		now:          time.Now,
		channels:     make(map[string]map[*Session]bool),
		memberships:  make(map[*Session]map[string]bool),
		userSessions: make(map[string]int),
		lastLocation: make(map[string]model.Location),
	}
}

// Connect registers an authenticated session. It always joins the user's
// personal channel; responder roles also join the shared responder channel.
func (h *Hub) Connect(userID, role string) *Session {
	s := &Session{
		id:     sessionIDCounter.Add(1),
		UserID: userID,
		Role:   role,
		send:   make(chan Event, sessionQueueSize),
	}
	h.mu.Lock()
	h.memberships[s] = make(map[string]bool)
	h.userSessions[userID]++
	h.mu.Unlock()

	h.Join(s, UserChannel(userID))
	if role == RoleMechanic || role == RoleGarage {
		h.Join(s, ResponderChannel)
	}
	h.log.Infof("user %s connected (session %d)", userID, s.id)
	return s
}

// Join adds the session to a channel. Joining twice is a no-op.
func (h *Hub) Join(s *Session, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.memberships[s]; !ok {
		return
	}
	if h.channels[channel] == nil {
		h.channels[channel] = make(map[*Session]bool)
	}
	h.channels[channel][s] = true
	h.memberships[s][channel] = true
}

// Leave removes the session from a channel. Leaving a channel the session
// never joined is a no-op.
func (h *Hub) Leave(s *Session, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeMembership(s, channel)
}

func (h *Hub) removeMembership(s *Session, channel string) {
	if members, ok := h.channels[channel]; ok {
		delete(members, s)
		if len(members) == 0 {
			delete(h.channels, channel)
		}
	}
	if chans, ok := h.memberships[s]; ok {
		delete(chans, channel)
	}
}

// Disconnect releases every membership of the session, clears its ephemeral
// per-user state and closes its queue.
func (h *Hub) Disconnect(s *Session) {
	h.mu.Lock()
	chans, ok := h.memberships[s]
	if !ok {
		h.mu.Unlock()
		return
	}
	for channel := range chans {
		h.removeMembership(s, channel)
	}
	delete(h.memberships, s)
	// Live location is per user, not per session; keep it while the user
	// still has another session connected.
	if h.userSessions[s.UserID]--; h.userSessions[s.UserID] <= 0 {
		delete(h.userSessions, s.UserID)
		delete(h.lastLocation, s.UserID)
	}
	close(s.send)
	h.mu.Unlock()
	h.log.Infof("user %s disconnected (session %d)", s.UserID, s.id)
}

// Publish delivers the event to every session currently joined to the
// channel. Delivery is best-effort and non-blocking: a full queue drops the
// event for that session only. Returns the number of sessions reached.
func (h *Hub) Publish(channel, name string, payload any) int {
	ev := Event{Name: name, Channel: channel, Payload: payload, Timestamp: h.now().UTC()}
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for s := range h.channels[channel] {
		select {
		case s.send <- ev:
			delivered++
		default:
			eventsDropped.WithLabelValues(name).Inc()
			h.log.Warnf("dropping %s for slow session %d (user %s)", name, s.id, s.UserID)
		}
	}
	eventsPublished.WithLabelValues(name).Add(float64(delivered))
	return delivered
}

// PublishUser delivers the event on the user's personal channel.
func (h *Hub) PublishUser(userID, name string, payload any) int {
	return h.Publish(UserChannel(userID), name, payload)
}

// UpdateLocation records the session's live location and broadcasts it to
// the responder channel. The location is ephemeral state cleared on
// disconnect.
func (h *Hub) UpdateLocation(s *Session, loc model.Location) {
	h.mu.Lock()
	h.lastLocation[s.UserID] = loc
	h.mu.Unlock()
	h.Publish(ResponderChannel, EventUserLocationUpdate, map[string]any{
		"user_id":  s.UserID,
		"location": loc,
	})
}

// LastLocation returns the most recent live location reported by the user.
func (h *Hub) LastLocation(userID string) (model.Location, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	loc, ok := h.lastLocation[userID]
	return loc, ok
}

// SendChat relays a chat message to the incident channel.
func (h *Hub) SendChat(s *Session, incidentID, message string) int {
	return h.Publish(IncidentChannel(incidentID), EventNewMessage, map[string]any{
		"incident_id": incidentID,
		"sender_id":   s.UserID,
		"sender_role": s.Role,
		"message":     message,
	})
}

// Members returns how many sessions are joined to the channel.
func (h *Hub) Members(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}
