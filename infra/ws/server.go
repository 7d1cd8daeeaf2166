// Package ws exposes the realtime hub over WebSocket connections.
package ws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/prapanjan22-hub/garazzo/core/logger"
	"github.com/prapanjan22-hub/garazzo/core/model"
	"github.com/prapanjan22-hub/garazzo/core/realtime"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Identity describes an authenticated connection.
type Identity struct {
	UserID string
	Role   string
}

// AuthFunc resolves the request into an identity or rejects the upgrade.
type AuthFunc func(r *http.Request) (Identity, error)

// TokenAuth authenticates with a static shared token passed via the
// `token` query parameter. User and role come from query parameters too,
// which is sufficient for development deployments.
func TokenAuth(secret string) AuthFunc {
	return func(r *http.Request) (Identity, error) {
		if secret != "" && r.URL.Query().Get("token") != secret {
			return Identity{}, fmt.Errorf("invalid token")
		}
		id := Identity{
			UserID: r.URL.Query().Get("user_id"),
			Role:   r.URL.Query().Get("role"),
		}
		if id.UserID == "" {
			return Identity{}, fmt.Errorf("user_id is required")
		}
		return id, nil
	}
}

// clientCommand is sent by a connected client.
type clientCommand struct {
	Action     string          `json:"action"`
	IncidentID string          `json:"incident_id,omitempty"`
	Message    string          `json:"message,omitempty"`
	Location   *model.Location `json:"location,omitempty"`
}

// Server upgrades HTTP requests and bridges them into the hub.
type Server struct {
	hub      *realtime.Hub
	auth     AuthFunc
	log      logger.Logger
	upgrader websocket.Upgrader
}

// NewServer builds a WebSocket server for the given hub.
func NewServer(hub *realtime.Hub, auth AuthFunc, log logger.Logger) (*Server, error) {
	if hub == nil {
		return nil, fmt.Errorf("hub is required")
	}
	if auth == nil {
		return nil, fmt.Errorf("auth func is required")
	}
	return &Server{
		hub:  hub,
		auth: auth,
		log:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}, nil
}

// ServeHTTP authenticates, upgrades, and runs the connection pumps.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, err := s.auth(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("websocket upgrade failed: %v", err)
		return
	}
	session := s.hub.Connect(identity.UserID, identity.Role)
	s.log.Infof("websocket connected: user=%s role=%s", identity.UserID, identity.Role)

	go s.writePump(conn, session)
	go s.readPump(conn, session)
}

func (s *Server) readPump(conn *websocket.Conn, session *realtime.Session) {
	defer func() {
		s.hub.Disconnect(session)
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.log.Errorf("set read deadline: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var cmd clientCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Warnf("websocket closed unexpectedly: %v", err)
			}
			return
		}
		s.handleCommand(session, cmd)
	}
}

func (s *Server) handleCommand(session *realtime.Session, cmd clientCommand) {
	switch cmd.Action {
	case "join_emergency":
		if cmd.IncidentID != "" {
			s.hub.Join(session, realtime.IncidentChannel(cmd.IncidentID))
		}
	case "leave_emergency":
		if cmd.IncidentID != "" {
			s.hub.Leave(session, realtime.IncidentChannel(cmd.IncidentID))
		}
	case "update_location":
		if cmd.Location != nil {
			s.hub.UpdateLocation(session, *cmd.Location)
		}
	case "send_message":
		if cmd.IncidentID != "" && cmd.Message != "" {
			s.hub.SendChat(session, cmd.IncidentID, cmd.Message)
		}
	default:
		s.log.Debugf("ignoring unknown action %q from user %s", cmd.Action, session.UserID)
	}
}

func (s *Server) writePump(conn *websocket.Conn, session *realtime.Session) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case ev, ok := <-session.Events():
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.log.Errorf("encode event %s: %v", ev.Name, err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
