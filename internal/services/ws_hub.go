package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"badge-kiosk-backend/internal/wizard"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 10 * time.Second

// Session event types
const (
	EventStep      = "step"
	EventProgress  = "progress"
	EventError     = "error"
	EventCancelled = "cancelled"
)

// SessionEvent is pushed to the kiosk browser following a session
type SessionEvent struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Step      wizard.StepName `json:"step,omitempty"`
	Progress  int             `json:"progress,omitempty"`
	Message   string          `json:"message,omitempty"`
	PrintView string          `json:"print_view,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

type hubConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// SessionHub manages websocket connections, one per wizard session
type SessionHub struct {
	mu          sync.RWMutex
	connections map[string]*hubConn
}

// NewSessionHub creates a new session hub
func NewSessionHub() *SessionHub {
	return &SessionHub{
		connections: make(map[string]*hubConn),
	}
}

// Register registers the connection following a session, replacing any earlier one
func (h *SessionHub) Register(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, exists := h.connections[sessionID]; exists {
		existing.conn.Close()
	}
	h.connections[sessionID] = &hubConn{conn: conn}

	log.Info().Str("session_id", sessionID).Msg("WebSocket connection registered")
}

// Unregister closes and removes a session's connection
func (h *SessionHub) Unregister(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	existing, exists := h.connections[sessionID]
	if !exists || (conn != nil && existing.conn != conn) {
		return
	}
	existing.conn.Close()
	delete(h.connections, sessionID)
	log.Info().Str("session_id", sessionID).Msg("WebSocket connection unregistered")
}

// IsConnected reports whether a browser follows the session
func (h *SessionHub) IsConnected(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, exists := h.connections[sessionID]
	return exists
}

// Send writes an event to the session's connection
func (h *SessionHub) Send(sessionID string, event SessionEvent) error {
	h.mu.RLock()
	c, exists := h.connections[sessionID]
	h.mu.RUnlock()

	if !exists {
		return fmt.Errorf("session %s is not connected", sessionID)
	}

	event.SessionID = sessionID
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	c.mu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = c.conn.WriteMessage(websocket.TextMessage, data)
	c.mu.Unlock()

	if err != nil {
		h.Unregister(sessionID, c.conn)
		return fmt.Errorf("failed to send event: %w", err)
	}
	return nil
}

// Publish sends an event if a browser is connected; delivery is best effort
func (h *SessionHub) Publish(sessionID string, event SessionEvent) {
	if !h.IsConnected(sessionID) {
		return
	}
	if err := h.Send(sessionID, event); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Str("type", event.Type).Msg("Failed to publish session event")
	}
}

// PublishSession sends the session's current step
func (h *SessionHub) PublishSession(s *wizard.Session) {
	event := SessionEvent{Type: EventStep, Step: s.Step().Name(), PrintView: s.PrintView}
	switch step := s.Step().(type) {
	case wizard.Photo:
		if step.Error != "" {
			event.Type = EventError
			event.Message = step.Error
		}
	case wizard.Printing:
		event.Type = EventProgress
		event.Progress = step.Progress
	}
	h.Publish(s.ID, event)
}
