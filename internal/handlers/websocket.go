package handlers

import (
	"errors"
	"net/http"

	"badge-kiosk-backend/internal/services"
	"badge-kiosk-backend/internal/wizard"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // kiosk browsers are served from several hosts
	},
}

// WebSocketHandler streams wizard session events to the kiosk browser
type WebSocketHandler struct {
	hub          *services.SessionHub
	registration *services.RegistrationService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *services.SessionHub, registration *services.RegistrationService) *WebSocketHandler {
	return &WebSocketHandler{
		hub:          hub,
		registration: registration,
	}
}

// HandleWebSocket handles GET /ws/sessions/{id}
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	s, err := h.registration.Get(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, wizard.ErrSessionNotFound) {
			respondError(w, "Session not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to load session")
		respondError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Upgrade connection
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	h.hub.Register(sessionID, conn)
	defer h.hub.Unregister(sessionID, conn)

	// current step first, so a reconnecting browser catches up
	h.hub.PublishSession(s)

	log.Info().Str("session_id", sessionID).Msg("WebSocket connection established")

	// the kiosk only listens; reads detect the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("session_id", sessionID).Msg("WebSocket error")
			}
			break
		}
	}
}
