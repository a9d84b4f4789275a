package handlers

import (
	"context"
	"errors"
	"net/http"

	"badge-kiosk-backend/internal/repository"
	"badge-kiosk-backend/internal/services"
	"badge-kiosk-backend/internal/wizard"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// SessionHandler exposes registration wizard sessions
type SessionHandler struct {
	registration *services.RegistrationService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(registration *services.RegistrationService) *SessionHandler {
	return &SessionHandler{
		registration: registration,
	}
}

// StartSessionRequest represents the request body for starting a session
type StartSessionRequest struct {
	Ref string `json:"ref"`
}

// Start handles POST /api/sessions
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Ref == "" {
		respondError(w, "Reference ID is required", http.StatusBadRequest)
		return
	}

	s, err := h.registration.Start(r.Context(), req.Ref)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, "User not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("ref", req.Ref).Msg("Failed to start session")
		respondError(w, "Failed to fetch user", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, s)
}

// Get handles GET /api/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.registration.Get)
}

// ConfirmInfo handles POST /api/sessions/{id}/info
func (h *SessionHandler) ConfirmInfo(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.registration.ConfirmInfo)
}

// Back handles POST /api/sessions/{id}/back
func (h *SessionHandler) Back(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.registration.Back)
}

// Confirm handles POST /api/sessions/{id}/confirm
func (h *SessionHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.registration.ConfirmPreview)
}

// SubmitPhoto handles POST /api/sessions/{id}/photo
func (h *SessionHandler) SubmitPhoto(w http.ResponseWriter, r *http.Request) {
	var req services.PhotoInput
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	h.run(w, r, func(ctx context.Context, id string) (*wizard.Session, error) {
		return h.registration.SubmitPhoto(ctx, id, req)
	})
}

// Cancel handles POST /api/sessions/{id}/cancel
func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.registration.Cancel(r.Context(), id); err != nil {
		h.respondSessionError(w, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) run(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (*wizard.Session, error)) {
	id := chi.URLParam(r, "id")
	s, err := fn(r.Context(), id)
	if err != nil {
		h.respondSessionError(w, id, err)
		return
	}
	respondJSON(w, http.StatusOK, s)
}

func (h *SessionHandler) respondSessionError(w http.ResponseWriter, id string, err error) {
	if msg, ok := validationMessage(err); ok {
		respondError(w, msg, http.StatusBadRequest)
		return
	}

	switch {
	case errors.Is(err, wizard.ErrSessionNotFound):
		respondError(w, "Session not found", http.StatusNotFound)
	case errors.Is(err, wizard.ErrInvalidTransition):
		respondError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, services.ErrPhotoRequired):
		respondError(w, "Photo is required", http.StatusBadRequest)
	case errors.Is(err, services.ErrRegistrationFailed):
		respondError(w, services.MsgRegistrationFailed, http.StatusInternalServerError)
	case errors.Is(err, context.Canceled):
		respondError(w, "Session cancelled", http.StatusConflict)
	default:
		log.Error().Err(err).Str("session_id", id).Msg("Session request failed")
		respondError(w, "Internal server error", http.StatusInternalServerError)
	}
}
