package handlers

import (
	"errors"
	"net/http"

	"badge-kiosk-backend/internal/models"
	"badge-kiosk-backend/internal/repository"
	"badge-kiosk-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// UserHandler serves the visitor record API under /api/users
type UserHandler struct {
	visitors *services.VisitorService
}

// NewUserHandler creates a new user handler
func NewUserHandler(visitors *services.VisitorService) *UserHandler {
	return &UserHandler{
		visitors: visitors,
	}
}

// UpdateRegistrationRequest represents the request body for completing a registration
type UpdateRegistrationRequest struct {
	Ref      string `json:"ref"`
	PhotoURL string `json:"photoUrl"`
	BadgeURL string `json:"badgeUrl"`
	CardURL  string `json:"cardUrl"`
	PrintURL string `json:"printUrl"`
}

// UpdateQRURLRequest represents the request body for storing a QR code URL
type UpdateQRURLRequest struct {
	Ref   string `json:"ref"`
	QRURL string `json:"qrUrl"`
}

// CreateUser handles POST /api/users/create
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req services.CreateVisitorInput
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	visitor, err := h.visitors.Create(ctx, req)
	if err != nil {
		if msg, ok := validationMessage(err); ok {
			respondError(w, msg, http.StatusBadRequest)
			return
		}
		if errors.Is(err, repository.ErrDuplicate) {
			respondError(w, "User with this ID or reference already exists", http.StatusConflict)
			return
		}
		log.Error().Err(err).Str("ref", req.Ref).Msg("Failed to create user")
		respondError(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	log.Info().
		Str("user_id", visitor.ID).
		Str("ref", visitor.Ref).
		Msg("User created")

	respondJSON(w, http.StatusCreated, map[string]interface{}{"user": visitor})
}

// GetByRef handles GET /api/users/get-by-ref?ref=
func (h *UserHandler) GetByRef(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("ref")
	if ref == "" {
		respondError(w, "Reference ID is required", http.StatusBadRequest)
		return
	}

	// not found is reported like any other lookup failure
	visitor, err := h.visitors.GetByRef(r.Context(), ref)
	if err != nil {
		log.Error().Err(err).Str("ref", ref).Msg("Failed to fetch user")
		respondError(w, "Failed to fetch user", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"user": visitor})
}

// GetByEvent handles GET /api/users/get-by-event?eventId=
func (h *UserHandler) GetByEvent(w http.ResponseWriter, r *http.Request) {
	eventID := r.URL.Query().Get("eventId")
	if eventID == "" {
		respondError(w, "Event ID is required", http.StatusBadRequest)
		return
	}

	visitors, err := h.visitors.GetByEvent(r.Context(), eventID)
	if err != nil {
		log.Error().Err(err).Str("event_id", eventID).Msg("Failed to fetch users")
		respondError(w, "Failed to fetch users", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"users": visitors})
}

// UpdateRegistration handles PUT /api/users/update-registration
func (h *UserHandler) UpdateRegistration(w http.ResponseWriter, r *http.Request) {
	var req UpdateRegistrationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Ref == "" || req.PhotoURL == "" {
		respondError(w, "Reference ID and photo URL are required", http.StatusBadRequest)
		return
	}

	visitor, err := h.visitors.UpdateRegistration(r.Context(), req.Ref, models.RegistrationUpdate{
		PhotoURL: req.PhotoURL,
		BadgeURL: req.BadgeURL,
		CardURL:  req.CardURL,
		PrintURL: req.PrintURL,
	})
	if err != nil {
		log.Error().Err(err).Str("ref", req.Ref).Msg("Failed to update user registration")
		respondError(w, "Failed to update user registration", http.StatusInternalServerError)
		return
	}

	log.Info().Str("ref", req.Ref).Msg("User registration updated")

	respondJSON(w, http.StatusOK, map[string]interface{}{"user": visitor})
}

// UpdateQRURL handles PUT /api/users/update-qr-url
func (h *UserHandler) UpdateQRURL(w http.ResponseWriter, r *http.Request) {
	var req UpdateQRURLRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Ref == "" || req.QRURL == "" {
		respondError(w, "Reference ID and QR URL are required", http.StatusBadRequest)
		return
	}

	visitor, err := h.visitors.UpdateQRURL(r.Context(), req.Ref, req.QRURL)
	if err != nil {
		log.Error().Err(err).Str("ref", req.Ref).Msg("Failed to update QR URL")
		respondError(w, "Failed to update QR URL", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"user": visitor})
}
