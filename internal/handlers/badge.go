package handlers

import (
	"net/http"

	"badge-kiosk-backend/internal/badge"
	"badge-kiosk-backend/internal/models"
	"badge-kiosk-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// BadgeHandler handles avatar generation and badge composition
type BadgeHandler struct {
	avatars services.AvatarGenerator
	badges  services.BadgeComposer
}

// NewBadgeHandler creates a new badge handler
func NewBadgeHandler(avatars services.AvatarGenerator, badges services.BadgeComposer) *BadgeHandler {
	return &BadgeHandler{
		avatars: avatars,
		badges:  badges,
	}
}

// GenerateBadgeRequest represents the request body for avatar generation
type GenerateBadgeRequest struct {
	PhotoURL    string             `json:"photoUrl"`
	VisitorName string             `json:"visitorName"`
	Style       models.AvatarStyle `json:"style"`
}

// ComposeRequest represents the request body for badge composition
type ComposeRequest struct {
	PhotoURL string       `json:"photoUrl"`
	User     badge.Fields `json:"user"`
}

// ComposeResponse carries both badge rasters as PNG data URLs
type ComposeResponse struct {
	DisplayURL string `json:"displayUrl"`
	PrintURL   string `json:"printUrl"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

// GenerateBadge handles POST /api/generate-badge
func (h *BadgeHandler) GenerateBadge(w http.ResponseWriter, r *http.Request) {
	var req GenerateBadgeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.PhotoURL == "" {
		respondError(w, "Photo URL is required", http.StatusBadRequest)
		return
	}
	if req.Style == "" {
		req.Style = models.StylePhotoShoot
	}

	b64, ok := h.avatars.Generate(r.Context(), req.PhotoURL, req.VisitorName, req.Style)
	if !ok {
		respondError(w, "Failed to generate badge", http.StatusInternalServerError)
		return
	}

	log.Info().
		Str("visitor", req.VisitorName).
		Str("style", string(req.Style)).
		Msg("Avatar generated")

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"badge":   b64,
	})
}

// Compose handles POST /api/badge/compose
func (h *BadgeHandler) Compose(w http.ResponseWriter, r *http.Request) {
	var req ComposeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.PhotoURL == "" {
		respondError(w, "Photo URL is required", http.StatusBadRequest)
		return
	}

	result, err := h.badges.Compose(r.Context(), req.PhotoURL, &req.User)
	if err != nil {
		respondError(w, "Failed to compose badge", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, ComposeResponse{
		DisplayURL: result.DisplayDataURL(),
		PrintURL:   result.PrintDataURL(),
		Width:      result.DisplayWidth,
		Height:     result.DisplayHeight,
	})
}
