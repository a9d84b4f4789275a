package handlers

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"badge-kiosk-backend/internal/camera"

	"github.com/rs/zerolog/log"
)

// CameraHandler turns frames posted by the kiosk browser into stored photos
type CameraHandler struct {
	uploader camera.Uploader
}

// NewCameraHandler creates a new camera handler
func NewCameraHandler(uploader camera.Uploader) *CameraHandler {
	return &CameraHandler{
		uploader: uploader,
	}
}

// CaptureRequest represents the request body for a capture
type CaptureRequest struct {
	Frame    string `json:"frame"`
	Mirrored bool   `json:"mirrored"`
	UserRef  string `json:"userRef"`
}

// Capture handles POST /api/camera/capture
func (h *CameraHandler) Capture(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CaptureRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Frame == "" {
		respondError(w, "frame is required", http.StatusBadRequest)
		return
	}

	src, err := camera.NewFrameSource(req.Frame, req.Mirrored)
	if err != nil {
		respondError(w, "Invalid frame", http.StatusBadRequest)
		return
	}

	cam := camera.New(src, h.uploader)
	cam.SetMirror(req.Mirrored)
	if err := cam.Start(ctx, camera.StartOptions{SecureContext: secureContext(r)}); err != nil {
		log.Warn().Err(err).Msg("Camera start failed")
		status := http.StatusInternalServerError
		if errors.Is(err, camera.ErrInsecureContext) || errors.Is(err, camera.ErrPermissionDenied) {
			status = http.StatusForbidden
		}
		respondError(w, err.Error(), status)
		return
	}
	defer cam.Stop()

	photo, err := cam.Capture(ctx, req.UserRef)
	if err != nil {
		log.Error().Err(err).Str("ref", req.UserRef).Msg("Failed to capture photo")
		respondError(w, "Failed to capture photo", http.StatusInternalServerError)
		return
	}

	log.Info().
		Str("ref", req.UserRef).
		Bool("hosted", photo.Hosted).
		Int("width", photo.Width).
		Int("height", photo.Height).
		Msg("Photo captured")

	respondJSON(w, http.StatusOK, photo)
}

// secureContext reports whether the browser could have granted camera
// access: HTTPS, directly or behind a proxy, or a loopback host.
func secureContext(r *http.Request) bool {
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
