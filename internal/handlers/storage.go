package handlers

import (
	"errors"
	"net/http"
	"strings"

	"badge-kiosk-backend/internal/services"
	"badge-kiosk-backend/internal/storage"

	"github.com/rs/zerolog/log"
)

// StorageHandler handles base64 asset uploads
type StorageHandler struct {
	uploader services.AssetUploader
}

// NewStorageHandler creates a new storage handler
func NewStorageHandler(uploader services.AssetUploader) *StorageHandler {
	return &StorageHandler{
		uploader: uploader,
	}
}

// UploadRequest represents the request body for an asset upload
type UploadRequest struct {
	Base64Image string `json:"base64Image"`
	UserRef     string `json:"userRef"`
	Variant     string `json:"variant"`
}

// UploadPhoto handles POST /api/storage/upload-photo
func (h *StorageHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, storage.KindPhoto, "Failed to upload photo")
}

// UploadQR handles POST /api/storage/upload-qr
func (h *StorageHandler) UploadQR(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, storage.KindQR, "Failed to upload QR code")
}

// UploadBadge handles POST /api/storage/upload-badge
func (h *StorageHandler) UploadBadge(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, storage.KindBadge, "Failed to upload badge")
}

func (h *StorageHandler) upload(w http.ResponseWriter, r *http.Request, kind storage.Kind, failMsg string) {
	var req UploadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Base64Image == "" || req.UserRef == "" {
		respondError(w, "Base64 image and user reference are required", http.StatusBadRequest)
		return
	}

	if _, payload, ok := strings.Cut(req.Base64Image, ","); !ok || payload == "" {
		respondError(w, "Invalid base64 image format", http.StatusBadRequest)
		return
	}

	variant := ""
	if kind == storage.KindBadge {
		switch req.Variant {
		case "", storage.VariantCard, storage.VariantPrint:
			variant = req.Variant
		default:
			respondError(w, "Invalid badge variant", http.StatusBadRequest)
			return
		}
	}

	url, err := h.uploader.Upload(r.Context(), storage.UploadInput{
		Data:     req.Base64Image,
		OwnerRef: req.UserRef,
		Kind:     kind,
		Variant:  variant,
	})
	if err != nil {
		if errors.Is(err, storage.ErrInvalidImageFormat) {
			respondError(w, "Invalid base64 image format", http.StatusBadRequest)
			return
		}
		log.Error().
			Err(err).
			Str("ref", req.UserRef).
			Str("kind", string(kind)).
			Msg("Failed to upload asset")
		respondError(w, failMsg, http.StatusInternalServerError)
		return
	}

	log.Info().
		Str("ref", req.UserRef).
		Str("kind", string(kind)).
		Str("url", url).
		Msg("Asset uploaded")

	respondJSON(w, http.StatusOK, map[string]string{"url": url})
}
