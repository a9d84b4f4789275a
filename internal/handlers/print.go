package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"badge-kiosk-backend/internal/middleware"
	"badge-kiosk-backend/internal/printing"
	"badge-kiosk-backend/internal/services"
	"badge-kiosk-backend/internal/storage"

	"github.com/rs/zerolog/log"
)

// PrintHandler issues print tickets and renders the print view
type PrintHandler struct {
	printer  *printing.Dispatcher
	uploader services.AssetUploader
}

// NewPrintHandler creates a new print handler
func NewPrintHandler(printer *printing.Dispatcher, uploader services.AssetUploader) *PrintHandler {
	return &PrintHandler{
		printer:  printer,
		uploader: uploader,
	}
}

// TicketRequest represents the request body for a print ticket
type TicketRequest struct {
	ImageURL string `json:"imageUrl"`
	Rotate   bool   `json:"rotate"`
	Ref      string `json:"ref"`
}

// Ticket handles POST /api/print/ticket. Data URLs are uploaded first so the
// ticket only ever carries a short hosted URL.
func (h *PrintHandler) Ticket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req TicketRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.ImageURL == "" {
		respondError(w, "Image URL is required", http.StatusBadRequest)
		return
	}

	var resp PrintResponse
	imageURL := req.ImageURL
	if strings.HasPrefix(imageURL, "data:") {
		owner := req.Ref
		if owner == "" {
			owner = "print"
		}
		url, err := h.uploader.Upload(ctx, storage.UploadInput{
			Data:     imageURL,
			OwnerRef: owner,
			Kind:     storage.KindBadge,
			Variant:  storage.VariantPrint,
		})
		if err != nil {
			if errors.Is(err, storage.ErrInvalidImageFormat) {
				respondError(w, "Invalid base64 image format", http.StatusBadRequest)
				return
			}
			log.Error().Err(err).Str("ref", req.Ref).Msg("Failed to upload print image")
			respondError(w, "Failed to upload badge", http.StatusInternalServerError)
			return
		}
		imageURL = url
	}

	ticket, err := h.printer.Ticket(imageURL, req.Rotate, req.Ref)
	if err != nil {
		if errors.Is(err, printing.ErrInvalidImageURL) {
			respondError(w, "Image URL must be an http(s) or data:image URL", http.StatusBadRequest)
			return
		}
		log.Error().Err(err).Str("ref", req.Ref).Msg("Failed to issue print ticket")
		respondError(w, "Failed to issue print ticket", http.StatusInternalServerError)
		return
	}

	resp.PrintURL = h.printer.PrintURL(ticket)
	resp.RawBTURL = rawBTLink(ctx, h.printer, req.ImageURL, req.Ref)
	respondJSON(w, http.StatusOK, resp)
}

// rawBTLink returns the RawBT link when enabled. A failure only drops the
// link; the print view still works.
func rawBTLink(ctx context.Context, printer *printing.Dispatcher, imageURL, ref string) string {
	link, err := printer.RawBTLink(ctx, imageURL)
	if err != nil {
		log.Warn().Err(err).Str("ref", ref).Msg("Failed to build RawBT link")
		return ""
	}
	return link
}

// Page handles GET /print?ticket= behind the print ticket middleware
func (h *PrintHandler) Page(w http.ResponseWriter, r *http.Request) {
	job := middleware.GetPrintJob(r.Context())
	if job == nil {
		respondError(w, "Invalid print ticket", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := h.printer.RenderPage(w, job); err != nil {
		log.Error().Err(err).Str("ref", job.Ref).Msg("Failed to render print page")
		return
	}

	log.Info().Str("ref", job.Ref).Bool("rotate", job.Rotate).Msg("Print view opened")
}
