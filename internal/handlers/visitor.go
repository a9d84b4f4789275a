package handlers

import (
	"errors"
	"net/http"

	"badge-kiosk-backend/internal/printing"
	"badge-kiosk-backend/internal/repository"
	"badge-kiosk-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// VisitorHandler serves QR issuance, the visitor list and manual reprints
type VisitorHandler struct {
	issuance  *services.IssuanceService
	visitors  *services.VisitorService
	printer   *printing.Dispatcher
	eventID   string
	publicURL string
	rotate    bool
}

// VisitorHandlerConfig holds visitor handler options
type VisitorHandlerConfig struct {
	EventID   string
	PublicURL string
	Rotate    bool
}

// NewVisitorHandler creates a new visitor handler
func NewVisitorHandler(
	issuance *services.IssuanceService,
	visitors *services.VisitorService,
	printer *printing.Dispatcher,
	cfg VisitorHandlerConfig,
) *VisitorHandler {
	return &VisitorHandler{
		issuance:  issuance,
		visitors:  visitors,
		printer:   printer,
		eventID:   cfg.EventID,
		publicURL: cfg.PublicURL,
		rotate:    cfg.Rotate,
	}
}

// PrintResponse carries the print view URL
type PrintResponse struct {
	PrintURL string `json:"printUrl"`
	RawBTURL string `json:"rawbtUrl,omitempty"`
}

// Issue handles POST /api/visitors
func (h *VisitorHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req services.IssueInput
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = h.publicURL
	}

	issued, err := h.issuance.Issue(r.Context(), req, origin)
	if err != nil {
		if msg, ok := validationMessage(err); ok {
			respondError(w, msg, http.StatusBadRequest)
			return
		}
		log.Error().Err(err).Str("email", req.Email).Msg("Failed to create visitor")
		respondError(w, "Failed to create visitor", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, issued)
}

// List handles GET /api/visitors?eventId=&q=&page=&per_page=
func (h *VisitorHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	eventID := q.Get("eventId")
	if eventID == "" {
		eventID = h.eventID
	}

	page, err := h.visitors.List(r.Context(), services.ListQuery{
		EventID: eventID,
		Search:  q.Get("q"),
		Page:    queryInt(r, "page"),
		PerPage: queryInt(r, "per_page"),
	})
	if err != nil {
		log.Error().Err(err).Str("event_id", eventID).Msg("Failed to list visitors")
		respondError(w, "Failed to fetch users", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, page)
}

// Print handles POST /api/visitors/{ref}/print
func (h *VisitorHandler) Print(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")

	visitor, err := h.visitors.GetByRef(r.Context(), ref)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, "User not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("ref", ref).Msg("Failed to fetch user")
		respondError(w, "Failed to fetch user", http.StatusInternalServerError)
		return
	}

	imageURL := visitor.PrintableURL()
	if imageURL == "" {
		respondError(w, "Visitor has no badge to print", http.StatusConflict)
		return
	}

	ticket, err := h.printer.Ticket(imageURL, h.rotate, ref)
	if err != nil {
		log.Error().Err(err).Str("ref", ref).Msg("Failed to issue print ticket")
		respondError(w, "Failed to print badge", http.StatusInternalServerError)
		return
	}

	log.Info().Str("ref", ref).Msg("Badge reprint requested")

	respondJSON(w, http.StatusOK, PrintResponse{
		PrintURL: h.printer.PrintURL(ticket),
		RawBTURL: rawBTLink(r.Context(), h.printer, imageURL, ref),
	})
}
